// Package httpx implements the request executor and retry driver shared by
// the Channel and the auth strategies: composing and sending HTTP requests,
// classifying responses, and re-invoking operations with exponential
// backoff. It is stateless — all session state lives on the caller.
package httpx

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	socks5proxy "golang.org/x/net/proxy"
)

// TLSOptions mirrors the config surface's pass-through TLS fields (§4.8):
// ca, cert, key, passphrase, rejectUnauthorized, checkServerIdentity.
type TLSOptions struct {
	CAPEM               []byte
	CertPEM             []byte
	KeyPEM              []byte
	Passphrase          string // reserved for encrypted private keys
	RejectUnauthorized  *bool  // nil means true (verify by default)
	CheckServerIdentity func(host string, cert *x509.Certificate) error
}

// ProxyURL, when non-nil, routes the transport through an upstream proxy.
// Supported schemes: http, socks5. This is an ambient transport enrichment
// (SPEC_FULL §2 row 10) not named by spec.md, grounded on the teacher's
// internal/httpx.go NewOAuthHTTPClient.
type TransportOptions struct {
	TLS      TLSOptions
	ProxyURL *url.URL
}

// NewTransport builds an *http.Transport honoring TLSOptions and an
// optional proxy.
func NewTransport(opts TransportOptions) (*http.Transport, error) {
	tlsCfg := &tls.Config{}
	if opts.TLS.RejectUnauthorized != nil && !*opts.TLS.RejectUnauthorized {
		tlsCfg.InsecureSkipVerify = true
	}
	if len(opts.TLS.CAPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(opts.TLS.CAPEM) {
			return nil, fmt.Errorf("httpx: invalid CA PEM")
		}
		tlsCfg.RootCAs = pool
	}
	if len(opts.TLS.CertPEM) > 0 && len(opts.TLS.KeyPEM) > 0 {
		cert, err := tls.X509KeyPair(opts.TLS.CertPEM, opts.TLS.KeyPEM)
		if err != nil {
			return nil, fmt.Errorf("httpx: load client cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	if opts.TLS.CheckServerIdentity != nil {
		verify := opts.TLS.CheckServerIdentity
		host := ""
		tlsCfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return nil
			}
			cert, err := x509.ParseCertificate(rawCerts[0])
			if err != nil {
				return err
			}
			return verify(host, cert)
		}
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       tlsCfg,
	}

	if opts.ProxyURL != nil {
		switch opts.ProxyURL.Scheme {
		case "http":
			tr.Proxy = http.ProxyURL(opts.ProxyURL)
		case "socks5":
			d, err := socks5proxy.FromURL(opts.ProxyURL, dialer)
			if err != nil {
				return nil, fmt.Errorf("httpx: socks5 proxy: %w", err)
			}
			tr.DialContext = nil
			tr.Dial = d.Dial
			tr.Proxy = nil
		default:
			return nil, fmt.Errorf("httpx: unsupported proxy scheme %q", opts.ProxyURL.Scheme)
		}
	}

	return tr, nil
}

// NewClient builds an *http.Client around NewTransport's transport.
func NewClient(opts TransportOptions) (*http.Client, error) {
	tr, err := NewTransport(opts)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: tr}, nil
}
