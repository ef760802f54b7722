package auth

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"dxlstream/dxlerrors"
	"dxlstream/internal/httpx"
)

func TestOAuth2_AuthenticateFetchesAndCachesToken(t *testing.T) {
	var tokenCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/iam/v1.4/token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "client_credentials" {
			t.Errorf("unexpected grant_type: %q", got)
		}
		if got := r.Form.Get("audience"); got != "my-audience" {
			t.Errorf("unexpected audience: %q", got)
		}
		atomic.AddInt32(&tokenCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	o, err := NewOAuth2(srv.URL, "client-id", "client-secret", "scope-a", "client_credentials", "my-audience", httpx.TransportOptions{})
	if err != nil {
		t.Fatalf("NewOAuth2: %v", err)
	}

	req1, _ := http.NewRequest(http.MethodGet, "http://example.invalid/x", nil)
	if err := o.Authenticate(req1); err != nil {
		t.Fatalf("authenticate 1: %v", err)
	}
	if req1.Header.Get("Authorization") != "Bearer tok-1" {
		t.Fatalf("unexpected header: %s", req1.Header.Get("Authorization"))
	}

	req2, _ := http.NewRequest(http.MethodGet, "http://example.invalid/x", nil)
	if err := o.Authenticate(req2); err != nil {
		t.Fatalf("authenticate 2: %v", err)
	}
	if tokenCalls != 1 {
		t.Fatalf("expected the cached token to be reused, got %d token calls", tokenCalls)
	}
}

func TestOAuth2_ResetForcesRefetch(t *testing.T) {
	var tokenCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		w.Write([]byte(`{"access_token":"tok-x","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	o, _ := NewOAuth2(srv.URL, "id", "secret", "", "client_credentials", "aud", httpx.TransportOptions{})
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/x", nil)
	_ = o.Authenticate(req)
	o.Reset()
	_ = o.Authenticate(req)
	if tokenCalls != 2 {
		t.Fatalf("expected refetch after Reset, got %d calls", tokenCalls)
	}
}

func TestOAuth2_UnauthorizedIsPermanentAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	o, _ := NewOAuth2(srv.URL, "bad-id", "bad-secret", "", "client_credentials", "aud", httpx.TransportOptions{})
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/x", nil)
	err := o.Authenticate(req)
	if !dxlerrors.IsPermanent(err) {
		t.Fatalf("expected permanent auth error, got %v", err)
	}
}

func TestOAuth2_ServerErrorIsTemporaryAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o, _ := NewOAuth2(srv.URL, "id", "secret", "", "client_credentials", "aud", httpx.TransportOptions{})
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/x", nil)
	err := o.Authenticate(req)
	if !dxlerrors.IsRetryable(err) {
		t.Fatalf("expected retryable (temporary-auth) error, got %v", err)
	}
}
