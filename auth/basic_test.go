package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"dxlstream/dxlerrors"
	"dxlstream/internal/httpx"
	"dxlstream/internal/tokencache"
)

func TestBasic_AuthenticateLoginsOnceThenCaches(t *testing.T) {
	var logins int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identity/v1/login" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if u, p, ok := r.BasicAuth(); !ok || u != "alice" || p != "secret" {
			t.Errorf("bad basic auth: %v %v %v", u, p, ok)
		}
		atomic.AddInt32(&logins, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"AuthorizationToken":"tok-1"}`))
	}))
	defer srv.Close()

	b, err := NewBasic(srv.URL, "alice", "secret", httpx.TransportOptions{})
	if err != nil {
		t.Fatalf("NewBasic: %v", err)
	}

	req1, _ := http.NewRequest(http.MethodGet, "http://example.invalid/x", nil)
	if err := b.Authenticate(req1); err != nil {
		t.Fatalf("authenticate 1: %v", err)
	}
	if req1.Header.Get("Authorization") != "Bearer tok-1" {
		t.Fatalf("unexpected header: %s", req1.Header.Get("Authorization"))
	}

	req2, _ := http.NewRequest(http.MethodGet, "http://example.invalid/x", nil)
	if err := b.Authenticate(req2); err != nil {
		t.Fatalf("authenticate 2: %v", err)
	}
	if logins != 1 {
		t.Fatalf("expected a single login call, got %d", logins)
	}
}

func TestBasic_ResetForcesRelogin(t *testing.T) {
	var logins int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&logins, 1)
		w.Write([]byte(`{"AuthorizationToken":"tok-x"}`))
	}))
	defer srv.Close()

	b, _ := NewBasic(srv.URL, "alice", "secret", httpx.TransportOptions{})
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/x", nil)
	_ = b.Authenticate(req)
	b.Reset()
	_ = b.Authenticate(req)
	if logins != 2 {
		t.Fatalf("expected relogin after Reset, got %d logins", logins)
	}
}

func TestBasic_UnauthorizedIsPermanentAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	b, _ := NewBasic(srv.URL, "alice", "wrong", httpx.TransportOptions{})
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/x", nil)
	err := b.Authenticate(req)
	if !dxlerrors.IsPermanent(err) {
		t.Fatalf("expected permanent auth error, got %v", err)
	}
}

func TestBasic_ServerErrorIsTemporaryAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, _ := NewBasic(srv.URL, "alice", "secret", httpx.TransportOptions{})
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/x", nil)
	err := b.Authenticate(req)
	if !dxlerrors.IsRetryable(err) {
		t.Fatalf("expected retryable (temporary-auth) error, got %v", err)
	}
}

func TestBasic_MissingTokenFieldIsPermanentAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	b, _ := NewBasic(srv.URL, "alice", "secret", httpx.TransportOptions{})
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/x", nil)
	err := b.Authenticate(req)
	if !dxlerrors.IsPermanent(err) {
		t.Fatalf("expected permanent auth error for missing token field, got %v", err)
	}
}

func TestBasic_UseCacheAdoptsStoredTokenWithoutLogin(t *testing.T) {
	var logins int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&logins, 1)
		w.Write([]byte(`{"AuthorizationToken":"tok-fresh"}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	store, err := tokencache.Open(dir + "/tokens.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Set(context.Background(), "k", "tok-cached"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	b, _ := NewBasic(srv.URL, "alice", "secret", httpx.TransportOptions{})
	b.UseCache(store, "k")

	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/x", nil)
	if err := b.Authenticate(req); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if req.Header.Get("Authorization") != "Bearer tok-cached" {
		t.Fatalf("expected cached token to be adopted, got %s", req.Header.Get("Authorization"))
	}
	if logins != 0 {
		t.Fatalf("expected no login when a cached token exists, got %d logins", logins)
	}
}
