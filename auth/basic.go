package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"dxlstream/internal/httpx"
	"dxlstream/internal/tokencache"
)

// Basic authenticates against /identity/v1/login with HTTP basic auth and
// attaches the returned token as a bearer credential on subsequent calls.
// Grounded on the teacher's persistingTokenSource caching pattern
// (internal/auth/auth.go), generalized from OAuth2-token caching to a
// single opaque bearer string.
type Basic struct {
	baseURL  string
	user     string
	password string

	client *http.Client

	mu    sync.Mutex
	token string

	// cache, when set via UseCache, persists the bearer token across
	// process restarts (SPEC_FULL §2 row 11). Optional; nil means
	// in-memory only, matching the teacher's behavior when no SQLite path
	// is configured.
	cache    *tokencache.Store
	cacheKey string
}

// UseCache enables durable token caching for this strategy. key should
// uniquely identify this strategy's credential identity (e.g. derived from
// baseURL+user). A cached token found when UseCache is called is adopted
// immediately, saving the first login round-trip after a restart.
func (b *Basic) UseCache(store *tokencache.Store, key string) {
	b.mu.Lock()
	b.cache = store
	b.cacheKey = key
	b.mu.Unlock()
	if store == nil {
		return
	}
	if tok, ok, err := store.Get(context.Background(), key); err == nil && ok && tok != "" {
		b.mu.Lock()
		b.token = tok
		b.mu.Unlock()
	}
}

// NewBasic constructs a Basic strategy. transportOpts configures the TLS/
// proxy options (§4.8) for the login call's own HTTP client.
func NewBasic(baseURL, user, password string, transportOpts httpx.TransportOptions) (*Basic, error) {
	client, err := httpx.NewClient(transportOpts)
	if err != nil {
		return nil, fmt.Errorf("auth: build basic transport: %w", err)
	}
	return &Basic{baseURL: baseURL, user: user, password: password, client: client}, nil
}

func (b *Basic) Authenticate(req *http.Request) error {
	b.mu.Lock()
	tok := b.token
	b.mu.Unlock()
	if tok == "" {
		fresh, err := b.login(req.Context())
		if err != nil {
			return err
		}
		b.mu.Lock()
		b.token = fresh
		cache, key := b.cache, b.cacheKey
		b.mu.Unlock()
		if cache != nil {
			_ = cache.Set(req.Context(), key, fresh)
		}
		tok = fresh
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

func (b *Basic) Reset() {
	b.mu.Lock()
	b.token = ""
	cache, key := b.cache, b.cacheKey
	b.mu.Unlock()
	if cache != nil {
		_ = cache.Forget(context.Background(), key)
	}
}

type loginResponse struct {
	AuthorizationToken string `json:"AuthorizationToken"`
}

func (b *Basic) login(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/identity/v1/login", nil)
	if err != nil {
		return "", temporaryAuthf("build login request: %v", err)
	}
	req.SetBasicAuth(b.user, b.password)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", temporaryAuthf("login request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", temporaryAuthf("read login response: %v", err)
	}
	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return "", permanentAuthf("parse login response: %v", err)
	}
	if lr.AuthorizationToken == "" {
		return "", permanentAuthf("login response missing AuthorizationToken")
	}
	return lr.AuthorizationToken, nil
}
