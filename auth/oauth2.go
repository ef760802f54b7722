package auth

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"dxlstream/internal/httpx"
)

// OAuth2 authenticates via the client-credentials grant, POSTing to
// /iam/v1.4/token with HTTP basic auth (client id/secret) and form body
// {scope, grant_type, audience} — the literal wire field names per
// spec.md's resolved Open Question #3. Built on
// golang.org/x/oauth2/clientcredentials, the same library the teacher uses
// for its Google OAuth2 flow (internal/auth/auth.go, main.go), generalized
// from a fixed Google endpoint to an arbitrary token URL/audience.
type OAuth2 struct {
	cfg    clientcredentials.Config
	client *http.Client

	mu     sync.Mutex
	cached *oauth2.Token
}

// NewOAuth2 constructs an OAuth2 strategy. baseURL is combined with the
// fixed token path; scope, grantType and audience become form fields on the
// token request.
func NewOAuth2(baseURL, clientID, clientSecret, scope, grantType, audience string, transportOpts httpx.TransportOptions) (*OAuth2, error) {
	client, err := httpx.NewClient(transportOpts)
	if err != nil {
		return nil, err
	}
	if grantType == "" {
		grantType = "client_credentials"
	}
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/iam/v1.4/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
		EndpointParams: map[string][]string{
			"grant_type": {grantType},
			"audience":   {audience},
		},
	}
	if scope != "" {
		cfg.Scopes = []string{scope}
	}
	return &OAuth2{cfg: cfg, client: client}, nil
}

func (o *OAuth2) Authenticate(req *http.Request) error {
	o.mu.Lock()
	cached := o.cached
	o.mu.Unlock()

	if cached != nil && cached.Valid() {
		cached.SetAuthHeader(req)
		return nil
	}

	ctx := context.WithValue(req.Context(), oauth2.HTTPClient, o.client)
	tok, err := o.cfg.TokenSource(ctx).Token()
	if err != nil {
		return classifyTokenErr(err)
	}

	o.mu.Lock()
	o.cached = tok
	o.mu.Unlock()

	tok.SetAuthHeader(req)
	return nil
}

func (o *OAuth2) Reset() {
	o.mu.Lock()
	o.cached = nil
	o.mu.Unlock()
}

// classifyTokenErr maps the oauth2 package's *oauth2.RetrieveError (carries
// the token endpoint's HTTP status) onto the auth strategy's taxonomy; any
// other error (network failure, malformed response) is Temporary per
// spec.md §4.2.
func classifyTokenErr(err error) error {
	var rerr *oauth2.RetrieveError
	if ok := asRetrieveError(err, &rerr); ok {
		return classifyStatus(rerr.Response.StatusCode)
	}
	return temporaryAuthf("token request failed: %v", err)
}

func asRetrieveError(err error, target **oauth2.RetrieveError) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if re, ok := err.(*oauth2.RetrieveError); ok {
			*target = re
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
