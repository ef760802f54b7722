package httpx

import (
	"io"
	"net/http"

	"dxlstream/dxlerrors"
)

// Authenticator has the same method set as auth.Strategy. It is
// defined here to avoid an import cycle between internal/httpx and auth
// (auth itself builds *http.Client values via NewClient in transport.go).
type Authenticator interface {
	Authenticate(req *http.Request) error
	Reset()
}

// Classify maps an HTTP status code to the §4.3 outcome. notFoundIsConsumer
// is set by callers on consumer-scoped routes so a 404 there is reported as
// a Consumer error rather than a plain Temporary one.
func Classify(status int, notFoundIsConsumer bool) error {
	switch {
	case status == 200 || status == 201 || status == 202 || status == 204:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return dxlerrors.Temporaryf("request rejected, status %d", status)
	case status == http.StatusNotFound && notFoundIsConsumer:
		return dxlerrors.Consumerf("consumer not found, status %d", status)
	case status == http.StatusNotFound:
		return dxlerrors.Temporaryf("not found, status %d", status)
	default:
		return dxlerrors.Temporaryf("unexpected status %d", status)
	}
}

// Do sends req (already fully built except for auth) through client,
// classifying the response per §4.3:
//   - 2xx (200/201/202/204) -> returns the *http.Response for the caller to
//     read and close.
//   - 401/403 -> auth.Reset() is called if authn is non-nil, and a
//     Temporary error is returned (the retry driver's next attempt causes
//     Authenticate to re-acquire).
//   - 404 on a consumer-scoped route -> a Consumer error.
//   - any other status -> a Temporary error.
//   - transport error -> returned unchanged (not wrapped in *dxlerrors.Error).
//
// On success the caller is responsible for draining and closing resp.Body.
// In the classified-error cases Do drains and closes the body itself and
// returns a nil response.
func Do(client *http.Client, authn Authenticator, req *http.Request, consumerScoped bool) (*http.Response, error) {
	if authn != nil {
		if err := authn.Authenticate(req); err != nil {
			return nil, err
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == 200 || resp.StatusCode == 201 || resp.StatusCode == 202 || resp.StatusCode == 204 {
		return resp, nil
	}
	defer drainAndClose(resp.Body)
	if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) && authn != nil {
		authn.Reset()
	}
	return nil, Classify(resp.StatusCode, consumerScoped)
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}
