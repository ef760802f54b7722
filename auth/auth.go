// Package auth implements the pluggable authentication capability that
// decorates outgoing Channel requests with credentials. A Strategy is
// shared across potentially concurrent Channels; Authenticate and Reset
// must be safe for sequential reentry.
package auth

import (
	"net/http"

	"dxlstream/dxlerrors"
)

// Strategy decorates an outgoing *http.Request with credentials and can
// invalidate its cached credential so the next Authenticate re-acquires.
type Strategy interface {
	// Authenticate attaches credentials to req, acquiring and caching a
	// token on first use. It fails with a *dxlerrors.Error of kind
	// PermanentAuth or TemporaryAuth.
	Authenticate(req *http.Request) error
	// Reset discards any cached credential.
	Reset()
}

func classifyStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return dxlerrors.PermanentAuthf("auth endpoint rejected credentials (status %d)", status)
	default:
		return dxlerrors.TemporaryAuthf("auth endpoint returned unexpected status %d", status)
	}
}

func temporaryAuthf(format string, args ...any) error {
	return dxlerrors.TemporaryAuthf(format, args...)
}

func permanentAuthf(format string, args ...any) error {
	return dxlerrors.PermanentAuthf(format, args...)
}
