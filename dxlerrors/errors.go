// Package dxlerrors implements the tagged error taxonomy that the retry
// driver and run loop use to decide whether an operation should be retried,
// surfaced to the caller, or treated as a consumer-loss signal.
package dxlerrors

import "fmt"

// Kind classifies an Error for retry and reporting purposes. The taxonomy is
// a two-level hierarchy: Stop and Consumer are subtypes of Permanent and
// Temporary respectively, but are distinguished because the retry driver and
// run loop treat them differently from their plain parents.
type Kind int

const (
	// Permanent errors are never retried and are surfaced to the caller.
	Permanent Kind = iota
	// Temporary errors are retry candidates.
	Temporary
	// Stop means the operation was aborted because stop was requested. A
	// Stop error is a Permanent error at the retry driver (it halts
	// retrying) but is normalized to a nil error at the run loop boundary.
	Stop
	// Consumer means the server no longer recognizes the Channel's consumer
	// (HTTP 404 on a consumer-scoped route). It is a Temporary error that
	// escapes the retry driver so the run loop can reset and recreate the
	// consumer instead of retrying against a dead id.
	Consumer
	// PermanentAuth means the auth endpoint rejected the credentials
	// (401/403). Permanent: retrying will not help until the caller
	// reconfigures credentials.
	PermanentAuth
	// TemporaryAuth means the auth endpoint was unreachable or returned an
	// unexpected response. Temporary: worth retrying.
	TemporaryAuth
)

func (k Kind) String() string {
	switch k {
	case Permanent:
		return "permanent"
	case Temporary:
		return "temporary"
	case Stop:
		return "stop"
	case Consumer:
		return "consumer"
	case PermanentAuth:
		return "permanent-auth"
	case TemporaryAuth:
		return "temporary-auth"
	default:
		return "unknown"
	}
}

// Error is the single concrete error type the core emits. Callers
// distinguish cases with the Is* predicates below rather than a class
// hierarchy or errors.As on concrete subtypes.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New wraps cause with the given Kind. A nil cause is allowed for Stop,
// whose meaning is carried entirely by Kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

func Permanentf(format string, args ...any) *Error {
	return &Error{Kind: Permanent, Cause: fmt.Errorf(format, args...)}
}

func Temporaryf(format string, args ...any) *Error {
	return &Error{Kind: Temporary, Cause: fmt.Errorf(format, args...)}
}

func StopErr() *Error {
	return &Error{Kind: Stop}
}

func Consumerf(format string, args ...any) *Error {
	return &Error{Kind: Consumer, Cause: fmt.Errorf(format, args...)}
}

func PermanentAuthf(format string, args ...any) *Error {
	return &Error{Kind: PermanentAuth, Cause: fmt.Errorf(format, args...)}
}

func TemporaryAuthf(format string, args ...any) *Error {
	return &Error{Kind: TemporaryAuth, Cause: fmt.Errorf(format, args...)}
}

// AsError extracts a *Error from err, if any.
func AsError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// IsRetryable reports whether the retry driver should re-invoke the
// operation: the error must be Temporary-rooted and not a Consumer error
// (Consumer escapes the driver so the run loop can handle it).
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Kind {
	case Temporary, TemporaryAuth:
		return true
	default:
		return false
	}
}

// IsConsumerLoss reports whether err signals that the server-side consumer
// is gone and must be reset and recreated.
func IsConsumerLoss(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == Consumer
}

// IsStop reports whether err is the sentinel produced when stop was
// observed by the retry driver.
func IsStop(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == Stop
}

// IsPermanent reports whether err is permanent in the retry driver's sense
// (Permanent, Stop, or PermanentAuth all halt retrying).
func IsPermanent(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Kind {
	case Permanent, Stop, PermanentAuth:
		return true
	default:
		return false
	}
}
