package httpx

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"dxlstream/dxlerrors"
)

// Retry backoff parameters, fixed by §4.4: min 1s, max 10s, factor 2,
// unbounded attempts. Deliberately no jitter here (unlike the teacher's
// WithRetries) because testable property 2 requires the exact doubling
// sequence 1s, 2s, 4s, 8s, 10s, 10s, ... — see DESIGN.md.
const (
	MinBackoff    = 1 * time.Second
	MaxBackoff    = 10 * time.Second
	BackoffFactor = 2
)

// Backoff returns the delay before the (attempt+1)-th retry, attempt
// counting from 0 at the first retry.
func Backoff(attempt int) time.Duration {
	d := MinBackoff
	for i := 0; i < attempt; i++ {
		d *= BackoffFactor
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// RetryState is the slice of Channel state the retry driver needs to
// observe without depending on the channel package (avoiding an import
// cycle): whether the Channel is still active, whether it is currently
// running a run loop, and whether stop has been requested of that loop.
type RetryState interface {
	Active() bool
	RunningAndStopRequested() bool
	RetryOnFail() bool
}

// Retry re-invokes op with exponential backoff per §4.4:
//   - if state is not Active, completes with a PermanentError immediately.
//   - before each attempt, if running and stop has been requested, completes
//     with a Stop error and stops retrying.
//   - if op succeeds, returns the result.
//   - if op fails with a Consumer error, that error is returned immediately
//     without retrying at this level (the run loop handles it).
//   - if RetryOnFail() is false, the error is returned immediately.
//   - if the error is not retryable (dxlerrors.IsRetryable), it is
//     returned immediately.
//   - otherwise, waits Backoff(attempt) and retries, observing ctx
//     cancellation during the wait (a cancellation while stop is
//     requested completes with a Stop error).
func Retry[T any](ctx context.Context, state RetryState, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !state.Active() {
		return zero, dxlerrors.Permanentf("channel is not active")
	}
	for attempt := 0; ; attempt++ {
		if state.RunningAndStopRequested() {
			return zero, dxlerrors.StopErr()
		}
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil && state.RunningAndStopRequested() {
			// The blocking call was cancelled by a concurrent Stop: surface
			// StopError rather than the raw context-cancellation error.
			return zero, dxlerrors.StopErr()
		}
		if dxlerrors.IsConsumerLoss(err) {
			return zero, err
		}
		if !state.RetryOnFail() {
			return zero, err
		}
		if !dxlerrors.IsRetryable(err) {
			return zero, err
		}
		delay := Backoff(attempt)
		logrus.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"delay":   delay,
		}).Warnf("dxlstream: retrying after error: %v", err)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			if state.RunningAndStopRequested() {
				return zero, dxlerrors.StopErr()
			}
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}
