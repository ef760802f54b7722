package httpx

import (
	"context"
	"errors"
	"testing"
	"time"

	"dxlstream/dxlerrors"
)

func TestBackoff_DoublesWithinBounds(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{5, 10 * time.Second},
		{50, 10 * time.Second},
	}
	for _, c := range cases {
		if got := Backoff(c.attempt); got != c.want {
			t.Fatalf("Backoff(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

type fakeState struct {
	active      bool
	stopAfter   int
	retryOnFail bool
	calls       int
}

func (f *fakeState) Active() bool { return f.active }
func (f *fakeState) RunningAndStopRequested() bool {
	f.calls++
	return f.stopAfter > 0 && f.calls > f.stopAfter
}
func (f *fakeState) RetryOnFail() bool { return f.retryOnFail }

func TestRetry_NotActiveFailsImmediately(t *testing.T) {
	state := &fakeState{active: false}
	_, err := Retry(context.Background(), state, func(ctx context.Context) (int, error) {
		t.Fatal("op must not be invoked when inactive")
		return 0, nil
	})
	if !dxlerrors.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestRetry_SucceedsOnFirstTry(t *testing.T) {
	state := &fakeState{active: true, retryOnFail: true}
	attempts := 0
	got, err := Retry(context.Background(), state, func(ctx context.Context) (string, error) {
		attempts++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("unexpected result: %q", got)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestRetry_RetriesTemporaryThenSucceeds(t *testing.T) {
	state := &fakeState{active: true, retryOnFail: true}
	attempts := 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := Retry(ctx, state, func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, dxlerrors.Temporaryf("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || attempts != 3 {
		t.Fatalf("got=%d attempts=%d", got, attempts)
	}
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	state := &fakeState{active: true, retryOnFail: true}
	attempts := 0
	_, err := Retry(context.Background(), state, func(ctx context.Context) (int, error) {
		attempts++
		return 0, dxlerrors.Permanentf("nope")
	})
	if !dxlerrors.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected no retries for a permanent error, got %d attempts", attempts)
	}
}

func TestRetry_ConsumerLossEscapesImmediately(t *testing.T) {
	state := &fakeState{active: true, retryOnFail: true}
	attempts := 0
	_, err := Retry(context.Background(), state, func(ctx context.Context) (int, error) {
		attempts++
		return 0, dxlerrors.Consumerf("gone")
	})
	if !dxlerrors.IsConsumerLoss(err) {
		t.Fatalf("expected consumer-loss error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected no retries for consumer loss, got %d attempts", attempts)
	}
}

func TestRetry_RetryOnFailFalseFailsImmediately(t *testing.T) {
	state := &fakeState{active: true, retryOnFail: false}
	attempts := 0
	_, err := Retry(context.Background(), state, func(ctx context.Context) (int, error) {
		attempts++
		return 0, dxlerrors.Temporaryf("transient")
	})
	if err == nil || attempts != 1 {
		t.Fatalf("expected single failing attempt, got err=%v attempts=%d", err, attempts)
	}
}

func TestRetry_StopRequestedBetweenAttempts(t *testing.T) {
	state := &fakeState{active: true, retryOnFail: true, stopAfter: 1}
	_, err := Retry(context.Background(), state, func(ctx context.Context) (int, error) {
		return 0, dxlerrors.Temporaryf("transient")
	})
	if !dxlerrors.IsStop(err) {
		t.Fatalf("expected stop error, got %v", err)
	}
}

func TestRetry_ContextCancelledDuringBackoffWait(t *testing.T) {
	state := &fakeState{active: true, retryOnFail: true}
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Retry(ctx, state, func(ctx context.Context) (int, error) {
		attempts++
		return 0, dxlerrors.Temporaryf("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
