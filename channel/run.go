package channel

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"dxlstream/dxlerrors"
	"dxlstream/internal/utils"
)

// ProcessFunc is the caller's record-processing callback. It returns
// whether the run loop should continue to the next cycle, and an error if
// processing failed unrecoverably. A panic inside ProcessFunc is recovered
// by Run and treated as a non-recoverable error (§4.7 step 3).
type ProcessFunc func(ctx context.Context, records []any) (cont bool, err error)

// RunOptions configures one Run invocation.
type RunOptions struct {
	// Topics to subscribe to. If empty, ActiveSubscriptions must already be
	// non-empty.
	Topics []string
	// WaitBetweenQueries is the delay between successive consume cycles.
	WaitBetweenQueries time.Duration
}

// Run orchestrates subscribe → consume → process → commit → wait until the
// caller's process callback returns continue=false, an unrecoverable error
// occurs, or Stop is called (§4.7). It normalizes a Stop-triggered halt to
// a nil error at this boundary.
func (c *Channel) Run(ctx context.Context, process ProcessFunc, opts RunOptions) error {
	if c.cfg.ConsumerGroup == "" {
		return permanent("channel: run requires a consumerGroup")
	}
	if process == nil {
		return permanent("channel: run requires a process callback")
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return permanent("channel: already running")
	}
	topics := append([]string(nil), opts.Topics...)
	if len(topics) == 0 {
		topics = append([]string(nil), c.activeSubscriptions...)
	}
	if len(topics) == 0 {
		c.mu.Unlock()
		return permanent("channel: run requires topics or an existing subscription")
	}
	c.requestedSubscriptions = append([]string(nil), topics...)
	runCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.stopRequested = false
	c.stopCancel = cancel
	c.mu.Unlock()

	err := c.runLoop(runCtx, process, opts)

	c.mu.Lock()
	c.running = false
	c.stopRequested = false
	c.stopCancel = nil
	callbacks := c.stopCallbacks
	c.stopCallbacks = nil
	c.mu.Unlock()

	for _, cb := range callbacks {
		safeInvoke(cb)
	}

	if dxlerrors.IsStop(err) {
		return nil
	}
	return err
}

func safeInvoke(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Warnf("dxlstream: stop callback panicked: %v", r)
		}
	}()
	cb()
}

func (c *Channel) runLoop(ctx context.Context, process ProcessFunc, opts RunOptions) (err error) {
	currentTopics := c.RequestedSubscriptions()

	for {
		// Step 1: subscribe phase.
		if subErr := c.Subscribe(ctx, currentTopics); subErr != nil {
			if dxlerrors.IsConsumerLoss(subErr) {
				c.Reset()
				currentTopics = c.RequestedSubscriptions()
				continue
			}
			return subErr
		}

		for {
			// Step 2: consume phase.
			records, consErr := c.Consume(ctx)
			if consErr != nil {
				if dxlerrors.IsConsumerLoss(consErr) {
					c.Reset()
					currentTopics = c.RequestedSubscriptions()
					break // back to subscribe phase
				}
				return consErr
			}

			if logrus.IsLevelEnabled(logrus.DebugLevel) {
				logrus.Debugf("dxlstream: consumed %d record(s): %s", len(records), utils.TruncateLongStrings(records, 200))
			}

			// Step 3: process phase.
			cont, procErr := c.invokeProcess(ctx, process, records)
			if procErr != nil {
				return procErr
			}

			// Step 4: commit + wait phase.
			if c.stopWasRequested() {
				cont = false
			}
			if commitErr := c.Commit(ctx); commitErr != nil {
				if dxlerrors.IsConsumerLoss(commitErr) {
					c.Reset()
					currentTopics = c.RequestedSubscriptions()
					break
				}
				return commitErr
			}
			if !cont {
				return nil
			}

			if waited := c.waitOrStop(ctx, opts.WaitBetweenQueries); !waited {
				return dxlerrors.StopErr()
			}
			// Refresh currentTopics from the latest requested subscriptions
			// so external updates take effect, reusing the existing
			// subscription (no re-subscribe call) unless a loss recovery
			// re-enters the outer loop.
			currentTopics = c.RequestedSubscriptions()
		}
	}
}

// invokeProcess calls process, converting a panic into a non-recoverable
// error per §4.7 step 3.
func (c *Channel) invokeProcess(ctx context.Context, process ProcessFunc, records []any) (cont bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = dxlerrors.Permanentf("channel: process callback panicked: %v", r)
		}
	}()
	return process(ctx, records)
}

func (c *Channel) stopWasRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopRequested
}

// waitOrStop sleeps for d, returning false if stop/ctx-cancellation fired
// first (in which case the timer has already been cleared).
func (c *Channel) waitOrStop(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !c.stopWasRequested()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return !c.stopWasRequested()
	case <-ctx.Done():
		return false
	}
}

// Stop requests cooperative cancellation of a running Run loop. If the
// Channel is not running, cb is invoked immediately (in a new goroutine, to
// match the asynchronous completion shape of every other operation).
// Otherwise stop_requested is set, any pending wait timer is cancelled, and
// cb is queued to fire once the run loop observes the request and exits.
func (c *Channel) Stop(cb func()) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		if cb != nil {
			go cb()
		}
		return
	}
	c.stopRequested = true
	if c.stopCancel != nil {
		c.stopCancel()
	}
	if cb != nil {
		c.stopCallbacks = append(c.stopCallbacks, cb)
	}
	c.mu.Unlock()
}

// Destroy subsumes Stop, then Delete, then marks the Channel permanently
// inactive. Further operations after Destroy fail with a Permanent error.
func (c *Channel) Destroy(ctx context.Context) error {
	if !c.Active() {
		return nil
	}
	done := make(chan struct{})
	c.Stop(func() { close(done) })
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	delErr := c.Delete(ctx)

	c.mu.Lock()
	c.active = false
	c.mu.Unlock()

	return delErr
}
