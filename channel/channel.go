// Package channel implements the Channel session type: the stateful object
// that manages a server-side consumer instance's lifecycle (create →
// subscribe → poll → commit → delete), runs a long-running consume loop
// with cooperative cancellation, coordinates retries with exponential
// backoff, and recovers transparently from server-side consumer loss and
// credential expiry.
package channel

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"dxlstream/dxlerrors"
	"dxlstream/internal/httpx"
)

// Strategy has the same method set as auth.Strategy. It is
// redeclared here (rather than importing the auth package) so that the
// core channel package has no dependency on any one concrete auth
// implementation — callers inject dxlstream/auth.Basic,
// auth.OAuth2, or a test double.
type Strategy interface {
	Authenticate(req *http.Request) error
	Reset()
}

// CommitEntry is one pending local acknowledgement awaiting commit.
type CommitEntry struct {
	Topic     string
	Partition int32
	Offset    int64
}

// Channel is the central entity of this library: a session binding one
// consumer group to (at most) one server-side consumer instance.
type Channel struct {
	baseURL string
	cfg     Config

	httpClient *http.Client

	mu sync.Mutex

	consumerID             string
	activeSubscriptions    []string
	requestedSubscriptions []string
	commitLog              []CommitEntry

	active        bool
	running       bool
	stopRequested bool
	stopCallbacks []func()

	// stopCancel cancels the context of the run loop currently in flight,
	// if any, so a blocking HTTP call's pending retry-backoff wait is woken
	// immediately. nil when no run loop is active.
	stopCancel func()
}

// New constructs a Channel bound to baseURL, applying opts per §4.8.
func New(baseURL string, opts ...Option) (*Channel, error) {
	if baseURL == "" {
		return nil, permanent("channel: base url must not be empty")
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	client, err := httpx.NewClient(cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("channel: build transport: %w", err)
	}
	return &Channel{
		baseURL:    baseURL,
		cfg:        cfg,
		httpClient: client,
		active:     true,
	}, nil
}

func permanent(msg string) error {
	return dxlerrors.Permanentf("%s", msg)
}

// Reset returns the Channel to the Idle state: the consumer id, active
// subscriptions and commit log are cleared. Requested subscriptions are
// kept, so the next subscribe cycle can reinstall them. It does not
// affect active/running/stop flags.
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Channel) resetLocked() {
	c.consumerID = ""
	c.activeSubscriptions = nil
	c.commitLog = nil
}

// --- RetryState, consumed by internal/httpx.Retry ---

func (c *Channel) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Channel) RunningAndStopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && c.stopRequested
}

func (c *Channel) RetryOnFail() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.RetryOnFail
}

// ConsumerID reports the server-side consumer id, if any (invariant 1).
func (c *Channel) ConsumerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consumerID
}

// ActiveSubscriptions reports the last successfully acknowledged
// subscription set.
func (c *Channel) ActiveSubscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.activeSubscriptions))
	copy(out, c.activeSubscriptions)
	return out
}

// RequestedSubscriptions reports what the next subscribe call should
// install.
func (c *Channel) RequestedSubscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.requestedSubscriptions))
	copy(out, c.requestedSubscriptions)
	return out
}

// SetRequestedSubscriptions lets a caller update the topic set the next
// subscribe cycle should install, e.g. from outside the run loop.
func (c *Channel) SetRequestedSubscriptions(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestedSubscriptions = append([]string(nil), topics...)
}

// CommitLog reports the pending local acknowledgements awaiting commit.
func (c *Channel) CommitLog() []CommitEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CommitEntry, len(c.commitLog))
	copy(out, c.commitLog)
	return out
}

func (c *Channel) consumerPrefix() string { return c.baseURL + c.cfg.ConsumerPathPrefix }
func (c *Channel) producerPrefix() string { return c.baseURL + c.cfg.ProducerPathPrefix }

func (c *Channel) log() *logrus.Entry {
	return logrus.WithField("consumerGroup", c.cfg.ConsumerGroup)
}

func equalTopics(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
