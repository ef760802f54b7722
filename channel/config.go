package channel

import (
	"strconv"

	"dxlstream/dxlerrors"
	"dxlstream/internal/httpx"
)

const (
	defaultConsumerPathPrefix = "/databus/consumer-service/v1"
	defaultProducerPathPrefix = "/databus/cloudproxy/v1"

	// OffsetLatest, OffsetEarliest and OffsetNone are the only valid values
	// of the "auto.offset.reset" consumer config (invariant 6).
	OffsetLatest   = "latest"
	OffsetEarliest = "earliest"
	OffsetNone     = "none"
)

// Config is the materialized, validated configuration for a Channel,
// generalizing the teacher's internal/config.Config (§4.8's table; unlike
// the teacher, this is never loaded from a JSON file by the core — "sample
// configuration loading" is an out-of-scope external collaborator per
// spec.md §1 — so Config is built programmatically via Option).
type Config struct {
	Auth Strategy

	ConsumerGroup string

	ConsumerPathPrefix string
	ProducerPathPrefix string

	Offset         string
	SessionTimeout int // seconds; 0 means unset
	RequestTimeout int // seconds; 0 means unset
	ExtraConfigs   map[string]string
	RetryOnFail    bool

	Transport httpx.TransportOptions
}

// Option configures a Channel at construction time, per §4.8's table.
type Option func(*Config)

// WithAuth sets the pluggable Auth strategy (capability). The Channel
// borrows it for the duration of each request; it is shared, not owned.
func WithAuth(a Strategy) Option {
	return func(c *Config) { c.Auth = a }
}

// WithConsumerGroup sets consumerGroup, required for any consumer
// operation.
func WithConsumerGroup(group string) Option {
	return func(c *Config) { c.ConsumerGroup = group }
}

// WithPathPrefix overrides both the consumer and producer prefix to a
// single shared value.
func WithPathPrefix(prefix string) Option {
	return func(c *Config) {
		c.ConsumerPathPrefix = prefix
		c.ProducerPathPrefix = prefix
	}
}

// WithConsumerPathPrefix overrides only the consumer prefix.
func WithConsumerPathPrefix(prefix string) Option {
	return func(c *Config) { c.ConsumerPathPrefix = prefix }
}

// WithProducerPathPrefix overrides only the producer prefix.
func WithProducerPathPrefix(prefix string) Option {
	return func(c *Config) { c.ProducerPathPrefix = prefix }
}

// WithOffset sets "auto.offset.reset"; validated against
// {latest,earliest,none} in New.
func WithOffset(offset string) Option {
	return func(c *Config) { c.Offset = offset }
}

// WithSessionTimeout sets "session.timeout.ms" from a caller-supplied
// second count.
func WithSessionTimeout(seconds int) Option {
	return func(c *Config) { c.SessionTimeout = seconds }
}

// WithRequestTimeout sets "request.timeout.ms" from a caller-supplied
// second count.
func WithRequestTimeout(seconds int) Option {
	return func(c *Config) { c.RequestTimeout = seconds }
}

// WithRetryOnFail overrides the default (true).
func WithRetryOnFail(retry bool) Option {
	return func(c *Config) { c.RetryOnFail = retry }
}

// WithExtraConfigs merges additional consumer config keys, applied under
// the options above (so an explicit option always wins over an extra with
// the same key).
func WithExtraConfigs(extra map[string]string) Option {
	return func(c *Config) {
		if c.ExtraConfigs == nil {
			c.ExtraConfigs = map[string]string{}
		}
		for k, v := range extra {
			c.ExtraConfigs[k] = v
		}
	}
}

// WithTransport sets the TLS/proxy options passed through to the HTTP
// transport (§4.8's TLS option row).
func WithTransport(t httpx.TransportOptions) Option {
	return func(c *Config) { c.Transport = t }
}

func newConfig(opts []Option) (Config, error) {
	c := Config{
		ConsumerPathPrefix: defaultConsumerPathPrefix,
		ProducerPathPrefix: defaultProducerPathPrefix,
		Offset:             OffsetLatest,
		RetryOnFail:        true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	switch c.Offset {
	case OffsetLatest, OffsetEarliest, OffsetNone:
	default:
		return c, dxlerrors.Permanentf("channel: invalid offset %q, must be one of latest|earliest|none", c.Offset)
	}
	return c, nil
}

// consumerConfigs materializes the caller's options into the server-side
// consumer config string map (§3's consumer_configs).
func (c Config) consumerConfigs() map[string]string {
	m := map[string]string{
		"auto.offset.reset":  c.Offset,
		"enable.auto.commit": "false",
	}
	for k, v := range c.ExtraConfigs {
		m[k] = v
	}
	if c.SessionTimeout > 0 {
		m["session.timeout.ms"] = strconv.Itoa(c.SessionTimeout * 1000)
	}
	if c.RequestTimeout > 0 {
		m["request.timeout.ms"] = strconv.Itoa(c.RequestTimeout * 1000)
	}
	// auto.offset.reset is re-applied last so an ExtraConfigs entry can
	// never silently override the validated offset. enable.auto.commit
	// defaults to "false"; an explicit ExtraConfigs entry for it is honored.
	m["auto.offset.reset"] = c.Offset
	if v, ok := c.ExtraConfigs["enable.auto.commit"]; ok {
		m["enable.auto.commit"] = v
	}
	return m
}
