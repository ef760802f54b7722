package channel

import "testing"

func TestNewConfig_DefaultsAndValidation(t *testing.T) {
	cfg, err := newConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Offset != OffsetLatest {
		t.Fatalf("expected default offset %q, got %q", OffsetLatest, cfg.Offset)
	}
	if !cfg.RetryOnFail {
		t.Fatal("expected RetryOnFail to default true")
	}
	if cfg.ConsumerPathPrefix != defaultConsumerPathPrefix || cfg.ProducerPathPrefix != defaultProducerPathPrefix {
		t.Fatalf("unexpected default prefixes: %+v", cfg)
	}
}

func TestNewConfig_RejectsInvalidOffset(t *testing.T) {
	_, err := newConfig([]Option{WithOffset("sideways")})
	if err == nil {
		t.Fatal("expected an error for an invalid offset")
	}
}

func TestConsumerConfigs_ExtraConfigsCannotOverrideValidatedFields(t *testing.T) {
	cfg, err := newConfig([]Option{
		WithOffset(OffsetEarliest),
		WithExtraConfigs(map[string]string{
			"auto.offset.reset": "latest",
			"fetch.min.bytes":   "1024",
		}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	configs := cfg.consumerConfigs()
	if configs["auto.offset.reset"] != OffsetEarliest {
		t.Fatalf("expected validated offset to win, got %q", configs["auto.offset.reset"])
	}
	if configs["fetch.min.bytes"] != "1024" {
		t.Fatalf("expected extra config to pass through, got %+v", configs)
	}
	if configs["enable.auto.commit"] != "false" {
		t.Fatalf("expected auto-commit disabled by default, got %q", configs["enable.auto.commit"])
	}
}

func TestConsumerConfigs_TimeoutsConvertSecondsToMillis(t *testing.T) {
	cfg, err := newConfig([]Option{
		WithSessionTimeout(30),
		WithRequestTimeout(5),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	configs := cfg.consumerConfigs()
	if configs["session.timeout.ms"] != "30000" {
		t.Fatalf("unexpected session.timeout.ms: %q", configs["session.timeout.ms"])
	}
	if configs["request.timeout.ms"] != "5000" {
		t.Fatalf("unexpected request.timeout.ms: %q", configs["request.timeout.ms"])
	}
}

func TestEqualTopics(t *testing.T) {
	if !equalTopics([]string{"a", "b"}, []string{"a", "b"}) {
		t.Fatal("expected equal")
	}
	if equalTopics([]string{"a", "b"}, []string{"b", "a"}) {
		t.Fatal("order-sensitive comparison expected to differ")
	}
	if equalTopics([]string{"a"}, []string{"a", "b"}) {
		t.Fatal("expected different lengths to differ")
	}
}
