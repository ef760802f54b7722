package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// demoConfig is a minimal JSON file shape for the sample program only. Per
// spec.md §1, "sample configuration loading" is explicitly an out-of-scope
// external collaborator for the core library — this loader exists solely
// so cmd/dxlstream-demo has something to run against, following the
// teacher's internal/config.go idiom (DisallowUnknownFields + defaulting).
type demoConfig struct {
	BaseURL        string   `json:"baseUrl"`
	AuthMode       string   `json:"authMode"` // "basic" or "oauth2"
	User           string   `json:"user"`
	Password       string   `json:"password"`
	ClientID       string   `json:"clientId"`
	ClientSecret   string   `json:"clientSecret"`
	Scope          string   `json:"scope"`
	Audience       string   `json:"audience"`
	ConsumerGroup  string   `json:"consumerGroup"`
	Topics         []string `json:"topics"`
	TokenCachePath string   `json:"tokenCachePath"`
}

func loadDemoConfig(path string) (demoConfig, error) {
	var cfg demoConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	logrus.Infof("loading demo config from %s", path)
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.BaseURL == "" {
		return cfg, fmt.Errorf("baseUrl must be set")
	}
	if cfg.ConsumerGroup == "" {
		return cfg, fmt.Errorf("consumerGroup must be set")
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = "basic"
	}
	return cfg, nil
}
