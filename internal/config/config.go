// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package config loads the opwire CLI configuration from a YAML file and
// the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"

	oplog "github.com/tombee/opwire/internal/log"
	"github.com/tombee/opwire/internal/tracing"
	"github.com/tombee/opwire/pkg/retry"
	"github.com/tombee/opwire/pkg/transport"
)

// Config represents the complete opwire configuration.
type Config struct {
	// Services maps a service name ("crm", "analytics") to its endpoint and
	// credentials.
	Services map[string]ServiceConfig `yaml:"services"`

	// HTTP configures the shared transport.
	HTTP transport.HTTPConfig `yaml:"http"`

	// Retry configures the retry policy applied to every call.
	Retry RetryConfig `yaml:"retry"`

	// Log configures logging.
	Log oplog.Config `yaml:"log"`

	// Tracing configures span sampling and propagation.
	Tracing TracingConfig `yaml:"tracing"`
}

// ServiceConfig configures one API.
type ServiceConfig struct {
	// Endpoint is the API base URL.
	// Environment: OPWIRE_<SERVICE>_ENDPOINT
	Endpoint string `yaml:"endpoint"`

	// TokenEnv names the environment variable holding the bearer token.
	// The token itself never lives in the config file.
	// Default: OPWIRE_<SERVICE>_TOKEN
	TokenEnv string `yaml:"token_env"`
}

// RetryConfig configures retries.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts. 1 disables retries.
	// Environment: OPWIRE_RETRY_MAX_ATTEMPTS
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is the wait before the second attempt.
	// Default: 200ms
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps every wait, rate-limit hints included.
	// Default: 30s
	MaxDelay time.Duration `yaml:"max_delay"`

	// Factor multiplies the delay after each attempt.
	// Default: 2
	Factor float64 `yaml:"factor"`

	// Jitter adds up to this fraction of the delay at random.
	// Default: 0.2
	Jitter float64 `yaml:"jitter"`

	// When is an optional expression deciding which errors are retried,
	// e.g. 'kind == "rate_limit" || status == 503'. Empty uses the default
	// predicate.
	When string `yaml:"when"`
}

// TracingConfig configures tracing.
type TracingConfig struct {
	// Enabled installs an SDK tracer provider and the W3C propagator.
	// Environment: OPWIRE_TRACING
	Enabled bool `yaml:"enabled"`

	// Sampling controls which root spans are recorded.
	Sampling tracing.SamplerConfig `yaml:"sampling"`

	// Exporter selects where spans are sent.
	// Environment: OPWIRE_TRACING_EXPORTER, OPWIRE_TRACING_ENDPOINT
	Exporter tracing.ExporterConfig `yaml:"exporter"`
}

// Error reports a configuration problem.
type Error struct {
	Key    string
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Key, e.Reason, e.Cause)
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Default returns a Config with sensible defaults.
func Default() *Config {
	policy := retry.DefaultPolicy()
	return &Config{
		Services: map[string]ServiceConfig{
			"crm":       {Endpoint: "https://api.hubapi.com", TokenEnv: "OPWIRE_CRM_TOKEN"},
			"analytics": {Endpoint: "https://us.posthog.com", TokenEnv: "OPWIRE_ANALYTICS_TOKEN"},
		},
		HTTP: transport.DefaultHTTPConfig(),
		Retry: RetryConfig{
			MaxAttempts: policy.MaxAttempts,
			BaseDelay:   policy.BaseDelay,
			MaxDelay:    policy.MaxDelay,
			Factor:      policy.Factor,
			Jitter:      policy.Jitter,
		},
		Log: oplog.Config{
			Level:  "info",
			Format: oplog.FormatText,
		},
		Tracing: TracingConfig{
			Sampling: tracing.SamplerConfig{Rate: 1},
		},
	}
}

// Load loads configuration from an optional YAML file, then overrides it
// with environment variables. If configPath is empty, the default path is
// used when it exists.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	path := configPath
	if path == "" {
		if p, err := ConfigPath(); err == nil {
			if _, statErr := os.Stat(p); statErr == nil {
				path = p
			}
		}
	}

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, &Error{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &Error{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty file decodes as io.EOF and leaves the defaults in place
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	return nil
}

// applyDefaults fills zero values left by a minimal config file.
func (c *Config) applyDefaults() {
	defaults := Default()

	for name, svc := range c.Services {
		if svc.Endpoint == "" {
			svc.Endpoint = defaults.Services[name].Endpoint
		}
		if svc.TokenEnv == "" {
			svc.TokenEnv = defaultTokenEnv(name)
		}
		c.Services[name] = svc
	}

	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = defaults.HTTP.Timeout
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = defaults.HTTP.UserAgent
	}
	if c.HTTP.Burst == 0 {
		c.HTTP.Burst = defaults.HTTP.Burst
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = defaults.Retry.BaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = defaults.Retry.MaxDelay
	}
	if c.Retry.Factor == 0 {
		c.Retry.Factor = defaults.Retry.Factor
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// loadFromEnv overrides settings from the environment.
func (c *Config) loadFromEnv() {
	for name, svc := range c.Services {
		if v := os.Getenv(envName(name, "ENDPOINT")); v != "" {
			svc.Endpoint = v
			c.Services[name] = svc
		}
	}

	if v := os.Getenv("OPWIRE_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.Timeout = d
		}
	}
	if v := os.Getenv("OPWIRE_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("OPWIRE_TRACING"); v != "" {
		c.Tracing.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("OPWIRE_TRACING_EXPORTER"); v != "" {
		c.Tracing.Exporter.Type = v
	}
	if v := os.Getenv("OPWIRE_TRACING_ENDPOINT"); v != "" {
		c.Tracing.Exporter.Endpoint = v
	}

	oplog.ApplyEnv(&c.Log)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error

	for _, name := range c.ServiceNames() {
		svc := c.Services[name]
		if svc.Endpoint == "" {
			errs = append(errs, fmt.Errorf("services.%s.endpoint is required", name))
		}
		if svc.TokenEnv == "" {
			errs = append(errs, fmt.Errorf("services.%s.token_env is required", name))
		}
	}
	if err := c.HTTP.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}
	if _, err := c.RetryPolicy(); err != nil {
		errs = append(errs, fmt.Errorf("retry: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if r := c.Tracing.Sampling.Rate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("tracing.sampling.rate must be between 0 and 1, got %v", r))
	}
	if err := c.Tracing.Exporter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing.exporter: %w", err))
	}
	return errors.Join(errs...)
}

// ServiceNames returns the configured services in sorted order.
func (c *Config) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Service returns the configuration for name.
func (c *Config) Service(name string) (ServiceConfig, error) {
	svc, ok := c.Services[name]
	if !ok {
		return ServiceConfig{}, &Error{Key: "services." + name, Reason: "service is not configured"}
	}
	return svc, nil
}

// Credentials returns a token source for the service's bearer token, or
// nil when the token variable is unset.
func (s ServiceConfig) Credentials() oauth2.TokenSource {
	token := os.Getenv(s.TokenEnv)
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// RetryPolicy builds the retry policy. MaxAttempts of 1 returns nil,
// meaning every call runs exactly once.
func (c *Config) RetryPolicy() (*retry.Policy, error) {
	predicate, err := retry.PredicateFromExpr(c.Retry.When)
	if err != nil {
		return nil, err
	}
	p := &retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
		Factor:      c.Retry.Factor,
		Jitter:      c.Retry.Jitter,
		ShouldRetry: predicate,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.MaxAttempts == 1 {
		return nil, nil
	}
	return p, nil
}

func envName(service, suffix string) string {
	return "OPWIRE_" + strings.ToUpper(strings.ReplaceAll(service, "-", "_")) + "_" + suffix
}

func defaultTokenEnv(service string) string {
	return envName(service, "TOKEN")
}
