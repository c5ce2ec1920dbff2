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

package transport

import (
	"fmt"
	"time"
)

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// Timeout bounds one round trip, body read excluded.
	// Default: 30s. Must be > 0.
	Timeout time.Duration `yaml:"timeout"`

	// UserAgent is sent when the request carries none.
	// Required. Must be non-empty.
	UserAgent string `yaml:"user_agent"`

	// RequestsPerSecond limits the request rate client-side (0 = unlimited).
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the token bucket size used with RequestsPerSecond.
	// Default: 1. Must be >= 1 when RequestsPerSecond > 0.
	Burst int `yaml:"burst"`
}

// DefaultHTTPConfig returns an HTTPConfig with sensible defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:   30 * time.Second,
		UserAgent: "opwire/1.0",
		Burst:     1,
	}
}

// Validate checks that the configuration is valid.
func (c *HTTPConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required and must be non-empty")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be >= 0, got %v", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		return fmt.Errorf("burst must be >= 1 when requests_per_second is set, got %d", c.Burst)
	}
	return nil
}
