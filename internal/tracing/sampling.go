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
package tracing

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SamplerConfig configures trace sampling.
type SamplerConfig struct {
	// Rate is the fraction of root spans sampled (0.0 - 1.0). 1.0 samples
	// everything; 0 samples nothing.
	Rate float64 `yaml:"rate"`
}

// NewSampler returns a parent-based sampler: child spans follow their
// parent's decision and root spans are sampled at cfg.Rate.
func NewSampler(cfg SamplerConfig) sdktrace.Sampler {
	switch {
	case cfg.Rate >= 1.0:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case cfg.Rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Rate))
	}
}
