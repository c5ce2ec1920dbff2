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
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter types.
const (
	ExporterNone     = "none"
	ExporterConsole  = "console"
	ExporterOTLPHTTP = "otlp_http"
	ExporterOTLPGRPC = "otlp_grpc"
)

// ExporterConfig selects where finished spans go.
type ExporterConfig struct {
	// Type is one of none, console, otlp_http or otlp_grpc. Empty means none.
	Type string `yaml:"type"`

	// Endpoint is the collector address, e.g. "localhost:4318"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector
	Insecure bool `yaml:"insecure"`

	// Headers are sent with every export request
	Headers map[string]string `yaml:"headers"`
}

// Validate checks the exporter type and that OTLP exporters have an
// endpoint.
func (c ExporterConfig) Validate() error {
	switch c.Type {
	case "", ExporterNone, ExporterConsole:
		return nil
	case ExporterOTLPHTTP, ExporterOTLPGRPC:
		if c.Endpoint == "" {
			return fmt.Errorf("exporter %s requires an endpoint", c.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown exporter type: %s", c.Type)
	}
}

// NewExporter creates a span exporter from cfg. Console output goes to w,
// or stderr when w is nil, so it never mixes with command output. It
// returns nil for type none.
func NewExporter(ctx context.Context, cfg ExporterConfig, w io.Writer) (sdktrace.SpanExporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case ExporterConsole:
		if w == nil {
			w = os.Stderr
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		return exp, nil

	case ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
		}
		return exp, nil

	case ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
		}
		return exp, nil
	}
	return nil, nil
}

// Options configures Setup.
type Options struct {
	ServiceName string
	Version     string
	Sampling    SamplerConfig
	Exporter    ExporterConfig

	// Console receives console exporter output (default: stderr)
	Console io.Writer
}

// Setup builds a tracer provider with the configured sampler and exporter
// and installs the W3C propagator. The caller owns Shutdown, which flushes
// pending spans.
func Setup(ctx context.Context, opts Options) (*sdktrace.TracerProvider, error) {
	exp, err := NewExporter(ctx, opts.Exporter, opts.Console)
	if err != nil {
		return nil, err
	}

	providerOpts := []sdktrace.TracerProviderOption{sdktrace.WithSampler(NewSampler(opts.Sampling))}
	if exp != nil {
		// A CLI process is short-lived: export synchronously rather than
		// risk losing a batch on exit.
		providerOpts = append(providerOpts, sdktrace.WithSyncer(exp))
	}

	tp, err := NewProvider(opts.ServiceName, opts.Version, providerOpts...)
	if err != nil {
		return nil, err
	}
	InstallPropagator()
	return tp, nil
}
