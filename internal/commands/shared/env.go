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
package shared

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tombee/opwire/internal/config"
	oplog "github.com/tombee/opwire/internal/log"
	"github.com/tombee/opwire/internal/tracing"
	"github.com/tombee/opwire/pkg/operation"
	"github.com/tombee/opwire/pkg/transport"
	"github.com/tombee/opwire/sdk/analytics"
	"github.com/tombee/opwire/sdk/crm"
)

// NewRegistry returns a registry holding every SDK operation.
func NewRegistry() *operation.Registry {
	r := operation.NewRegistry()
	crm.Register(r)
	analytics.Register(r)
	return r
}

// Env is what a command needs to call operations: configuration, a logger,
// the registry and one runtime per service, built on first use.
type Env struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *operation.Registry

	transport transport.Transport
	provider  *sdktrace.TracerProvider

	mu       sync.Mutex
	runtimes map[string]*operation.Runtime
}

// LoadEnv loads configuration from the --config path and environment and
// wires logging, transport and tracing. Logs go to stderr; --verbose forces
// debug level. Close must be called to flush spans.
func LoadEnv(ctx context.Context, stderr io.Writer) (*Env, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}

	logCfg := cfg.Log
	logCfg.Output = stderr
	if GetVerbose() && logCfg.Level != "trace" {
		logCfg.Level = "debug"
	}
	logger := oplog.New(&logCfg)

	tr, err := transport.NewHTTP(cfg.HTTP, transport.WithLogger(logger))
	if err != nil {
		return nil, NewConfigError("invalid http configuration", err)
	}

	env := &Env{
		Config:    cfg,
		Logger:    logger,
		Registry:  NewRegistry(),
		transport: tr,
		runtimes:  make(map[string]*operation.Runtime),
	}

	if cfg.Tracing.Enabled {
		v, _, _ := GetVersion()
		env.provider, err = tracing.Setup(ctx, tracing.Options{
			ServiceName: "opwire",
			Version:     v,
			Sampling:    cfg.Tracing.Sampling,
			Exporter:    cfg.Tracing.Exporter,
			Console:     stderr,
		})
		if err != nil {
			return nil, NewConfigError("failed to set up tracing", err)
		}
	}
	return env, nil
}

// Runtime returns the runtime for service, creating it on first use.
func (e *Env) Runtime(service string) (*operation.Runtime, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rt, ok := e.runtimes[service]; ok {
		return rt, nil
	}

	svc, err := e.Config.Service(service)
	if err != nil {
		return nil, NewConfigError(fmt.Sprintf("service %q is not configured", service), err)
	}
	policy, err := e.Config.RetryPolicy()
	if err != nil {
		return nil, NewConfigError("invalid retry configuration", err)
	}

	cfg := operation.Config{
		Endpoint:    svc.Endpoint,
		Transport:   e.transport,
		Credentials: svc.Credentials(),
		Retry:       policy,
		Logger:      e.Logger.With(oplog.ServiceKey, service),
	}
	if e.provider != nil {
		cfg.TracerProvider = e.provider
	}
	if cfg.Credentials == nil {
		e.Logger.Warn("no token set, calling without credentials",
			oplog.ServiceKey, service, "token_env", svc.TokenEnv)
	}

	rt, err := operation.New(cfg)
	if err != nil {
		return nil, NewConfigError(fmt.Sprintf("invalid %s configuration", service), err)
	}
	e.runtimes[service] = rt
	return rt, nil
}

// Entry looks up an operation and the runtime of its service.
func (e *Env) Entry(name string) (*operation.Entry, *operation.Runtime, error) {
	entry, err := e.Registry.Get(name)
	if err != nil {
		return nil, nil, NewUsageError("unknown operation", err)
	}
	rt, err := e.Runtime(entry.Service())
	if err != nil {
		return nil, nil, err
	}
	return entry, rt, nil
}

// Close flushes and stops tracing.
func (e *Env) Close(ctx context.Context) error {
	if e.provider == nil {
		return nil
	}
	return e.provider.Shutdown(ctx)
}
