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

package operation

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	oplog "github.com/tombee/opwire/internal/log"
	"github.com/tombee/opwire/internal/tracing"
	operrors "github.com/tombee/opwire/pkg/errors"
	"github.com/tombee/opwire/pkg/retry"
	"github.com/tombee/opwire/pkg/transport"
)

const tracerName = "github.com/tombee/opwire/pkg/operation"

// Config wires a Runtime to one API.
type Config struct {
	// Endpoint is the base URL, e.g. "https://api.example.com". Required.
	Endpoint string

	// Transport executes wire requests. Required.
	Transport transport.Transport

	// Credentials supplies the bearer token sent on every request. Optional.
	Credentials oauth2.TokenSource

	// Retry wraps each round trip. Nil means every call runs exactly once.
	Retry *retry.Policy

	// Logger defaults to slog.Default()
	Logger *slog.Logger

	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider
}

// Runtime carries what every call against one API shares: endpoint,
// transport, credentials and retry policy. It is immutable and safe for
// concurrent use.
type Runtime struct {
	endpoint    string
	transport   transport.Transport
	credentials oauth2.TokenSource
	retry       *retry.Policy
	logger      *slog.Logger
	tracer      trace.Tracer
}

// New validates cfg and returns a Runtime.
func New(cfg Config) (*Runtime, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q must be an absolute URL", cfg.Endpoint)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("endpoint %q must not carry a query or fragment", cfg.Endpoint)
	}
	if cfg.Retry != nil {
		if err := cfg.Retry.Validate(); err != nil {
			return nil, fmt.Errorf("invalid retry policy: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Runtime{
		endpoint:    strings.TrimSuffix(cfg.Endpoint, "/"),
		transport:   cfg.Transport,
		credentials: cfg.Credentials,
		retry:       cfg.Retry,
		logger:      oplog.WithComponent(logger, "operation"),
		tracer:      tp.Tracer(tracerName),
	}, nil
}

// StaticToken returns a token source for a fixed bearer token.
func StaticToken(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// Endpoint returns the base URL requests are sent to.
func (rt *Runtime) Endpoint() string {
	return rt.endpoint
}

// Client calls one operation.
type Client[In, Out any] func(ctx context.Context, in In) (Out, error)

// MakeClient returns a client for op. The operation is compiled on the
// first call and the compiled form is shared by every client of op.
func MakeClient[In, Out any](rt *Runtime, op *Operation[In, Out]) Client[In, Out] {
	return func(ctx context.Context, in In) (Out, error) {
		c, err := op.load()
		if err != nil {
			var zero Out
			return zero, err
		}
		out, _, err := call(ctx, rt, op.Name, c, in)
		return out, err
	}
}

// Execute compiles op afresh and calls it once, bypassing the cache.
func Execute[In, Out any](ctx context.Context, rt *Runtime, op *Operation[In, Out], in In) (Out, error) {
	c, err := compile(op)
	if err != nil {
		var zero Out
		return zero, err
	}
	out, _, err := call(ctx, rt, op.Name, c, in)
	return out, err
}

// decoded pairs a typed result with the JSON document it came from.
type decoded[Out any] struct {
	out Out
	doc any
}

// call builds the request once, then runs each round trip under the retry
// policy. It returns the decoded document alongside Out for the paginator.
func call[In, Out any](ctx context.Context, rt *Runtime, name string, c *compiled[In, Out], in In) (Out, any, error) {
	var zero Out
	start := time.Now()

	ctx, correlationID := tracing.Ensure(ctx)
	ctx, span := rt.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("opwire.operation", name),
			attribute.String("opwire.correlation_id", correlationID.String()),
		),
	)
	defer span.End()

	req, err := c.build(in)
	if err != nil {
		finish(span, name, start, err)
		return zero, nil, err
	}
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.Path),
	)

	logger := rt.logger.With(oplog.OperationKey, name, oplog.CorrelationIDKey, correlationID.String())
	logger.DebugContext(ctx, "calling operation", "method", req.Method, "path", req.Path)

	attempts := 0
	result, err := retry.Do(ctx, rt.policy(ctx, logger, name), func(ctx context.Context) (decoded[Out], error) {
		attempts++
		out, doc, err := roundTrip(ctx, rt, name, c.parse, req)
		return decoded[Out]{out: out, doc: doc}, err
	})
	span.SetAttributes(attribute.Int("opwire.attempts", attempts))
	finish(span, name, start, err)
	if err != nil {
		return zero, nil, err
	}
	return result.out, result.doc, nil
}

// policy returns the runtime policy with logging and metrics chained onto
// OnRetry, or nil when retry is disabled.
func (rt *Runtime) policy(ctx context.Context, logger *slog.Logger, name string) *retry.Policy {
	if rt.retry == nil {
		return nil
	}
	p := *rt.retry
	next := rt.retry.OnRetry
	p.OnRetry = func(a retry.Attempt) {
		recordRetry(name, a.Err)
		logger.WarnContext(ctx, "retrying operation",
			"attempt", a.Number,
			"delay_ms", a.Delay.Milliseconds(),
			"kind", string(operrors.KindOf(a.Err)),
			"error", a.Err.Error(),
		)
		if next != nil {
			next(a)
		}
	}
	return &p
}

// roundTrip sends one attempt. The bearer header is added here, on a copy,
// so the built request never holds the secret.
func roundTrip[Out any](ctx context.Context, rt *Runtime, name string, parse parser[Out], req *transport.Request) (Out, any, error) {
	var zero Out

	wire := req.Clone()
	if rt.credentials != nil {
		tok, err := rt.credentials.Token()
		if err != nil {
			return zero, nil, &operrors.HTTPTransportError{Operation: name, Cause: fmt.Errorf("obtaining credentials: %w", err)}
		}
		wire.Headers["Authorization"] = "Bearer " + tok.AccessToken
	}
	wire.URL = rt.url(wire.Path, wire.Query)

	resp, err := rt.transport.Execute(ctx, wire)
	if err != nil {
		if typed, ok := operrors.AsTyped(err); ok {
			return zero, nil, typed
		}
		return zero, nil, &operrors.HTTPTransportError{Operation: name, Cause: err}
	}
	return parse(resp)
}

// url joins endpoint, path and query. The query is omitted when empty.
func (rt *Runtime) url(path string, query url.Values) string {
	u := rt.endpoint + path
	if q := query.Encode(); q != "" {
		u += "?" + q
	}
	return u
}

func finish(span trace.Span, name string, start time.Time, err error) {
	recordCall(name, err, time.Since(start).Seconds())
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	if status := operrors.StatusOf(err); status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if kind := operrors.KindOf(err); kind != "" {
		span.SetAttributes(attribute.String("opwire.error.kind", string(kind)))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
