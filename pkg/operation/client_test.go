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
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	operrors "github.com/tombee/opwire/pkg/errors"
	"github.com/tombee/opwire/pkg/retry"
	"github.com/tombee/opwire/pkg/transport"
)

func fastRetry() *retry.Policy {
	return &retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    20 * time.Millisecond,
		Factor:      2,
	}
}

func TestNew_Validation(t *testing.T) {
	fake := newFake(jsonReply(200, map[string]any{}))

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"no transport", Config{Endpoint: "https://x"}, "transport is required"},
		{"relative endpoint", Config{Endpoint: "/api", Transport: fake}, "must be an absolute URL"},
		{"endpoint with query", Config{Endpoint: "https://x/?a=1", Transport: fake}, "must not carry a query"},
		{"bad retry", Config{Endpoint: "https://x", Transport: fake, Retry: &retry.Policy{}}, "invalid retry policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	rt, err := New(Config{Endpoint: "https://api.example.com/", Transport: fake})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", rt.Endpoint())
}

func TestMakeClient_URLAndBearer(t *testing.T) {
	fake := newFake(jsonReply(200, map[string]any{"id": "42"}))
	rt := newRuntime(t, fake, func(c *Config) { c.Credentials = StaticToken("s3cret") })
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	got, err := MakeClient(rt, op)(context.Background(), getContactInput{ID: "42", Properties: []string{"email"}})
	require.NoError(t, err)
	assert.Equal(t, "42", got.ID)

	req := fake.request(t, 0)
	assert.Equal(t, "https://api.example.com/crm/v3/objects/contacts/42?properties=email", req.URL)
	assert.Equal(t, "Bearer s3cret", req.Headers["Authorization"])
}

func TestMakeClient_BuilderNeverHoldsToken(t *testing.T) {
	build, _, err := compileRequest[getContactInput]("test", nil)
	require.NoError(t, err)
	req, err := build(getContactInput{ID: "1"})
	require.NoError(t, err)
	assert.NotContains(t, req.Headers, "Authorization")
}

func TestMakeClient_NoQueryNoQuestionMark(t *testing.T) {
	fake := newFake(jsonReply(200, map[string]any{"id": "1"}))
	rt := newRuntime(t, fake)
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	_, err := MakeClient(rt, op)(context.Background(), getContactInput{ID: "1"})
	require.NoError(t, err)
	req := fake.request(t, 0)
	assert.Equal(t, "https://api.example.com/crm/v3/objects/contacts/1", req.URL)
	assert.NotContains(t, req.Headers, "Authorization")
}

type failingTokens struct{}

func (failingTokens) Token() (*oauth2.Token, error) { return nil, errors.New("expired") }

func TestMakeClient_CredentialsError(t *testing.T) {
	fake := newFake(jsonReply(200, map[string]any{"id": "1"}))
	rt := newRuntime(t, fake, func(c *Config) { c.Credentials = failingTokens{} })
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	_, err := MakeClient(rt, op)(context.Background(), getContactInput{ID: "1"})
	var te *operrors.HTTPTransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "crm.contacts.get", te.Operation)
	assert.Zero(t, fake.calls())
}

func TestMakeClient_TransportError(t *testing.T) {
	fake := newFake()
	fake.err = errors.New("connection refused")
	rt := newRuntime(t, fake)
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	_, err := MakeClient(rt, op)(context.Background(), getContactInput{ID: "1"})
	assert.Equal(t, operrors.KindHTTPTransport, operrors.KindOf(err))
	assert.ErrorContains(t, err, "connection refused")
}

func TestMakeClient_MissingBindingIsCached(t *testing.T) {
	fake := newFake(jsonReply(200, map[string]any{}))
	rt := newRuntime(t, fake)
	op := &Operation[unboundInput, Empty]{Name: "things.get"}
	client := MakeClient(rt, op)

	before := Compilations()
	for range 3 {
		_, err := client(context.Background(), unboundInput{})
		assert.Equal(t, operrors.KindMissingBinding, operrors.KindOf(err))
	}
	assert.Equal(t, int64(1), Compilations()-before)
	assert.Zero(t, fake.calls())
}

func TestMakeClient_CompilesOnceUnderConcurrency(t *testing.T) {
	fake := newFake(jsonReply(200, map[string]any{"id": "1"}))
	rt := newRuntime(t, fake)
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	before := Compilations()
	var g errgroup.Group
	for range 100 {
		g.Go(func() error {
			_, err := MakeClient(rt, op)(context.Background(), getContactInput{ID: "1"})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), Compilations()-before)
	assert.Equal(t, 100, fake.calls())
}

func TestExecute_Uncached(t *testing.T) {
	fake := newFake(jsonReply(200, map[string]any{"id": "1"}))
	rt := newRuntime(t, fake)
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	before := Compilations()
	for range 2 {
		_, err := Execute(context.Background(), rt, op, getContactInput{ID: "1"})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), Compilations()-before)
}

func TestRetry_ValidationNotRetried(t *testing.T) {
	fake := newFake(jsonReply(400, map[string]any{"message": "bad"}))
	rt := newRuntime(t, fake, func(c *Config) { c.Retry = fastRetry() })
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	_, err := MakeClient(rt, op)(context.Background(), getContactInput{ID: "1"})
	assert.Equal(t, operrors.KindValidation, operrors.KindOf(err))
	assert.Equal(t, 1, fake.calls())
}

func TestRetry_ServerErrorThenSuccess(t *testing.T) {
	fake := newFake(
		jsonReply(500, map[string]any{"message": "boom"}),
		jsonReply(200, map[string]any{"id": "1"}),
	)
	var retries atomic.Int32
	policy := fastRetry()
	policy.OnRetry = func(retry.Attempt) { retries.Add(1) }
	rt := newRuntime(t, fake, func(c *Config) { c.Retry = policy })
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	got, err := MakeClient(rt, op)(context.Background(), getContactInput{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, int32(1), retries.Load())
	assert.Equal(t, 2, fake.calls())
}

func TestRetry_RateLimitHintHonoured(t *testing.T) {
	fake := newFake(
		jsonReply(429, map[string]any{"retry_after": 0.125}),
		jsonReply(200, map[string]any{"id": "1"}),
	)
	var delays []time.Duration
	policy := fastRetry()
	policy.MaxDelay = time.Second
	policy.OnRetry = func(a retry.Attempt) { delays = append(delays, a.Delay) }
	rt := newRuntime(t, fake, func(c *Config) { c.Retry = policy })
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	_, err := MakeClient(rt, op)(context.Background(), getContactInput{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{125 * time.Millisecond}, delays)
}

func TestRetry_ExhaustedReturnsLastError(t *testing.T) {
	fake := newFake(jsonReply(503, map[string]any{"message": "unavailable"}))
	rt := newRuntime(t, fake, func(c *Config) { c.Retry = fastRetry() })
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	_, err := MakeClient(rt, op)(context.Background(), getContactInput{ID: "1"})
	var se *operrors.ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "unavailable", se.Message)
	assert.Equal(t, 3, fake.calls())
}

func TestRetry_CancelDuringBackoff(t *testing.T) {
	fake := newFake(jsonReply(500, map[string]any{}))
	policy := fastRetry()
	policy.BaseDelay = time.Hour
	policy.MaxDelay = time.Hour
	rt := newRuntime(t, fake, func(c *Config) { c.Retry = policy })
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := MakeClient(rt, op)(ctx, getContactInput{ID: "1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, operrors.KindServer, operrors.KindOf(err))
	assert.Equal(t, 1, fake.calls())
}

func TestMakeClient_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	fake := newFake(jsonReply(404, map[string]any{"detail": "Not found."}))
	rt := newRuntime(t, fake, func(c *Config) { c.TracerProvider = tp })
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	_, err := MakeClient(rt, op)(context.Background(), getContactInput{ID: "1"})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "crm.contacts.get", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)

	attrs := map[string]any{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "GET", attrs["http.request.method"])
	assert.Equal(t, int64(404), attrs["http.response.status_code"])
	assert.Equal(t, "not_found", attrs["opwire.error.kind"])
	assert.NotEmpty(t, attrs["opwire.correlation_id"])
}

func TestMakeClient_OverHTTP(t *testing.T) {
	var gotAuth, gotCorrelation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCorrelation = r.Header.Get("X-Correlation-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"77","properties":{"email":"x@y.z"}}`))
	}))
	defer srv.Close()

	tr, err := transport.NewHTTP(transport.DefaultHTTPConfig())
	require.NoError(t, err)
	rt, err := New(Config{Endpoint: srv.URL, Transport: tr, Credentials: StaticToken("t0k")})
	require.NoError(t, err)
	op := &Operation[getContactInput, contact]{Name: "crm.contacts.get"}

	got, err := MakeClient(rt, op)(context.Background(), getContactInput{ID: "77"})
	require.NoError(t, err)
	assert.Equal(t, "x@y.z", got.Properties["email"])
	assert.Equal(t, "Bearer t0k", gotAuth)
	assert.NotEmpty(t, gotCorrelation)
}
