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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestPropagation_RoundTrip(t *testing.T) {
	InstallPropagator()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(NewSampler(SamplerConfig{Rate: 1})))
	ctx, span := tp.Tracer("test").Start(context.Background(), "call")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)
	InjectHTTPHeaders(ctx, req)
	assert.NotEmpty(t, req.Header.Get("traceparent"))

	var got trace.SpanContext
	var gotID CorrelationID
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = trace.SpanContextFromContext(r.Context())
		gotID = FromContextOrEmpty(r.Context())
	}))

	id := NewCorrelationID()
	req.Header.Set(HeaderCorrelationID, id.String())
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())
	assert.True(t, got.IsRemote())
	assert.Equal(t, id, gotID)
}

func TestHTTPMiddleware_IgnoresInvalidCorrelationID(t *testing.T) {
	var gotID CorrelationID
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = FromContextOrEmpty(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "not-a-uuid")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, gotID)
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate    float64
		sampled bool
	}{
		{1, true},
		{2, true},
		{0, false},
		{-1, false},
	}
	for _, tt := range tests {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(NewSampler(SamplerConfig{Rate: tt.rate})))
		_, span := tp.Tracer("test").Start(context.Background(), "root")
		assert.Equal(t, tt.sampled, span.SpanContext().IsSampled(), "rate %v", tt.rate)
		span.End()
	}
}
