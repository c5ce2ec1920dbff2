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
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	oplog "github.com/tombee/opwire/internal/log"
	"github.com/tombee/opwire/internal/tracing"
)

// HTTPTransport executes wire requests with net/http.
//
// Each round trip waits on the rate limiter, sets User-Agent and the
// correlation header, and is logged with a sanitized URL.
type HTTPTransport struct {
	client    *http.Client
	userAgent string
	limiter   RateLimiter
	logger    *slog.Logger
}

// HTTPOption customizes an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the underlying client. The configured timeout is
// not applied to a caller-supplied client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithRateLimiter overrides the limiter derived from RequestsPerSecond.
func WithRateLimiter(l RateLimiter) HTTPOption {
	return func(t *HTTPTransport) {
		t.limiter = l
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		t.logger = l
	}
}

// NewHTTP creates an HTTP transport from cfg.
func NewHTTP(cfg HTTPConfig, opts ...HTTPOption) (*HTTPTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &HTTPTransport{
		client:    newHTTPClient(cfg),
		userAgent: cfg.UserAgent,
		logger:    slog.Default(),
	}
	if cfg.RequestsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func newHTTPClient(cfg HTTPConfig) *http.Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	// No client-level Timeout: it would also cut off the body stream, which
	// the response parser reads after Execute returns.
	return &http.Client{Transport: base}
}

// Execute implements Transport.
func (t *HTTPTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("request has no URL")
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	tracing.InjectIntoRequest(ctx, httpReq)
	tracing.InjectHTTPHeaders(ctx, httpReq)
	if req.Body != nil {
		oplog.Trace(ctx, t.logger, "http request body", slog.String("body", string(req.Body)))
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	duration := time.Since(start).Milliseconds()
	logURL := SanitizeURL(httpReq.URL)

	if err != nil {
		t.logger.WarnContext(ctx, "http request failed",
			"method", req.Method,
			"url", logURL,
			oplog.DurationKey, duration,
			"error", err.Error(),
		)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	t.logger.Log(ctx, level, "http request",
		"method", req.Method,
		"url", logURL,
		oplog.StatusKey, resp.StatusCode,
		oplog.DurationKey, duration,
	)

	if resp.ContentLength == 0 && resp.Header.Get("Content-Length") == "" {
		resp.Header.Set("Content-Length", "0")
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       resp.Body,
	}, nil
}
