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

// Package transport defines the wire-level request and response exchanged
// between the operation runtime and the network, and an HTTP implementation.
package transport

import (
	"context"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strconv"
)

// Transport executes a fully-resolved wire request.
//
// Implementations must honour ctx cancellation. The returned Response body is
// owned by the caller, who reads it at most once and closes it.
type Transport interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Execute calls f(ctx, req).
func (f Func) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Request is a wire request as produced by an operation's request builder.
type Request struct {
	// Method is the HTTP method
	Method string

	// Path is the template-substituted path with no query string
	Path string

	// Query holds only defined parameters; arrays are repeated values
	Query url.Values

	// Headers are request headers. Content-Type is present only with a body.
	Headers map[string]string

	// Body is pre-serialized JSON, or nil when no body is sent
	Body []byte

	// URL is the absolute URL, filled in by the client from the endpoint,
	// Path and Query
	URL string
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	c := *r
	if r.Query != nil {
		c.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	if r.Headers != nil {
		c.Headers = maps.Clone(r.Headers)
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}

// Response is a wire response. Body is a stream read at most once.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       io.ReadCloser
}

// DeclaredEmpty reports whether the response announces an empty body,
// either by status 204 or an explicit Content-Length of 0.
func (r *Response) DeclaredEmpty() bool {
	if r.StatusCode == http.StatusNoContent {
		return true
	}
	if r.Headers == nil {
		return false
	}
	cl := r.Headers.Get("Content-Length")
	if cl == "" {
		return false
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	return err == nil && n == 0
}

// Close closes the body if there is one.
func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// RateLimiter blocks until a request may proceed.
// *rate.Limiter from golang.org/x/time/rate satisfies it.
type RateLimiter interface {
	Wait(ctx context.Context) error
}
