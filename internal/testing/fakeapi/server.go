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
// Package fakeapi serves an in-memory CRM and analytics API for tests.
// It pages the way the real services do, returns their error bodies and
// can be told to fail the next requests with a given status.
package fakeapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"go.opentelemetry.io/otel/trace"

	oplog "github.com/tombee/opwire/internal/log"
	"github.com/tombee/opwire/internal/tracing"
)

// DefaultPageSize applies when a list request has no limit.
const DefaultPageSize = 10

// Request is a request as the server received it.
type Request struct {
	Method        string
	Path          string
	Query         url.Values
	Header        http.Header
	Body          []byte
	CorrelationID string
	TraceID       string
}

// Option configures a Server.
type Option func(*Server)

// WithToken makes the server reject requests without this bearer token.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithLogger sets the request logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithPageSize changes the page size used when a request has no limit.
func WithPageSize(n int) Option {
	return func(s *Server) { s.pageSize = n }
}

type failure struct {
	status int
	body   string
}

// Server is a running fake API.
type Server struct {
	// URL is the base URL, without a trailing slash
	URL string

	srv      *httptest.Server
	token    string
	logger   *slog.Logger
	pageSize int
	decoder  *schema.Decoder

	mu       sync.Mutex
	clock    time.Time
	seq      int
	crm      *crmStore
	projects map[string]*project
	failures []failure
	requests []Request
}

// New starts a server that is closed when t finishes.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := &Server{
		logger:   oplog.Discard(),
		pageSize: DefaultPageSize,
		decoder:  schema.NewDecoder(),
		clock:    time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		crm:      newCRMStore(),
		projects: make(map[string]*project),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.decoder.IgnoreUnknownKeys(true)

	s.srv = httptest.NewServer(s.handler())
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

// Close stops the server early.
func (s *Server) Close() {
	s.srv.Close()
}

func (s *Server) handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.record, s.inject, s.authenticate)
	s.routeCRM(r)
	s.routeAnalytics(r)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "no route for " + req.Method + " " + req.URL.Path})
	})

	return tracing.HTTPMiddleware(oplog.HTTPMiddleware(s.logger)(r))
}

// FailNext makes the next request fail with status and the raw body.
// Calls queue up: each failure is served once, in order.
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{status: status, body: body})
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request, or false if none arrived.
func (s *Server) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		rec := Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Header:        r.Header.Clone(),
			Body:          body,
			CorrelationID: tracing.FromContextOrEmpty(r.Context()).String(),
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			rec.TraceID = sc.TraceID().String()
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var f *failure
		if len(s.failures) > 0 {
			f = &s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if f == nil {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" || r.Header.Get("Authorization") == "Bearer "+s.token {
			next.ServeHTTP(w, r)
			return
		}
		if isAnalytics(r) {
			writeJSON(w, http.StatusUnauthorized, analyticsError("authentication_error", "not_authenticated", "Authentication credentials were not provided."))
			return
		}
		writeJSON(w, http.StatusUnauthorized, crmError("INVALID_AUTHENTICATION", "Authentication credentials not found."))
	})
}

// now returns the fake clock and advances it a minute, so records get
// distinct, increasing timestamps.
func (s *Server) now() time.Time {
	t := s.clock
	s.clock = s.clock.Add(time.Minute)
	return t
}

func (s *Server) nextSeq() int {
	s.seq++
	return s.seq
}

// listQuery holds every list parameter either service understands.
type listQuery struct {
	Limit      int      `schema:"limit"`
	After      string   `schema:"after"`
	Offset     int      `schema:"offset"`
	Cursor     string   `schema:"cursor"`
	Search     string   `schema:"search"`
	Archived   bool     `schema:"archived"`
	Stage      string   `schema:"dealstage"`
	DistinctID string   `schema:"distinct_id"`
	Properties []string `schema:"properties"`
}

func (s *Server) decodeQuery(r *http.Request) (listQuery, error) {
	var q listQuery
	if err := s.decoder.Decode(&q, r.URL.Query()); err != nil {
		return q, err
	}
	if q.Limit <= 0 {
		q.Limit = s.pageSize
	}
	return q, nil
}

// window returns the bounds of a page of size limit starting at offset
// in a list of n items, and whether more items follow.
func window(n, offset, limit int) (start, end int, more bool) {
	start = min(max(offset, 0), n)
	end = min(start+limit, n)
	return start, end, end < n
}

// pageURL returns the absolute URL of r with key set to value.
func pageURL(r *http.Request, key, value string) string {
	q := r.URL.Query()
	q.Set(key, value)
	u := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	return u.String()
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isAnalytics(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
