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
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tombee/opwire/pkg/transport"
)

// reply is a canned wire response.
type reply struct {
	status int
	body   string
	header http.Header
}

func jsonReply(status int, v any) reply {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return reply{status: status, body: string(b)}
}

func textReply(status int, body string) reply {
	return reply{status: status, body: body}
}

func (r reply) response() *transport.Response {
	h := r.header
	if h == nil {
		h = http.Header{}
	}
	if r.status != http.StatusNoContent && h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(r.body)))
	}
	return &transport.Response{
		StatusCode: r.status,
		Headers:    h,
		Body:       io.NopCloser(strings.NewReader(r.body)),
	}
}

// fakeTransport records requests and replays responses in order. The last
// response repeats once the script runs out.
type fakeTransport struct {
	mu       sync.Mutex
	replies  []reply
	requests []*transport.Request
	err      error
}

func newFake(replies ...reply) *fakeTransport {
	return &fakeTransport{replies: replies}
}

func (f *fakeTransport) Execute(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	n := len(f.requests) - 1
	if n >= len(f.replies) {
		n = len(f.replies) - 1
	}
	return f.replies[n].response(), nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) request(t *testing.T, i int) *transport.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Greater(t, len(f.requests), i, "request %d was not sent", i)
	return f.requests[i]
}

func newRuntime(t *testing.T, tr transport.Transport, opts ...func(*Config)) *Runtime {
	t.Helper()
	cfg := Config{
		Endpoint:  "https://api.example.com",
		Transport: tr,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	rt, err := New(cfg)
	require.NoError(t, err)
	return rt
}

func ptr[T any](v T) *T { return &v }
