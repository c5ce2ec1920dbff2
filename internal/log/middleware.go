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
package log

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// HTTPMiddleware logs one line per served request: method, path, status,
// size and duration. Server errors log at error level, client errors at
// warn and everything else at debug. The query string is never logged.
func HTTPMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				StatusKey, rec.status,
				"bytes", rec.bytes,
				DurationKey, time.Since(start).Milliseconds(),
			}
			if id := r.Header.Get("X-Correlation-ID"); id != "" {
				attrs = append(attrs, CorrelationIDKey, id)
			}

			level := slog.LevelDebug
			message := "request served"
			switch {
			case rec.status >= 500:
				level = slog.LevelError
				message = "request failed"
			case rec.status >= 400:
				level = slog.LevelWarn
				message = "request rejected"
			}
			logger.Log(r.Context(), level, message, attrs...)
		})
	}
}
