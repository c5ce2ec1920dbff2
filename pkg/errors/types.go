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

package errors

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Response holds what every API-domain error knows about the failed call.
type Response struct {
	// StatusCode is the HTTP status code
	StatusCode int

	// Message is the human-readable message extracted from the body
	Message string

	// Details is the decoded body, or {"rawText": ...} for non-JSON bodies
	Details any
}

// Status returns the HTTP status code.
func (r Response) Status() int { return r.StatusCode }

// Msg returns the extracted message.
func (r Response) Msg() string { return r.Message }

// Body returns the decoded response body.
func (r Response) Body() any { return r.Details }

func (r Response) format(label string) string {
	return fmt.Sprintf("%s (status %d): %s", label, r.StatusCode, r.Message)
}

// AuthenticationError is returned for 401 responses.
type AuthenticationError struct{ Response }

func (e *AuthenticationError) Error() string { return e.format("authentication failed") }
func (e *AuthenticationError) Kind() Kind    { return KindAuthentication }
func (*AuthenticationError) typedError()     {}

// AuthorizationError is returned for 403 responses.
type AuthorizationError struct{ Response }

func (e *AuthorizationError) Error() string { return e.format("permission denied") }
func (e *AuthorizationError) Kind() Kind    { return KindAuthorization }
func (*AuthorizationError) typedError()     {}

// NotFoundError is returned for 404 responses.
type NotFoundError struct{ Response }

func (e *NotFoundError) Error() string { return e.format("not found") }
func (e *NotFoundError) Kind() Kind    { return KindNotFound }
func (*NotFoundError) typedError()     {}

// ValidationError is returned for 400 responses.
type ValidationError struct{ Response }

func (e *ValidationError) Error() string { return e.format("validation failed") }
func (e *ValidationError) Kind() Kind    { return KindValidation }
func (*ValidationError) typedError()     {}

// ConflictError is returned for 409 responses.
type ConflictError struct{ Response }

func (e *ConflictError) Error() string { return e.format("conflict") }
func (e *ConflictError) Kind() Kind    { return KindConflict }
func (*ConflictError) typedError()     {}

// RateLimitError is returned for 429 responses.
type RateLimitError struct {
	Response

	// RetryAfterSeconds is the body's retry_after hint, nil when absent
	RetryAfterSeconds *float64
}

func (e *RateLimitError) Error() string {
	if e.RetryAfterSeconds != nil {
		return fmt.Sprintf("%s, retry after %gs", e.format("rate limited"), *e.RetryAfterSeconds)
	}
	return e.format("rate limited")
}
func (e *RateLimitError) Kind() Kind { return KindRateLimit }
func (*RateLimitError) typedError()  {}

// RetryAfter converts the hint to a duration. Zero means no usable hint;
// hints too large for a Duration saturate at the maximum.
func (e *RateLimitError) RetryAfter() time.Duration {
	if e.RetryAfterSeconds == nil {
		return 0
	}
	secs := *e.RetryAfterSeconds
	if math.IsNaN(secs) || secs <= 0 {
		return 0
	}
	if secs >= float64(math.MaxInt64)/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(secs * float64(time.Second))
}

// ServerError is returned for 5xx responses.
type ServerError struct{ Response }

func (e *ServerError) Error() string { return e.format("server error") }
func (e *ServerError) Kind() Kind    { return KindServer }
func (*ServerError) typedError()     {}

// GenericError is returned for any other status >= 400.
type GenericError struct {
	Response

	// Code is the status code as a string, e.g. "418"
	Code string
}

func (e *GenericError) Error() string {
	return fmt.Sprintf("request failed (%s): %s", e.Code, e.Message)
}
func (e *GenericError) Kind() Kind { return KindGeneric }
func (*GenericError) typedError()  {}

// HTTPTransportError wraps a failure of the transport round trip itself.
type HTTPTransportError struct {
	// Operation is the name of the operation being called
	Operation string

	// Cause is the underlying error
	Cause error
}

func (e *HTTPTransportError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: http transport error: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("http transport error: %v", e.Cause)
}
func (e *HTTPTransportError) Unwrap() error { return e.Cause }
func (e *HTTPTransportError) Kind() Kind    { return KindHTTPTransport }
func (*HTTPTransportError) typedError()     {}

// StreamReadError is returned when the response body could not be read.
type StreamReadError struct {
	Cause error
}

func (e *StreamReadError) Error() string { return fmt.Sprintf("reading response body: %v", e.Cause) }
func (e *StreamReadError) Unwrap() error { return e.Cause }
func (e *StreamReadError) Kind() Kind    { return KindStreamRead }
func (*StreamReadError) typedError()     {}

// JSONParseError is returned when JSON text could not be produced or read
// where no fallback applies, such as encoding a request body.
type JSONParseError struct {
	// Text is the offending text, empty when encoding failed
	Text string

	Cause error
}

func (e *JSONParseError) Error() string { return fmt.Sprintf("json: %v", e.Cause) }
func (e *JSONParseError) Unwrap() error { return e.Cause }
func (e *JSONParseError) Kind() Kind    { return KindJSONParse }
func (*JSONParseError) typedError()     {}

// SchemaDecodeError is returned when a successful response does not match
// the operation's output shape.
type SchemaDecodeError struct {
	// Raw is the decoded JSON value that failed to match
	Raw any

	// Detail describes the validation failure
	Detail string

	Cause error
}

func (e *SchemaDecodeError) Error() string {
	return fmt.Sprintf("response does not match output shape: %s", e.Detail)
}
func (e *SchemaDecodeError) Unwrap() error { return e.Cause }
func (e *SchemaDecodeError) Kind() Kind    { return KindSchemaDecode }
func (*SchemaDecodeError) typedError()     {}

// MissingBindingError is returned when an operation has no method or URI
// template, or when its input shape cannot be bound. It is a programming
// error and is never retried.
type MissingBindingError struct {
	Operation string

	// Reason is set when the binding exists but is invalid
	Reason string
}

func (e *MissingBindingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("operation %s has an invalid http binding: %s", strconv.Quote(e.Operation), e.Reason)
	}
	return fmt.Sprintf("operation %s has no http binding", strconv.Quote(e.Operation))
}
func (e *MissingBindingError) Kind() Kind { return KindMissingBinding }
func (*MissingBindingError) typedError()  {}
