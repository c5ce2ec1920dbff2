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

// Package errors defines the closed set of errors an operation call can
// return. API-domain errors are derived purely from the HTTP status code;
// transport and construction errors describe a broken client or network.
//
// Callers match exhaustively with a type switch:
//
//	switch e := err.(type) {
//	case *errors.NotFoundError:
//	case *errors.RateLimitError:
//	    wait(e.RetryAfter())
//	...
//	}
package errors

// Kind identifies a TypedError variant.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindRateLimit      Kind = "rate_limit"
	KindServer         Kind = "server"
	KindGeneric        Kind = "generic"

	KindHTTPTransport  Kind = "http_transport"
	KindStreamRead     Kind = "stream_read"
	KindJSONParse      Kind = "json_parse"
	KindSchemaDecode   Kind = "schema_decode"
	KindMissingBinding Kind = "missing_binding"
)

// TypedError is implemented only by the error types in this package.
// The unexported method seals the set so a type switch over the concrete
// variants is exhaustive.
type TypedError interface {
	error

	// Kind returns the variant tag.
	Kind() Kind

	typedError()
}

// APIError is implemented by the variants that carry an HTTP response.
type APIError interface {
	TypedError

	// Status returns the HTTP status code of the response.
	Status() int

	// Msg returns the message extracted from the response body.
	Msg() string

	// Body returns the decoded response body, or {"rawText": ...} when the
	// body was not JSON.
	Body() any
}

// IsAPI reports whether k is derived from an HTTP status code.
func (k Kind) IsAPI() bool {
	switch k {
	case KindAuthentication, KindAuthorization, KindNotFound, KindValidation,
		KindConflict, KindRateLimit, KindServer, KindGeneric:
		return true
	default:
		return false
	}
}
