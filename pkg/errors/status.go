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
	"net/http"
	"strconv"
)

// UnknownMessage is used when no message field is present in an error body.
const UnknownMessage = "Unknown error"

// messageKeys are checked in order for a string message.
var messageKeys = []string{"message", "error", "detail", "details", "error_description"}

// FromStatus maps an error response to its TypedError variant. Dispatch
// depends only on status; body only supplies the message, the details and,
// for 429, the retry_after hint. Callers must only pass status >= 400.
func FromStatus(status int, body any) TypedError {
	resp := Response{
		StatusCode: status,
		Message:    ExtractMessage(body),
		Details:    body,
	}

	switch {
	case status == http.StatusUnauthorized:
		return &AuthenticationError{resp}
	case status == http.StatusForbidden:
		return &AuthorizationError{resp}
	case status == http.StatusNotFound:
		return &NotFoundError{resp}
	case status == http.StatusBadRequest:
		return &ValidationError{resp}
	case status == http.StatusConflict:
		return &ConflictError{resp}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Response: resp, RetryAfterSeconds: retryAfter(body)}
	case status >= 500 && status < 600:
		return &ServerError{resp}
	default:
		return &GenericError{Response: resp, Code: strconv.Itoa(status)}
	}
}

// ExtractMessage finds a human message in a decoded error body, checking
// message, error, detail, details and error_description, then error.message.
func ExtractMessage(body any) string {
	m, ok := body.(map[string]any)
	if !ok {
		return UnknownMessage
	}

	for _, key := range messageKeys {
		if s, ok := m[key].(string); ok {
			return s
		}
	}

	if nested, ok := m["error"].(map[string]any); ok {
		if s, ok := nested["message"].(string); ok {
			return s
		}
	}

	return UnknownMessage
}

func retryAfter(body any) *float64 {
	m, ok := body.(map[string]any)
	if !ok {
		return nil
	}

	switch v := m["retry_after"].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case string:
		// Some APIs quote the number.
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}
