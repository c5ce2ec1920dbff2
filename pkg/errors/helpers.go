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
	"context"
	"errors"
	"fmt"
)

// Wrap creates a new error that wraps the given error with additional context.
// If err is nil, returns nil.
//
// Usage:
//
//	if err := loadConfig(); err != nil {
//	    return errors.Wrap(err, "loading config")
//	}
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf creates a new error that wraps the given error with formatted context.
// If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// AsTyped finds the first TypedError in err's chain.
func AsTyped(err error) (TypedError, bool) {
	var typed TypedError
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// KindOf returns the Kind of the first TypedError in err's chain, or ""
// when there is none.
func KindOf(err error) Kind {
	if typed, ok := AsTyped(err); ok {
		return typed.Kind()
	}
	return ""
}

// StatusOf returns the HTTP status carried by an API error in err's chain,
// or 0.
func StatusOf(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status()
	}
	return 0
}

// IsCanceled reports whether err was caused by context cancellation or a
// deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
