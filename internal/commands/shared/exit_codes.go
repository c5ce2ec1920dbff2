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
package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	operrors "github.com/tombee/opwire/pkg/errors"
)

// Exit codes
const (
	ExitSuccess  = 0
	ExitFailed   = 1 // transport, decoding or other local failure
	ExitUsage    = 2 // bad arguments or input
	ExitConfig   = 3 // configuration could not be loaded
	ExitAPIError = 4 // the API answered with an error status
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewUsageError creates an error for invalid arguments or input
func NewUsageError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitUsage, Message: msg, Cause: cause}
}

// NewConfigError creates an error for configuration failures
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Cause: cause}
}

// NewCallError creates an error for a failed operation call. Errors the
// API returned exit with ExitAPIError, everything else with ExitFailed.
func NewCallError(msg string, cause error) *ExitError {
	code := ExitFailed
	if operrors.KindOf(cause).IsAPI() {
		code = ExitAPIError
	}
	return &ExitError{Code: code, Message: msg, Cause: cause}
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailed
}

// PrintError writes err to w the way HandleExitError reports it.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err.Error())
}

// HandleExitError prints err and exits with its code
func HandleExitError(err error) {
	if err == nil {
		return
	}
	PrintError(os.Stderr, err)
	os.Exit(ExitCode(err))
}
