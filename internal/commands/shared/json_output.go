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
	"encoding/json"
	"io"

	operrors "github.com/tombee/opwire/pkg/errors"
)

// JSONResponse is the base envelope for all JSON output
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command"`
	Success bool   `json:"success"`
}

// JSONError describes a failure in JSON output. Kind, Status and Details
// are set when the failure is a typed operation error.
type JSONError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Status  int    `json:"status,omitempty"`
	Details any    `json:"details,omitempty"`
}

// NewJSONError describes err.
func NewJSONError(err error) JSONError {
	je := JSONError{Code: ExitCode(err), Message: err.Error()}
	if typed, ok := operrors.AsTyped(err); ok {
		je.Kind = string(typed.Kind())
		je.Status = operrors.StatusOf(typed)
		if api, ok := typed.(operrors.APIError); ok {
			je.Message = api.Msg()
			je.Details = api.Body()
		}
	}
	return je
}

// EmitJSON writes v to w as indented JSON
func EmitJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// EmitJSONLine writes v to w as one compact JSON line
func EmitJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// EmitJSONError writes a failed envelope for command to w
func EmitJSONError(w io.Writer, command string, err error) error {
	type errorResponse struct {
		JSONResponse
		Error JSONError `json:"error"`
	}
	return EmitJSON(w, errorResponse{
		JSONResponse: JSONResponse{Version: "1.0", Command: command, Success: false},
		Error:        NewJSONError(err),
	})
}
