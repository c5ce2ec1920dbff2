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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	operrors "github.com/tombee/opwire/pkg/errors"
	"github.com/tombee/opwire/pkg/transport"
)

// RawTextKey holds the original text of a body that is not valid JSON.
const RawTextKey = "rawText"

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report json names so details match the wire
	validate.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return sf.Name
		}
		return name
	})
}

// Empty is the output of operations whose success response carries nothing
// of interest, such as a 204 from a delete.
type Empty struct{}

// document is a response body after the JSON-or-rawText step.
type document struct {
	// text is the body as read; nil for declared-empty bodies
	text []byte

	// value is the decoded JSON, or {"rawText": text} when decoding failed
	value any

	// json is false when value is the rawText fallback
	json bool
}

// parser turns a wire response into Out or a TypedError. It also returns
// the decoded document, which the paginator queries for tokens and items.
type parser[Out any] func(*transport.Response) (Out, any, error)

// compileResponse returns the parser for Out.
func compileResponse[Out any]() parser[Out] {
	return func(resp *transport.Response) (Out, any, error) {
		var zero Out

		doc, err := readDocument(resp)
		if err != nil {
			return zero, nil, err
		}
		if resp.StatusCode >= 400 {
			return zero, doc.value, operrors.FromStatus(resp.StatusCode, doc.value)
		}
		out, err := decodeOutput[Out](doc)
		return out, doc.value, err
	}
}

// readDocument reads and closes the body. A body announced as empty is
// never read and parses as {}.
func readDocument(resp *transport.Response) (*document, error) {
	defer resp.Close()

	if resp.DeclaredEmpty() || resp.Body == nil {
		return &document{value: map[string]any{}, json: true}, nil
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &operrors.StreamReadError{Cause: err}
	}
	return parseDocument(text), nil
}

func parseDocument(text []byte) *document {
	if len(bytes.TrimSpace(text)) == 0 {
		return &document{text: text, value: map[string]any{}, json: true}
	}
	var v any
	if err := json.Unmarshal(text, &v); err != nil {
		return &document{text: text, value: map[string]any{RawTextKey: string(text)}}
	}
	return &document{text: text, value: v, json: true}
}

// decodeOutput decodes a successful document into Out and validates it.
// Nothing is coerced: a type mismatch or failed validate tag is a
// SchemaDecodeError carrying the decoded value.
func decodeOutput[Out any](doc *document) (Out, error) {
	var out Out
	if _, ok := any(out).(Empty); ok {
		return out, nil
	}
	if !doc.json {
		return out, &operrors.SchemaDecodeError{
			Raw:    doc.value,
			Detail: "response body is not valid JSON",
		}
	}

	text := doc.text
	if len(bytes.TrimSpace(text)) == 0 {
		text = []byte("{}")
	}
	return decodeJSON[Out](text, doc.value)
}

// decodeValue decodes an already-parsed JSON value, such as one page item.
func decodeValue[T any](raw any) (T, error) {
	var zero T
	text, err := json.Marshal(raw)
	if err != nil {
		return zero, &operrors.SchemaDecodeError{Raw: raw, Detail: err.Error(), Cause: err}
	}
	return decodeJSON[T](text, raw)
}

func decodeJSON[T any](text []byte, raw any) (T, error) {
	var out, zero T
	if err := json.Unmarshal(text, &out); err != nil {
		return zero, &operrors.SchemaDecodeError{Raw: raw, Detail: describeDecodeError(err), Cause: err}
	}
	if err := validateOutput(out); err != nil {
		return zero, &operrors.SchemaDecodeError{Raw: raw, Detail: describeValidation(err), Cause: err}
	}
	return out, nil
}

func validateOutput(out any) error {
	v := reflect.ValueOf(out)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(v.Interface())
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field != "" {
			return fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)
	}
	return err.Error()
}

func describeValidation(err error) string {
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return err.Error()
	}
	messages := make([]string, 0, len(valErrs))
	for _, fe := range valErrs {
		messages = append(messages, fieldPath(fe)+": "+formatFieldError(fe))
	}
	return strings.Join(messages, "; ")
}

// fieldPath drops the root struct name from the namespace, so
// "ListContactsOutput.results[0].id" becomes "results[0].id".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
