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
	"encoding/json"
	"net/url"
	"reflect"
	"strings"

	"github.com/tombee/opwire/pkg/binding"
	operrors "github.com/tombee/opwire/pkg/errors"
	"github.com/tombee/opwire/pkg/transport"
)

// compileRequest inspects In once and returns a pure builder. The trait
// override, when set, wins over In's marker field.
func compileRequest[In any](name string, override *binding.Trait) (func(In) (*transport.Request, error), *binding.Shape, error) {
	shape, err := binding.Inspect(reflect.TypeFor[In]())
	if err != nil {
		return nil, nil, &operrors.MissingBindingError{Operation: name, Reason: err.Error()}
	}

	trait := override
	if trait == nil {
		trait = shape.Trait
	}
	if trait == nil {
		return nil, nil, &operrors.MissingBindingError{Operation: name}
	}
	if err := trait.Validate(); err != nil {
		return nil, nil, &operrors.MissingBindingError{Operation: name, Reason: err.Error()}
	}
	tmpl, err := binding.ParseTemplate(trait.URI)
	if err != nil {
		return nil, nil, &operrors.MissingBindingError{Operation: name, Reason: err.Error()}
	}

	b := &requestBuilder{
		method:    strings.ToUpper(trait.Method),
		template:  tmpl,
		envelope:  trait.DataEnvelope,
		shape:     shape,
		labels:    shape.ByRole(binding.RoleLabel),
		queries:   shape.ByRole(binding.RoleQuery),
		headers:   shape.ByRole(binding.RoleHeader),
		bodyField: shape.ByRole(binding.RoleBody),
	}
	b.payload, b.hasPayload = shape.Payload()
	b.sendsBody = b.hasPayload || trait.SendsBodyByDefault()

	build := func(in In) (*transport.Request, error) {
		return b.build(reflect.ValueOf(&in).Elem())
	}
	return build, shape, nil
}

type requestBuilder struct {
	method   string
	template *binding.Template
	envelope bool
	shape    *binding.Shape

	labels    []binding.Field
	queries   []binding.Field
	headers   []binding.Field
	bodyField []binding.Field

	payload    binding.Field
	hasPayload bool
	sendsBody  bool
}

func (b *requestBuilder) build(in reflect.Value) (*transport.Request, error) {
	if b.shape.Pointer {
		if in.IsNil() {
			in = reflect.New(b.shape.Type).Elem()
		} else {
			in = in.Elem()
		}
	}

	req := &transport.Request{
		Method:  b.method,
		Path:    b.template.Expand(b.labelValues(in)),
		Query:   b.queryValues(in),
		Headers: b.headerValues(in),
	}

	body, err := b.body(in)
	if err != nil {
		return nil, &operrors.JSONParseError{Cause: err}
	}
	if body != nil {
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}
	return req, nil
}

// labelValues renders every label field. An unset label substitutes the
// empty string so that the placeholder never leaks onto the wire.
func (b *requestBuilder) labelValues(in reflect.Value) map[string]string {
	values := make(map[string]string, len(b.labels))
	for _, f := range b.labels {
		s, _ := binding.Scalar(field(in, f))
		values[f.Name] = s
	}
	return values
}

func (b *requestBuilder) queryValues(in reflect.Value) url.Values {
	q := make(url.Values, len(b.queries))
	for _, f := range b.queries {
		fv := field(in, f)
		if skip(fv, f) {
			continue
		}
		if vals, ok := binding.Values(fv); ok {
			q[f.Name] = vals
		}
	}
	return q
}

func (b *requestBuilder) headerValues(in reflect.Value) map[string]string {
	h := make(map[string]string, len(b.headers)+1)
	for _, f := range b.headers {
		fv := field(in, f)
		if skip(fv, f) {
			continue
		}
		if vals, ok := binding.Values(fv); ok {
			h[f.Name] = strings.Join(vals, ", ")
		}
	}
	return h
}

// body returns the serialized JSON body, or nil when none is sent.
func (b *requestBuilder) body(in reflect.Value) ([]byte, error) {
	if b.hasPayload {
		v, ok, err := binding.JSONValue(field(in, b.payload))
		if err != nil || !ok {
			return nil, err
		}
		return json.Marshal(v)
	}
	if !b.sendsBody || len(b.bodyField) == 0 {
		return nil, nil
	}

	obj := make(map[string]any, len(b.bodyField))
	for _, f := range b.bodyField {
		fv := field(in, f)
		if skip(fv, f) {
			continue
		}
		v, ok, err := binding.JSONValue(fv)
		if err != nil {
			return nil, err
		}
		if ok {
			obj[f.Name] = v
		}
	}
	if len(obj) == 0 {
		return nil, nil
	}

	var doc any = obj
	if b.envelope {
		doc = map[string]any{"data": obj}
	}
	return json.Marshal(doc)
}

// field resolves f in the struct value in. A nil embedded pointer on the
// way yields an invalid Value, which every encoder treats as absent.
func field(in reflect.Value, f binding.Field) reflect.Value {
	fv, err := in.FieldByIndexErr(f.Index)
	if err != nil {
		return reflect.Value{}
	}
	return fv
}

func skip(fv reflect.Value, f binding.Field) bool {
	return binding.Absent(fv) || (f.OmitEmpty && fv.IsZero())
}
