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

// Package binding maps the fields of an operation's input struct onto the
// HTTP wire.
//
// Each exported field takes exactly one role, declared with the http tag:
//
//	type GetDashboardInput struct {
//	    _         struct{} `http:"GET /api/projects/{project_id}/dashboards/{id}/"`
//	    ProjectID string   `http:"path=project_id"`
//	    ID        int      `http:"path=id"`
//	    Expand    []string `http:"query=expand"`
//	    Since     *time.Time `http:"header=X-Since"`
//	}
//
// Roles are path (URI template label), query, header and payload (the field
// is the whole request body). Untagged fields are body fields named by their
// json tag. The blank "_" field carries the method and URI template for the
// shape as a whole; an envelope:"data" tag on it wraps body fields in
// {"data": {...}}.
package binding

import (
	"fmt"
	"reflect"
	"strings"
)

// Role is the wire position of an input field.
type Role int

const (
	// RoleBody fields are merged into the JSON body object.
	RoleBody Role = iota
	// RoleLabel fields are substituted into the URI template.
	RoleLabel
	// RoleQuery fields become query parameters.
	RoleQuery
	// RoleHeader fields become request headers.
	RoleHeader
	// RolePayload marks the one field that is the entire request body.
	RolePayload
)

func (r Role) String() string {
	switch r {
	case RoleBody:
		return "body"
	case RoleLabel:
		return "path"
	case RoleQuery:
		return "query"
	case RoleHeader:
		return "header"
	case RolePayload:
		return "payload"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Field describes one bound input field.
type Field struct {
	// Name is the wire name: placeholder, query key, header name or json key
	Name string

	// GoName is the struct field name, used in error messages
	GoName string

	// Index is the reflect index path from the shape's struct type
	Index []int

	Type      reflect.Type
	Role      Role
	OmitEmpty bool
}

// Shape is the binding table for one input type.
type Shape struct {
	// Type is the struct type after dereferencing pointers
	Type reflect.Type

	// Pointer is true when the inspected type was *Type
	Pointer bool

	// Trait is the shape-level binding from the blank marker field, or nil
	Trait *Trait

	Fields []Field
}

// ShapeError reports an input type that cannot be bound.
type ShapeError struct {
	Type   reflect.Type
	Field  string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("binding %s.%s: %s", e.Type, e.Field, e.Reason)
	}
	return fmt.Sprintf("binding %s: %s", e.Type, e.Reason)
}

// Inspect builds the binding table for t, which must be a struct or a
// pointer to a struct. The result is immutable; callers cache it.
func Inspect(t reflect.Type) (*Shape, error) {
	if t == nil {
		return nil, &ShapeError{Type: t, Reason: "nil type"}
	}

	shape := &Shape{Type: t}
	if t.Kind() == reflect.Pointer {
		shape.Type = t.Elem()
		shape.Pointer = true
	}
	if shape.Type.Kind() != reflect.Struct {
		return nil, &ShapeError{Type: t, Reason: "input must be a struct or pointer to struct"}
	}

	if err := shape.collect(shape.Type, nil); err != nil {
		return nil, err
	}

	payloads := shape.ByRole(RolePayload)
	if len(payloads) > 1 {
		names := make([]string, len(payloads))
		for i, f := range payloads {
			names[i] = f.GoName
		}
		return nil, &ShapeError{
			Type:   shape.Type,
			Reason: "at most one payload field is allowed, found " + strings.Join(names, ", "),
		}
	}

	return shape, nil
}

func (s *Shape) collect(t reflect.Type, parent []int) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), parent...), i)

		if sf.Name == "_" {
			tag, ok := sf.Tag.Lookup("http")
			if !ok {
				continue
			}
			trait, err := ParseTrait(tag)
			if err != nil {
				return &ShapeError{Type: t, Field: "_", Reason: err.Error()}
			}
			trait.DataEnvelope = sf.Tag.Get("envelope") == "data"
			s.Trait = trait
			continue
		}

		httpTag, hasHTTP := sf.Tag.Lookup("http")
		if httpTag == "-" {
			continue
		}

		if sf.Anonymous && !hasHTTP && sf.Type.Kind() == reflect.Struct {
			if err := s.collect(sf.Type, index); err != nil {
				return err
			}
			continue
		}

		if !sf.IsExported() {
			continue
		}

		field := Field{
			GoName: sf.Name,
			Index:  index,
			Type:   sf.Type,
		}

		jsonName, jsonOmit, jsonSkip := parseJSONTag(sf)

		if !hasHTTP {
			if jsonSkip {
				continue
			}
			field.Role = RoleBody
			field.Name = jsonName
			field.OmitEmpty = jsonOmit
			s.Fields = append(s.Fields, field)
			continue
		}

		role, name, omit, err := parseHTTPTag(httpTag)
		if err != nil {
			return &ShapeError{Type: t, Field: sf.Name, Reason: err.Error()}
		}
		if name == "" {
			name = jsonName
		}
		field.Role = role
		field.Name = name
		field.OmitEmpty = omit
		s.Fields = append(s.Fields, field)
	}
	return nil
}

// ByRole returns the fields with role r in declaration order.
func (s *Shape) ByRole(r Role) []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Role == r {
			out = append(out, f)
		}
	}
	return out
}

// Payload returns the payload field if the shape has one.
func (s *Shape) Payload() (Field, bool) {
	for _, f := range s.Fields {
		if f.Role == RolePayload {
			return f, true
		}
	}
	return Field{}, false
}

// Lookup finds a non-label field by wire name. Label fields are consumed by
// the path and never carry page tokens.
func (s *Shape) Lookup(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name && f.Role != RoleLabel {
			return f, true
		}
	}
	return Field{}, false
}

// parseHTTPTag parses "role[=name][,omitempty]".
func parseHTTPTag(tag string) (role Role, name string, omit bool, err error) {
	spec, opts, _ := strings.Cut(tag, ",")
	for _, opt := range strings.Split(opts, ",") {
		switch opt {
		case "":
		case "omitempty":
			omit = true
		default:
			return 0, "", false, fmt.Errorf("unknown http tag option %q", opt)
		}
	}

	kind, name, _ := strings.Cut(spec, "=")
	switch kind {
	case "path", "label":
		role = RoleLabel
	case "query":
		role = RoleQuery
	case "header":
		role = RoleHeader
	case "payload":
		if name != "" {
			return 0, "", false, fmt.Errorf("payload takes no name")
		}
		role = RolePayload
	case "body":
		role = RoleBody
	default:
		return 0, "", false, fmt.Errorf("unknown http role %q", kind)
	}
	return role, name, omit, nil
}

func parseJSONTag(sf reflect.StructField) (name string, omit, skip bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = sf.Name
	}
	for _, opt := range strings.Split(opts, ",") {
		if opt == "omitempty" || opt == "omitzero" {
			omit = true
		}
	}
	return name, omit, false
}
