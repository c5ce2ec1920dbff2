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

package binding

import (
	"fmt"
	"strings"
)

// Trait is the shape-level HTTP binding of an operation.
type Trait struct {
	// Method is the HTTP method (GET, POST, PUT, PATCH, DELETE, HEAD)
	Method string

	// URI is the path template, e.g. "/crm/v3/objects/contacts/{contactId}"
	URI string

	// DataEnvelope wraps assembled body fields as {"data": {...}}
	DataEnvelope bool
}

var knownMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"PATCH": true, "DELETE": true, "OPTIONS": true,
}

// ParseTrait parses a marker tag of the form "METHOD /uri/template".
func ParseTrait(tag string) (*Trait, error) {
	method, uri, ok := strings.Cut(strings.TrimSpace(tag), " ")
	if !ok {
		return nil, fmt.Errorf("http marker %q must be \"METHOD /uri\"", tag)
	}
	t := &Trait{Method: strings.ToUpper(method), URI: strings.TrimSpace(uri)}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks that the method is known and the template parses.
func (t *Trait) Validate() error {
	if t.Method == "" {
		return fmt.Errorf("method is required")
	}
	if !knownMethods[strings.ToUpper(t.Method)] {
		return fmt.Errorf("unknown method %q", t.Method)
	}
	if t.URI == "" {
		return fmt.Errorf("uri template is required")
	}
	if _, err := ParseTemplate(t.URI); err != nil {
		return err
	}
	return nil
}

// SendsBodyByDefault reports whether body fields are serialized for this
// method. GET, HEAD and DELETE only send a body through a payload field.
func (t *Trait) SendsBodyByDefault() bool {
	switch strings.ToUpper(t.Method) {
	case "GET", "HEAD", "DELETE":
		return false
	default:
		return true
	}
}
