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

// Package jq evaluates jq expressions and dotted field paths over decoded
// JSON documents.
package jq

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// Path is a compiled dotted field path such as "paging.next.link".
type Path struct {
	dotted string
	code   *gojq.Code
}

// CompilePath compiles a dotted path. Each segment is a literal object key;
// there is no array indexing.
func CompilePath(dotted string) (*Path, error) {
	if dotted == "" {
		return nil, fmt.Errorf("empty path")
	}
	keys := strings.Split(dotted, ".")
	for _, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("path %q has an empty segment", dotted)
		}
	}

	// json.Marshal yields a jq-compatible array literal with quoted keys
	lit, err := json.Marshal(keys)
	if err != nil {
		return nil, err
	}
	query, err := gojq.Parse("getpath(" + string(lit) + ")?")
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", dotted, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", dotted, err)
	}
	return &Path{dotted: dotted, code: code}, nil
}

// MustCompilePath is like CompilePath but panics on error. For use with
// constant paths in package-level variables.
func MustCompilePath(dotted string) *Path {
	p, err := CompilePath(dotted)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Path) String() string {
	return p.dotted
}

// Lookup returns the value at the path in a decoded JSON document. Missing
// keys, null and traversal through non-objects all report ok=false.
func (p *Path) Lookup(doc any) (v any, ok bool) {
	iter := p.code.Run(doc)
	out, more := iter.Next()
	if !more || out == nil {
		return nil, false
	}
	if _, isErr := out.(error); isErr {
		return nil, false
	}
	return out, true
}

// LookupString returns the value at the path if it is a non-empty string.
func (p *Path) LookupString(doc any) (string, bool) {
	v, ok := p.Lookup(doc)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// LookupArray returns the value at the path if it is an array.
func (p *Path) LookupArray(doc any) ([]any, bool) {
	v, ok := p.Lookup(doc)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	return arr, ok
}
