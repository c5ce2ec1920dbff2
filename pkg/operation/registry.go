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
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/tombee/opwire/pkg/binding"
	operrors "github.com/tombee/opwire/pkg/errors"
)

// Entry is a registered operation with its types erased. Input arrives as
// JSON and results leave as decoded Go values, which is what a CLI needs.
type Entry struct {
	// Name is the full reference, e.g. "crm.contacts.get"
	Name string

	Description string

	// Method and URI describe the route, when the binding is valid
	Method string
	URI    string

	// Paginated is true for operations with a Pagination descriptor
	Paginated bool

	call  func(ctx context.Context, rt *Runtime, in json.RawMessage) (any, error)
	pages func(ctx context.Context, rt *Runtime, in json.RawMessage) iter.Seq2[any, error]
	items func(ctx context.Context, rt *Runtime, in json.RawMessage) iter.Seq2[any, error]
}

// Service returns the first segment of the entry name.
func (e *Entry) Service() string {
	service, _, _ := ParseReference(e.Name)
	return service
}

// Call decodes input into the operation's input type and calls it once.
func (e *Entry) Call(ctx context.Context, rt *Runtime, input json.RawMessage) (any, error) {
	return e.call(ctx, rt, input)
}

// Pages streams pages of a paginated entry.
func (e *Entry) Pages(ctx context.Context, rt *Runtime, input json.RawMessage) iter.Seq2[any, error] {
	if e.pages == nil {
		return notPaginated(e.Name)
	}
	return e.pages(ctx, rt, input)
}

// Items streams items of a paginated entry.
func (e *Entry) Items(ctx context.Context, rt *Runtime, input json.RawMessage) iter.Seq2[any, error] {
	if e.items == nil {
		return notPaginated(e.Name)
	}
	return e.items(ctx, rt, input)
}

func notPaginated(name string) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		yield(nil, fmt.Errorf("operation %q is not paginated", name))
	}
}

// Registry maps operation names to entries.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a single-call operation. Registering a name twice replaces
// the earlier entry.
func Register[In, Out any](r *Registry, op *Operation[In, Out], description string) {
	e := newEntry(op, description)
	e.call = func(ctx context.Context, rt *Runtime, raw json.RawMessage) (any, error) {
		in, err := decodeInput[In](op.Name, raw)
		if err != nil {
			return nil, err
		}
		return MakeClient(rt, op)(ctx, in)
	}
	r.put(e)
}

// RegisterPaginated adds a list operation with page and item streams.
func RegisterPaginated[In, Out, Item any](r *Registry, op *Operation[In, Out], description string) {
	e := newEntry(op, description)
	e.Paginated = op.Pagination != nil
	e.call = func(ctx context.Context, rt *Runtime, raw json.RawMessage) (any, error) {
		in, err := decodeInput[In](op.Name, raw)
		if err != nil {
			return nil, err
		}
		return MakePaginated[In, Out, Item](rt, op).Call(ctx, in)
	}
	e.pages = func(ctx context.Context, rt *Runtime, raw json.RawMessage) iter.Seq2[any, error] {
		return erase(op.Name, raw, func(in In) iter.Seq2[Out, error] {
			return MakePaginated[In, Out, Item](rt, op).Pages(ctx, in)
		})
	}
	e.items = func(ctx context.Context, rt *Runtime, raw json.RawMessage) iter.Seq2[any, error] {
		return erase(op.Name, raw, func(in In) iter.Seq2[Item, error] {
			return MakePaginated[In, Out, Item](rt, op).Items(ctx, in)
		})
	}
	r.put(e)
}

// Get returns the entry registered under name.
func (r *Registry) Get(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("operation %q not found", name)
	}
	return e, nil
}

// List returns every entry sorted by name.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *Entry) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Services returns the distinct services with registered operations.
func (r *Registry) Services() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range r.List() {
		if s := e.Service(); !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) put(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.Name] = e
}

func newEntry[In, Out any](op *Operation[In, Out], description string) *Entry {
	e := &Entry{Name: op.Name, Description: description}
	trait := op.HTTP
	if trait == nil {
		if shape, err := binding.Inspect(reflect.TypeFor[In]()); err == nil {
			trait = shape.Trait
		}
	}
	if trait != nil {
		e.Method, e.URI = strings.ToUpper(trait.Method), trait.URI
	}
	return e
}

// decodeInput reads JSON input into In. Empty input is the zero value.
func decodeInput[In any](name string, raw json.RawMessage) (In, error) {
	var in In
	if len(bytes.TrimSpace(raw)) == 0 {
		return in, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, operrors.Wrapf(err, "decoding input for %s", name)
	}
	return in, nil
}

func erase[In, T any](name string, raw json.RawMessage, stream func(In) iter.Seq2[T, error]) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		in, err := decodeInput[In](name, raw)
		if err != nil {
			yield(nil, err)
			return
		}
		for v, err := range stream(in) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// ParseReference splits "service.operation" at the first dot. The
// operation part may itself contain dots.
func ParseReference(reference string) (service, operation string, err error) {
	service, operation, ok := strings.Cut(reference, ".")
	if !ok {
		return "", "", fmt.Errorf("invalid operation reference %q: must be in format 'service.operation'", reference)
	}
	if service == "" || operation == "" {
		return "", "", fmt.Errorf("invalid operation reference %q: service and operation names cannot be empty", reference)
	}
	return service, operation, nil
}
