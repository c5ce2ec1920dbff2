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
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tombee/opwire/internal/jq"
	"github.com/tombee/opwire/pkg/binding"
	operrors "github.com/tombee/opwire/pkg/errors"
	"github.com/tombee/opwire/pkg/transport"
)

// Mode names the pagination style of a list operation. It is informational:
// the next token is always read from the "next" URL the same way.
type Mode string

const (
	ModeOffset Mode = "offset"
	ModeCursor Mode = "cursor"
	ModeURL    Mode = "url"
)

// DefaultItemsPath is used when Pagination.Items is empty.
const DefaultItemsPath = "results"

var defaultItemsPath = jq.MustCompilePath(DefaultItemsPath)

// Pagination describes how a list operation pages.
type Pagination struct {
	// InputToken is the wire name of the input field that carries the page
	// token, and the query parameter read from the "next" URL
	InputToken string

	// OutputToken is the dotted path to the "next" URL in a page. Empty
	// means the operation never has a second page.
	OutputToken string

	// Items is the dotted path to the array of items in a page
	Items string

	// PageSize is the wire name of the input field controlling page size
	PageSize string

	Mode Mode

	// MaxPages stops a stream after this many pages (0 = unlimited)
	MaxPages int
}

// Operation describes one API call. Declare operations once, at package
// level, and always use them by pointer: the pointer identifies the
// compiled form cached on first use.
type Operation[In, Out any] struct {
	// Name identifies the operation in errors, logs and metrics, e.g.
	// "crm.contacts.get"
	Name string

	// HTTP overrides the binding declared on In's blank marker field
	HTTP *binding.Trait

	// Errors lists the error kinds the API documents for this call.
	// Dispatch is always by status code; this is informational.
	Errors []operrors.Kind

	// Pagination is set for list operations
	Pagination *Pagination

	once     sync.Once
	compiled *compiled[In, Out]
	err      error
}

// compiled is the memoized request builder and response parser pair.
type compiled[In, Out any] struct {
	build func(In) (*transport.Request, error)
	parse parser[Out]

	// set only for paginated operations
	shape     *binding.Shape
	nextPath  *jq.Path
	itemsPath *jq.Path
}

var compilations atomic.Int64

// Compilations returns how many times any operation has been compiled in
// this process.
func Compilations() int64 {
	return compilations.Load()
}

// Compile builds the operation's request builder and response parser once
// and caches them. Concurrent first callers block until the single build
// finishes; nobody observes a partial result. Binding errors are cached as
// well and returned on every call.
func (op *Operation[In, Out]) Compile() error {
	_, err := op.load()
	return err
}

func (op *Operation[In, Out]) load() (*compiled[In, Out], error) {
	op.once.Do(func() {
		op.compiled, op.err = compile(op)
	})
	return op.compiled, op.err
}

// compile is the uncached build. It is a pure function of op's exported
// fields and the In/Out types.
func compile[In, Out any](op *Operation[In, Out]) (*compiled[In, Out], error) {
	compilations.Add(1)
	compilationsTotal.WithLabelValues(op.Name).Inc()

	build, shape, err := compileRequest[In](op.Name, op.HTTP)
	if err != nil {
		return nil, err
	}
	c := &compiled[In, Out]{
		build: build,
		parse: compileResponse[Out](),
	}

	if p := op.Pagination; p != nil {
		if err := compilePagination(op.Name, p, shape, c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func compilePagination[In, Out any](name string, p *Pagination, shape *binding.Shape, c *compiled[In, Out]) error {
	invalid := func(format string, args ...any) error {
		return &operrors.MissingBindingError{Operation: name, Reason: fmt.Sprintf(format, args...)}
	}

	if p.InputToken == "" {
		return invalid("pagination requires an input token field")
	}
	field, ok := shape.Lookup(p.InputToken)
	if !ok {
		return invalid("pagination input token %q is not a query, header or body field", p.InputToken)
	}
	if !binding.Settable(field.Type) {
		return invalid("pagination input token %q has unsupported type %s", p.InputToken, field.Type)
	}
	if p.PageSize != "" {
		if _, ok := shape.Lookup(p.PageSize); !ok {
			return invalid("pagination page size %q is not an input field", p.PageSize)
		}
	}

	var err error
	if p.OutputToken != "" {
		if c.nextPath, err = jq.CompilePath(p.OutputToken); err != nil {
			return invalid("pagination output token: %v", err)
		}
	}
	c.itemsPath = defaultItemsPath
	if p.Items != "" {
		if c.itemsPath, err = jq.CompilePath(p.Items); err != nil {
			return invalid("pagination items: %v", err)
		}
	}
	c.shape = shape
	return nil
}
