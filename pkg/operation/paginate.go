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
	"context"
	"iter"
	"net/url"
	"reflect"

	operrors "github.com/tombee/opwire/pkg/errors"
)

// Paginated calls a list operation one page at a time or as lazy page and
// item streams. Item is the element type of the page's items array.
type Paginated[In, Out, Item any] struct {
	rt *Runtime
	op *Operation[In, Out]
}

// MakePaginated returns a paginated client for op. Like MakeClient, the
// operation is compiled once on first use. An op without Pagination still
// answers Call; its streams yield a MissingBindingError.
func MakePaginated[In, Out, Item any](rt *Runtime, op *Operation[In, Out]) *Paginated[In, Out, Item] {
	return &Paginated[In, Out, Item]{rt: rt, op: op}
}

// Call fetches the single page selected by in.
func (p *Paginated[In, Out, Item]) Call(ctx context.Context, in In) (Out, error) {
	return MakeClient(p.rt, p.op)(ctx, in)
}

// Pages streams pages starting from in. Fetching stops as soon as the
// consumer stops pulling. A page error is yielded once and ends the stream.
func (p *Paginated[In, Out, Item]) Pages(ctx context.Context, in In) iter.Seq2[Out, error] {
	return func(yield func(Out, error) bool) {
		for page, err := range p.pages(ctx, in) {
			if !yield(page.out, err) || err != nil {
				return
			}
		}
	}
}

// Items streams the elements of every page's items array, in page order.
// A page whose items path is missing or not an array contributes nothing.
func (p *Paginated[In, Out, Item]) Items(ctx context.Context, in In) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		var zero Item
		c, err := p.op.load()
		if err != nil {
			yield(zero, err)
			return
		}
		for page, err := range p.pages(ctx, in) {
			if err != nil {
				yield(zero, err)
				return
			}
			raw, _ := c.itemsPath.LookupArray(page.doc)
			for _, r := range raw {
				item, err := decodeValue[Item](r)
				if !yield(item, err) || err != nil {
					return
				}
			}
		}
	}
}

// pageState is the paginator's state between pages.
type pageState struct {
	token string
	done  bool
	count int
}

// pages drives the state machine and yields each page with its document.
func (p *Paginated[In, Out, Item]) pages(ctx context.Context, in In) iter.Seq2[decoded[Out], error] {
	return func(yield func(decoded[Out], error) bool) {
		var zero decoded[Out]
		c, err := p.op.load()
		if err != nil {
			yield(zero, err)
			return
		}
		pg := p.op.Pagination
		if pg == nil || c.shape == nil {
			yield(zero, &operrors.MissingBindingError{
				Operation: p.op.Name,
				Reason:    "operation is not paginated",
			})
			return
		}

		var st pageState
		for !st.done {
			if pg.MaxPages > 0 && st.count >= pg.MaxPages {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			payload := in
			if st.token != "" {
				if payload, err = withToken(c, pg.InputToken, in, st.token); err != nil {
					yield(zero, &operrors.MissingBindingError{Operation: p.op.Name, Reason: err.Error()})
					return
				}
			}

			out, doc, err := call(ctx, p.rt, p.op.Name, c, payload)
			if err != nil {
				yield(zero, err)
				return
			}
			recordPage(p.op.Name)
			st.count++

			st.token, st.done = "", true
			if token, ok := nextToken(c, pg.InputToken, doc); ok {
				st.token, st.done = token, false
			}
			if !yield(decoded[Out]{out: out, doc: doc}, nil) {
				return
			}
		}
	}
}

// withToken returns a shallow copy of in with the token written to the
// field bound to name. The caller's value is never modified.
func withToken[In, Out any](c *compiled[In, Out], name string, in In, token string) (In, error) {
	shape := c.shape
	v := reflect.New(shape.Type).Elem()
	src := reflect.ValueOf(&in).Elem()
	if shape.Pointer {
		if !src.IsNil() {
			v.Set(src.Elem())
		}
	} else {
		v.Set(src)
	}

	if err := shape.SetByName(v, name, token); err != nil {
		return in, err
	}
	if shape.Pointer {
		return v.Addr().Interface().(In), nil
	}
	return v.Interface().(In), nil
}

// nextToken reads the "next" URL from doc and returns its name query
// parameter. A missing, empty or malformed URL means there is no next page.
func nextToken[In, Out any](c *compiled[In, Out], name string, doc any) (string, bool) {
	if c.nextPath == nil {
		return "", false
	}
	next, ok := c.nextPath.LookupString(doc)
	if !ok {
		return "", false
	}
	u, err := url.Parse(next)
	if err != nil {
		return "", false
	}
	token := u.Query().Get(name)
	return token, token != ""
}
