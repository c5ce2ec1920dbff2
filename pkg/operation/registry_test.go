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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	r := NewRegistry()
	Register(r, &Operation[getContactInput, contact]{Name: "crm.contacts.get"}, "Get a contact")
	RegisterPaginated[listContactsInput, listContactsOutput, contact](r, contactsOp(), "List contacts")
	Register(r, &Operation[updateFlagInput, map[string]any]{Name: "analytics.feature_flags.update"}, "Update a flag")
	return r
}

func TestRegistry_List(t *testing.T) {
	r := testRegistry()

	var names []string
	for _, e := range r.List() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"analytics.feature_flags.update", "crm.contacts.get", "crm.contacts.list"}, names)
	assert.Equal(t, []string{"analytics", "crm"}, r.Services())

	e, err := r.Get("crm.contacts.list")
	require.NoError(t, err)
	assert.True(t, e.Paginated)
	assert.Equal(t, "GET", e.Method)
	assert.Equal(t, "/crm/v3/objects/contacts", e.URI)
	assert.Equal(t, "crm", e.Service())

	_, err = r.Get("crm.nope")
	assert.ErrorContains(t, err, "not found")
}

func TestEntry_Call(t *testing.T) {
	fake := newFake(jsonReply(200, map[string]any{"id": "42"}))
	rt := newRuntime(t, fake)
	e, err := testRegistry().Get("crm.contacts.get")
	require.NoError(t, err)

	out, err := e.Call(context.Background(), rt, json.RawMessage(`{"id":"42","properties":["email"]}`))
	require.NoError(t, err)
	assert.Equal(t, contact{ID: "42"}, out)
	assert.Equal(t, "/crm/v3/objects/contacts/42", fake.request(t, 0).Path)

	_, err = e.Call(context.Background(), rt, json.RawMessage(`{"idd":"42"}`))
	assert.ErrorContains(t, err, "decoding input for crm.contacts.get")

	_, err = e.Call(context.Background(), rt, json.RawMessage(`{"id":42}`))
	require.Error(t, err)
	assert.ErrorContains(t, err, "decoding input for crm.contacts.get: ")
	var typeErr *json.UnmarshalTypeError
	assert.ErrorAs(t, err, &typeErr)
	assert.Equal(t, 1, fake.calls())
}

func TestEntry_Items(t *testing.T) {
	fake := newFake(
		contactsPage(contactsURL+"?after=c2", "1"),
		contactsPage("", "2"),
	)
	rt := newRuntime(t, fake)
	e, err := testRegistry().Get("crm.contacts.list")
	require.NoError(t, err)

	var got []any
	for item, err := range e.Items(context.Background(), rt, nil) {
		require.NoError(t, err)
		got = append(got, item)
	}
	assert.Equal(t, []any{contact{ID: "1"}, contact{ID: "2"}}, got)
}

func TestEntry_PagesOnSingleCall(t *testing.T) {
	rt := newRuntime(t, newFake(jsonReply(200, map[string]any{})))
	e, err := testRegistry().Get("crm.contacts.get")
	require.NoError(t, err)

	for _, err := range e.Pages(context.Background(), rt, nil) {
		assert.ErrorContains(t, err, "not paginated")
	}
}

func TestParseReference(t *testing.T) {
	service, op, err := ParseReference("crm.contacts.get")
	require.NoError(t, err)
	assert.Equal(t, "crm", service)
	assert.Equal(t, "contacts.get", op)

	for _, bad := range []string{"crm", ".get", "crm.", ""} {
		_, _, err := ParseReference(bad)
		assert.Error(t, err, bad)
	}
}
