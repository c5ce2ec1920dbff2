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

package jq

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestPath_Lookup(t *testing.T) {
	doc := decode(t, `{
		"results": [{"id": 1}],
		"next": "https://app.example.com/api/projects/1/dashboards/?offset=20",
		"paging": {"next": {"after": "NTI1Cg", "link": "https://api.example.com/crm/v3/objects/contacts?after=NTI1Cg"}},
		"weird key": {"a-b": true},
		"empty": "",
		"nothing": null
	}`)

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"next", "https://app.example.com/api/projects/1/dashboards/?offset=20", true},
		{"paging.next.link", "https://api.example.com/crm/v3/objects/contacts?after=NTI1Cg", true},
		{"weird key.a-b", true, true},
		{"empty", "", true},
		{"nothing", nil, false},
		{"missing", nil, false},
		{"paging.previous.link", nil, false},
		{"next.link", nil, false},
		{"results.id", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := CompilePath(tt.path)
			require.NoError(t, err)
			got, ok := p.Lookup(doc)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPath_LookupString(t *testing.T) {
	doc := decode(t, `{"a": "x", "b": "", "c": 5}`)

	s, ok := MustCompilePath("a").LookupString(doc)
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = MustCompilePath("b").LookupString(doc)
	assert.False(t, ok)

	_, ok = MustCompilePath("c").LookupString(doc)
	assert.False(t, ok)
}

func TestPath_LookupArray(t *testing.T) {
	doc := decode(t, `{"results": [1, 2], "data": {"items": "nope"}}`)

	arr, ok := MustCompilePath("results").LookupArray(doc)
	assert.True(t, ok)
	assert.Len(t, arr, 2)

	_, ok = MustCompilePath("data.items").LookupArray(doc)
	assert.False(t, ok)

	_, ok = MustCompilePath("results").LookupArray(decode(t, `[1, 2]`))
	assert.False(t, ok)
}

func TestCompilePath_Invalid(t *testing.T) {
	for _, p := range []string{"", ".", "a..b", "a."} {
		_, err := CompilePath(p)
		assert.Error(t, err, p)
	}
	assert.Panics(t, func() { MustCompilePath("") })
}
