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

// Template is a parsed URI template supporting {name} and {name+}.
type Template struct {
	parts []templatePart
}

type templatePart struct {
	literal string
	name    string
	greedy  bool
}

// ParseTemplate parses uri. Any literal query string ("?a=b") is dropped;
// the builder owns the query.
func ParseTemplate(uri string) (*Template, error) {
	path, _, _ := strings.Cut(uri, "?")

	t := &Template{}
	for len(path) > 0 {
		open := strings.IndexByte(path, '{')
		if open < 0 {
			if strings.IndexByte(path, '}') >= 0 {
				return nil, fmt.Errorf("uri template %q has unbalanced braces", uri)
			}
			t.parts = append(t.parts, templatePart{literal: path})
			break
		}
		if open > 0 {
			lit := path[:open]
			if strings.IndexByte(lit, '}') >= 0 {
				return nil, fmt.Errorf("uri template %q has unbalanced braces", uri)
			}
			t.parts = append(t.parts, templatePart{literal: lit})
		}

		end := strings.IndexByte(path[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("uri template %q has unbalanced braces", uri)
		}
		name := path[open+1 : open+end]
		greedy := strings.HasSuffix(name, "+")
		name = strings.TrimSuffix(name, "+")
		if name == "" || strings.ContainsAny(name, "{/") {
			return nil, fmt.Errorf("uri template %q has an invalid placeholder", uri)
		}
		t.parts = append(t.parts, templatePart{name: name, greedy: greedy})
		path = path[open+end+1:]
	}
	return t, nil
}

// Names returns placeholder names in order of first appearance.
func (t *Template) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range t.parts {
		if p.name != "" && !seen[p.name] {
			seen[p.name] = true
			names = append(names, p.name)
		}
	}
	return names
}

// Expand substitutes every occurrence of each placeholder found in values.
// {name} values are escaped as a single segment, so "/" becomes %2F;
// {name+} values are inserted verbatim. Placeholders without a value are
// left untouched.
func (t *Template) Expand(values map[string]string) string {
	var b strings.Builder
	for _, p := range t.parts {
		if p.name == "" {
			b.WriteString(p.literal)
			continue
		}
		v, ok := values[p.name]
		if !ok {
			b.WriteByte('{')
			b.WriteString(p.name)
			if p.greedy {
				b.WriteByte('+')
			}
			b.WriteByte('}')
			continue
		}
		if p.greedy {
			b.WriteString(v)
		} else {
			b.WriteString(EscapeSegment(v))
		}
	}
	return b.String()
}

// EscapeSegment percent-encodes every byte except the unreserved set
// A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func EscapeSegment(s string) string {
	const hex = "0123456789ABCDEF"

	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	buf := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			buf = append(buf, c)
			continue
		}
		buf = append(buf, '%', hex[c>>4], hex[c&15])
	}
	return string(buf)
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
