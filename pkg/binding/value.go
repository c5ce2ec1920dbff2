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
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	operrors "github.com/tombee/opwire/pkg/errors"
)

// ISO8601 is the timestamp layout used for headers and JSON bodies:
// millisecond precision, always UTC with a Z suffix.
const ISO8601 = "2006-01-02T15:04:05.000Z"

var (
	timeType          = reflect.TypeOf(time.Time{})
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// FormatTime renders t in ISO8601.
func FormatTime(t time.Time) string {
	return t.UTC().Format(ISO8601)
}

// Absent reports whether v is undefined on the wire: invalid, or a nil
// pointer, interface, map or slice.
func Absent(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

// implementer returns v when its type implements iface, or v's address when
// only the pointer type does and v is addressable, as encoding/json does.
func implementer(v reflect.Value, iface reflect.Type) (reflect.Value, bool) {
	if v.Type().Implements(iface) {
		return v, true
	}
	if v.Kind() != reflect.Pointer && v.CanAddr() && reflect.PointerTo(v.Type()).Implements(iface) {
		return v.Addr(), true
	}
	return reflect.Value{}, false
}

// Scalar renders a path, query or header value. ok is false when the value
// is absent.
func Scalar(v reflect.Value) (s string, ok bool) {
	v, ok = indirect(v)
	if !ok {
		return "", false
	}

	if v.Type() == timeType {
		return FormatTime(v.Interface().(time.Time)), true
	}
	if m, ok := implementer(v, textMarshalerType); ok {
		text, err := m.Interface().(encoding.TextMarshaler).MarshalText()
		if err == nil {
			return string(text), true
		}
	}

	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), true
	default:
		return fmt.Sprint(v.Interface()), true
	}
}

// Values renders a query value. Slices and arrays become repeated values;
// an empty or nil slice is absent.
func Values(v reflect.Value) ([]string, bool) {
	v, ok := indirect(v)
	if !ok {
		return nil, false
	}

	if (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && v.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			if s, ok := Scalar(v.Index(i)); ok {
				out = append(out, s)
			}
		}
		return out, len(out) > 0
	}

	if v.Kind() == reflect.Slice {
		return []string{string(v.Bytes())}, true
	}

	s, ok := Scalar(v)
	if !ok {
		return nil, false
	}
	return []string{s}, true
}

// JSONValue converts v into a tree of map[string]any, []any, scalars and
// json.RawMessage. Nil fields and map entries are dropped as undefined, nil
// slice elements become null, and time.Time becomes an ISO8601 string.
// Types implementing json.Marshaler keep their own encoding.
func JSONValue(v reflect.Value) (any, bool, error) {
	if Absent(v) {
		return nil, false, nil
	}
	if v.Kind() == reflect.Interface {
		return JSONValue(v.Elem())
	}
	if v.Kind() == reflect.Pointer && v.Elem().Type() == timeType {
		v = v.Elem()
	}

	if v.Type() == timeType {
		return FormatTime(v.Interface().(time.Time)), true, nil
	}
	if m, ok := implementer(v, jsonMarshalerType); ok {
		raw, err := m.Interface().(json.Marshaler).MarshalJSON()
		if err != nil {
			return nil, false, err
		}
		return json.RawMessage(raw), true, nil
	}

	switch v.Kind() {
	case reflect.Pointer:
		return JSONValue(v.Elem())

	case reflect.Struct:
		obj := make(map[string]any)
		if err := structJSON(v, obj); err != nil {
			return nil, false, err
		}
		return obj, true, nil

	case reflect.Map:
		obj := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			val, ok, err := JSONValue(iter.Value())
			if err != nil {
				return nil, false, err
			}
			if !ok {
				continue
			}
			obj[mapKey(iter.Key())] = val
		}
		return obj, true, nil

	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Interface(), true, nil
		}
		arr := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			val, ok, err := JSONValue(v.Index(i))
			if err != nil {
				return nil, false, err
			}
			if ok {
				arr[i] = val
			}
		}
		return arr, true, nil

	default:
		return v.Interface(), true, nil
	}
}

func structJSON(v reflect.Value, obj map[string]any) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == "_" {
			continue
		}
		name, omit, skip := parseJSONTag(sf)
		if skip {
			continue
		}

		fv := v.Field(i)
		if sf.Anonymous && sf.Tag.Get("json") == "" {
			ev, ok := indirect(fv)
			if ok && ev.Kind() == reflect.Struct {
				if err := structJSON(ev, obj); err != nil {
					return err
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if omit && fv.IsZero() {
			continue
		}

		val, ok, err := JSONValue(fv)
		if err != nil {
			return err
		}
		if ok {
			obj[name] = val
		}
	}
	return nil
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if s, ok := Scalar(k); ok {
		return s
	}
	return fmt.Sprint(k.Interface())
}

// SetString assigns a page token to f inside the struct value v, converting
// it to the field's type. v must be addressable.
func (f Field) SetString(v reflect.Value, raw string) error {
	fv, err := v.FieldByIndexErr(f.Index)
	if err != nil {
		return operrors.Wrapf(err, "setting %s", f.GoName)
	}
	if fv.Kind() == reflect.Pointer {
		elem := reflect.New(fv.Type().Elem())
		if err := setScalar(elem.Elem(), raw); err != nil {
			return operrors.Wrapf(err, "setting %s", f.GoName)
		}
		fv.Set(elem)
		return nil
	}
	if err := setScalar(fv, raw); err != nil {
		return operrors.Wrapf(err, "setting %s", f.GoName)
	}
	return nil
}

func setScalar(v reflect.Value, raw string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	default:
		return fmt.Errorf("unsupported token field kind %s", v.Kind())
	}
	return nil
}

// Settable reports whether a page token can be written to fields of type t.
func Settable(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// SetByName writes a page token into the non-label field bound to the wire
// name. v must be an addressable value of the shape's struct type.
func (s *Shape) SetByName(v reflect.Value, name, raw string) error {
	f, ok := s.Lookup(name)
	if !ok {
		return fmt.Errorf("no field bound to %q", name)
	}
	return f.SetString(v, raw)
}
