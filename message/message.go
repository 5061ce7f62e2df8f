// Copyright 2024 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package message initializes Go structs from generic JSON values with the
// help of struct tags.
//
// A Message is typically a struct pointer holding the expected fields of a
// configuration or a protocol object:
//
//	type Selection struct {
//	  Code   string   `json:"code" required:"true"`
//	  Filter string   `json:"filter" default:"item" choices:"item,all"`
//	  Values []string `json:"values"`
//	}
//
//	func (s *Selection) InitMessage(js any) error {
//	  return message.Init(s, js)
//	}
//
// Unlike plain encoding/json decoding, Init rejects unknown fields, reports
// all the missing required fields at once, and applies default values.
package message

import (
	"encoding/json"
	"io"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// Message is implemented by struct pointers which can be initialized from a
// generic JSON value, as decoded by encoding/json into an 'any'.
type Message interface {
	InitMessage(js any) error
}

var messageType = reflect.TypeOf((*Message)(nil)).Elem()

// field is the parsed set of struct tags of a single exported struct field.
type field struct {
	index    int
	name     string // JSON key
	required bool
	def      *string // default value, if any
	choices  []string
}

func parseField(i int, f reflect.StructField) (*field, bool) {
	if f.PkgPath != "" { // unexported
		return nil, false
	}
	res := &field{index: i, name: f.Name}
	if tag := f.Tag.Get("json"); tag != "" {
		name := strings.Split(tag, ",")[0]
		if name == "-" {
			return nil, false
		}
		if name != "" {
			res.name = name
		}
	}
	res.required = f.Tag.Get("required") == "true"
	if d, ok := f.Tag.Lookup("default"); ok {
		res.def = &d
	}
	if c, ok := f.Tag.Lookup("choices"); ok {
		res.choices = strings.Split(c, ",")
	}
	return res, true
}

// initMessage creates a new value of a pointer type t implementing Message and
// calls its InitMessage.
func initMessage(js any, t reflect.Type) (reflect.Value, error) {
	if t.Kind() != reflect.Ptr {
		return reflect.Value{}, errors.Reason(
			"%s implements Message but is not a pointer", t)
	}
	ptr := reflect.New(t.Elem())
	if err := ptr.Interface().(Message).InitMessage(js); err != nil {
		return reflect.Value{}, errors.Annotate(err, "failed to init %s", t.Elem().Name())
	}
	return ptr, nil
}

// convert a generic JSON value js to a value of type t. A nil js results in a
// zero value, except for Message structs which are initialized from an empty
// object, to pick up their defaults.
func convert(js any, t reflect.Type) (reflect.Value, error) {
	if t.Implements(messageType) {
		if js == nil {
			return reflect.Zero(t), nil
		}
		return initMessage(js, t)
	}
	if pt := reflect.PtrTo(t); pt.Implements(messageType) {
		if js == nil {
			js = map[string]any{}
		}
		ptr, err := initMessage(js, pt)
		if err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}
	if js == nil {
		return reflect.Zero(t), nil
	}
	switch t.Kind() {
	case reflect.Ptr:
		v, err := convert(js, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, nil
	case reflect.Bool:
		if b, ok := js.(bool); ok {
			return reflect.ValueOf(b), nil
		}
	case reflect.Int:
		if f, ok := js.(float64); ok {
			if f != float64(int(f)) {
				return reflect.Value{}, errors.Reason("not an integer: %v", f)
			}
			return reflect.ValueOf(int(f)), nil
		}
	case reflect.Float64:
		if f, ok := js.(float64); ok {
			return reflect.ValueOf(f), nil
		}
	case reflect.String:
		if s, ok := js.(string); ok {
			return reflect.ValueOf(s).Convert(t), nil
		}
	case reflect.Slice:
		l, ok := js.([]any)
		if !ok {
			break
		}
		res := reflect.MakeSlice(t, len(l), len(l))
		for i, e := range l {
			v, err := convert(e, t.Elem())
			if err != nil {
				return reflect.Value{}, errors.Annotate(err, "element [%d]", i)
			}
			res.Index(i).Set(v)
		}
		return res, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return reflect.Value{}, errors.Reason("unsupported map key type: %s", t.Key())
		}
		m, ok := js.(map[string]any)
		if !ok {
			break
		}
		res := reflect.MakeMapWithSize(t, len(m))
		for k, e := range m {
			v, err := convert(e, t.Elem())
			if err != nil {
				return reflect.Value{}, errors.Annotate(err, "map key '%s'", k)
			}
			res.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), v)
		}
		return res, nil
	default:
		return reflect.Value{}, errors.Reason("unsupported type: %s", t)
	}
	return reflect.Value{}, errors.Reason("expected %s, got %T: %v", t.Kind(), js, js)
}

// parseDefault converts the value of a `default:"..."` tag to type t.
func parseDefault(s string, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Ptr:
		v, err := parseDefault(s, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, errors.Annotate(err, "invalid bool: %s", s)
		}
		return reflect.ValueOf(b), nil
	case reflect.Int:
		i, err := strconv.Atoi(s)
		if err != nil {
			return reflect.Value{}, errors.Annotate(err, "invalid int: %s", s)
		}
		return reflect.ValueOf(i), nil
	case reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return reflect.Value{}, errors.Annotate(err, "invalid float64: %s", s)
		}
		return reflect.ValueOf(f), nil
	case reflect.String:
		return reflect.ValueOf(s).Convert(t), nil
	}
	return reflect.Value{}, errors.Reason("default values of type %s are not supported", t)
}

func (f *field) check(v reflect.Value) error {
	if f.choices == nil {
		return nil
	}
	if v.Kind() != reflect.String {
		return errors.Reason("choices apply only to strings, but %s is %s", f.name, v.Kind())
	}
	if !StringIn(v.String(), f.choices...) {
		return errors.Reason("value of %s is not one of [%s]: '%s'",
			f.name, strings.Join(f.choices, ", "), v.String())
	}
	return nil
}

// Init populates the struct pointed to by m from the generic JSON object js.
//
// Recognized struct tags:
//
//	`json:"name" required:"true" default:"value" choices:"one,two"`
//
// The json tag follows encoding/json conventions; options like ",omitempty"
// are accepted and ignored, so the same struct can be marshaled back to JSON.
// Default values are supported for bool, int, float64, string and pointers to
// those. The choices tag is supported for string fields only, and it is also
// checked against the default or zero value of an absent field.
func Init(m Message, js any) error {
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.Reason("Message must be a struct pointer, got %T", m)
	}
	obj, ok := js.(map[string]any)
	if !ok {
		return errors.Reason("expected a JSON object, got %T", js)
	}
	rv = rv.Elem()
	rt := rv.Type()

	seen := make(map[string]bool)
	var missing []string
	for i := 0; i < rt.NumField(); i++ {
		f, ok := parseField(i, rt.Field(i))
		if !ok {
			continue
		}
		var v reflect.Value
		var err error
		jv, present := obj[f.name]
		switch {
		case present:
			seen[f.name] = true
			v, err = convert(jv, rt.Field(i).Type)
		case f.required:
			missing = append(missing, f.name)
			continue
		case f.def != nil:
			v, err = parseDefault(*f.def, rt.Field(i).Type)
		default:
			v, err = convert(nil, rt.Field(i).Type)
		}
		if err != nil {
			return errors.Annotate(err, "field %s", f.name)
		}
		if err := f.check(v); err != nil {
			return err
		}
		rv.Field(i).Set(v)
	}
	if len(missing) > 0 {
		return errors.Reason("%s: missing required fields: %s",
			rt.Name(), strings.Join(missing, ", "))
	}
	var unknown []string
	for k := range obj {
		if !seen[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Reason("%s: unsupported fields: %s",
			rt.Name(), strings.Join(unknown, ", "))
	}
	return nil
}

// FromReader decodes a JSON object from r and initializes m with it.
func FromReader(m Message, r io.Reader) error {
	var js any
	if err := json.NewDecoder(r).Decode(&js); err != nil {
		return errors.Annotate(err, "failed to decode JSON")
	}
	return m.InitMessage(js)
}

// FromFile reads a JSON object from a file and initializes m with it.
func FromFile(m Message, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Annotate(err, "failed to open '%s'", path)
	}
	defer f.Close()
	if err := FromReader(m, f); err != nil {
		return errors.Annotate(err, "failed to read '%s'", path)
	}
	return nil
}

// StringIn checks that s equals one of the values.
func StringIn(s string, values ...string) bool {
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}
