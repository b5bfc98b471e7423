package mcp

import (
	"encoding/json"
	"errors"
	"reflect"
	"sort"

	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is a JSON object nested inside tool arguments. It keeps the key
// order the client sent.
type Object struct {
	m *orderedmap.OrderedMap[string, interface{}]
}

func NewObject() *Object {
	return &Object{m: orderedmap.New[string, interface{}]()}
}

func (o *Object) Get(key string) (interface{}, bool) {
	if o == nil || o.m == nil {
		return nil, false
	}
	return o.m.Get(key)
}

func (o *Object) Set(key string, value interface{}) *Object {
	o.m.Set(key, value)
	return o
}

func (o *Object) Len() int {
	if o == nil || o.m == nil {
		return 0
	}
	return o.m.Len()
}

// Keys returns the keys in order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, o.Len())
	if o.Len() == 0 {
		return keys
	}
	for pair := o.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Map returns a deep copy made of plain maps and slices.
func (o *Object) Map() map[string]interface{} {
	return plainMap(o.m)
}

func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil || o.m == nil {
		return []byte("{}"), nil
	}
	return marshalOrdered(o.m)
}

func (o *Object) UnmarshalJSON(b []byte) error {
	m, err := decodeObject(b)
	if err != nil {
		return err
	}
	o.m = m
	return nil
}

var errNotObject = errors.New("expected a JSON object")

// decodeObject reads one JSON object. Nested objects become *Object,
// numbers become json.Number holding the digits as sent.
func decodeObject(b []byte) (*orderedmap.OrderedMap[string, interface{}], error) {
	if !gjson.ValidBytes(b) {
		return nil, errors.New("invalid JSON")
	}
	r := gjson.ParseBytes(b)
	if !r.IsObject() {
		return nil, errNotObject
	}
	return decodeValue(r).(*Object).m, nil
}

func decodeValue(r gjson.Result) interface{} {
	switch {
	case r.IsObject():
		o := NewObject()
		r.ForEach(func(k, v gjson.Result) bool {
			o.m.Set(k.Str, decodeValue(v))
			return true
		})
		return o
	case r.IsArray():
		a := []interface{}{}
		r.ForEach(func(_, v gjson.Result) bool {
			a = append(a, decodeValue(v))
			return true
		})
		return a
	}
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.True:
		return true
	case gjson.False:
		return false
	}
	return nil
}

func plainMap(m *orderedmap.OrderedMap[string, interface{}]) map[string]interface{} {
	out := make(map[string]interface{})
	if m == nil {
		return out
	}
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = plain(pair.Value)
	}
	return out
}

func plain(v interface{}) interface{} {
	switch t := v.(type) {
	case *Object:
		return t.Map()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	}
	return v
}

// clone deep-copies composite values so a parameter default is never
// shared between calls. Go maps become *Object with sorted keys and
// slices become []interface{}.
func clone(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case *Object:
		o := NewObject()
		for _, k := range t.Keys() {
			e, _ := t.Get(k)
			o.m.Set(k, clone(e))
		}
		return o
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = clone(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		o := NewObject()
		for _, k := range keys {
			o.m.Set(k, clone(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()))
		}
		return o
	}
	return v
}
