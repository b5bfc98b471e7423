package mcp

import (
	"bytes"
	"encoding/json"

	"github.com/mitchellh/mapstructure"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Result is the mapping a tool handler returns. Keys keep insertion order so
// the rendered text reads the way the handler built it.
type Result struct {
	m *orderedmap.OrderedMap[string, interface{}]
}

// NewResult starts a result with the given success flag.
func NewResult(success bool) *Result {
	r := &Result{m: orderedmap.New[string, interface{}]()}
	r.m.Set("success", success)
	return r
}

// OK is NewResult(true).
func OK() *Result {
	return NewResult(true)
}

// Failure is the result a failed tool call is folded into.
func Failure(message string) *Result {
	return NewResult(false).Set("error", message)
}

// Set adds or replaces a key and returns the result for chaining.
func (r *Result) Set(key string, value interface{}) *Result {
	r.m.Set(key, value)
	return r
}

func (r *Result) Get(key string) (interface{}, bool) {
	return r.m.Get(key)
}

func (r *Result) Len() int {
	return r.m.Len()
}

func (r *Result) MarshalJSON() ([]byte, error) {
	return marshalOrdered(r.m)
}

func (r *Result) UnmarshalJSON(b []byte) error {
	m, err := decodeObject(b)
	if err != nil {
		return err
	}
	r.m = m
	return nil
}

// Text renders the result as the text of a content block, in the layout
// clients of the Python servers already parse: ", " and ": " separators,
// keys in insertion order.
func (r *Result) Text() (string, error) {
	b, err := marshalNoEscape(r)
	if err != nil {
		return "", err
	}
	return string(spaceSeparators(b)), nil
}

// Arguments are the tools/call arguments after binding against the tool's
// parameter list. Keys keep the order the client sent them in, defaults are
// appended after. Undeclared values are kept as decoded: nested objects as
// *Object, numbers as json.Number.
type Arguments struct {
	m *orderedmap.OrderedMap[string, interface{}]
}

func NewArguments() *Arguments {
	return &Arguments{m: orderedmap.New[string, interface{}]()}
}

func (a *Arguments) Get(key string) (interface{}, bool) {
	if a == nil || a.m == nil {
		return nil, false
	}
	return a.m.Get(key)
}

func (a *Arguments) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

func (a *Arguments) Set(key string, value interface{}) {
	a.m.Set(key, value)
}

func (a *Arguments) Len() int {
	if a == nil || a.m == nil {
		return 0
	}
	return a.m.Len()
}

// String returns the value of a string argument, or "".
func (a *Arguments) String(key string) string {
	v, _ := a.Get(key)
	s, _ := v.(string)
	return s
}

// Int returns the value of an integer argument, or 0.
func (a *Arguments) Int(key string) int64 {
	v, _ := a.Get(key)
	i, _ := v.(int64)
	return i
}

// Float returns the value of a number argument, or 0.
func (a *Arguments) Float(key string) float64 {
	v, _ := a.Get(key)
	f, _ := v.(float64)
	return f
}

// Bool returns the value of a boolean argument, or false.
func (a *Arguments) Bool(key string) bool {
	v, _ := a.Get(key)
	b, _ := v.(bool)
	return b
}

// Map returns a deep copy of the arguments made of plain maps and slices.
func (a *Arguments) Map() map[string]interface{} {
	if a == nil {
		return map[string]interface{}{}
	}
	return plainMap(a.m)
}

// Bind decodes the arguments into a struct using its json tags.
func (a *Arguments) Bind(out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(a.Map())
}

func (a *Arguments) MarshalJSON() ([]byte, error) {
	if a == nil || a.m == nil {
		return []byte("{}"), nil
	}
	return marshalOrdered(a.m)
}

func (a *Arguments) UnmarshalJSON(b []byte) error {
	m, err := decodeObject(b)
	if err != nil {
		return err
	}
	a.m = m
	return nil
}

// marshalOrdered writes the map in insertion order without HTML escaping.
func marshalOrdered(m *orderedmap.OrderedMap[string, interface{}]) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(pair.Key)
		if err != nil {
			return nil, err
		}
		v, err := marshalNoEscape(pair.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// spaceSeparators turns compact JSON into the default json.dumps layout by
// adding a space after every ',' and ':' that sits outside a string.
func spaceSeparators(compact []byte) []byte {
	out := make([]byte, 0, len(compact)+len(compact)/4)
	inString, escaped := false, false
	for _, c := range compact {
		out = append(out, c)
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case ',', ':':
			out = append(out, ' ')
		}
	}
	return out
}
