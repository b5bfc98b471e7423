package mcp

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// BindError reports an argument that does not satisfy the tool's parameter
// list. It always surfaces as -32602.
type BindError struct {
	Param   string
	Missing bool
	Reason  string
}

func (e *BindError) Error() string {
	if e.Missing {
		return fmt.Sprintf("Missing '%s' parameter", e.Param)
	}
	return fmt.Sprintf("Invalid '%s' parameter: %s", e.Param, e.Reason)
}

// Bind checks args against the tool's parameters: required keys must be
// present, values are coerced to the declared type, declared defaults fill
// in absent optional keys. Undeclared keys are left as sent. Defaults are
// deep-copied, so a handler may modify what it receives.
func Bind(tool Tool, args *Arguments) (*Arguments, error) {
	if args == nil {
		args = NewArguments()
	}
	for _, p := range tool.Params {
		v, ok := args.Get(p.Name)
		if ok && v == nil {
			args.m.Delete(p.Name)
			ok = false
		}
		if !ok {
			if p.Required {
				return nil, &BindError{Param: p.Name, Missing: true}
			}
			if p.Default == nil {
				continue
			}
			v = clone(p.Default)
		}
		cv, err := coerce(p.Type, v)
		if err != nil {
			return nil, &BindError{Param: p.Name, Reason: err.Error()}
		}
		if len(p.Enum) > 0 && !inEnum(cv, p.Enum) {
			return nil, &BindError{Param: p.Name, Reason: fmt.Sprintf("%v is not one of %v", cv, p.Enum)}
		}
		args.Set(p.Name, cv)
	}
	return args, nil
}

func coerce(t ParamType, v interface{}) (interface{}, error) {
	switch t {
	case TypeString:
		switch v.(type) {
		case *Object, map[string]interface{}, []interface{}:
			return nil, fmt.Errorf("expected string")
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("expected string")
		}
		return s, nil
	case TypeInteger:
		return toInteger(v)
	case TypeNumber:
		switch n := v.(type) {
		case bool:
			return nil, fmt.Errorf("expected number")
		case json.Number:
			v = n.String()
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("expected number")
		}
		return f, nil
	case TypeBoolean:
		if n, ok := v.(json.Number); ok {
			v = n.String()
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, fmt.Errorf("expected boolean")
		}
		return b, nil
	case TypeObject:
		switch o := v.(type) {
		case *Object:
			return o, nil
		case map[string]interface{}:
			return clone(o), nil
		}
		return nil, fmt.Errorf("expected object")
	case TypeArray:
		a, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("expected array")
		}
		return a, nil
	}
	return v, nil
}

// toInteger accepts integral JSON numbers and base-10 strings that fit in
// an int64. Anything else is rejected rather than rounded or wrapped.
func toInteger(v interface{}) (int64, error) {
	switch n := v.(type) {
	case bool:
		return 0, fmt.Errorf("expected integer")
	case json.Number:
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %s", n)
		}
		return floatToInteger(f, n.String())
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer")
		}
		return i, nil
	case float64:
		return floatToInteger(n, strconv.FormatFloat(n, 'g', -1, 64))
	case float32:
		return floatToInteger(float64(n), strconv.FormatFloat(float64(n), 'g', -1, 32))
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, fmt.Errorf("expected integer, got %d out of range", n)
		}
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("expected integer, got %d out of range", n)
		}
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return 0, fmt.Errorf("expected integer")
	}
	return i, nil
}

func floatToInteger(f float64, text string) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("expected integer, got %s", text)
	}
	if f < -(1<<63) || f >= 1<<63 {
		return 0, fmt.Errorf("expected integer, got %s out of range", text)
	}
	return int64(f), nil
}

func inEnum(v interface{}, enum []interface{}) bool {
	s := cast.ToString(v)
	for _, e := range enum {
		if cast.ToString(e) == s {
			return true
		}
	}
	return false
}
