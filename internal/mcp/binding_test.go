package mcp

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var searchTool = Tool{
	Name: "search",
	Params: []Param{
		{Name: "query", Type: TypeString, Required: true},
		{Name: "limit", Type: TypeInteger, Default: 10},
		{Name: "exact", Type: TypeBoolean},
		{Name: "order", Type: TypeString, Enum: []interface{}{"asc", "desc"}, Default: "asc"},
	},
}

func argsOf(t *testing.T, raw string) *Arguments {
	t.Helper()
	args := NewArguments()
	require.NoError(t, args.UnmarshalJSON([]byte(raw)))
	return args
}

func TestBindDefaultsAndCoercion(t *testing.T) {
	args, err := Bind(searchTool, argsOf(t, `{"query":"go","limit":"5","exact":"true"}`))
	require.NoError(t, err)

	assert.Equal(t, "go", args.String("query"))
	assert.Equal(t, int64(5), args.Int("limit"))
	assert.True(t, args.Bool("exact"))
	assert.Equal(t, "asc", args.String("order"))
}

func TestBindFillsDefault(t *testing.T) {
	args, err := Bind(searchTool, argsOf(t, `{"query":"go"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(10), args.Int("limit"))
	assert.False(t, args.Has("exact"))
}

func TestBindKeepsUndeclared(t *testing.T) {
	args, err := Bind(searchTool, argsOf(t, `{"query":"go","extra":[1,2]}`))
	require.NoError(t, err)
	v, ok := args.Get("extra")
	require.True(t, ok)
	assert.Equal(t, []interface{}{json.Number("1"), json.Number("2")}, v)
}

func TestBindErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		msg  string
	}{
		{"missing required", `{}`, "Missing 'query' parameter"},
		{"null required", `{"query":null}`, "Missing 'query' parameter"},
		{"fractional integer", `{"query":"go","limit":1.5}`, "Invalid 'limit' parameter: expected integer, got 1.5"},
		{"non numeric integer", `{"query":"go","limit":"many"}`, "Invalid 'limit' parameter: expected integer"},
		{"bool for integer", `{"query":"go","limit":true}`, "Invalid 'limit' parameter: expected integer"},
		{"hex string integer", `{"query":"go","limit":"0x10"}`, "Invalid 'limit' parameter: expected integer"},
		{"integer above int64", `{"query":"go","limit":1e20}`, "Invalid 'limit' parameter: expected integer, got 1e20 out of range"},
		{"integer just above int64", `{"query":"go","limit":9223372036854775808}`, "Invalid 'limit' parameter: expected integer, got 9223372036854775808 out of range"},
		{"object for string", `{"query":{"a":1}}`, "Invalid 'query' parameter: expected string"},
		{"not in enum", `{"query":"go","order":"random"}`, "Invalid 'order' parameter: random is not one of [asc desc]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(searchTool, argsOf(t, tt.raw))
			require.Error(t, err)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestArgumentsBindStruct(t *testing.T) {
	args, err := Bind(searchTool, argsOf(t, `{"query":"go","limit":3}`))
	require.NoError(t, err)

	var in struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
		Order string `json:"order"`
	}
	require.NoError(t, args.Bind(&in))
	assert.Equal(t, "go", in.Query)
	assert.Equal(t, 3, in.Limit)
	assert.Equal(t, "asc", in.Order)
}

func TestBindIntegerForms(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{`"010"`, 10},
		{`" 7 "`, 7},
		{`1e2`, 100},
		{`4.0`, 4},
		{`9223372036854775807`, math.MaxInt64},
		{`-9223372036854775808`, math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			args, err := Bind(searchTool, argsOf(t, `{"query":"go","limit":`+tt.raw+`}`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, args.Int("limit"))
		})
	}

	_, err := toInteger(float64(1 << 63))
	assert.Error(t, err)
	_, err = toInteger(uint64(math.MaxUint64))
	assert.Error(t, err)
}

func TestBindDefaultsAreCopied(t *testing.T) {
	tool := Tool{
		Name: "tags",
		Params: []Param{
			{Name: "tags", Type: TypeArray, Default: []string{"a", "b"}},
			{Name: "opts", Type: TypeObject, Default: map[string]interface{}{"z": 1, "a": []interface{}{"x"}}},
		},
	}

	first, err := Bind(tool, nil)
	require.NoError(t, err)
	tags, _ := first.Get("tags")
	tags.([]interface{})[0] = "changed"
	opts, _ := first.Get("opts")
	opts.(*Object).Set("z", 2)

	second, err := Bind(tool, nil)
	require.NoError(t, err)
	tags, _ = second.Get("tags")
	assert.Equal(t, []interface{}{"a", "b"}, tags)
	opts, _ = second.Get("opts")
	assert.Equal(t, []string{"a", "z"}, opts.(*Object).Keys())
	z, _ := opts.(*Object).Get("z")
	assert.Equal(t, 1, z)
	assert.Equal(t, []string{"a", "b"}, tool.Params[0].Default)
}

func TestArgumentsMapIsPlain(t *testing.T) {
	args := argsOf(t, `{"o":{"b":[{"c":1}]}}`)
	assert.Equal(t, map[string]interface{}{
		"o": map[string]interface{}{
			"b": []interface{}{map[string]interface{}{"c": json.Number("1")}},
		},
	}, args.Map())
}
