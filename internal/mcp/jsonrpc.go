package mcp

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

const (
	JsonRPCVersion = "2.0"
)

// Documents: https://modelcontextprotocol.io/docs/concepts/transports

// ID is the opaque correlation token of a request. The raw JSON bytes are
// kept as received and written back untouched; an empty ID encodes as null.
type ID json.RawMessage

var NullID = ID("null")

func (id ID) MarshalJSON() ([]byte, error) {
	if len(id) == 0 {
		return []byte("null"), nil
	}
	return id, nil
}

func (id *ID) UnmarshalJSON(b []byte) error {
	*id = append((*id)[0:0], b...)
	return nil
}

func (id ID) IsNull() bool {
	return len(id) == 0 || bytes.Equal(id, NullID)
}

func (id ID) String() string {
	if len(id) == 0 {
		return "null"
	}
	return string(id)
}

// Request
//
//	{
//		jsonrpc: "2.0",
//		id: number | string,
//		method: string,
//		params?: object
//	}
type Request struct {
	JsonRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response
//
//	{
//		jsonrpc: "2.0",
//		id: number | string,
//		result?: object,
//		error?: {
//			code: number,
//			message: string,
//			data?: unknown
//		}
//	}
type Response struct {
	JsonRPC string      `json:"jsonrpc"`
	ID      ID          `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

func NewResponse(id ID, result interface{}) *Response {
	if result == nil {
		result = struct{}{}
	}
	return &Response{
		JsonRPC: JsonRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// Notifications
//
//	{
//		jsonrpc: "2.0",
//		method: string,
//		params?: object
//	}
type Notification struct {
	JsonRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Decode parses one JSON-RPC request envelope. A missing id is read as null
// and missing params as an empty object. Failures are *DecodeError.
func Decode(b []byte) (*Request, error) {
	if !gjson.ValidBytes(b) {
		return nil, &DecodeError{Kind: MalformedJSON}
	}
	root := gjson.ParseBytes(b)
	if !root.IsObject() {
		return nil, &DecodeError{Kind: NotObject}
	}

	req := &Request{JsonRPC: JsonRPCVersion, ID: NullID, Params: json.RawMessage("{}")}
	if v := root.Get("id"); v.Exists() {
		req.ID = ID(v.Raw)
	}

	if v := root.Get("jsonrpc"); v.Exists() && (v.Type != gjson.String || v.Str != JsonRPCVersion) {
		return nil, &DecodeError{Kind: BadVersion, ID: req.ID}
	}

	method := root.Get("method")
	if !method.Exists() || method.Type != gjson.String {
		return nil, &DecodeError{Kind: MissingMethod, ID: req.ID}
	}
	req.Method = method.Str

	if v := root.Get("params"); v.Exists() && v.Type != gjson.Null {
		req.Params = json.RawMessage(v.Raw)
	}

	return req, nil
}

// Encode serializes a response envelope. HTML escaping is off so that the
// id bytes go back exactly as they came in.
func Encode(resp *Response) ([]byte, error) {
	if resp.JsonRPC == "" {
		resp.JsonRPC = JsonRPCVersion
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// parseParams decodes request params into the target struct.
func parseParams(params json.RawMessage, out interface{}) error {
	if len(params) == 0 {
		return errors.New("params is nil")
	}
	return json.Unmarshal(params, out)
}
