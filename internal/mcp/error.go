package mcp

import (
	"fmt"
)

// enum ErrorCode {
// 	// Standard JSON-RPC error codes
// 	ParseError = -32700,
// 	InvalidRequest = -32600,
// 	MethodNotFound = -32601,
// 	InvalidParams = -32602,
// 	InternalError = -32603
// }
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

var (
	ErrParseError     = &Error{Code: CodeParseError, Message: "Parse error"}
	ErrInvalidRequest = &Error{Code: CodeInvalidRequest, Message: "Invalid Request"}
	ErrMethodNotFound = &Error{Code: CodeMethodNotFound, Message: "Method not found"}
	ErrInvalidParams  = &Error{Code: CodeInvalidParams, Message: "Invalid params"}
	ErrInternalError  = &Error{Code: CodeInternalError, Message: "Internal error"}

	ErrInvalidSessionID = &Error{Code: 400, Message: "Invalid session ID"}
	ErrSessionNotFound  = &Error{Code: 404, Message: "Could not find session"}
	ErrTooManyRequests  = &Error{Code: 429, Message: "Too many requests"}
	ErrRequestTooLarge  = &Error{Code: 413, Message: "Request body too large"}
	ErrUnauthorized     = &Error{Code: 401, Message: "Unauthorized"}
)

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

func (e *Error) JsonRPC() Response {
	return Response{
		JsonRPC: JsonRPCVersion,
		ID:      NullID,
		Error:   e,
	}
}

// Errorf builds a protocol error with a formatted message.
func Errorf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewErrorResponse(id ID, err *Error) *Response {
	return &Response{
		JsonRPC: JsonRPCVersion,
		ID:      id,
		Error:   err,
	}
}

type DecodeErrorKind int

const (
	MalformedJSON DecodeErrorKind = iota
	NotObject
	MissingMethod
	BadVersion
)

func (k DecodeErrorKind) String() string {
	switch k {
	case MalformedJSON:
		return "malformed json"
	case NotObject:
		return "not an object"
	case MissingMethod:
		return "missing method"
	case BadVersion:
		return "bad jsonrpc version"
	}
	return "unknown"
}

// DecodeError is returned by Decode. ID is set when the envelope was
// readable far enough to find one.
type DecodeError struct {
	Kind DecodeErrorKind
	ID   ID
}

func (e *DecodeError) Error() string {
	return "decode request: " + e.Kind.String()
}

// RPCError maps the decode failure onto its JSON-RPC error.
func (e *DecodeError) RPCError() *Error {
	switch e.Kind {
	case MalformedJSON:
		return ErrParseError
	case MissingMethod:
		return Errorf(CodeInvalidRequest, "Invalid Request: missing method")
	case BadVersion:
		return Errorf(CodeInvalidRequest, "Invalid Request: jsonrpc must be %q", JsonRPCVersion)
	default:
		return ErrInvalidRequest
	}
}

// Response builds the error envelope for the failed request.
func (e *DecodeError) Response() *Response {
	id := e.ID
	if len(id) == 0 {
		id = NullID
	}
	return NewErrorResponse(id, e.RPCError())
}
