package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
)

// Error types. They name what failed, the HTTP status says how to answer.
const (
	ErrTypeConfig     = "config"
	ErrTypeHTTP       = "http"
	ErrTypeInvalidArg = "invalid_argument"
	ErrTypeAuth       = "authentication"
	ErrTypeNotFound   = "not_found"
	ErrTypeInternal   = "internal"

	typeUnknown = "unknown"
)

// AppError is the error body of every non-protocol HTTP response and the
// error the server lifecycle returns. JSON-RPC failures use mcp.Error.
type AppError struct {
	Type      string   `json:"type"`
	Message   string   `json:"message"`
	Cause     error    `json:"-"`
	Code      int      `json:"-"` // HTTP status
	Stack     []string `json:"-"`
	RequestID string   `json:"request_id,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Type + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithStack records where the error was built.
func (e *AppError) WithStack() *AppError {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	e.Stack = e.Stack[:0]
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			e.Stack = append(e.Stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			return e
		}
	}
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

func New(errType, message string, cause error, code int) *AppError {
	return &AppError{Type: errType, Message: message, Cause: cause, Code: code}
}

// Wrap adds context to err. When err already is an AppError its type and
// status win over the given ones, so a config error stays a config error
// however many layers add a message.
func Wrap(err error, errType, message string, code int) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := as(err); ok {
		errType, code = appErr.Type, appErr.Code
	}
	return New(errType, message, err, code)
}

func as(err error) (*AppError, bool) {
	var appErr *AppError
	if err != nil && errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err, or an error it wraps, is an AppError of errType.
func Is(err error, errType string) bool {
	appErr, ok := as(err)
	return ok && appErr.Type == errType
}

func GetType(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := as(err); ok {
		return appErr.Type
	}
	return typeUnknown
}

// GetCode returns the HTTP status to answer err with.
func GetCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if appErr, ok := as(err); ok {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

func ErrInvalidArg(param string) *AppError {
	return New(ErrTypeInvalidArg, "invalid arg: "+param, nil, http.StatusBadRequest).WithStack()
}

func HTTP(message string, cause error) *AppError {
	return New(ErrTypeHTTP, message, cause, http.StatusInternalServerError).WithStack()
}

func Config(message string, cause error) *AppError {
	return New(ErrTypeConfig, message, cause, http.StatusInternalServerError).WithStack()
}

func NotFound(resource string, cause error) *AppError {
	return New(ErrTypeNotFound, "resource not found: "+resource, cause, http.StatusNotFound).WithStack()
}

func Unauthorized(message string, cause error) *AppError {
	return New(ErrTypeAuth, message, cause, http.StatusUnauthorized).WithStack()
}

func Internal(message string, cause error) *AppError {
	return New(ErrTypeInternal, message, cause, http.StatusInternalServerError).WithStack()
}

// Err writes err as the JSON response, tagged with the request id.
func Err(c *gin.Context, err error) {
	requestID := c.GetString(RequestIDKey)

	appErr, ok := as(err)
	if !ok {
		appErr = New(typeUnknown, err.Error(), err, http.StatusInternalServerError)
	}
	if requestID != "" {
		appErr.RequestID = requestID
	}
	c.JSON(appErr.Code, appErr)
}
