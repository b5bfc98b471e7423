package mcp

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/sjzar/mcpd/internal/mcp"

// MethodKind is the closed set of methods the dispatcher answers.
type MethodKind int

const (
	KindUnknown MethodKind = iota
	KindInitialize
	KindToolsList
	KindToolsCall
	KindInitialized
	KindPing
)

func KindOf(method string) MethodKind {
	switch method {
	case MethodInitialize:
		return KindInitialize
	case MethodToolsList:
		return KindToolsList
	case MethodToolsCall:
		return KindToolsCall
	case NotificationInitialized:
		return KindInitialized
	case MethodPing:
		return KindPing
	}
	return KindUnknown
}

func (k MethodKind) String() string {
	switch k {
	case KindInitialize:
		return MethodInitialize
	case KindToolsList:
		return MethodToolsList
	case KindToolsCall:
		return MethodToolsCall
	case KindInitialized:
		return NotificationInitialized
	case KindPing:
		return MethodPing
	}
	return "unknown"
}

// Dispatcher answers decoded requests. It holds no per-request state; one
// instance serves every transport and every connection concurrently.
type Dispatcher struct {
	registry *Registry
	init     InitializeResponse
	tracer   trace.Tracer
}

type Option func(*Dispatcher)

func WithServerInfo(name, version string) Option {
	return func(d *Dispatcher) {
		d.init.ServerInfo = Implementation{Name: name, Version: version}
	}
}

func WithProtocolVersion(version string) Option {
	return func(d *Dispatcher) {
		if version != "" {
			d.init.ProtocolVersion = version
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// NewDispatcher freezes the registry; no tool can be added afterwards.
func NewDispatcher(registry *Registry, opts ...Option) *Dispatcher {
	registry.Freeze()
	d := &Dispatcher{
		registry: registry,
		init: InitializeResponse{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    DefaultCapabilities,
			ServerInfo:      Implementation{Name: "mcpd", Version: "0.0.1"},
		},
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

func (d *Dispatcher) ServerInfo() Implementation {
	return d.init.ServerInfo
}

// Initialized is the unsolicited notification a stream opens with.
func (d *Dispatcher) Initialized() Notification {
	return Notification{
		JsonRPC: JsonRPCVersion,
		Method:  NotificationInitialized,
		Params: InitializedParams{
			ServerInfo:   d.init.ServerInfo,
			Capabilities: d.init.Capabilities,
		},
	}
}

// Handle decodes one request body, dispatches it and encodes the reply.
// A nil slice with a nil error means the message was a notification.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) ([]byte, error) {
	resp := d.Process(ctx, body)
	if resp == nil {
		return nil, nil
	}
	b, err := Encode(resp)
	if err != nil {
		log.Error().Err(err).Str("id", resp.ID.String()).Msg("encode response failed")
		return Encode(NewErrorResponse(resp.ID, ErrInternalError))
	}
	return b, nil
}

// Process is Handle without the final encoding step.
func (d *Dispatcher) Process(ctx context.Context, body []byte) *Response {
	req, err := Decode(body)
	if err != nil {
		var derr *DecodeError
		if errors.As(err, &derr) {
			log.Debug().Err(err).Msg("reject request")
			return derr.Response()
		}
		return NewErrorResponse(NullID, ErrInvalidRequest)
	}
	return d.Dispatch(ctx, req)
}

// Dispatch answers one request. It returns nil for notifications.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	kind := KindOf(req.Method)
	ctx, span := d.tracer.Start(ctx, "mcp "+req.Method, trace.WithAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", req.Method),
		attribute.String("rpc.jsonrpc.request_id", req.ID.String()),
	))
	defer span.End()

	log.Debug().Str("method", req.Method).Str("id", req.ID.String()).Msg("dispatch")

	var resp *Response
	switch kind {
	case KindInitialize:
		resp = d.initialize(req)
	case KindToolsList:
		resp = NewResponse(req.ID, ToolsListResponse{Tools: d.registry.List()})
	case KindToolsCall:
		resp = d.toolsCall(ctx, span, req)
	case KindInitialized:
		return nil
	case KindPing:
		resp = NewResponse(req.ID, struct{}{})
	default:
		resp = NewErrorResponse(req.ID, Errorf(CodeMethodNotFound, "Method not found: %s", req.Method))
	}

	if resp.Error != nil {
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", resp.Error.Code))
		span.SetStatus(codes.Error, resp.Error.Message)
	}
	return resp
}

func (d *Dispatcher) initialize(req *Request) *Response {
	var initReq InitializeRequest
	if err := parseParams(req.Params, &initReq); err == nil {
		ev := log.Debug().Str("protocol", initReq.ProtocolVersion)
		if initReq.ClientInfo != nil {
			ev = ev.Str("client", initReq.ClientInfo.Name).Str("client_version", initReq.ClientInfo.Version)
		}
		ev.Msg("initialize")
		if initReq.ProtocolVersion != "" && initReq.ProtocolVersion != d.init.ProtocolVersion {
			log.Warn().
				Str("requested", initReq.ProtocolVersion).
				Str("served", d.init.ProtocolVersion).
				Msg("client requested a different protocol version")
		}
	}
	return NewResponse(req.ID, d.init)
}

func (d *Dispatcher) toolsCall(ctx context.Context, span trace.Span, req *Request) *Response {
	name := gjson.GetBytes(req.Params, "name")
	if !name.Exists() || name.Type != gjson.String || name.Str == "" {
		return NewErrorResponse(req.ID, Errorf(CodeInvalidParams, "Missing 'name' parameter"))
	}
	span.SetAttributes(attribute.String("mcp.tool", name.Str))

	entry, ok := d.registry.Resolve(name.Str)
	if !ok {
		return NewErrorResponse(req.ID, Errorf(CodeMethodNotFound, "Unknown tool: %s", name.Str))
	}

	args := NewArguments()
	if raw := gjson.GetBytes(req.Params, "arguments"); raw.Exists() && raw.Type != gjson.Null {
		if !raw.IsObject() {
			return NewErrorResponse(req.ID, Errorf(CodeInvalidParams, "Invalid 'arguments' parameter: expected object"))
		}
		if err := args.UnmarshalJSON([]byte(raw.Raw)); err != nil {
			return NewErrorResponse(req.ID, Errorf(CodeInvalidParams, "Invalid 'arguments' parameter: %v", err))
		}
	}

	args, err := Bind(entry.Tool, args)
	if err != nil {
		return NewErrorResponse(req.ID, Errorf(CodeInvalidParams, "%s", err.Error()))
	}

	text := d.call(ctx, entry, args)
	return NewResponse(req.ID, ToolsCallResponse{
		Content: []Content{TextContent(text)},
	})
}

// call runs the handler and renders its outcome. Handler errors and panics
// both end up as a {"success": false, ...} text block.
func (d *Dispatcher) call(ctx context.Context, entry *Entry, args *Arguments) (text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("tool", entry.Tool.Name).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("tool handler panicked")
			text = failureText(fmt.Sprintf("internal error: %v", r))
		}
	}()

	result, err := entry.Handler(ctx, args)
	if err != nil {
		log.Debug().Err(err).Str("tool", entry.Tool.Name).Msg("tool call failed")
		result = Failure(err.Error())
	}
	if result == nil {
		result = OK()
	}

	text, err = result.Text()
	if err != nil {
		log.Error().Err(err).Str("tool", entry.Tool.Name).Msg("render tool result failed")
		return failureText(fmt.Sprintf("internal error: %v", err))
	}
	return text
}

func failureText(message string) string {
	text, err := Failure(message).Text()
	if err != nil {
		return `{"success": false}`
	}
	return text
}
