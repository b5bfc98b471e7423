package mcp

import (
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	ProcessChanCap      = 1000
	DefaultMessagePath  = "/message"
	DefaultMaxBodyBytes = 4 << 20
	jsonContentType     = "application/json"
)

type Config struct {
	// MessagePath is announced in the endpoint event of every stream.
	MessagePath  string
	PingInterval time.Duration
	QueueSize    int
	// MaxBodyBytes caps one POSTed message; larger bodies get 413.
	MaxBodyBytes int64
}

func (c Config) withDefaults() Config {
	if c.MessagePath == "" {
		c.MessagePath = DefaultMessagePath
	}
	if c.PingInterval == 0 {
		c.PingInterval = DefaultSSEPingInterval
	}
	if c.QueueSize <= 0 {
		c.QueueSize = ProcessChanCap
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// MCP binds a Dispatcher to HTTP. Streamed messages are queued on
// ProcessChan and answered by whoever drains it through Process; unary
// requests are answered inline.
type MCP struct {
	dispatcher *Dispatcher
	conf       Config

	sessions  map[string]*Session
	sessionMu sync.Mutex

	// closeMu guards sends on ProcessChan against Close.
	closeMu sync.RWMutex
	closed  bool

	ProcessChan chan ProcessCtx
}

type ProcessCtx struct {
	Session *Session
	Request *Request
}

func NewMCP(dispatcher *Dispatcher, conf Config) *MCP {
	conf = conf.withDefaults()
	return &MCP{
		dispatcher:  dispatcher,
		conf:        conf,
		sessions:    make(map[string]*Session),
		ProcessChan: make(chan ProcessCtx, conf.QueueSize),
	}
}

func (m *MCP) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// HandleSSE serves one event stream until the client disconnects.
func (m *MCP) HandleSSE(c *gin.Context) {
	id := uuid.New().String()
	session := NewSession(c, id)

	// Registered before the endpoint is announced, so a client that posts
	// right away always finds its session.
	m.sessionMu.Lock()
	m.sessions[id] = session
	m.sessionMu.Unlock()
	defer func() {
		m.sessionMu.Lock()
		delete(m.sessions, id)
		m.sessionMu.Unlock()
	}()

	if err := session.open(m.conf.MessagePath, m.dispatcher.Initialized()); err != nil {
		session.Close()
		log.Error().Err(err).Str("session", id).Msg("open event stream failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrInternalError.JsonRPC())
		return
	}
	log.Debug().Str("session", id).Str("remote", c.ClientIP()).Msg("event stream opened")

	go session.w.keepAlive(session.Context(), m.conf.PingInterval)

	c.Stream(func(w io.Writer) bool {
		<-session.Context().Done()
		session.Close()
		return false
	})
	session.Close()
	log.Debug().Str("session", id).Msg("event stream closed")
}

func (m *MCP) GetSession(id string) *Session {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	return m.sessions[id]
}

func (m *MCP) SessionCount() int {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	return len(m.sessions)
}

// HandleMessages accepts one message for an open stream. The reply, if any,
// goes out on the stream, never in this response.
func (m *MCP) HandleMessages(c *gin.Context) {
	// session_id (python sdk), sessionId (inspector) or a path segment
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = c.Query("sessionId")
	}
	if sessionID == "" {
		sessionID = c.Param("sessionid")
	}
	if sessionID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrInvalidSessionID.JsonRPC())
		return
	}

	session := m.GetSession(sessionID)
	if session == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrSessionNotFound.JsonRPC())
		return
	}

	body, err := m.readBody(c)
	if err != nil {
		m.abortRead(c, err, ErrInvalidRequest)
		return
	}

	req, err := Decode(body)
	if err != nil {
		resp := NewErrorResponse(NullID, ErrInvalidRequest)
		var derr *DecodeError
		if errors.As(err, &derr) {
			resp = derr.Response()
		}
		m.abortWithResponse(c, http.StatusBadRequest, resp)
		return
	}

	log.Debug().Str("session", sessionID).Str("method", req.Method).Str("id", req.ID.String()).Msg("message")
	if !m.enqueue(ProcessCtx{Session: session, Request: req}) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrTooManyRequests.JsonRPC())
		return
	}

	c.String(http.StatusAccepted, "Accepted")
}

func (m *MCP) enqueue(p ProcessCtx) bool {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return false
	}
	select {
	case m.ProcessChan <- p:
		return true
	default:
		return false
	}
}

// HandleUnary answers one request in the HTTP response itself.
// Notifications get 202 and no body.
func (m *MCP) HandleUnary(c *gin.Context) {
	body, err := m.readBody(c)
	if err != nil {
		m.abortRead(c, err, ErrParseError)
		return
	}

	out, err := m.dispatcher.Handle(c.Request.Context(), body)
	if err != nil {
		log.Error().Err(err).Msg("handle request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrInternalError.JsonRPC())
		return
	}
	if out == nil {
		c.Status(http.StatusAccepted)
		return
	}
	c.Data(http.StatusOK, jsonContentType, out)
}

// Process answers one queued message on its stream. A reply for a stream
// that has gone away is dropped.
func (m *MCP) Process(p ProcessCtx) {
	resp := m.dispatcher.Dispatch(p.Session.Context(), p.Request)
	if resp == nil {
		return
	}
	if err := p.Session.WriteResponse(resp); err != nil {
		if errors.Is(err, ErrStreamClosed) {
			log.Debug().Str("session", p.Session.ID()).Str("id", resp.ID.String()).Msg("stream closed, reply dropped")
			return
		}
		log.Error().Err(err).Str("session", p.Session.ID()).Msg("write reply failed")
		p.Session.WriteResponse(NewErrorResponse(resp.ID, ErrInternalError))
	}
}

func (m *MCP) readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, m.conf.MaxBodyBytes))
}

// abortRead answers a body that could not be read: 413 past the size
// limit, otherwise 400 with fallback.
func (m *MCP) abortRead(c *gin.Context, err error, fallback *Error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		log.Debug().Int64("limit", tooLarge.Limit).Str("path", c.Request.URL.Path).Msg("request body too large")
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrRequestTooLarge.JsonRPC())
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, fallback.JsonRPC())
}

func (m *MCP) abortWithResponse(c *gin.Context, code int, resp *Response) {
	b, err := Encode(resp)
	if err != nil {
		c.AbortWithStatusJSON(code, resp)
		return
	}
	c.Data(code, jsonContentType, b)
	c.Abort()
}

// Close stops accepting messages. Queued ones are still delivered to
// ProcessChan readers.
func (m *MCP) Close() {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.ProcessChan)
}
