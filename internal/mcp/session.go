package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
)

// Session is one open event stream. Replies to messages posted for the
// session are pushed back on it. Nothing outlives the stream.
type Session struct {
	id  string
	ctx context.Context
	w   *SSEWriter
}

func NewSession(c *gin.Context, id string) *Session {
	return &Session{
		id:  id,
		ctx: c.Request.Context(),
		w:   NewSSEWriter(c),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Context ends when the client goes away.
func (s *Session) Context() context.Context {
	return s.ctx
}

// open announces the message endpoint and the server, in that order, before
// anything else can be written to the stream.
func (s *Session) open(endpoint string, initialized Notification) error {
	b, err := json.Marshal(initialized)
	if err != nil {
		return err
	}
	s.w.open(
		[2]string{"endpoint", fmt.Sprintf("%s?sessionId=%s", endpoint, s.id)},
		[2]string{"message", string(b)},
	)
	return nil
}

func (s *Session) Write(p []byte) (n int, err error) {
	return s.w.Write(p)
}

func (s *Session) WriteResponse(resp *Response) error {
	b, err := Encode(resp)
	if err != nil {
		return err
	}
	_, err = s.Write(b)
	return err
}

func (s *Session) Close() {
	s.w.Close()
}
