package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	DefaultSSEPingInterval = 30 * time.Second
	SSEContentType         = "text/event-stream; charset=utf-8"
)

var ErrStreamClosed = errors.New("event stream closed")

// SSEWriter frames writes as server-sent events on one open response.
// All writes, keep-alive pings included, are serialized; once closed every
// write fails with ErrStreamClosed.
type SSEWriter struct {
	c      *gin.Context
	mu     sync.Mutex
	closed bool
}

func NewSSEWriter(c *gin.Context) *SSEWriter {
	return &SSEWriter{c: c}
}

// open writes the stream headers followed by the given events, without
// letting any other write in between.
func (w *SSEWriter) open(events ...[2]string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	h := w.c.Writer.Header()
	h.Set("Content-Type", SSEContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.c.Writer.WriteHeader(200)

	for _, e := range events {
		w.writeEvent(e[0], e[1])
	}
	w.c.Writer.Flush()
}

func (w *SSEWriter) Write(p []byte) (n int, err error) {
	if err := w.WriteMessage(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *SSEWriter) WriteMessage(data string) error {
	return w.WriteEvent("message", data)
}

func (w *SSEWriter) WriteEvent(event string, data string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrStreamClosed
	}
	w.writeEvent(event, data)
	w.c.Writer.Flush()
	return nil
}

// writeEvent
// event: message
// data: {"jsonrpc":"2.0","id":3,"result":{}}
func (w *SSEWriter) writeEvent(event string, data string) {
	w.c.Writer.WriteString(fmt.Sprintf("event: %s\n", event))
	for _, line := range strings.Split(data, "\n") {
		w.c.Writer.WriteString(fmt.Sprintf("data: %s\n", line))
	}
	w.c.Writer.WriteString("\n")
}

// keepAlive writes comment frames until ctx ends or the writer is closed.
// Clients ignore them; they only keep proxies from timing the stream out.
// ctx must be taken from the request before the goroutine starts, since the
// gin context is recycled once the handler returns.
func (w *SSEWriter) keepAlive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	done := ctx.Done()
	for {
		select {
		case <-ticker.C:
			if err := w.writePing(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// writePing
// : ping - 2025-03-16 06:41:51.280928+00:00
func (w *SSEWriter) writePing() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrStreamClosed
	}
	w.c.Writer.WriteString(fmt.Sprintf(": ping - %s\n\n", time.Now().Format("2006-01-02 15:04:05.999999-07:00")))
	w.c.Writer.Flush()
	return nil
}

func (w *SSEWriter) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
