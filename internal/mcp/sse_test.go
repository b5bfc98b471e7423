package mcp

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestKeepAliveStopsWithContext(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	w := NewSSEWriter(c)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.keepAlive(ctx, 5*time.Millisecond)

	assert.True(t, strings.HasPrefix(rec.Body.String(), ": ping - "))
}

func TestKeepAliveStopsWhenClosed(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	w := NewSSEWriter(c)
	w.Close()

	done := make(chan struct{})
	go func() {
		w.keepAlive(context.Background(), time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("keepAlive kept running on a closed writer")
	}
	assert.Empty(t, rec.Body.String())
	assert.ErrorIs(t, w.WriteMessage("x"), ErrStreamClosed)
}
