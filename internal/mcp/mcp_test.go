package mcp

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/client"
	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	*httptest.Server
	mcp   *MCP
	calls *counter
}

func newTestServer(t *testing.T, conf Config, workers int) *testServer {
	t.Helper()
	d, calls := newTestDispatcher(t)
	m := NewMCP(d, conf)

	router := gin.New()
	router.GET("/sse", m.HandleSSE)
	router.GET("/mcp", m.HandleSSE)
	router.POST("/message", m.HandleMessages)
	router.POST("/message/:sessionid", m.HandleMessages)
	router.POST("/mcp", m.HandleUnary)
	router.POST("/sse", m.HandleUnary)

	for i := 0; i < workers; i++ {
		go func() {
			for p := range m.ProcessChan {
				m.Process(p)
			}
		}()
	}

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		m.Close()
	})
	return &testServer{Server: srv, mcp: m, calls: calls}
}

type eventStream struct {
	r      *bufio.Reader
	cancel context.CancelFunc
}

func (s *testServer) openStream(t *testing.T, path string) *eventStream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"))

	// runs before the server cleanup, which waits for open streams
	t.Cleanup(func() {
		cancel()
		resp.Body.Close()
	})
	return &eventStream{r: bufio.NewReader(resp.Body), cancel: cancel}
}

// next returns the next event, skipping comment frames.
func (e *eventStream) next(t *testing.T) (event, data string) {
	t.Helper()
	var lines []string
	for {
		line, err := e.r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSuffix(line, "\n")
		switch {
		case line == "":
			if event != "" || len(lines) > 0 {
				return event, strings.Join(lines, "\n")
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			lines = append(lines, strings.TrimPrefix(line, "data: "))
		}
	}
}

func (s *testServer) post(t *testing.T, path, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(s.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestStreamOpens(t *testing.T) {
	s := newTestServer(t, Config{}, 1)
	stream := s.openStream(t, "/sse")

	event, data := stream.next(t)
	assert.Equal(t, "endpoint", event)
	assert.True(t, strings.HasPrefix(data, "/message?sessionId="))
	id := strings.TrimPrefix(data, "/message?sessionId=")
	assert.NotNil(t, s.mcp.GetSession(id))

	event, data = stream.next(t)
	assert.Equal(t, "message", event)
	assert.Equal(t, NotificationInitialized, gjson.Get(data, "method").String())
	assert.False(t, gjson.Get(data, "id").Exists())
	assert.Equal(t, "test-server", gjson.Get(data, "params.serverInfo.name").String())
	assert.True(t, gjson.Get(data, "params.capabilities.tools").Exists())
}

func TestStreamRoundTrip(t *testing.T) {
	s := newTestServer(t, Config{}, 2)
	stream := s.openStream(t, "/mcp")
	_, endpoint := stream.next(t)
	stream.next(t)

	code, body := s.post(t, endpoint, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"echo","arguments":{"x":1}}}`)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "Accepted", body)

	event, data := stream.next(t)
	assert.Equal(t, "message", event)
	assert.Equal(t,
		`{"jsonrpc":"2.0","id":7,"result":{"content":[{"type":"text","text":"{\"success\": true, \"echoed\": {\"x\": 1}}"}]}}`,
		data)

	// notifications are accepted and produce nothing on the stream
	code, _ = s.post(t, endpoint, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, code)

	id := strings.TrimPrefix(endpoint, "/message?sessionId=")
	code, _ = s.post(t, "/message?session_id="+id, `{"jsonrpc":"2.0","id":"p","method":"ping"}`)
	assert.Equal(t, http.StatusAccepted, code)
	_, data = stream.next(t)
	assert.Equal(t, `{"jsonrpc":"2.0","id":"p","result":{}}`, data)

	code, _ = s.post(t, "/message/"+id, `{"jsonrpc":"2.0","id":9,"method":"nope"}`)
	assert.Equal(t, http.StatusAccepted, code)
	_, data = stream.next(t)
	assert.Equal(t, int64(CodeMethodNotFound), gjson.Get(data, "error.code").Int())
	assert.Equal(t, int64(9), gjson.Get(data, "id").Int())
}

func TestMessageRejected(t *testing.T) {
	s := newTestServer(t, Config{}, 1)
	stream := s.openStream(t, "/sse")
	_, endpoint := stream.next(t)

	code, body := s.post(t, "/message", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, int64(400), gjson.Get(body, "error.code").Int())

	code, body = s.post(t, "/message?sessionId=unknown", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, int64(404), gjson.Get(body, "error.code").Int())

	code, body = s.post(t, endpoint, `{"jsonrpc":"2.0","id":1,`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`, body)

	code, body = s.post(t, endpoint, `{"jsonrpc":"2.0","id":4}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, int64(CodeInvalidRequest), gjson.Get(body, "error.code").Int())
	assert.Equal(t, int64(4), gjson.Get(body, "id").Int())

	assert.EqualValues(t, 0, s.calls.n.Load())
}

func TestMessageQueueFull(t *testing.T) {
	s := newTestServer(t, Config{QueueSize: 1}, 0)
	stream := s.openStream(t, "/sse")
	_, endpoint := stream.next(t)

	code, _ := s.post(t, endpoint, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusAccepted, code)
	code, body := s.post(t, endpoint, `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, int64(429), gjson.Get(body, "error.code").Int())
}

func TestStreamKeepAlive(t *testing.T) {
	s := newTestServer(t, Config{PingInterval: 20 * time.Millisecond}, 1)
	stream := s.openStream(t, "/sse")
	stream.next(t)
	stream.next(t)

	for {
		line, err := stream.r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, ": ping - ") {
			return
		}
	}
}

func TestSessionRemovedOnDisconnect(t *testing.T) {
	s := newTestServer(t, Config{}, 1)
	stream := s.openStream(t, "/sse")
	stream.next(t)
	require.Equal(t, 1, s.mcp.SessionCount())

	stream.cancel()
	assert.Eventually(t, func() bool { return s.mcp.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestUnary(t *testing.T) {
	s := newTestServer(t, Config{}, 0)

	code, body := s.post(t, "/mcp", `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"echo","arguments":{"x":1}}}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t,
		`{"jsonrpc":"2.0","id":7,"result":{"content":[{"type":"text","text":"{\"success\": true, \"echoed\": {\"x\": 1}}"}]}}`,
		body)

	code, body = s.post(t, "/sse", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Empty(t, body)

	code, body = s.post(t, "/mcp", `not json`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(CodeParseError), gjson.Get(body, "error.code").Int())

	code, body = s.post(t, "/mcp", `{"jsonrpc":"2.0","id":"x","method":"tools/call","params":{"name":"explode"}}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, gjson.Get(body, "result.content.0.text").String(), `"success": false`)
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t, Config{MaxBodyBytes: 64}, 1)
	stream := s.openStream(t, "/sse")
	_, endpoint := stream.next(t)
	big := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"pad":"` + strings.Repeat("x", 128) + `"}}}`

	code, body := s.post(t, "/mcp", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, int64(413), gjson.Get(body, "error.code").Int())

	code, body = s.post(t, endpoint, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, int64(413), gjson.Get(body, "error.code").Int())
	assert.EqualValues(t, 0, s.calls.n.Load())

	code, _ = s.post(t, "/mcp", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusOK, code)
}

func initializeClient(t *testing.T, c *client.Client) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	initReq := gomcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = ProtocolVersion
	initReq.Params.ClientInfo = gomcp.Implementation{Name: "conformance", Version: "0.0.1"}
	res, err := c.Initialize(ctx, initReq)
	require.NoError(t, err)
	assert.Equal(t, "test-server", res.ServerInfo.Name)
	assert.Equal(t, "1.2.3", res.ServerInfo.Version)
	assert.NotNil(t, res.Capabilities.Tools)
}

func exerciseClient(t *testing.T, c *client.Client) {
	t.Helper()
	ctx := context.Background()

	tools, err := c.ListTools(ctx, gomcp.ListToolsRequest{})
	require.NoError(t, err)
	require.Len(t, tools.Tools, 5)
	assert.Equal(t, "echo", tools.Tools[0].Name)
	assert.Equal(t, "add", tools.Tools[4].Name)
	assert.Equal(t, []string{"a"}, tools.Tools[4].InputSchema.Required)

	res, err := c.CallTool(ctx, gomcp.CallToolRequest{
		Params: gomcp.CallToolParams{
			Name:      "add",
			Arguments: map[string]any{"a": 2, "b": 3},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(gomcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, `{"success": true, "sum": 5}`, text.Text)

	_, err = c.CallTool(ctx, gomcp.CallToolRequest{
		Params: gomcp.CallToolParams{Name: "nope"},
	})
	assert.Error(t, err)

	require.NoError(t, c.Ping(ctx))
}

func TestConformanceStreamableHTTP(t *testing.T) {
	s := newTestServer(t, Config{}, 1)
	c, err := client.NewStreamableHttpClient(s.URL + "/mcp")
	require.NoError(t, err)
	defer c.Close()

	initializeClient(t, c)
	exerciseClient(t, c)
}

func TestConformanceSSE(t *testing.T) {
	s := newTestServer(t, Config{}, 2)
	c, err := client.NewSSEMCPClient(s.URL + "/sse")
	require.NoError(t, err)
	defer c.Close()

	initializeClient(t, c)
	exerciseClient(t, c)
}
