package mcpd

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sjzar/mcpd/internal/auth"
	"github.com/sjzar/mcpd/internal/errors"
	imcp "github.com/sjzar/mcpd/internal/mcp"
	"github.com/sjzar/mcpd/internal/mcpd/conf"
)

func greet(r *imcp.Registry, _ *conf.ServerConfig) error {
	return r.Register(imcp.Tool{
		Name:        "greet",
		Description: "Say hello. Nothing else.",
		Params:      []imcp.Param{{Name: "name", Type: imcp.TypeString, Required: true}},
	}, func(_ context.Context, args *imcp.Arguments) (*imcp.Result, error) {
		return imcp.OK().Set("greeting", "hello "+args.String("name")), nil
	})
}

func TestCommandTools(t *testing.T) {
	m := New(greet)
	out, err := m.CommandTools(t.TempDir(), map[string]any{"tools.timezone": "Europe/Paris"}, false)
	require.NoError(t, err)
	assert.Contains(t, out, "echo")
	assert.Contains(t, out, "current_time")
	assert.Contains(t, out, "default Europe/Paris")
	assert.Contains(t, out, "Say hello.")
	assert.NotContains(t, out, "Nothing else")
	assert.Contains(t, out, "string, required")

	out, err = New(greet).CommandTools(t.TempDir(), nil, true)
	require.NoError(t, err)
	names := gjson.Get(out, "tools.#.name").Array()
	require.Len(t, names, 3)
	assert.Equal(t, "greet", names[2].String())
	assert.Equal(t, "name", gjson.Get(out, "tools.2.inputSchema.required.0").String())
}

func TestCommandToolsBadTimezone(t *testing.T) {
	_, err := New().CommandTools(t.TempDir(), map[string]any{"tools.timezone": "Mars/Base"}, false)
	assert.True(t, errors.Is(err, errors.ErrTypeConfig))
}

func TestCommandToken(t *testing.T) {
	m := New()
	_, err := m.CommandToken(t.TempDir(), nil, "agent-1", time.Hour)
	assert.True(t, errors.Is(err, errors.ErrTypeInvalidArg))

	cmdConf := map[string]any{"auth.mode": auth.ModeJWT, "auth.jwt_secret": "s3cret"}
	token, err := m.CommandToken(t.TempDir(), cmdConf, "agent-1", time.Hour)
	require.NoError(t, err)

	sub, err := auth.NewJWTVerifier([]byte("s3cret")).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", sub)
}

func TestCommandServerStopsOnCancel(t *testing.T) {
	level := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(level) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(greet).CommandServer(ctx, t.TempDir(), map[string]any{
			"http_addr": "127.0.0.1:0",
			"log_level": "warn",
		})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestCommandServerRejectsBadAuth(t *testing.T) {
	err := New().CommandServer(context.Background(), t.TempDir(), map[string]any{"auth.mode": "jwt"})
	assert.True(t, errors.Is(err, errors.ErrTypeInvalidArg))
}

func TestSetLogLevel(t *testing.T) {
	level := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(level) })

	setLogLevel("ERROR")
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
	setLogLevel("loud")
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
	setLogLevel("")
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}
