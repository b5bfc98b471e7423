package mcpd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	otelapi "go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/sjzar/mcpd/internal/auth"
	"github.com/sjzar/mcpd/internal/errors"
	imcp "github.com/sjzar/mcpd/internal/mcp"
	"github.com/sjzar/mcpd/internal/mcpd/conf"
	"github.com/sjzar/mcpd/internal/mcpd/http"
	"github.com/sjzar/mcpd/internal/mcpd/mcp"
	"github.com/sjzar/mcpd/pkg/config"
	"github.com/sjzar/mcpd/pkg/otel"
)

// Registrar adds tools to the registry before it is frozen.
type Registrar func(r *imcp.Registry, sc *conf.ServerConfig) error

// Manager wires configuration, the MCP service and the HTTP server.
type Manager struct {
	sc  *conf.ServerConfig
	scm *config.Manager

	registrars []Registrar

	// Services
	mcp  *mcp.Service
	http *http.Service
}

// New returns a manager serving the built-in tools plus whatever the
// registrars add.
func New(registrars ...Registrar) *Manager {
	return &Manager{registrars: registrars}
}

// CommandServer serves until ctx is cancelled or the listener fails.
func (m *Manager) CommandServer(ctx context.Context, configPath string, cmdConf map[string]any) error {

	var err error
	m.sc, m.scm, err = conf.LoadServiceConfig(configPath, cmdConf)
	if err != nil {
		return err
	}

	setLogLevel(m.sc.GetLogLevel())
	config.Watch(m.scm, func(c *conf.ServerConfig) {
		setLogLevel(c.GetLogLevel())
	})

	shutdownTracing, err := otel.Setup(ctx, m.sc, m.sc.GetName(), m.sc.GetVersion())
	if err != nil {
		return errors.Config("setup tracing", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Debug().Err(err).Msg("flush traces failed")
		}
	}()

	if err := m.initServices(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := m.mcp.Start(gctx); err != nil {
		return err
	}
	g.Go(m.http.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		return m.stopService()
	})

	return g.Wait()
}

func (m *Manager) initServices() error {
	registry, err := m.registry()
	if err != nil {
		return err
	}

	authConf := m.sc.GetAuth()
	secret := authConf.APIKey
	if authConf.Mode == auth.ModeJWT {
		secret = authConf.JWTSecret
	}
	authn, err := auth.New(authConf.Mode, secret)
	if err != nil {
		return errors.Config("auth", err)
	}

	m.mcp = mcp.NewService(m.sc, registry, imcp.WithTracer(otelapi.Tracer(conf.AppName)))
	m.http = http.NewService(m.sc, m.mcp, authn)
	return nil
}

func (m *Manager) registry() (*imcp.Registry, error) {
	registry := imcp.NewRegistry()
	if err := mcp.RegisterBuiltins(registry, m.sc.GetTimezone()); err != nil {
		return nil, errors.Config("register built-in tools", err)
	}
	for _, register := range m.registrars {
		if err := register(registry, m.sc); err != nil {
			return nil, errors.Config("register tools", err)
		}
	}
	return registry, nil
}

func (m *Manager) stopService() error {
	var errs []error

	// streams first, so no message is queued after the workers stop
	if m.http != nil {
		if err := m.http.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if m.mcp != nil {
		if err := m.mcp.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.JoinErrors(errs...)
}

// CommandTools describes the tools a server with this configuration would
// expose, as a table or as the tools/list payload.
func (m *Manager) CommandTools(configPath string, cmdConf map[string]any, asJSON bool) (string, error) {

	var err error
	m.sc, m.scm, err = conf.LoadServiceConfig(configPath, cmdConf)
	if err != nil {
		return "", err
	}

	registry, err := m.registry()
	if err != nil {
		return "", err
	}
	tools := registry.List()

	if asJSON {
		b, err := json.MarshalIndent(imcp.ToolsListResponse{Tools: tools}, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	buf := &bytes.Buffer{}
	w := tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)
	for _, t := range tools {
		fmt.Fprintf(w, "%s\t%s\n", t.Name, firstSentence(t.Description))
		for _, p := range t.Params {
			attrs := []string{string(p.Type)}
			if p.Required {
				attrs = append(attrs, "required")
			}
			if p.Default != nil {
				attrs = append(attrs, fmt.Sprintf("default %v", p.Default))
			}
			fmt.Fprintf(w, "  %s\t%s\n", p.Name, strings.Join(attrs, ", "))
		}
	}
	w.Flush()
	return buf.String(), nil
}

// CommandToken signs a bearer token for subject with the configured jwt
// secret.
func (m *Manager) CommandToken(configPath string, cmdConf map[string]any, subject string, ttl time.Duration) (string, error) {

	var err error
	m.sc, m.scm, err = conf.LoadServiceConfig(configPath, cmdConf)
	if err != nil {
		return "", err
	}

	secret := m.sc.GetAuth().JWTSecret
	if secret == "" {
		return "", errors.ErrInvalidArg("auth.jwt_secret")
	}
	if subject == "" {
		return "", errors.ErrInvalidArg("subject")
	}
	return auth.NewJWTVerifier([]byte(secret)).Generate(subject, ttl)
}

func setLogLevel(level string) {
	if level == "" {
		return
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.Warn().Str("log_level", level).Msg("unknown log level, keeping current")
		return
	}
	if l != zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(l)
		log.Info().Str("log_level", l.String()).Msg("log level set")
	}
}

func firstSentence(s string) string {
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}
