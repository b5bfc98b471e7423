package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/mcpd/internal/auth"
	"github.com/sjzar/mcpd/internal/errors"
	"github.com/sjzar/mcpd/internal/mcpd/mcp"
)

const shutdownTimeout = 2 * time.Second

type Service struct {
	conf    Config
	mcp     *mcp.Service
	auth    auth.Authenticator
	started time.Time

	router *gin.Engine
	server *http.Server
}

type Config interface {
	GetHTTPAddr() string
	GetName() string
	GetVersion() string
	GetCORSOrigins() []string
}

func NewService(conf Config, mcp *mcp.Service, authn auth.Authenticator) *Service {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if err := router.SetTrustedProxies(nil); err != nil {
		log.Err(err).Msg("Failed to set trusted proxies")
	}

	router.Use(
		errors.RecoveryMiddleware(),
		errors.ErrorHandlerMiddleware(),
		gin.LoggerWithWriter(log.Logger, "/health"),
		corsMiddleware(conf.GetCORSOrigins()),
	)

	if authn == nil {
		authn = auth.None{}
	}

	s := &Service{
		conf:    conf,
		mcp:     mcp,
		auth:    authn,
		started: time.Now(),
		router:  router,
	}
	s.server = &http.Server{
		Addr:              conf.GetHTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.initRouter()
	return s
}

// ListenAndServe blocks until the server stops. A stop through Stop, even
// one that came first, is not an error.
func (s *Service) ListenAndServe() error {
	log.Info().Str("auth", s.auth.Mode()).Msg("Starting HTTP server on " + s.conf.GetHTTPAddr())
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.HTTP("listen "+s.conf.GetHTTPAddr(), err)
	}
	return nil
}

// Stop waits shortly for in-flight requests, then drops the connections
// still open, event streams included.
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Debug().Err(err).Msg("HTTP server shutdown timed out, closing connections")
		s.server.Close()
	}

	log.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Service) GetRouter() *gin.Engine {
	return s.router
}
