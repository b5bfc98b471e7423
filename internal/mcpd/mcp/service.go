package mcp

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sjzar/mcpd/internal/mcp"
)

type Config interface {
	GetName() string
	GetVersion() string
	GetProtocolVersion() string
	GetWorkers() int
	GetMCPConfig() mcp.Config
}

// Service owns the dispatcher and the pool of workers answering streamed
// messages.
type Service struct {
	conf     Config
	registry *mcp.Registry
	mcp      *mcp.MCP

	mu      sync.Mutex
	group   *errgroup.Group
	stopped bool
}

// NewService freezes registry. opts are applied after the server info
// taken from conf, so they may override it.
func NewService(conf Config, registry *mcp.Registry, opts ...mcp.Option) *Service {
	opts = append([]mcp.Option{
		mcp.WithServerInfo(conf.GetName(), conf.GetVersion()),
		mcp.WithProtocolVersion(conf.GetProtocolVersion()),
	}, opts...)
	dispatcher := mcp.NewDispatcher(registry, opts...)

	return &Service{
		conf:     conf,
		registry: registry,
		mcp:      mcp.NewMCP(dispatcher, conf.GetMCPConfig()),
	}
}

// GetMCP returns the transport adapter.
func (s *Service) GetMCP() *mcp.MCP {
	return s.mcp
}

func (s *Service) Registry() *mcp.Registry {
	return s.registry
}

// Start launches the workers. They stop when ctx is cancelled or after
// Stop has drained the queue.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group != nil {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	workers := s.conf.GetWorkers()
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			s.worker(ctx)
			return nil
		})
	}
	s.group = g

	log.Info().Int("workers", workers).Int("tools", s.registry.Len()).Msg("MCP service started")
	return nil
}

// Stop closes the queue and waits for the workers to finish what is
// already queued.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	s.mcp.Close()
	if s.group == nil {
		return nil
	}
	err := s.group.Wait()
	log.Info().Msg("MCP service stopped")
	return err
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-s.mcp.ProcessChan:
			if !ok {
				return
			}
			s.mcp.Process(p)
		}
	}
}

func (s *Service) HandleSSE(c *gin.Context) {
	s.mcp.HandleSSE(c)
}

func (s *Service) HandleMessages(c *gin.Context) {
	s.mcp.HandleMessages(c)
}

func (s *Service) HandleUnary(c *gin.Context) {
	s.mcp.HandleUnary(c)
}
