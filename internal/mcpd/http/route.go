package http

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/sjzar/mcpd/internal/errors"
	"github.com/sjzar/mcpd/pkg/version"
)

func (s *Service) initRouter() {
	s.initBaseRouter()
	s.initMCPRouter()
}

func (s *Service) initBaseRouter() {
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": s.conf.GetName() + " running"})
	})

	s.router.GET("/health", s.handleHealth)

	s.router.NoRoute(s.NoRoute)
}

func (s *Service) initMCPRouter() {
	api := s.router.Group("", s.authMiddleware())
	{
		// event stream + side channel
		api.GET("/sse", s.mcp.HandleSSE)
		api.GET("/mcp", s.mcp.HandleSSE)
		api.POST("/message", s.mcp.HandleMessages)
		api.POST("/message/:sessionid", s.mcp.HandleMessages)

		// one request, one response
		api.POST("/mcp", s.mcp.HandleUnary)
		api.POST("/sse", s.mcp.HandleUnary)
	}
}

// NoRoute answers unknown paths with a JSON 404.
func (s *Service) NoRoute(c *gin.Context) {
	errors.Err(c, errors.NotFound(c.Request.URL.Path, nil))
}

func (s *Service) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":   "healthy",
		"service":  s.conf.GetName(),
		"version":  s.conf.GetVersion(),
		"build":    version.Short(),
		"tools":    s.mcp.Registry().Len(),
		"sessions": s.mcp.GetMCP().SessionCount(),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	}
	if rss, err := processRSS(); err == nil {
		resp["rss"] = rss
	}
	c.JSON(http.StatusOK, resp)
}

func processRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}
