package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/mcpd/internal/auth"
	"github.com/sjzar/mcpd/internal/mcp"
)

// corsMiddleware allows the listed origins, or any origin when the list
// holds "*" or is empty.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	anyOrigin := len(origins) == 0 || allowed["*"]

	return func(c *gin.Context) {
		if anyOrigin {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			c.Writer.Header().Add("Vary", "Origin")
			if origin := c.GetHeader("Origin"); allowed[origin] {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key, X-Request-ID, Mcp-Session-Id")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authMiddleware rejects MCP requests the configured authenticator does
// not admit. The rejection is a JSON-RPC error envelope so MCP clients can
// parse it.
func (s *Service) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := s.auth.Authenticate(c.Request)
		if err != nil {
			log.Warn().Err(err).Str("path", c.Request.URL.Path).Str("ip", c.ClientIP()).Msg("request rejected")
			if s.auth.Mode() == auth.ModeJWT {
				c.Header("WWW-Authenticate", `Bearer realm="mcpd"`)
			}
			b, encErr := mcp.Encode(mcp.NewErrorResponse(mcp.NullID, mcp.Errorf(mcp.ErrUnauthorized.Code, "%s: %v", mcp.ErrUnauthorized.Message, err)))
			if encErr != nil {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			c.Data(http.StatusUnauthorized, "application/json", b)
			c.Abort()
			return
		}

		if principal != "" {
			c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), principal))
		}
		c.Next()
	}
}
