package conf

import (
	"time"

	"github.com/sjzar/mcpd/internal/mcp"
)

const (
	DefaultHTTPAddr = "0.0.0.0:8000"
	DefaultName     = "mcpd"
	DefaultWorkers  = 4
)

type ServerConfig struct {
	HTTPAddr        string      `mapstructure:"http_addr"`
	Name            string      `mapstructure:"name"`
	Version         string      `mapstructure:"version"`
	ProtocolVersion string      `mapstructure:"protocol_version"`
	LogLevel        string      `mapstructure:"log_level"`
	CORSOrigins     []string    `mapstructure:"cors_origins"`
	Auth            AuthConfig  `mapstructure:"auth"`
	MCP             MCPConfig   `mapstructure:"mcp"`
	OTel            OTelConfig  `mapstructure:"otel"`
	Tools           ToolsConfig `mapstructure:"tools"`
}

type AuthConfig struct {
	// none, api_key or jwt
	Mode      string `mapstructure:"mode"`
	APIKey    string `mapstructure:"api_key"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type MCPConfig struct {
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

type OTelConfig struct {
	// OTLP/HTTP endpoint, a URL or host:port. Empty disables export.
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type ToolsConfig struct {
	// Timezone current_time reports in when the caller names none.
	Timezone string `mapstructure:"timezone"`
}

var ServerDefaults = map[string]any{
	"http_addr":          DefaultHTTPAddr,
	"name":               DefaultName,
	"protocol_version":   mcp.ProtocolVersion,
	"log_level":          "info",
	"cors_origins":       []string{"*"},
	"auth.mode":          "none",
	"mcp.workers":        DefaultWorkers,
	"mcp.queue_size":     mcp.ProcessChanCap,
	"mcp.ping_interval":  mcp.DefaultSSEPingInterval,
	"mcp.max_body_bytes": mcp.DefaultMaxBodyBytes,
	"tools.timezone":     "UTC",
}

func (c *ServerConfig) GetHTTPAddr() string {
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	return c.HTTPAddr
}

func (c *ServerConfig) GetName() string {
	if c.Name == "" {
		c.Name = DefaultName
	}
	return c.Name
}

func (c *ServerConfig) GetVersion() string {
	return c.Version
}

func (c *ServerConfig) GetProtocolVersion() string {
	return c.ProtocolVersion
}

func (c *ServerConfig) GetAuth() AuthConfig {
	return c.Auth
}

func (c *ServerConfig) GetWorkers() int {
	if c.MCP.Workers <= 0 {
		return DefaultWorkers
	}
	return c.MCP.Workers
}

func (c *ServerConfig) GetMCPConfig() mcp.Config {
	return mcp.Config{
		MessagePath:  mcp.DefaultMessagePath,
		PingInterval: c.MCP.PingInterval,
		QueueSize:    c.MCP.QueueSize,
		MaxBodyBytes: c.MCP.MaxBodyBytes,
	}
}

func (c *ServerConfig) GetTimezone() string {
	return c.Tools.Timezone
}

func (c *ServerConfig) GetOTelEndpoint() string {
	return c.OTel.Endpoint
}

func (c *ServerConfig) GetOTelInsecure() bool {
	return c.OTel.Insecure
}

func (c *ServerConfig) GetLogLevel() string {
	return c.LogLevel
}

func (c *ServerConfig) GetCORSOrigins() []string {
	return c.CORSOrigins
}
