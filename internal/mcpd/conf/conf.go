package conf

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/mcpd/internal/errors"
	"github.com/sjzar/mcpd/pkg/config"
	"github.com/sjzar/mcpd/pkg/version"
)

const (
	AppName          = "mcpd"
	ServerConfigName = "mcpd-server"
	EnvPrefix        = "MCPD"
	EnvConfigDir     = "MCPD_DIR"
)

// LoadServiceConfig reads ~/.mcpd/mcpd-server.json (or the file in
// configPath), then MCPD_* env variables, then cmdConf, later sources
// winning.
func LoadServiceConfig(configPath string, cmdConf map[string]any) (*ServerConfig, *config.Manager, error) {

	if configPath == "" {
		configPath = os.Getenv(EnvConfigDir)
	}

	scm, err := config.New(AppName, configPath, ServerConfigName, EnvPrefix, false)
	if err != nil {
		log.Error().Err(err).Msg("load server config failed")
		return nil, nil, errors.Config("prepare config dir", err)
	}

	conf := &ServerConfig{}
	config.SetDefaults(scm.Viper, conf, ServerDefaults)
	scm.Viper.SetDefault("version", version.Version)

	for key, value := range cmdConf {
		scm.Override(key, value)
	}

	if err := scm.Load(conf); err != nil {
		log.Error().Err(err).Msg("load server config failed")
		return nil, nil, errors.Config("load server config", err)
	}

	if err := Validate(conf); err != nil {
		return nil, nil, err
	}

	// never log secrets
	safe := *conf
	if safe.Auth.APIKey != "" {
		safe.Auth.APIKey = "***"
	}
	if safe.Auth.JWTSecret != "" {
		safe.Auth.JWTSecret = "***"
	}
	b, _ := json.Marshal(safe)
	log.Info().Msgf("server config: %s", string(b))

	return conf, scm, nil
}

// Validate rejects combinations the server cannot start with.
func Validate(conf *ServerConfig) error {
	switch conf.Auth.Mode {
	case "", "none":
	case "api_key":
		if conf.Auth.APIKey == "" {
			return errors.ErrInvalidArg("auth.api_key is required in api_key mode")
		}
	case "jwt":
		if conf.Auth.JWTSecret == "" {
			return errors.ErrInvalidArg("auth.jwt_secret is required in jwt mode")
		}
	default:
		return errors.ErrInvalidArg("auth.mode " + conf.Auth.Mode)
	}
	if conf.MCP.QueueSize < 0 || conf.MCP.Workers < 0 || conf.MCP.MaxBodyBytes < 0 {
		return errors.ErrInvalidArg("mcp.workers, mcp.queue_size and mcp.max_body_bytes must not be negative")
	}
	return nil
}
