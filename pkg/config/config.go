/*
 * Copyright (c) 2023 shenjunzheng@gmail.com
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const DefaultConfigType = "json"

var (
	ErrInvalidDirectory  = errors.New("invalid directory path")
	ErrMissingConfigName = errors.New("config name not specified")
)

// Manager reads one json config file, layered over defaults and
// <PREFIX>_* environment variables.
type Manager struct {
	App       string
	EnvPrefix string
	Path      string
	Name      string

	// SaveMissing writes the defaults out when no config file exists yet.
	SaveMissing bool

	Viper *viper.Viper
}

// New prepares a Manager for <path>/<name>.json. An empty path means
// ~/.<app> and an empty name means app. Nested keys map to env variables
// with '_', e.g. MCPD_AUTH_MODE for auth.mode.
func New(app, path, name, envPrefix string, saveMissing bool) (*Manager, error) {
	if app == "" {
		return nil, ErrMissingConfigName
	}
	if path == "" {
		path = defaultDir(app)
	}
	if err := PrepareDir(path); err != nil {
		return nil, err
	}
	if name == "" {
		name = app
	}

	v := viper.New()
	v.SetConfigType(DefaultConfigType)
	v.AddConfigPath(path)
	v.SetConfigName(name)
	if envPrefix != "" {
		v.SetEnvPrefix(strings.ToUpper(envPrefix))
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	return &Manager{
		App:         app,
		EnvPrefix:   envPrefix,
		Path:        path,
		Name:        name,
		SaveMissing: saveMissing,
		Viper:       v,
	}, nil
}

func defaultDir(app string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, "."+app)
}

// Load reads the config file into conf. A missing file is fine: defaults,
// env and overrides still apply.
func (c *Manager) Load(conf any) error {
	err := c.Viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
	case errors.As(err, &notFound):
		log.Debug().Str("path", c.Path).Str("name", c.Name).Msg("config file not found, using defaults")
		if c.SaveMissing {
			if err := c.Viper.SafeWriteConfig(); err != nil {
				return fmt.Errorf("write default config: %w", err)
			}
		}
	default:
		return err
	}
	return c.Unmarshal(conf)
}

// Unmarshal decodes the current settings without touching the file.
func (c *Manager) Unmarshal(conf any) error {
	return c.Viper.Unmarshal(conf, decoderConfig())
}

// Override pins key to value above every other source. Nothing is
// written back to disk.
func (c *Manager) Override(key string, value any) {
	c.Viper.Set(key, value)
}

// File is the config file that was read, "" when none was.
func (c *Manager) File() string {
	return c.Viper.ConfigFileUsed()
}

// Watch re-decodes the config into a fresh T on every write to the file
// and passes it to fn. Decode failures are logged and skipped. It does
// nothing when no file was read.
func Watch[T any](c *Manager, fn func(conf *T)) {
	if c.File() == "" {
		return
	}
	c.Viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		conf := new(T)
		if err := c.Unmarshal(conf); err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("reload config failed")
			return
		}
		log.Info().Str("file", e.Name).Msg("config reloaded")
		fn(conf)
	})
	c.Viper.WatchConfig()
}

// SetDefaults registers defaults for the keys of conf. Every mapstructure
// key is also bound to its env variable, since Unmarshal only sees env
// values for keys viper already knows.
func SetDefaults(v *viper.Viper, conf any, defaults map[string]any) {
	for _, key := range keysOf(reflect.TypeOf(conf), "") {
		_ = v.BindEnv(key)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func keysOf(t reflect.Type, prefix string) []string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + tag
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft.String() != "time.Time" {
			keys = append(keys, keysOf(ft, key+".")...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// PrepareDir creates path if needed and fails if it exists as a file.
func PrepareDir(path string) error {
	stat, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(path, 0o755)
	case err != nil:
		return err
	case !stat.IsDir():
		log.Debug().Str("path", path).Msg("not a directory")
		return ErrInvalidDirectory
	}
	return nil
}
