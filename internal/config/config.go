// Package config loads settings for the goTodo binaries from an optional
// gotodo.yaml file and GOTODO_* environment variables.
package config

import (
	"errors"
	"strings"
	"time"

	goTodo "github.com/MrEthical07/goTodo"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`

	API     APIConfig     `mapstructure:"api"`
	Store   StoreConfig   `mapstructure:"store"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Server  ServerConfig  `mapstructure:"server"`
}

type APIConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Hostname string        `mapstructure:"hostname"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	// Backend is memory, file or redis.
	Backend     string `mapstructure:"backend"`
	Path        string `mapstructure:"path"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

type RedisConfig struct {
	// Addr "mini" starts an in-process miniredis.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RefreshConfig struct {
	Proactive bool          `mapstructure:"proactive"`
	Leeway    time.Duration `mapstructure:"leeway"`
}

type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ServerConfig configures the development API server.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	AccessTTL    time.Duration `mapstructure:"access_ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
	CommonLimit  int           `mapstructure:"common_limit"`
}

// Load reads configuration. paths are searched for gotodo.yaml in addition to
// the working directory; a missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault("mode", "debug")
	v.SetDefault("api.hostname", "localhost")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("store.backend", string(goTodo.StoreFile))
	v.SetDefault("store.path", ".gotodo/credentials.json")
	v.SetDefault("store.redis_prefix", "gotodo")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("refresh.leeway", "30s")
	v.SetDefault("server.port", "8181")
	v.SetDefault("server.access_ttl", "15m")
	v.SetDefault("server.refresh_ttl", "336h")
	v.SetDefault("server.allow_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.common_limit", 5)

	v.SetEnvPrefix("GOTODO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gotodo")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Client maps the loaded settings onto a client configuration and validates
// it.
func (c *Config) Client() (goTodo.Config, error) {
	out := goTodo.DefaultConfig()
	out.API.BaseURL = c.API.BaseURL
	if c.API.Hostname != "" {
		out.API.Hostname = c.API.Hostname
	}
	out.Transport.Timeout = c.API.Timeout
	out.Store.Backend = goTodo.StoreBackend(strings.ToLower(c.Store.Backend))
	out.Store.Path = c.Store.Path
	if c.Store.RedisPrefix != "" {
		out.Store.RedisPrefix = c.Store.RedisPrefix
	}
	out.Refresh.Proactive = c.Refresh.Proactive
	out.Refresh.Leeway = c.Refresh.Leeway
	out.Audit.Enabled = c.Audit.Enabled
	out.Metrics.Enabled = c.Metrics.Enabled
	out.Metrics.EnableLatencyHistograms = c.Metrics.Enabled

	if err := out.Validate(); err != nil {
		return goTodo.Config{}, err
	}
	return out, nil
}
