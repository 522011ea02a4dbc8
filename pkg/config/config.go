package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BROKER_SERVER_LISTEN_ADDR.
const EnvPrefix = "BROKER"

// DefaultConfigPath is searched for config.yaml when Load gets no paths.
const DefaultConfigPath = "configs"

type Config struct {
	Server struct {
		ListenAddr       string  `mapstructure:"listen_addr"`
		ShutdownTimeoutS int     `mapstructure:"shutdown_timeout_s"`
		AcceptRate       float64 `mapstructure:"accept_rate"`
		AcceptBurst      int     `mapstructure:"accept_burst"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Metrics struct {
		ListenAddr string `mapstructure:"listen_addr"`
	} `mapstructure:"metrics"`
}

// Load reads config.yaml from the first of paths that has one, then applies
// environment overrides. A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.listen_addr", "0.0.0.0:8080")
	v.SetDefault("server.shutdown_timeout_s", 0)
	v.SetDefault("server.accept_rate", 0)
	v.SetDefault("server.accept_burst", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.listen_addr", "")

	if len(paths) == 0 {
		paths = []string{DefaultConfigPath}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.Server.ListenAddr == "":
		return errors.New("config: server.listen_addr must not be empty")
	case c.Server.ShutdownTimeoutS < 0:
		return errors.New("config: server.shutdown_timeout_s must not be negative")
	case c.Server.AcceptRate < 0:
		return errors.New("config: server.accept_rate must not be negative")
	case c.Server.AcceptBurst < 0:
		return errors.New("config: server.accept_burst must not be negative")
	}
	return nil
}
