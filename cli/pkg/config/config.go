package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	coreconfig "worker/core/config"
)

// Config is the streamctl client configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Stream StreamConfig `mapstructure:"stream"`
}

type ServerConfig struct {
	URL string `mapstructure:"url"`
	// H2C speaks HTTP/2 over cleartext to the server.
	H2C     bool          `mapstructure:"h2c"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StreamConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
}

// Load reads configuration into v from ./config.yaml,
// $HOME/.streamctl/config.yaml or /etc/streamctl/config.yaml, then applies
// STREAMCTL_* environment overrides. A missing file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.streamctl")
		v.AddConfigPath("/etc/streamctl/")
	}

	// STREAMCTL_SERVER_URL, STREAMCTL_STREAM_CHUNK_SIZE, ...
	v.SetEnvPrefix("STREAMCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"server.url", "server.h2c", "server.timeout", "stream.chunk_size"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	v.SetDefault("server.url", "http://localhost:8787")
	v.SetDefault("server.h2c", false)
	v.SetDefault("server.timeout", "0s")
	v.SetDefault("stream.chunk_size", 32*1024)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the server URL and chunk size.
func (c *Config) Validate() error {
	if _, err := coreconfig.ValidateURL(c.Server.URL); err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	if c.Stream.ChunkSize <= 0 {
		return fmt.Errorf("stream.chunk_size must be positive, got %d", c.Stream.ChunkSize)
	}
	return nil
}
