package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"worker/core/config"
)

// Config contains all configuration for the streamd service
type Config struct {
	config.CommonConfig `yaml:",inline"`

	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host" env:"STREAMD_HOST" default:"0.0.0.0"`
	Port int    `yaml:"port" env:"STREAMD_PORT" default:"8787"`

	// PublicURL is the address clients use to reach the service.
	PublicURL string `yaml:"public_url" env:"STREAMD_PUBLIC_URL" default:"http://localhost:8787"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" default:"10s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" default:"15s"`
}

// StoreConfig configures the key-value binding.
type StoreConfig struct {
	// Enabled controls whether the binding is configured at all. Requests to
	// the kv routes fail with a binding error when it is off.
	Enabled    bool   `yaml:"enabled" env:"STREAMD_STORE_ENABLED" default:"true"`
	Binding    string `yaml:"binding" default:"BODIES"`
	Path       string `yaml:"path" env:"STREAMD_DATA_DIR" default:"./data/streamd"`
	InMemory   bool   `yaml:"in_memory" env:"STREAMD_IN_MEMORY" default:"false"`
	SyncWrites bool   `yaml:"sync_writes" default:"false"`
}

// WebSocketConfig configures the websocket echo route.
type WebSocketConfig struct {
	ReadBufferSize   int             `yaml:"read_buffer_size" default:"4096"`
	WriteBufferSize  int             `yaml:"write_buffer_size" default:"4096"`
	MessageSizeLimit config.ByteSize `yaml:"message_size_limit" default:"1MiB"`
}

// Load loads the streamd configuration from multiple sources
func Load(configFile, envFile string) (*Config, error) {
	cfg := &Config{}

	loader := config.NewConfigLoader(config.LoaderConfig{
		ConfigFile:      configFile,
		EnvironmentFile: envFile,
		ServiceName:     "streamd",
	})
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load streamd configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("streamd configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if _, err := config.ValidateURL(c.Server.PublicURL); err != nil {
		return fmt.Errorf("server public_url: %w", err)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive")
	}
	if err := c.Stream.Validate(); err != nil {
		return err
	}
	if c.Store.Enabled {
		if c.Store.Binding == "" {
			return fmt.Errorf("store binding name is required")
		}
		if !c.Store.InMemory && c.Store.Path == "" {
			return fmt.Errorf("store path is required unless store.in_memory is set")
		}
	}
	if c.WebSocket.ReadBufferSize <= 0 || c.WebSocket.WriteBufferSize <= 0 {
		return fmt.Errorf("websocket buffer sizes must be positive")
	}
	return nil
}

// GetListenAddress returns the address the service should listen on
func (c *Config) GetListenAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
