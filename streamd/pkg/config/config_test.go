package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worker/core/config"
	"worker/core/errs"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8787", cfg.GetListenAddress())
	assert.Equal(t, "http://localhost:8787", cfg.Server.PublicURL)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, "BODIES", cfg.Store.Binding)
	assert.Equal(t, config.ByteSize(1<<20), cfg.WebSocket.MessageSizeLimit)
	assert.Equal(t, config.ByteSize(32<<10), cfg.Stream.ChunkSize)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: warn
server:
  host: 127.0.0.1
  port: 9000
  public_url: https://streams.example.com
store:
  binding: FILES
  in_memory: true
stream:
  max_fixed_length: 64MiB
`), 0o600))
	t.Setenv("STREAMD_PORT", "9100")
	t.Setenv("STREAMD_LOG_LEVEL", "debug")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.GetListenAddress())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "FILES", cfg.Store.Binding)
	assert.True(t, cfg.Store.InMemory)
	assert.Equal(t, config.ByteSize(64<<20), cfg.Stream.MaxFixedLength)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("", "")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server port"},
		{"public url", func(c *Config) { c.Server.PublicURL = "localhost" }, "public_url"},
		{"binding", func(c *Config) { c.Store.Binding = "" }, "binding name"},
		{"path", func(c *Config) { c.Store.Path = "" }, "store path"},
		{"chunk size", func(c *Config) { c.Stream.ChunkSize = 0 }, "chunk_size"},
		{"websocket", func(c *Config) { c.WebSocket.ReadBufferSize = 0 }, "websocket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	cfg := valid()
	cfg.Store.Enabled = false
	cfg.Store.Path = ""
	assert.NoError(t, cfg.Validate(), "store settings are ignored when the binding is off")
}

func TestValidate_PublicURLKind(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	cfg.Server.PublicURL = "ftp://files"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, errs.URLParse, errs.From(err).Kind())
}
