package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"worker/core/errs"
)

// CommonConfig contains configuration shared by every binary.
type CommonConfig struct {
	Log    LogConfig    `yaml:"log"`
	Stream StreamConfig `yaml:"stream"`
}

// LogConfig configures logging behavior
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" default:"console"`
	Debug  bool   `yaml:"debug" env:"DEBUG" default:"false"`
}

// ConfigureZerolog applies the configured level globally.
func (c *LogConfig) ConfigureZerolog() {
	zerolog.SetGlobalLevel(c.ZerologLevel())
}

// ZerologLevel resolves the configured level. Debug wins over Level and
// unknown names fall back to info.
func (c *LogConfig) ZerologLevel() zerolog.Level {
	if c.Debug {
		return zerolog.DebugLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || level == zerolog.NoLevel {
		if strings.EqualFold(c.Level, "warning") {
			return zerolog.WarnLevel
		}
		return zerolog.InfoLevel
	}
	return level
}

// StreamConfig bounds how bodies are read.
type StreamConfig struct {
	// ChunkSize is the read size used when pulling from network bodies.
	ChunkSize ByteSize `yaml:"chunk_size" env:"STREAM_CHUNK_SIZE" default:"32KiB"`
	// MaxFixedLength caps declared body lengths. Zero disables the cap.
	MaxFixedLength ByteSize `yaml:"max_fixed_length" env:"STREAM_MAX_FIXED_LENGTH" default:"0"`
	// Buffer is the chunk buffer of in-process fixed-length streams.
	Buffer int `yaml:"buffer" env:"STREAM_BUFFER" default:"4"`
}

// Validate checks the stream limits.
func (c *StreamConfig) Validate() error {
	if c.ChunkSize == 0 {
		return fmt.Errorf("stream.chunk_size must be positive")
	}
	if c.Buffer < 0 {
		return fmt.Errorf("stream.buffer must not be negative, got %d", c.Buffer)
	}
	return nil
}

// AllowsLength reports whether a declared body length is within the cap.
func (c *StreamConfig) AllowsLength(n uint64) bool {
	return c.MaxFixedLength == 0 || n <= uint64(c.MaxFixedLength)
}

// ByteSize is a byte count that accepts KiB, MiB and GiB suffixes.
type ByteSize uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	n, err := parseUintValue(node.Value)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", node.Value, err)
	}
	*b = ByteSize(n)
	return nil
}

// Int returns the size as an int for buffer allocations.
func (b ByteSize) Int() int { return int(b) }

// ValidateURL parses raw as an absolute http(s) or ws(s) URL.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errs.FromURL(err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, errs.FromURL(&url.Error{Op: "parse", URL: raw, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)})
	}
	if u.Host == "" {
		return nil, errs.FromURL(&url.Error{Op: "parse", URL: raw, Err: fmt.Errorf("missing host")})
	}
	return u, nil
}
