package streaming

import (
	"github.com/rs/zerolog"

	"worker/core/metrics"
)

// Direction labels used in logs and metrics.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

type options struct {
	logger    zerolog.Logger
	metrics   *metrics.StreamMetrics
	direction string
}

// Option configures a ByteStream or FixedLengthStream.
type Option func(*options)

// WithLogger sets the logger used for stream lifecycle events.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records stream activity on m.
func WithMetrics(m *metrics.StreamMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithDirection labels the stream as inbound or outbound.
func WithDirection(direction string) Option {
	return func(o *options) { o.direction = direction }
}

func newOptions(opts []Option) options {
	o := options{
		logger:    zerolog.Nop(),
		direction: DirectionInbound,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
