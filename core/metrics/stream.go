package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StreamMetrics collects body streaming activity. A nil *StreamMetrics is
// valid and records nothing.
type StreamMetrics struct {
	ChunksTotal      *prometheus.CounterVec
	BytesTotal       *prometheus.CounterVec
	AbortsTotal      *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	LengthMismatches *prometheus.CounterVec
	CopyThroughs     *prometheus.CounterVec
}

// NewStreamMetrics creates the stream collectors and registers them on reg.
// Passing a nil registerer creates unregistered collectors.
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	m := &StreamMetrics{
		ChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_stream_chunks_total",
				Help: "Total number of chunks pulled from body streams",
			},
			[]string{"direction"},
		),
		BytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_stream_bytes_total",
				Help: "Total number of bytes pulled from body streams",
			},
			[]string{"direction"},
		),
		AbortsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_stream_aborts_total",
				Help: "Host streams that ended with an abort signal",
			},
			[]string{"direction"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_stream_errors_total",
				Help: "Stream errors by kind",
			},
			[]string{"direction", "kind"},
		),
		LengthMismatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_stream_length_mismatches_total",
				Help: "Fixed-length streams whose realized size differed from the declared size",
			},
			[]string{"direction"},
		),
		CopyThroughs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_stream_copy_throughs_total",
				Help: "Background copies into host fixed-length streams by outcome",
			},
			[]string{"status"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.ChunksTotal,
			m.BytesTotal,
			m.AbortsTotal,
			m.ErrorsTotal,
			m.LengthMismatches,
			m.CopyThroughs,
		)
	}
	return m
}

// ObserveChunk records one pulled chunk of n bytes.
func (m *StreamMetrics) ObserveChunk(direction string, n int) {
	if m == nil {
		return
	}
	m.ChunksTotal.WithLabelValues(direction).Inc()
	m.BytesTotal.WithLabelValues(direction).Add(float64(n))
}

// ObserveAbort records a host abort downgraded to end of stream.
func (m *StreamMetrics) ObserveAbort(direction string) {
	if m == nil {
		return
	}
	m.AbortsTotal.WithLabelValues(direction).Inc()
}

// ObserveError records a stream error of the given kind.
func (m *StreamMetrics) ObserveError(direction, kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(direction, kind).Inc()
}

// ObserveLengthMismatch records a fixed-length violation.
func (m *StreamMetrics) ObserveLengthMismatch(direction string) {
	if m == nil {
		return
	}
	m.LengthMismatches.WithLabelValues(direction).Inc()
}

// ObserveCopyThrough records the outcome of a background host copy.
func (m *StreamMetrics) ObserveCopyThrough(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.CopyThroughs.WithLabelValues(status).Inc()
}
