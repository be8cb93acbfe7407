// Package memhost is an in-process host runtime. Streams are backed by Go
// slices and channels, which makes it suitable for tests and for services
// that need host handles without a real host behind them.
package memhost

import (
	"context"
	"sync"

	"worker/core/host"
)

// ReadableStream replays a fixed list of values, then ends or raises.
type ReadableStream struct {
	mu       sync.Mutex
	values   []host.Value
	err      error
	canceled bool
	reason   host.Value
}

var _ host.ReadableStream = (*ReadableStream)(nil)

// NewReadableStream creates a stream that yields values in order, then ends.
func NewReadableStream(values ...host.Value) *ReadableStream {
	return &ReadableStream{values: values}
}

// WithError makes the stream raise err after its values instead of ending.
func (s *ReadableStream) WithError(err error) *ReadableStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Read implements host.ReadableStream.
func (s *ReadableStream) Read(ctx context.Context) (host.Value, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, host.NewException(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canceled {
		return nil, true, nil
	}
	if len(s.values) > 0 {
		v := s.values[0]
		s.values = s.values[1:]
		return v, false, nil
	}
	if s.err != nil {
		return nil, false, s.err
	}
	return nil, true, nil
}

// Cancel implements host.Canceler. Pending values are discarded.
func (s *ReadableStream) Cancel(reason host.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled = true
	s.reason = reason
	s.values = nil
}

// Canceled reports whether the stream was canceled and with which reason.
func (s *ReadableStream) Canceled() (bool, host.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled, s.reason
}
