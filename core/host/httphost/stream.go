// Package httphost backs host streams with net/http bodies.
package httphost

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"worker/core/host"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 32 * 1024

// ReadableStream reads an HTTP body as a host readable stream. A client that
// goes away mid-body surfaces as host.ErrAborted.
type ReadableStream struct {
	body      io.ReadCloser
	chunkSize int
	// clientCtx is the request context, used to tell aborts from failures.
	clientCtx context.Context

	// mu serializes reads. Cancel never takes it so it can interrupt a
	// read blocked in the body.
	mu      sync.Mutex
	pending error

	closed    atomic.Bool
	closeOnce sync.Once
}

var (
	_ host.ReadableStream = (*ReadableStream)(nil)
	_ host.Canceler       = (*ReadableStream)(nil)
)

// NewReadableStream wraps body. chunkSize bounds the size of each value.
func NewReadableStream(body io.ReadCloser, chunkSize int) *ReadableStream {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ReadableStream{body: body, chunkSize: chunkSize, clientCtx: context.Background()}
}

// NewRequestStream wraps an incoming request body.
func NewRequestStream(r *http.Request, chunkSize int) *ReadableStream {
	s := NewReadableStream(r.Body, chunkSize)
	s.clientCtx = r.Context()
	return s
}

// Read implements host.ReadableStream.
func (s *ReadableStream) Read(ctx context.Context) (host.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.closed.Load() {
			return nil, false, host.ErrAborted
		}
		if s.pending != nil {
			return s.translate(s.pending)
		}
		if err := ctx.Err(); err != nil {
			return nil, false, host.NewException(err.Error())
		}

		buf := make([]byte, s.chunkSize)
		n, err := s.body.Read(buf)
		if err != nil {
			s.pending = err
		}
		if n > 0 {
			return host.WrapBytes(buf[:n]), false, nil
		}
	}
}

func (s *ReadableStream) translate(err error) (host.Value, bool, error) {
	switch {
	case errors.Is(err, io.EOF):
		return nil, true, nil
	case errors.Is(err, http.ErrBodyReadAfterClose),
		errors.Is(err, context.Canceled),
		s.clientCtx.Err() != nil:
		return nil, false, host.ErrAborted
	default:
		return nil, false, host.NewException(err.Error())
	}
}

// Cancel implements host.Canceler by closing the body. It may be called
// while a Read is blocked; that Read then reports host.ErrAborted.
func (s *ReadableStream) Cancel(reason host.Value) {
	s.closed.Store(true)
	s.closeOnce.Do(func() { _ = s.body.Close() })
}
