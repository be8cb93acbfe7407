package streaming

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"worker/core/errs"
	"worker/core/host"
)

// abortedMessage is how hosts render the exception raised by a stream that
// was closed on purpose mid-flight.
const abortedMessage = "Error: aborted"

// ByteStream exposes a host readable stream as a Sequence of owned byte
// buffers.
//
// A ByteStream is the only reader of its host stream and must be driven from
// one goroutine at a time. Host handles are not safe for concurrent use, so
// overlapping calls to Next panic instead of racing on the handle.
type ByteStream struct {
	inner host.ReadableStream
	opts  options

	reading atomic.Bool
	closed  atomic.Bool

	done bool
	err  error
}

var (
	_ Sequence = (*ByteStream)(nil)
	_ Body     = (*ByteStream)(nil)
)

// NewByteStream takes ownership of rs.
func NewByteStream(rs host.ReadableStream, opts ...Option) *ByteStream {
	return &ByteStream{
		inner: rs,
		opts:  newOptions(opts),
	}
}

// Next returns the next chunk, io.EOF at the end of the stream, or an
// *errs.Error. Once the stream has ended or failed, Next keeps returning the
// same result. A done ctx is reported as an Internal error wrapping ctx.Err()
// and does not end the stream.
func (s *ByteStream) Next(ctx context.Context) ([]byte, error) {
	if !s.reading.CompareAndSwap(false, true) {
		panic("streaming: concurrent Next on ByteStream; a host stream has a single reader")
	}
	defer s.reading.Store(false)

	if s.done {
		return nil, s.terminal()
	}
	if s.closed.Load() {
		s.finish(nil)
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.From(err)
	}

	v, done, err := s.inner.Read(ctx)
	if err != nil {
		e := errs.FromHost(err)
		if e.Message() == abortedMessage {
			s.opts.logger.Debug().Str("direction", s.opts.direction).Msg("Host stream aborted, ending body")
			s.opts.metrics.ObserveAbort(s.opts.direction)
			s.finish(nil)
			return nil, io.EOF
		}
		return nil, s.fail(e)
	}
	if done {
		s.finish(nil)
		return nil, io.EOF
	}

	arr, err := host.ToUint8Array(v)
	if err != nil {
		return nil, s.fail(errs.FromHost(err))
	}
	chunk := arr.ToBytes()

	s.opts.metrics.ObserveChunk(s.opts.direction, len(chunk))
	return chunk, nil
}

// Data implements Body.
func (s *ByteStream) Data(ctx context.Context) ([]byte, error) {
	return s.Next(ctx)
}

// Trailers implements Body. Host bodies never carry trailers.
func (s *ByteStream) Trailers(ctx context.Context) (http.Header, error) {
	return nil, nil
}

// Close releases the host stream. Hosts that support cancellation are told
// the body is no longer wanted; others are simply dropped.
func (s *ByteStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if c, ok := s.inner.(host.Canceler); ok {
		c.Cancel(errs.New("body stream released").ToHost())
	}
	return nil
}

func (s *ByteStream) fail(e *errs.Error) error {
	s.opts.logger.Debug().Err(e).Str("direction", s.opts.direction).Msg("Host stream failed")
	s.opts.metrics.ObserveError(s.opts.direction, e.Kind().String())
	s.finish(e)
	return e
}

func (s *ByteStream) finish(err error) {
	s.done = true
	s.err = err
}

func (s *ByteStream) terminal() error {
	if s.err != nil {
		return s.err
	}
	return io.EOF
}
