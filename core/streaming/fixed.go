package streaming

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"

	"worker/core/errs"
	"worker/core/host"
)

// FixedLengthStream wraps a Sequence whose total size was declared before
// any of it was produced, and fails the sequence when the realized size
// differs.
//
// After the terminal value (io.EOF or a length error) has been returned,
// further calls to Next return the same value. Errors from the inner
// sequence are passed through as *errs.Error (an *errs.Error is returned as
// is) and do not end the wrapper.
type FixedLengthStream struct {
	length    uint64
	bytesRead uint64
	inner     Sequence
	opts      options

	consumed bool
	done     bool
	err      error
}

var (
	_ Sequence = (*FixedLengthStream)(nil)
	_ Body     = (*FixedLengthStream)(nil)
)

// NewFixedLengthStream takes ownership of seq and declares that it will
// produce exactly length bytes.
func NewFixedLengthStream(seq Sequence, length uint64, opts ...Option) *FixedLengthStream {
	return &FixedLengthStream{
		length: length,
		inner:  seq,
		opts:   newOptions(opts),
	}
}

// Length returns the declared length.
func (s *FixedLengthStream) Length() uint64 { return s.length }

// BytesRead returns the number of bytes pulled so far.
func (s *FixedLengthStream) BytesRead() uint64 { return s.bytesRead }

// Next implements Sequence.
func (s *FixedLengthStream) Next(ctx context.Context) ([]byte, error) {
	if s.consumed {
		return nil, errs.ErrBodyUsed
	}
	if s.done {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}

	chunk, err := s.inner.Next(ctx)
	if errors.Is(err, io.EOF) {
		if s.bytesRead != s.length {
			return nil, s.mismatch()
		}
		s.done = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, errs.From(err)
	}

	s.bytesRead += uint64(len(chunk))
	if s.bytesRead > s.length {
		return nil, s.mismatch()
	}
	return chunk, nil
}

func (s *FixedLengthStream) mismatch() error {
	err := errs.Newf(
		"fixed length stream had different length than expected (expected %d, got %d)",
		s.length, s.bytesRead,
	)
	s.opts.logger.Warn().
		Uint64("expected", s.length).
		Uint64("actual", s.bytesRead).
		Str("direction", s.opts.direction).
		Msg("Fixed length stream size mismatch")
	s.opts.metrics.ObserveLengthMismatch(s.opts.direction)
	s.done = true
	s.err = err
	return err
}

// Data implements Body.
func (s *FixedLengthStream) Data(ctx context.Context) ([]byte, error) {
	return s.Next(ctx)
}

// Trailers implements Body. Fixed-length bodies never carry trailers.
func (s *FixedLengthStream) Trailers(ctx context.Context) (http.Header, error) {
	return nil, nil
}

// Close releases the inner sequence when it is an io.Closer.
func (s *FixedLengthStream) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// IntoHost converts the stream into a host fixed-length stream of the
// declared length and returns it immediately. Content is copied into the
// handle's writable side in the background, bound to ctx; the host must
// drain the handle's readable side for the copy to finish. A sequence error
// aborts the writable side with the rendered error.
//
// The wrapper is consumed: afterwards Next and IntoHost return a BodyUsed
// error.
func (s *FixedLengthStream) IntoHost(ctx context.Context, rt host.Runtime) (host.FixedLengthStream, error) {
	if s.consumed {
		return nil, errs.ErrBodyUsed
	}

	var (
		handle host.FixedLengthStream
		err    error
	)
	if s.length < math.MaxUint32 {
		handle, err = rt.NewFixedLengthStream(uint32(s.length))
	} else {
		handle, err = rt.NewFixedLengthStreamBigInt(host.NewBigInt(s.length))
	}
	if err != nil {
		return nil, errs.FromHost(err)
	}

	moved := &FixedLengthStream{
		length:    s.length,
		bytesRead: s.bytesRead,
		inner:     s.inner,
		opts:      s.opts,
		done:      s.done,
		err:       s.err,
	}
	s.inner = nil
	s.consumed = true

	logger := s.opts.logger.With().Uint64("length", s.length).Logger()
	go func() {
		err := host.Pipe(ctx, HostReadable(moved), handle.Writable())
		s.opts.metrics.ObserveCopyThrough(err)
		if err != nil {
			logger.Debug().Err(err).Msg("Copy into host fixed length stream failed")
			return
		}
		logger.Debug().Msg("Copy into host fixed length stream finished")
	}()

	return handle, nil
}

// HostReadable presents seq to the host as a readable stream of host-native
// byte arrays. Sequence errors are raised as rendered host exceptions, and
// canceling the stream closes seq when it is an io.Closer.
func HostReadable(seq Sequence) host.ReadableStream {
	return &hostSource{seq: seq}
}

type hostSource struct {
	seq Sequence
}

func (h *hostSource) Read(ctx context.Context) (host.Value, bool, error) {
	chunk, err := h.seq.Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, errs.From(err).Exception()
	}

	array := host.NewUint8Array(len(chunk))
	array.CopyFrom(chunk)
	return array, false, nil
}

func (h *hostSource) Cancel(reason host.Value) {
	if c, ok := h.seq.(io.Closer); ok {
		_ = c.Close()
	}
}
