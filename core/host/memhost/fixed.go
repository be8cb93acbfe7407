package memhost

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"worker/core/host"
)

// Runtime implements host.Runtime in process.
type Runtime struct {
	// Buffer is the number of chunks a fixed-length stream holds before
	// writes block on the reader. Zero means fully synchronous hand-off.
	Buffer int
}

var _ host.Runtime = (*Runtime)(nil)

// NewRuntime creates a runtime with the given per-stream chunk buffer.
func NewRuntime(buffer int) *Runtime {
	return &Runtime{Buffer: buffer}
}

// NewFixedLengthStream implements host.Runtime.
func (r *Runtime) NewFixedLengthStream(length uint32) (host.FixedLengthStream, error) {
	return newFixedLengthStream(new(big.Int).SetUint64(uint64(length)), r.Buffer), nil
}

// NewFixedLengthStreamBigInt implements host.Runtime.
func (r *Runtime) NewFixedLengthStreamBigInt(length host.BigInt) (host.FixedLengthStream, error) {
	n := length.Int()
	if n.Sign() < 0 {
		return nil, host.NewException(fmt.Sprintf("RangeError: invalid FixedLengthStream length %s", length))
	}
	return newFixedLengthStream(n, r.Buffer), nil
}

// FixedLengthStream is a transform stream that enforces its declared length
// on the writable side and reports violations on the readable side. Its
// writable side accepts a single writer, as host writable streams do once a
// writer lock is taken.
type FixedLengthStream struct {
	length *big.Int

	chunks   chan []byte
	canceled chan struct{}

	mu       sync.Mutex
	written  *big.Int
	finished bool
	err      error

	cancelOnce sync.Once
}

func newFixedLengthStream(length *big.Int, buffer int) *FixedLengthStream {
	return &FixedLengthStream{
		length:   length,
		chunks:   make(chan []byte, buffer),
		canceled: make(chan struct{}),
		written:  new(big.Int),
	}
}

// Readable implements host.FixedLengthStream.
func (s *FixedLengthStream) Readable() host.ReadableStream { return (*fixedReadable)(s) }

// Writable implements host.FixedLengthStream.
func (s *FixedLengthStream) Writable() host.WritableStream { return (*fixedWritable)(s) }

// Length implements host.FixedLengthStream.
func (s *FixedLengthStream) Length() host.BigInt {
	return host.BigIntFrom(s.length)
}

// finish closes the readable side, recording err as its terminal exception.
// Must be called with s.mu held.
func (s *FixedLengthStream) finish(err error) {
	if s.finished {
		return
	}
	s.finished = true
	s.err = err
	close(s.chunks)
}

type fixedWritable FixedLengthStream

func (w *fixedWritable) Write(ctx context.Context, v host.Value) error {
	s := (*FixedLengthStream)(w)
	arr, err := host.ToUint8Array(v)
	if err != nil {
		s.mu.Lock()
		s.finish(err)
		s.mu.Unlock()
		return err
	}
	chunk := arr.ToBytes()

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return host.NewTypeError("This WritableStream has been closed.")
	}
	s.written.Add(s.written, big.NewInt(int64(len(chunk))))
	if s.written.Cmp(s.length) > 0 {
		exc := host.NewTypeError("Attempt to write too many bytes through a FixedLengthStream.")
		s.finish(exc)
		s.mu.Unlock()
		return exc
	}
	s.mu.Unlock()

	select {
	case s.chunks <- chunk:
		return nil
	case <-s.canceled:
		return host.NewTypeError("This ReadableStream has been canceled.")
	case <-ctx.Done():
		return host.NewException(ctx.Err().Error())
	}
}

func (w *fixedWritable) Close(ctx context.Context) error {
	s := (*FixedLengthStream)(w)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return s.err
	}
	if s.written.Cmp(s.length) != 0 {
		exc := host.NewTypeError("FixedLengthStream did not see all expected bytes before close().")
		s.finish(exc)
		return exc
	}
	s.finish(nil)
	return nil
}

func (w *fixedWritable) Abort(ctx context.Context, reason host.Value) error {
	s := (*FixedLengthStream)(w)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch t := reason.(type) {
	case *host.Exception:
		s.finish(t)
	case error:
		s.finish(host.NewException(t.Error()))
	default:
		s.finish(host.NewException(host.Stringify(reason)))
	}
	return nil
}

type fixedReadable FixedLengthStream

func (r *fixedReadable) Read(ctx context.Context) (host.Value, bool, error) {
	s := (*FixedLengthStream)(r)
	select {
	case chunk, ok := <-s.chunks:
		if ok {
			return host.WrapBytes(chunk), false, nil
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.err != nil {
			return nil, false, s.err
		}
		return nil, true, nil
	case <-ctx.Done():
		return nil, false, host.NewException(ctx.Err().Error())
	}
}

func (r *fixedReadable) Cancel(reason host.Value) {
	s := (*FixedLengthStream)(r)
	s.cancelOnce.Do(func() { close(s.canceled) })
}
