package host

import (
	"context"
)

// ReadableStream is a host-owned readable stream handle.
type ReadableStream interface {
	// Read returns the next value. done is true once the stream has ended,
	// in which case v is nil. A non-nil error is a host exception.
	Read(ctx context.Context) (v Value, done bool, err error)
}

// Canceler is implemented by readable streams that can be released early.
type Canceler interface {
	Cancel(reason Value)
}

// WritableStream is a host-owned writable stream handle.
type WritableStream interface {
	Write(ctx context.Context, v Value) error
	Close(ctx context.Context) error
	Abort(ctx context.Context, reason Value) error
}

// FixedLengthStream is a transform stream whose total size is declared when
// it is created. Bytes written to Writable come out of Readable.
type FixedLengthStream interface {
	Readable() ReadableStream
	Writable() WritableStream
	Length() BigInt
}

// Runtime allocates host streams.
type Runtime interface {
	NewFixedLengthStream(length uint32) (FixedLengthStream, error)
	NewFixedLengthStreamBigInt(length BigInt) (FixedLengthStream, error)
}

// PipeTo runs Pipe in the background. The returned channel receives the
// outcome exactly once.
func PipeTo(ctx context.Context, src ReadableStream, dst WritableStream) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- Pipe(ctx, src, dst)
	}()
	return result
}

// Pipe reads src until it is done and writes every value to dst. dst is
// closed when src ends and aborted when src raises. If dst rejects a write,
// src is canceled when it supports cancellation.
func Pipe(ctx context.Context, src ReadableStream, dst WritableStream) error {
	for {
		v, done, err := src.Read(ctx)
		if err != nil {
			if abortErr := dst.Abort(ctx, err); abortErr != nil {
				return abortErr
			}
			return err
		}
		if done {
			return dst.Close(ctx)
		}
		if err := dst.Write(ctx, v); err != nil {
			if c, ok := src.(Canceler); ok {
				c.Cancel(err)
			}
			return err
		}
	}
}
