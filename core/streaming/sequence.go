package streaming

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
)

// Sequence is a pull-based asynchronous sequence of owned byte buffers.
// Next returns the next chunk, io.EOF once the sequence has ended, or an
// error. Returned chunks belong to the caller.
type Sequence interface {
	Next(ctx context.Context) ([]byte, error)
}

// SequenceFunc adapts a function to Sequence.
type SequenceFunc func(ctx context.Context) ([]byte, error)

// Next implements Sequence.
func (f SequenceFunc) Next(ctx context.Context) ([]byte, error) { return f(ctx) }

type sliceSequence struct {
	chunks [][]byte
	err    error
}

// FromChunks returns a sequence yielding chunks in order, then io.EOF.
func FromChunks(chunks ...[]byte) Sequence {
	return &sliceSequence{chunks: chunks, err: io.EOF}
}

// FromChunksThenError returns a sequence yielding chunks, then err forever.
func FromChunksThenError(err error, chunks ...[]byte) Sequence {
	return &sliceSequence{chunks: chunks, err: err}
}

func (s *sliceSequence) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.chunks) == 0 {
		return nil, s.err
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return bytes.Clone(chunk), nil
}

type readerSequence struct {
	r         io.Reader
	chunkSize int
	err       error
}

// DefaultChunkSize is used by FromReader when no positive size is given.
const DefaultChunkSize = 32 * 1024

// FromReader returns a sequence reading r in chunks of at most chunkSize.
func FromReader(r io.Reader, chunkSize int) Sequence {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &readerSequence{r: r, chunkSize: chunkSize}
}

func (s *readerSequence) Next(ctx context.Context) ([]byte, error) {
	for {
		if s.err != nil {
			return nil, s.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf := make([]byte, s.chunkSize)
		n, err := s.r.Read(buf)
		if err != nil {
			s.err = err
		}
		if n > 0 {
			return buf[:n], nil
		}
	}
}

// Close closes the underlying reader when it is an io.Closer.
func (s *readerSequence) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// All returns an iterator over the chunks of seq. Iteration stops after the
// first error, which is yielded with a nil chunk; io.EOF is not yielded.
func All(ctx context.Context, seq Sequence) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			chunk, err := seq.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// ReadAll drains seq and returns the concatenated content.
func ReadAll(ctx context.Context, seq Sequence) ([]byte, error) {
	var buf bytes.Buffer
	for chunk, err := range All(ctx, seq) {
		if err != nil {
			return buf.Bytes(), err
		}
		buf.Write(chunk)
	}
	return buf.Bytes(), nil
}
