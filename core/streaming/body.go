package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
)

// Body is the contract HTTP plumbing uses to consume a request or response
// body: a sequence of data chunks followed by optional trailers. Every error
// is an *errs.Error, except io.EOF which ends the data.
type Body interface {
	Data(ctx context.Context) ([]byte, error)
	Trailers(ctx context.Context) (http.Header, error)
}

type sequenceReader struct {
	ctx context.Context
	seq Sequence

	mu   sync.Mutex
	buf  []byte
	err  error
	once sync.Once
}

// NewReader exposes seq as an io.ReadCloser. Reads are bound to ctx. Close
// releases seq when it is an io.Closer.
func NewReader(ctx context.Context, seq Sequence) io.ReadCloser {
	return &sequenceReader{ctx: ctx, seq: seq}
}

func (r *sequenceReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		chunk, err := r.seq.Next(r.ctx)
		if err != nil {
			r.err = err
			if errors.Is(err, io.EOF) {
				r.err = io.EOF
			}
			continue
		}
		r.buf = chunk
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *sequenceReader) Close() error {
	var err error
	r.once.Do(func() {
		if c, ok := r.seq.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
