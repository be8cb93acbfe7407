package streaming

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worker/core/errs"
	"worker/core/host"
	"worker/core/host/memhost"
	"worker/core/metrics"
)

// drain pulls seq until it returns an error and reports what it saw.
func drain(t *testing.T, seq Sequence) ([][]byte, error) {
	t.Helper()
	ctx := context.Background()
	var chunks [][]byte
	for i := 0; i < 1000; i++ {
		chunk, err := seq.Next(ctx)
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	t.Fatal("sequence did not terminate")
	return nil, nil
}

// split cuts data into random chunk sizes, including empty chunks.
func split(rng *rand.Rand, data []byte) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		n := rng.Intn(len(data) + 1)
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

func mismatchMessage(expected, actual uint64) string {
	return fmt.Sprintf("fixed length stream had different length than expected (expected %d, got %d)", expected, actual)
}

func TestFixedLengthStream_ExactLength(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		data := make([]byte, rng.Intn(256))
		rng.Read(data)
		chunks := split(rng, data)

		fixed := NewFixedLengthStream(FromChunks(chunks...), uint64(len(data)))
		got, err := drain(t, fixed)

		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, len(chunks), len(got))
		for j := range chunks {
			assert.Equal(t, chunks[j], got[j])
		}
		assert.Equal(t, uint64(len(data)), fixed.BytesRead())
	}
}

func TestFixedLengthStream_Overflow(t *testing.T) {
	fixed := NewFixedLengthStream(FromChunks([]byte("abc"), []byte("def"), []byte("ghi")), 5)

	got, err := drain(t, fixed)
	require.Equal(t, [][]byte{[]byte("abc")}, got)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.Internal, e.Kind())
	assert.Equal(t, mismatchMessage(5, 6), e.Error())

	// The terminal error sticks.
	_, again := fixed.Next(context.Background())
	assert.Same(t, err, again)
}

func TestFixedLengthStream_OverflowProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		data := make([]byte, 1+rng.Intn(128))
		chunks := split(rng, data)
		declared := uint64(rng.Intn(len(data)))

		// Find the chunk that crosses the declared length.
		var cumulative uint64
		var kept int
		for _, c := range chunks {
			cumulative += uint64(len(c))
			if cumulative > declared {
				break
			}
			kept++
		}

		got, err := drain(t, NewFixedLengthStream(FromChunks(chunks...), declared))
		assert.Len(t, got, kept)
		require.Error(t, err)
		assert.Equal(t, mismatchMessage(declared, cumulative), err.Error())
	}
}

func TestFixedLengthStream_Short(t *testing.T) {
	fixed := NewFixedLengthStream(FromChunks([]byte("ab")), 5)

	got, err := drain(t, fixed)
	require.Equal(t, [][]byte{[]byte("ab")}, got)
	assert.Equal(t, mismatchMessage(5, 2), err.Error())
	assert.Equal(t, errs.Internal, errs.From(err).Kind())
}

func TestFixedLengthStream_PropagatesInnerError(t *testing.T) {
	inner := errs.HostError("TypeError: boom")
	fixed := NewFixedLengthStream(FromChunksThenError(inner, []byte("ab")), 10)

	chunk, err := fixed.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), chunk)

	_, err = fixed.Next(context.Background())
	assert.Same(t, inner, err)
	_, err = fixed.Next(context.Background())
	assert.Same(t, inner, err, "inner errors are not turned into length errors")
	assert.Equal(t, uint64(2), fixed.BytesRead())
}

func TestFixedLengthStream_InnerErrorsAreNotLatched(t *testing.T) {
	boom := errs.HostError("Error: boom")
	results := []struct {
		chunk []byte
		err   error
	}{
		{err: boom},
		{chunk: []byte("late")},
		{err: io.EOF},
	}
	inner := SequenceFunc(func(ctx context.Context) ([]byte, error) {
		r := results[0]
		results = results[1:]
		return r.chunk, r.err
	})
	fixed := NewFixedLengthStream(inner, 4)

	_, err := fixed.Next(context.Background())
	assert.Same(t, boom, err)

	chunk, err := fixed.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("late"), chunk)

	_, err = fixed.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	_, err = fixed.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF, "end is sticky")
	assert.Equal(t, uint64(4), fixed.BytesRead())
}

func TestFixedLengthStream_ZeroLength(t *testing.T) {
	fixed := NewFixedLengthStream(FromChunks(), 0)
	_, err := fixed.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	_, err = fixed.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestFixedLengthStream_Body(t *testing.T) {
	var body Body = NewFixedLengthStream(FromChunks([]byte("xy")), 2)
	chunk, err := body.Data(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("xy"), chunk)

	trailers, err := body.Trailers(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, trailers)
}

func TestFixedLengthStream_IntoHostRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, buffer := range []int{0, 4} {
		data := make([]byte, 4096)
		rng.Read(data)

		fixed := NewFixedLengthStream(FromChunks(split(rng, data)...), uint64(len(data)))
		handle, err := fixed.IntoHost(context.Background(), memhost.NewRuntime(buffer))
		require.NoError(t, err)

		length, ok := handle.Length().Uint64()
		require.True(t, ok)
		assert.Equal(t, uint64(len(data)), length)

		got, err := ReadAll(context.Background(), NewByteStream(handle.Readable()))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(data, got), "content must survive the round trip")

		_, err = fixed.Next(context.Background())
		assert.ErrorIs(t, err, errs.ErrBodyUsed)
		_, err = fixed.IntoHost(context.Background(), memhost.NewRuntime(buffer))
		assert.ErrorIs(t, err, errs.ErrBodyUsed)
	}
}

func TestFixedLengthStream_IntoHostMismatch(t *testing.T) {
	fixed := NewFixedLengthStream(FromChunks([]byte("abc")), 10)
	handle, err := fixed.IntoHost(context.Background(), memhost.NewRuntime(0))
	require.NoError(t, err)

	got, err := ReadAll(context.Background(), NewByteStream(handle.Readable()))
	assert.Equal(t, []byte("abc"), got)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.Host, e.Kind())
	assert.Contains(t, e.Message(), mismatchMessage(10, 3))
}

// recordingRuntime notes which allocation path was used.
type recordingRuntime struct {
	memhost.Runtime
	mu      sync.Mutex
	small   []uint32
	bigInts []host.BigInt
}

func (r *recordingRuntime) NewFixedLengthStream(length uint32) (host.FixedLengthStream, error) {
	r.mu.Lock()
	r.small = append(r.small, length)
	r.mu.Unlock()
	return r.Runtime.NewFixedLengthStream(length)
}

func (r *recordingRuntime) NewFixedLengthStreamBigInt(length host.BigInt) (host.FixedLengthStream, error) {
	r.mu.Lock()
	r.bigInts = append(r.bigInts, length)
	r.mu.Unlock()
	return r.Runtime.NewFixedLengthStreamBigInt(length)
}

func TestFixedLengthStream_IntoHostLengthRange(t *testing.T) {
	tests := []struct {
		name   string
		length uint64
		bigInt bool
	}{
		{"zero", 0, false},
		{"just below boundary", math.MaxUint32 - 1, false},
		{"boundary", math.MaxUint32, true},
		{"beyond uint32", 1 << 40, true},
		{"max uint64", math.MaxUint64, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &recordingRuntime{}
			handle, err := NewFixedLengthStream(FromChunks(), tt.length).IntoHost(context.Background(), rt)
			require.NoError(t, err)

			if tt.bigInt {
				require.Len(t, rt.bigInts, 1)
				assert.Empty(t, rt.small)
				n, ok := rt.bigInts[0].Uint64()
				require.True(t, ok)
				assert.Equal(t, tt.length, n)
			} else {
				require.Equal(t, []uint32{uint32(tt.length)}, rt.small)
				assert.Empty(t, rt.bigInts)
			}

			// Drain so the background copy finishes.
			_, _ = ReadAll(context.Background(), NewByteStream(handle.Readable()))
		})
	}
}

func TestFixedLengthStream_Metrics(t *testing.T) {
	m := metrics.NewStreamMetrics(prometheus.NewRegistry())
	fixed := NewFixedLengthStream(FromChunks([]byte("abcdef")), 3, WithMetrics(m), WithDirection(DirectionOutbound))

	_, err := drain(t, fixed)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LengthMismatches.WithLabelValues(DirectionOutbound)))
}

func TestFixedLengthStream_CloseReleasesInner(t *testing.T) {
	closed := false
	seq := &closingSequence{Sequence: FromChunks(), onClose: func() { closed = true }}
	require.NoError(t, NewFixedLengthStream(seq, 0).Close())
	assert.True(t, closed)
}

type closingSequence struct {
	Sequence
	onClose func()
}

func (c *closingSequence) Close() error {
	c.onClose()
	return nil
}

func TestFixedLengthStream_PassesContextErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fixed := NewFixedLengthStream(FromChunks([]byte("a")), 1)
	_, err := fixed.Next(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	var e *errs.Error
	assert.True(t, errors.As(err, &e), "context errors are reported as *errs.Error")

	chunk, err := fixed.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), chunk)
}
