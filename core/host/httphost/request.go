package httphost

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"sync/atomic"

	"worker/core/errs"
	"worker/core/host"
	"worker/core/streaming"
)

// Request gives single-read access to an incoming request body.
type Request struct {
	r         *http.Request
	chunkSize int
	opts      []streaming.Option
	used      atomic.Bool
}

// NewRequest wraps r. opts are applied to every stream created from it.
func NewRequest(r *http.Request, chunkSize int, opts ...streaming.Option) *Request {
	return &Request{r: r, chunkSize: chunkSize, opts: opts}
}

// HTTP returns the wrapped request.
func (q *Request) HTTP() *http.Request { return q.r }

// Stream returns the body as a ByteStream. The body can be taken once; later
// calls fail with a BodyUsed error.
func (q *Request) Stream() (*streaming.ByteStream, error) {
	if !q.used.CompareAndSwap(false, true) {
		return nil, errs.ErrBodyUsed
	}
	return streaming.NewByteStream(NewRequestStream(q.r, q.chunkSize), q.opts...), nil
}

// FixedStream returns the body wrapped in a FixedLengthStream declared with
// the request's Content-Length. Requests without a known length fail with a
// 411 JSON error.
func (q *Request) FixedStream() (*streaming.FixedLengthStream, error) {
	if q.r.ContentLength < 0 {
		return nil, errs.JSONError("request body length is required", http.StatusLengthRequired)
	}
	body, err := q.Stream()
	if err != nil {
		return nil, err
	}
	return streaming.NewFixedLengthStream(body, uint64(q.r.ContentLength), q.opts...), nil
}

// Body returns the fixed-length body when the length is known and the plain
// stream otherwise.
func (q *Request) Body() (streaming.Sequence, error) {
	if q.r.ContentLength >= 0 {
		return q.FixedStream()
	}
	return q.Stream()
}

// Bytes reads the whole body.
func (q *Request) Bytes(ctx context.Context) ([]byte, error) {
	body, err := q.Body()
	if err != nil {
		return nil, err
	}
	return streaming.ReadAll(ctx, body)
}

// Text reads the whole body as a string.
func (q *Request) Text(ctx context.Context) (string, error) {
	b, err := q.Bytes(ctx)
	return string(b), err
}

// JSON decodes the body into out. The request must declare a JSON content
// type, otherwise a BadEncoding error is returned without reading the body.
func (q *Request) JSON(ctx context.Context, out any) error {
	if !IsJSON(q.r.Header.Get("Content-Type")) {
		return errs.ErrBadEncoding
	}
	b, err := q.Bytes(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errs.FromJSON(err)
	}
	return nil
}

// IsJSON reports whether contentType names JSON.
func IsJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

// WriteResponse sends the readable side of handle as the response body with
// a Content-Length taken from the handle. It returns once the body has been
// written or has failed; a failure after the header was sent leaves the
// response truncated, which clients detect through the length.
func WriteResponse(ctx context.Context, w http.ResponseWriter, status int, handle host.FixedLengthStream, opts ...streaming.Option) error {
	if err := errs.CheckStatus(status); err != nil {
		return err
	}
	length, ok := handle.Length().Uint64()
	if !ok {
		return errs.Newf("response length %s is out of range", handle.Length())
	}

	w.Header().Set("Content-Length", strconv.FormatUint(length, 10))
	w.WriteHeader(status)

	body := streaming.NewByteStream(handle.Readable(), opts...)
	defer body.Close()

	for chunk, err := range streaming.All(ctx, body) {
		if err != nil {
			return err
		}
		if _, werr := w.Write(chunk); werr != nil {
			return errs.HostError(host.Stringify(werr))
		}
	}
	return nil
}
