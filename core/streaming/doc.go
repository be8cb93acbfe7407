// Package streaming bridges host-owned body streams and the pull-based byte
// sequences consumed inside the worker.
//
// It is used on both sides of a request: inbound bodies arrive as host
// readable streams and are read through a ByteStream; outbound bodies with a
// known size are produced as a FixedLengthStream and handed back to the host
// with IntoHost.
//
// The package provides:
//   - Sequence, the pull contract: Next returns a chunk, io.EOF, or an error
//   - ByteStream, adapting a host.ReadableStream into a Sequence
//   - FixedLengthStream, enforcing a declared total size over any Sequence
//   - Body, the HTTP body contract (data chunks, no trailers)
//   - All, ReadAll and NewReader for range-over-func and io.Reader consumers
//
// Example usage (fixed-length echo):
//
//	body := streaming.NewByteStream(reqStream, streaming.WithLogger(logger))
//	fixed := streaming.NewFixedLengthStream(body, contentLength)
//	handle, err := fixed.IntoHost(ctx, runtime)
//	if err != nil {
//		return err
//	}
//	// hand handle.Readable() to the host as the response body
//
// Every failure is reported as an *errs.Error. A host stream that raises the
// "Error: aborted" exception ends normally instead.
package streaming
