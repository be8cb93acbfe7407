// Package wshost backs host streams with a WebSocket connection. Each data
// message is one chunk; a normal close ends the stream and a going-away
// close is reported as an abort.
package wshost

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"worker/core/host"
)

// maxCloseReason is the longest reason a close frame can carry.
const maxCloseReason = 123

// closeTimeout bounds close frame writes when ctx has no deadline.
const closeTimeout = 5 * time.Second

// ReadableStream reads data messages from a WebSocket connection.
type ReadableStream struct {
	conn *websocket.Conn
}

var _ host.ReadableStream = (*ReadableStream)(nil)

// NewReadableStream wraps the read side of conn.
func NewReadableStream(conn *websocket.Conn) *ReadableStream {
	return &ReadableStream{conn: conn}
}

// Read implements host.ReadableStream. ctx deadlines become read deadlines.
func (s *ReadableStream) Read(ctx context.Context) (host.Value, bool, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	}
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived):
				return nil, true, nil
			case websocket.IsCloseError(err, websocket.CloseGoingAway):
				return nil, false, host.ErrAborted
			default:
				return nil, false, host.NewException(err.Error())
			}
		}
		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}
		return host.WrapBytes(data), false, nil
	}
}

// WritableStream writes binary messages to a WebSocket connection.
type WritableStream struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

var _ host.WritableStream = (*WritableStream)(nil)

// NewWritableStream wraps the write side of conn.
func NewWritableStream(conn *websocket.Conn) *WritableStream {
	return &WritableStream{conn: conn}
}

// Write implements host.WritableStream.
func (w *WritableStream) Write(ctx context.Context, v host.Value) error {
	arr, err := host.ToUint8Array(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = w.conn.SetWriteDeadline(deadline)
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, arr.ToBytes()); err != nil {
		return host.NewException(err.Error())
	}
	return nil
}

// Close implements host.WritableStream with a normal closure frame.
func (w *WritableStream) Close(ctx context.Context) error {
	return w.writeClose(ctx, websocket.CloseNormalClosure, "")
}

// Abort implements host.WritableStream. The rendered reason is sent in the
// close frame.
func (w *WritableStream) Abort(ctx context.Context, reason host.Value) error {
	return w.writeClose(ctx, websocket.CloseInternalServerErr, host.Stringify(reason))
}

func (w *WritableStream) writeClose(ctx context.Context, code int, reason string) error {
	if len(reason) > maxCloseReason {
		reason = strings.ToValidUTF8(reason[:maxCloseReason], "")
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(closeTimeout)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	if err != nil && err != websocket.ErrCloseSent {
		return host.NewException(err.Error())
	}
	return nil
}
