package wshost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worker/core/host"
	"worker/core/streaming"
)

// echoServer pipes every message it receives back to the client through a
// ByteStream and reports the pipe outcome on result.
func echoServer(t *testing.T, result chan<- error) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			result <- err
			return
		}
		defer conn.Close()

		body := streaming.NewByteStream(NewReadableStream(conn))
		result <- host.Pipe(context.Background(), streaming.HostReadable(body), NewWritableStream(conn))
	}))
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEcho(t *testing.T) {
	result := make(chan error, 1)
	srv := echoServer(t, result)
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	for _, msg := range []string{"hello", "websocket"} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		messageType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, messageType)
		assert.Equal(t, msg, string(data))
	}

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server pipe did not finish")
	}
}

func TestGoingAwayEndsBody(t *testing.T) {
	result := make(chan error, 1)
	srv := echoServer(t, result)
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "tab closed")))

	select {
	case err := <-result:
		assert.NoError(t, err, "going away is an abort, not a failure")
	case <-time.After(5 * time.Second):
		t.Fatal("server pipe did not finish")
	}
}

func TestWritableStream_RejectsNonBytes(t *testing.T) {
	w := NewWritableStream(nil)
	err := w.Write(context.Background(), 12)
	require.Error(t, err)
	assert.Equal(t, "TypeError: number is not a Uint8Array", host.Stringify(err))
}
