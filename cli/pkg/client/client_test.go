package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"worker/cli/pkg/config"
)

func newClient(t *testing.T, handler http.Handler, h2cEnabled bool) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(&config.Config{
		Server: config.ServerConfig{URL: srv.URL, H2C: h2cEnabled},
		Stream: config.StreamConfig{ChunkSize: 4},
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestPut(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/kv/report", r.URL.Path)
		assert.Equal(t, int64(11), r.ContentLength)
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "hello world", string(body))
		writeJSON(w, http.StatusCreated, map[string]any{"key": "report", "size": len(body)})
	}), false)

	result, err := c.Put(context.Background(), "report", strings.NewReader("hello world"), 11, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, &PutResult{Key: "report", Size: 11}, result)
}

func TestPut_Empty(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, int64(0), r.ContentLength)
		writeJSON(w, http.StatusCreated, map[string]any{"key": "empty", "size": 0})
	}), false)

	result, err := c.Put(context.Background(), "empty", strings.NewReader(""), 0, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Size)
}

func TestPut_ShortSource(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "kind": "host", "status": 400})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"key": "short", "size": 10})
	}), false)

	_, err := c.Put(context.Background(), "short", strings.NewReader("abc"), 10, "")
	require.Error(t, err)
}

func TestGet(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/kv/present":
			w.Header().Set("Content-Length", "9")
			_, _ = w.Write([]byte("contents!"))
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": "key not found (status: 404)", "kind": "json", "status": 404,
			})
		}
	}), false)

	var buf bytes.Buffer
	n, err := c.Get(context.Background(), "present", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
	assert.Equal(t, "contents!", buf.String())

	_, err = c.Get(context.Background(), "absent", io.Discard)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "json", apiErr.Kind)
	assert.Equal(t, "server returned 404 (json): key not found (status: 404)", apiErr.Error())
}

func TestGet_TruncatedResponse(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10")
		_, _ = w.Write([]byte("abc"))
	}), false)

	_, err := c.Get(context.Background(), "cut", io.Discard)
	assert.Error(t, err)
}

func TestGetJSON(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/kv/doc/json", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"pages": 3})
	}), false)

	var doc struct {
		Pages int `json:"pages"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "doc", &doc))
	assert.Equal(t, 3, doc.Pages)
}

func TestListAndDelete(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "a/", r.URL.Query().Get("prefix"))
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, map[string]any{"keys": []string{"a/1", "a/2"}})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	}), false)

	keys, err := c.List(context.Background(), "a/", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "a/2"}, keys)

	assert.NoError(t, c.Delete(context.Background(), "a/1"))
}

func TestEcho_Chunked(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, int64(-1), r.ContentLength)
		_, _ = io.Copy(w, r.Body)
	}), false)

	var buf bytes.Buffer
	n, err := c.Echo(context.Background(), strings.NewReader("streamed body"), -1, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
	assert.Equal(t, "streamed body", buf.String())
}

func TestH2C(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, 2, r.ProtoMajor)
		_, _ = io.Copy(w, r.Body)
	})
	c := newClient(t, h2c.NewHandler(handler, &http2.Server{}), true)

	var buf bytes.Buffer
	_, err := c.Echo(context.Background(), strings.NewReader("over h2c"), 8, &buf)
	require.NoError(t, err)
	assert.Equal(t, "over h2c", buf.String())
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(&config.Config{Server: config.ServerConfig{URL: "::"}})
	assert.Error(t, err)
}
