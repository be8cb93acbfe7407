package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"worker/core/errs"
	"worker/core/host"
	"worker/core/host/httphost"
	"worker/core/host/wshost"
	"worker/core/kv"
	"worker/core/streaming"
)

func (s *Server) registerRoutes() error {
	routes := []struct {
		method  string
		pattern string
		handler HandlerFunc
	}{
		{http.MethodGet, "/health", s.handleHealth},
		{http.MethodPost, "/v1/echo", s.handleEcho},
		{http.MethodGet, "/v1/kv", s.handleListKeys},
		{http.MethodGet, "/v1/kv/{key}/json", s.handleGetJSON},
		{http.MethodPut, "/v1/kv/{key}", s.handlePut},
		{http.MethodGet, "/v1/kv/{key}", s.handleGet},
		{http.MethodDelete, "/v1/kv/{key}", s.handleDelete},
		{http.MethodGet, "/v1/ws/echo", s.handleWebSocketEcho},
	}
	for _, route := range routes {
		if err := s.routes.Handle(route.method, route.pattern, route.handler); err != nil {
			return err
		}
	}
	return s.routes.HandleHTTP(http.MethodGet, "/metrics", s.metricsHandler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, rc *RouteContext) error {
	writeJSON(w, rc.Logger(), http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "streamd",
	})
	return nil
}

// handleEcho returns the request body. A body of known length goes through a
// host fixed-length stream and is answered with the same Content-Length;
// otherwise it is streamed back chunked.
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request, rc *RouteContext) error {
	app, err := rc.Data()
	if err != nil {
		return err
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	// The body is read while the response is written.
	_ = http.NewResponseController(w).EnableFullDuplex()

	if r.ContentLength >= 0 {
		if err := checkLength(app, r.ContentLength); err != nil {
			return err
		}
		body, err := rc.Request.FixedStream()
		if err != nil {
			return err
		}
		handle, err := body.IntoHost(r.Context(), app.Runtime)
		if err != nil {
			return err
		}
		return httphost.WriteResponse(r.Context(), w, http.StatusOK, handle, rc.StreamOptions(streaming.DirectionOutbound)...)
	}

	body, err := rc.Request.Stream()
	if err != nil {
		return err
	}
	defer body.Close()

	w.WriteHeader(http.StatusOK)
	ctrl := http.NewResponseController(w)
	for chunk, err := range streaming.All(r.Context(), body) {
		if err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return errs.HostError(host.Stringify(err))
		}
		_ = ctrl.Flush()
	}
	return nil
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, rc *RouteContext) error {
	app, store, err := s.binding(rc)
	if err != nil {
		return err
	}
	if err := checkLength(app, r.ContentLength); err != nil {
		return err
	}
	body, err := rc.Request.FixedStream()
	if err != nil {
		return err
	}

	data, err := streaming.ReadAll(r.Context(), body)
	if err != nil {
		return err
	}
	key := rc.Param("key")
	if err := store.Put(r.Context(), key, data, r.Header.Get("Content-Type")); err != nil {
		return err
	}

	writeJSON(w, rc.Logger(), http.StatusCreated, map[string]any{"key": key, "size": len(data)})
	return nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, rc *RouteContext) error {
	_, store, err := s.binding(rc)
	if err != nil {
		return err
	}
	entry, err := lookup(r.Context(), store, rc.Param("key"))
	if err != nil {
		return err
	}
	return s.writeFixed(w, r, rc, entry.ContentType, entry.Value)
}

// handleGetJSON re-encodes a stored JSON document compactly.
func (s *Server) handleGetJSON(w http.ResponseWriter, r *http.Request, rc *RouteContext) error {
	_, store, err := s.binding(rc)
	if err != nil {
		return err
	}
	entry, err := lookup(r.Context(), store, rc.Param("key"))
	if err != nil {
		return err
	}
	if !httphost.IsJSON(entry.ContentType) {
		return errs.ErrBadEncoding
	}

	var doc any
	if err := host.Decode(entry.Value, &doc); err != nil {
		return errs.FromValueConversion(err)
	}
	compact, err := json.Marshal(doc)
	if err != nil {
		return errs.FromJSON(err)
	}
	return s.writeFixed(w, r, rc, "application/json", compact)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, rc *RouteContext) error {
	_, store, err := s.binding(rc)
	if err != nil {
		return err
	}
	if err := store.Delete(r.Context(), rc.Param("key")); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return errs.JSONError("key not found", http.StatusNotFound)
		}
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request, rc *RouteContext) error {
	_, store, err := s.binding(rc)
	if err != nil {
		return err
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return errs.JSONError(fmt.Sprintf("invalid limit %q", raw), http.StatusBadRequest)
		}
	}
	keys, err := store.List(r.Context(), r.URL.Query().Get("prefix"), limit)
	if err != nil {
		return err
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, rc.Logger(), http.StatusOK, map[string]any{"keys": keys})
	return nil
}

// handleWebSocketEcho sends every received message back as a binary message.
// Errors after the upgrade are logged; the close frame tells the client.
func (s *Server) handleWebSocketEcho(w http.ResponseWriter, r *http.Request, rc *RouteContext) error {
	logger := rc.Logger()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug().Err(err).Msg("WebSocket upgrade failed")
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(int64(s.cfg.WebSocket.MessageSizeLimit))

	body := streaming.NewByteStream(wshost.NewReadableStream(conn), rc.StreamOptions(streaming.DirectionInbound)...)
	defer body.Close()

	err = host.Pipe(r.Context(), streaming.HostReadable(body), wshost.NewWritableStream(conn))
	if err != nil {
		logger.Warn().Err(err).Msg("WebSocket echo ended with error")
		return nil
	}
	logger.Debug().Msg("WebSocket echo closed")
	return nil
}

func (s *Server) binding(rc *RouteContext) (*AppData, *kv.Store, error) {
	app, err := rc.Data()
	if err != nil {
		return nil, nil, err
	}
	store, err := app.Store(s.cfg.Store.Binding)
	if err != nil {
		return nil, nil, err
	}
	return app, store, nil
}

func (s *Server) writeFixed(w http.ResponseWriter, r *http.Request, rc *RouteContext, contentType string, data []byte) error {
	app, err := rc.Data()
	if err != nil {
		return err
	}
	opts := rc.StreamOptions(streaming.DirectionOutbound)
	body := streaming.NewFixedLengthStream(streaming.FromChunks(data), uint64(len(data)), opts...)
	handle, err := body.IntoHost(r.Context(), app.Runtime)
	if err != nil {
		return err
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	return httphost.WriteResponse(r.Context(), w, http.StatusOK, handle, opts...)
}

func lookup(ctx context.Context, store *kv.Store, key string) (kv.Entry, error) {
	entry, err := store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return kv.Entry{}, errs.JSONError("key not found", http.StatusNotFound)
	}
	return entry, err
}

func checkLength(app *AppData, length int64) error {
	if length >= 0 && !app.Stream.AllowsLength(uint64(length)) {
		return errs.JSONError(
			fmt.Sprintf("request body of %d bytes exceeds the limit of %d", length, app.Stream.MaxFixedLength),
			http.StatusRequestEntityTooLarge)
	}
	return nil
}
