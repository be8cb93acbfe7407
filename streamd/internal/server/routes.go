package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"worker/core/errs"
	"worker/core/host/httphost"
	"worker/core/streaming"
)

// HandlerFunc handles a matched route. A returned error is rendered as a JSON
// error response unless the handler already started the response.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, rc *RouteContext) error

// RouteContext carries what a handler needs besides the raw request.
type RouteContext struct {
	// Request gives single-read access to the body.
	Request *httphost.Request

	vars   map[string]string
	data   *AppData
	logger zerolog.Logger
	stream []streaming.Option
}

// Param returns a path variable.
func (rc *RouteContext) Param(name string) string { return rc.vars[name] }

// Data returns the shared application data registered with the router.
func (rc *RouteContext) Data() (*AppData, error) {
	if rc.data == nil {
		return nil, errs.ErrRouteNoData
	}
	return rc.data, nil
}

// Logger returns the request-scoped logger.
func (rc *RouteContext) Logger() zerolog.Logger { return rc.logger }

// StreamOptions returns options for streams created by the handler, tagged
// with direction.
func (rc *RouteContext) StreamOptions(direction string) []streaming.Option {
	return append(append([]streaming.Option(nil), rc.stream...),
		streaming.WithLogger(rc.logger),
		streaming.WithDirection(direction),
	)
}

// Routes registers handlers on a mux router and refuses duplicate
// method+pattern pairs.
type Routes struct {
	router    *mux.Router
	data      *AppData
	chunkSize int
	stream    []streaming.Option
	seen      map[string]struct{}
}

// NewRoutes creates a registry over router. data may be nil, in which case
// handlers asking for it fail with a RouteNoData error.
func NewRoutes(router *mux.Router, data *AppData, chunkSize int, stream ...streaming.Option) *Routes {
	return &Routes{
		router:    router,
		data:      data,
		chunkSize: chunkSize,
		stream:    stream,
		seen:      make(map[string]struct{}),
	}
}

// Handle registers h for method and pattern.
func (rt *Routes) Handle(method, pattern string, h HandlerFunc) error {
	return rt.HandleHTTP(method, pattern, rt.adapt(h))
}

// HandleHTTP registers a plain http.Handler for method and pattern.
func (rt *Routes) HandleHTTP(method, pattern string, h http.Handler) error {
	key := method + " " + pattern
	if _, dup := rt.seen[key]; dup {
		return errs.FromRouteInsert(pattern, fmt.Errorf("%s is already registered", key))
	}
	route := rt.router.Handle(pattern, h).Methods(method)
	if err := route.GetError(); err != nil {
		return errs.FromRouteInsert(pattern, err)
	}
	rt.seen[key] = struct{}{}
	return nil
}

func (rt *Routes) adapt(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context()).With().Logger()
		rc := &RouteContext{
			vars:   mux.Vars(r),
			data:   rt.data,
			logger: logger,
			stream: rt.stream,
		}
		rc.Request = httphost.NewRequest(r, rt.chunkSize, rc.StreamOptions(streaming.DirectionInbound)...)

		sw := newStatusWriter(w)
		err := h(sw, r, rc)
		if err == nil {
			return
		}
		if sw.started {
			logger.Warn().Err(err).Int("status", sw.status).Msg("Handler failed after response started")
			return
		}
		writeError(sw, logger, err)
	})
}
