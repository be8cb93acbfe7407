// Package server is the streamd HTTP service: body echo, a key-value body
// store and a websocket echo, all flowing through the core stream adapters.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"worker/core/host"
	"worker/core/host/memhost"
	"worker/core/kv"
	"worker/core/metrics"
	"worker/core/streaming"
	"worker/streamd/pkg/config"
)

// Server wires configuration, shared data and routes together.
type Server struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	runtime  host.Runtime

	router   *mux.Router
	routes   *Routes
	app      *AppData
	upgrader websocket.Upgrader

	store     *kv.Store
	ownsStore bool
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the base logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRegistry sets the registry metrics are registered on and served from.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithRuntime sets the host runtime bodies are converted into.
func WithRuntime(rt host.Runtime) Option {
	return func(s *Server) { s.runtime = rt }
}

// WithStore binds an already open store instead of opening one from the
// configuration. The caller keeps ownership.
func WithStore(store *kv.Store) Option {
	return func(s *Server) { s.store = store }
}

// New builds a server from cfg. When the store binding is enabled and no
// store was given, it is opened here and closed by Close.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if s.runtime == nil {
		s.runtime = memhost.NewRuntime(cfg.Stream.Buffer)
	}

	s.app = NewAppData(s.runtime, cfg.Stream)
	if cfg.Store.Enabled {
		if s.store == nil {
			store, err := kv.Open(kv.Options{
				Path:       cfg.Store.Path,
				InMemory:   cfg.Store.InMemory,
				SyncWrites: cfg.Store.SyncWrites,
				Logger:     s.logger,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to open store: %w", err)
			}
			s.store, s.ownsStore = store, true
		}
		s.app.Bind(cfg.Store.Binding, s.store)
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	streamMetrics := metrics.NewStreamMetrics(s.registry)
	httpMetrics := metrics.NewHTTPMetrics(s.registry)

	s.router = mux.NewRouter()
	s.router.Use(requestContext(s.logger), httpMetrics.Middleware)
	s.routes = NewRoutes(s.router, s.app, cfg.Stream.ChunkSize.Int(), streaming.WithMetrics(streamMetrics))

	if err := s.registerRoutes(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Routes exposes the route registry for additional handlers.
func (s *Server) Routes() *Routes { return s.routes }

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return addCORS(s.router)
}

func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Run serves cleartext HTTP/1.1 and HTTP/2 on the configured address until
// ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.GetListenAddress(),
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("address", srv.Addr).
			Str("public_url", s.cfg.Server.PublicURL).
			Bool("store", s.cfg.Store.Enabled).
			Msg("Starting streamd server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	s.logger.Info().Msg("Shutting down streamd server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Close releases the store when the server opened it.
func (s *Server) Close() error {
	if s.ownsStore && s.store != nil {
		return s.store.Close()
	}
	return nil
}
