package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ironclad-authz/ironclad/internal/domain/auth"
	"github.com/ironclad-authz/ironclad/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// mutatingPaths lists the endpoints guarded by AdminAuthMiddleware. GET
// /_status, POST /allowed, and GET /metrics remain open since they only
// read state.
var mutatingPaths = []string{
	"/policies",
	"/identities",
	"/groups",
	"/group/",
}

// HTTPTransport is the inbound adapter that serves ironclad's
// authorization decision API.
type HTTPTransport struct {
	manager       *storage.Manager
	authenticator *auth.Authenticator
	server        *http.Server
	addr          string
	logger        *slog.Logger
}

// Option is a functional option for configuring HTTPTransport.
type Option func(*HTTPTransport)

// WithAddr sets the listen address for the HTTP server.
func WithAddr(addr string) Option {
	return func(t *HTTPTransport) {
		t.addr = addr
	}
}

// WithLogger sets the logger for the HTTP transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// NewHTTPTransport creates an HTTP transport adapter wrapping the given
// storage manager and admin authenticator.
func NewHTTPTransport(manager *storage.Manager, authenticator *auth.Authenticator, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		manager:       manager,
		authenticator: authenticator,
		addr:          "127.0.0.1:8091",
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Start begins accepting HTTP connections. It blocks until the context is
// cancelled or the server errors.
func (t *HTTPTransport) Start(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(reg)

	handler := NewHandler(t.manager, metrics)
	apiMux := handler.Mux()

	guarded := AdminAuthMiddleware(t.authenticator)(apiMux)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/_status", apiMux)
	mux.Handle("/allowed", apiMux)
	for _, path := range mutatingPaths {
		mux.Handle(path, guarded)
	}

	var chain http.Handler = mux
	chain = RequestIDMiddleware(t.logger)(chain)
	chain = MetricsMiddleware(metrics)(chain)

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: chain,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting HTTP server", "addr", t.addr)
		err := t.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *HTTPTransport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *HTTPTransport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
