package server

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Server serves the greeting and collection routes plus operational
// endpoints. All state is injected; nothing lives in package globals.
type Server struct {
	httpServer *http.Server
	handler    http.Handler

	store     *Store
	audit     AuditRecorder
	snapshots *SnapshotExporter
	metrics   *Metrics
	limiter   *rateLimiter
	ips       *ipResolver

	build     BuildInfo
	startedAt time.Time
}

// Option configures optional dependencies.
type Option func(*Server)

// WithAudit records every mutation through a.
func WithAudit(a AuditRecorder) Option {
	return func(s *Server) { s.audit = a }
}

// WithSnapshots enables POST /admin/snapshot.
func WithSnapshots(e *SnapshotExporter) Option {
	return func(s *Server) { s.snapshots = e }
}

// WithMetrics shares a metrics instance, e.g. with the snapshot scheduler.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New wires routes and middleware around store.
func New(cfg Config, store *Store, opts ...Option) *Server {
	s := &Server{
		store:     store,
		build:     cfg.Build,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	ips, err := newIPResolver(cfg.TrustedProxies)
	if err != nil {
		Warn("ignoring trusted proxies", map[string]any{"error": err.Error()})
		ips = &ipResolver{}
	}
	s.ips = ips

	mux := http.NewServeMux()
	s.registerHelloRoutes(mux)
	s.registerAdminRoutes(mux)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /live", s.handleLive)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Outermost first: requestID -> security -> rate limit -> gzip -> logging -> mux
	var handler http.Handler = mux
	handler = s.loggingMiddleware(handler)
	if cfg.Compression {
		handler = CompressionMiddleware(handler)
	}
	if cfg.RateLimit.Requests > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		s.limiter.clientIP = s.ips.clientIP
		handler = s.limiter.middleware(handler)
	}
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the server's metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown drains in-flight requests and stops background work.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) uptime() time.Duration {
	return time.Since(s.startedAt)
}
