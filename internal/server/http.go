package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zeusync/zeusnet/internal/core/observability/log"
)

// HTTPServer exposes /metrics for prometheus and /healthz with the server
// stats as JSON.
type HTTPServer struct {
	addr    string
	metrics http.Handler
	stats   func() Stats
	logger  log.Log

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewHTTPServer(addr string, gatherer prometheus.Gatherer, stats func() Stats, logger log.Log) *HTTPServer {
	return &HTTPServer{
		addr:    addr,
		metrics: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		stats:   stats,
		logger:  logger.With(log.String("component", "http")),
	}
}

// Start binds the listener; Serve then accepts on it.
func (s *HTTPServer) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = listener
	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

func (s *HTTPServer) Serve() error {
	s.mu.Lock()
	server, listener := s.server, s.listener
	s.mu.Unlock()
	if server == nil {
		return nil
	}

	s.logger.Info("HTTP endpoint listening", log.String("addr", listener.Addr().String()))
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Addr is the bound address once started, the configured one before.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/metrics":
		s.metrics.ServeHTTP(w, r)
	case "/healthz":
		s.handleHealth(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.stats()); err != nil {
		s.logger.Warn("Failed to write stats", log.Error(err))
	}
}
