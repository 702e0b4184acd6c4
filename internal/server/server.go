// Package server runs the UDP game server: one socket, one I/O goroutine
// feeding the session table, and the game instances the game manager runs.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/zeusnet/internal/core/game"
	"github.com/zeusync/zeusnet/internal/core/network"
	"github.com/zeusync/zeusnet/internal/core/observability/log"
	"github.com/zeusync/zeusnet/internal/core/observability/metrics"
	"github.com/zeusync/zeusnet/internal/core/session"
)

// Server represents a zeusnet game server
type Server struct {
	config   Config
	logger   log.Log
	metrics  *metrics.Metrics
	sessions *session.Manager
	games    *game.Manager
	http     *HTTPServer
	console  *Console

	mu     sync.Mutex
	socket *network.Socket
	mux    network.Multiplexer
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}

	running atomic.Bool
	closed  atomic.Bool
}

// Stats is a snapshot of the server state.
type Stats struct {
	Running bool        `json:"running"`
	Clients int         `json:"clients"`
	Games   []GameStats `json:"games"`
}

type GameStats struct {
	Name      string `json:"name"`
	Instances int    `json:"instances"`
	Players   int    `json:"players"`
	Waiting   int    `json:"waiting"`
}

// New wires a server around the session table and the game manager. The
// gatherer backs the /metrics endpoint and may be nil.
func New(config Config, logger log.Log, collectors *metrics.Metrics, gatherer prometheus.Gatherer, sessions *session.Manager, games *game.Manager) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	s := &Server{
		config:   config,
		logger:   logger.With(log.String("component", "server")),
		metrics:  collectors,
		sessions: sessions,
		games:    games,
		quit:     make(chan struct{}),
	}
	if config.MetricsAddr != "" && gatherer != nil {
		s.http = NewHTTPServer(config.MetricsAddr, gatherer, s.Stats, logger)
	}
	s.console = NewConsole(s, os.Stdout)

	s.logger.Info("Server created",
		log.String("host", config.Host),
		log.Uint16("port", config.Port),
		log.String("game_dir", config.GameDir),
	)
	return s
}

// Start binds the socket and starts the I/O loop and the HTTP endpoint.
func (s *Server) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	if err := s.listen(ctx); err != nil {
		s.running.Store(false)
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}

	s.sessions.SetSender(s.socket)
	s.sessions.SetHandler(s.games)

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.group, s.ctx = errgroup.WithContext(s.ctx)
	s.group.Go(func() error {
		return s.serve(s.ctx)
	})
	if s.http != nil {
		if err := s.http.Start(); err != nil {
			s.logger.Warn("Metrics endpoint disabled", log.Error(err))
		} else {
			s.group.Go(s.http.Serve)
		}
	}
	s.mu.Unlock()

	if s.config.Console {
		go s.console.Run(s.ctx, os.Stdin)
	}

	s.logger.Info("Server listening", log.Stringer("addr", s.Address()))
	return nil
}

func (s *Server) listen(ctx context.Context) error {
	family, err := network.ParseIPFamily(s.config.Family)
	if err != nil {
		return err
	}
	addr, err := network.ResolveAddress(ctx, s.config.Host, s.config.Port, family, network.UDP)
	if err != nil {
		return err
	}

	socket, err := network.Open(addr, s.logger)
	if err != nil {
		return err
	}
	if err = socket.Bind(); err != nil {
		return multierr.Append(err, socket.Close())
	}

	mux, err := network.NewMultiplexer(s.config.Multiplexer, s.config.PollTimeout)
	if err != nil {
		return multierr.Append(err, socket.Close())
	}
	if err = mux.Add(socket.Fd()); err != nil {
		return multierr.Combine(err, mux.Close(), socket.Close())
	}

	s.mu.Lock()
	s.socket, s.mux = socket, mux
	s.mu.Unlock()
	return nil
}

// serve is the I/O loop: wait, receive a batch, route every datagram.
// Silent clients are evicted on every wait timeout, and at least once per
// poll interval while traffic keeps the socket busy.
func (s *Server) serve(ctx context.Context) error {
	s.logger.Debug("I/O loop started")
	defer s.logger.Debug("I/O loop stopped")

	fd := s.socket.Fd()
	clk := s.sessions.Clock()
	lastCheck := clk.Now()

	for ctx.Err() == nil {
		n, err := s.mux.Wait()
		if err != nil {
			if s.mux.IsRestartable(err) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return &network.TransportError{Op: "wait", Address: s.socket.Address(), Err: err}
		}

		if n == 0 || clk.Since(lastCheck) >= s.config.PollTimeout {
			if evicted := s.sessions.CheckInactiveClients(); evicted > 0 {
				s.logger.Debug("Inactive clients evicted", log.Int("count", evicted))
			}
			lastCheck = clk.Now()
		}
		if n == 0 || !s.mux.IsReady(fd) {
			continue
		}

		datagrams, err := s.socket.ReceiveBatch(s.config.BatchSize)
		if err != nil {
			if errors.Is(err, network.ErrSocketClosed) {
				return nil
			}
			s.logger.Warn("Receive failed", log.Error(err))
		}
		s.metrics.ReceivedBatch(len(datagrams))
		for _, d := range datagrams {
			s.sessions.AddClient(d.From, d.Data)
		}
	}
	return nil
}

// Run starts the server and blocks until ctx is done, the console asks to
// quit or the I/O loop fails.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-s.quit:
	case <-s.ctx.Done():
	}
	return s.Stop(context.Background())
}

// Stop joins the I/O loop, shuts every game down and releases the socket.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrServerNotRunning
	}
	s.logger.Info("Stopping server")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	var errs error
	if s.http != nil {
		errs = multierr.Append(errs, s.http.Stop(ctx))
	}
	errs = multierr.Append(errs, s.group.Wait())

	s.games.Shutdown()
	errs = multierr.Append(errs, s.mux.Close())
	errs = multierr.Append(errs, s.socket.Close())

	s.logger.Info("Server stopped")
	return errs
}

// Close stops the server if needed. A closed server cannot be restarted.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.running.Load() {
		return s.Stop(context.Background())
	}
	return nil
}

// requestStop makes Run return.
func (s *Server) requestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
}

// Address is the bound address, with the port the kernel picked when the
// configured port was 0.
func (s *Server) Address() *network.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.socket == nil {
		return nil
	}
	return s.socket.LocalAddress()
}

func (s *Server) Sessions() *session.Manager { return s.sessions }
func (s *Server) Games() *game.Manager       { return s.games }

// MetricsAddr is the address the HTTP endpoint listens on, if any.
func (s *Server) MetricsAddr() string {
	if s.http == nil {
		return ""
	}
	return s.http.Addr()
}

func (s *Server) Stats() Stats {
	stats := Stats{
		Running: s.running.Load(),
		Clients: s.sessions.Len(),
	}
	for _, name := range s.games.ListGames() {
		gs := GameStats{Name: name, Waiting: s.games.WaitingLen(name)}
		for _, inst := range s.games.Instances(name) {
			gs.Instances++
			gs.Players += inst.PlayerCount()
		}
		stats.Games = append(stats.Games, gs)
	}
	return stats
}
