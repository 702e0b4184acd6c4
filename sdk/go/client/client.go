// Package client is the UDP client SDK for zeusnet game servers.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/zeusync/zeusnet/internal/core/network"
	"github.com/zeusync/zeusnet/internal/core/observability/log"
	"github.com/zeusync/zeusnet/internal/core/protocol"
	"github.com/zeusync/zeusnet/pkg/sequence"
)

// Client joins one game on one server. Received packets are queued for
// NextPacket and handed to the handlers registered with OnPacket.
type Client struct {
	config Config
	logger log.Log

	socket *network.Socket
	mux    network.Multiplexer

	packets  *sequence.Queue[protocol.Packet]
	welcome  atomic.Pointer[Welcome]
	handlers map[protocol.CommandID][]PacketHandler
	mu       sync.RWMutex

	connected atomic.Bool
	closed    atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Config holds configuration for the client
type Config struct {
	Game string
	// Name is sent with REQ_CONNECT when set.
	Name string

	Host   string
	Port   uint16
	Family string

	// KeepAliveInterval bounds every wait; a wait that times out sends a
	// heartbeat.
	KeepAliveInterval time.Duration
	BatchSize         int

	LogLevel log.Level
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		Host:              "127.0.0.1",
		Port:              8081,
		Family:            network.IPv4.String(),
		KeepAliveInterval: time.Second,
		BatchSize:         32,
		LogLevel:          log.LevelInfo,
	}
}

func (c Config) validate() error {
	var errs error
	if c.Game == "" {
		errs = multierr.Append(errs, errors.New("game is empty"))
	}
	if c.KeepAliveInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("keepAliveInterval %s must be positive", c.KeepAliveInterval))
	}
	if c.BatchSize < 1 {
		errs = multierr.Append(errs, fmt.Errorf("batchSize %d is below 1", c.BatchSize))
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
	}
	return nil
}

// Welcome is the REP_CONNECT payload: the entity the server spawned for
// this client and where it lives.
type Welcome struct {
	Entity   uint64
	Scene    string
	Name     string
	Template string
}

// PacketHandler runs on the receive goroutine; it must not block.
type PacketHandler func(p protocol.Packet)

// New creates a client. A nil logger logs at config.LogLevel.
func New(config Config, logger log.Log) *Client {
	if logger == nil {
		logger = log.New(config.LogLevel)
	}
	return &Client{
		config:   config,
		logger:   logger.With(log.String("component", "client"), log.String("game", config.Game)),
		packets:  sequence.NewQueue[protocol.Packet](),
		handlers: make(map[protocol.CommandID][]PacketHandler),
	}
}

// Connect opens the socket, starts the receive loop and sends REQ_CONNECT.
// The server answers with REP_CONNECT once the client is placed; a client
// that has to wait for a seat gets nothing until then.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.config.validate(); err != nil {
		return err
	}
	if !c.connected.CompareAndSwap(false, true) {
		return ErrAlreadyConnected
	}

	if err := c.open(ctx); err != nil {
		c.connected.Store(false)
		c.logger.Error("Failed to connect to server",
			log.String("host", c.config.Host),
			log.Uint16("port", c.config.Port),
			log.Error(err),
		)
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(loopCtx)
	}()

	p := protocol.NewPacket(protocol.ReqConnect).WithPriority(protocol.PriorityCritical)
	if err := p.WriteString(c.config.Game); err != nil {
		return err
	}
	if c.config.Name != "" {
		if err := p.WriteString(c.config.Name); err != nil {
			return err
		}
	}
	if err := c.send(p); err != nil {
		return err
	}

	c.logger.Info("Connect request sent", log.Stringer("server", c.socket.Address()))
	return nil
}

func (c *Client) open(ctx context.Context) error {
	family, err := network.ParseIPFamily(c.config.Family)
	if err != nil {
		return err
	}
	addr, err := network.ResolveAddress(ctx, c.config.Host, c.config.Port, family, network.UDP)
	if err != nil {
		return err
	}
	socket, err := network.Open(addr, c.logger)
	if err != nil {
		return err
	}
	if err = socket.Connect(); err != nil {
		return multierr.Append(err, socket.Close())
	}
	mux, err := network.NewMultiplexer(network.MultiplexerAuto, c.config.KeepAliveInterval)
	if err != nil {
		return multierr.Append(err, socket.Close())
	}
	if err = mux.Add(socket.Fd()); err != nil {
		return multierr.Combine(err, mux.Close(), socket.Close())
	}
	c.socket, c.mux = socket, mux
	return nil
}

// run waits on the socket: a timeout sends a heartbeat, readiness drains a
// batch.
func (c *Client) run(ctx context.Context) {
	c.logger.Debug("Receive loop started")
	defer c.logger.Debug("Receive loop stopped")

	fd := c.socket.Fd()
	for ctx.Err() == nil {
		n, err := c.mux.Wait()
		if err != nil {
			if c.mux.IsRestartable(err) {
				continue
			}
			if ctx.Err() == nil {
				c.logger.Error("Wait failed", log.Error(err))
			}
			return
		}

		if n == 0 {
			if err := c.send(protocol.NewPacket(protocol.ReqHeartbeat)); err != nil && ctx.Err() == nil {
				c.logger.Warn("Heartbeat failed", log.Error(err))
			}
			continue
		}
		if !c.mux.IsReady(fd) {
			continue
		}

		datagrams, err := c.socket.ReceiveBatch(c.config.BatchSize)
		if err != nil {
			if errors.Is(err, network.ErrSocketClosed) {
				return
			}
			// a refused datagram surfaces here on a connected socket
			c.logger.Warn("Receive failed", log.Error(err))
		}
		for _, d := range datagrams {
			c.handleDatagram(d.Data)
		}
	}
}

func (c *Client) handleDatagram(data []byte) {
	packets, err := protocol.DecodeDatagram(data)
	if err != nil {
		c.logger.Warn("Received an invalid packet", log.Int("size", len(data)), log.Error(err))
	}
	for _, p := range packets {
		if p.Header.Command == protocol.RepConnect {
			c.handleWelcome(p)
		}
		c.packets.Push(p)

		c.mu.RLock()
		handlers := c.handlers[p.Header.Command]
		c.mu.RUnlock()
		for _, h := range handlers {
			h(p)
		}
	}
}

func (c *Client) handleWelcome(p protocol.Packet) {
	w, err := ReadWelcome(p)
	if err != nil {
		c.logger.Warn("Invalid connect reply", log.Error(err))
		return
	}
	c.welcome.Store(&w)
	c.logger.Info("Joined game",
		log.Uint64("entity", w.Entity),
		log.String("scene", w.Scene),
		log.String("template", w.Template),
	)
}

// ReadWelcome decodes a REP_CONNECT packet.
func ReadWelcome(p protocol.Packet) (Welcome, error) {
	var w Welcome
	if p.Header.Command != protocol.RepConnect {
		return w, fmt.Errorf("%w: %s", ErrInvalidWelcome, p.Header.Command)
	}
	r := p.Reader()
	var err error
	if w.Entity, err = r.ReadUint64(); err != nil {
		return w, fmt.Errorf("%w: %w", ErrInvalidWelcome, err)
	}
	for _, dst := range []*string{&w.Scene, &w.Name, &w.Template} {
		if *dst, err = r.ReadString(); err != nil {
			return w, fmt.Errorf("%w: %w", ErrInvalidWelcome, err)
		}
	}
	return w, nil
}

// Welcome returns the REP_CONNECT payload once the server placed the client.
func (c *Client) Welcome() (Welcome, bool) {
	w := c.welcome.Load()
	if w == nil {
		return Welcome{}, false
	}
	return *w, true
}

// OnPacket registers a handler for one command.
func (c *Client) OnPacket(cmd protocol.CommandID, handler PacketHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[cmd] = append(c.handlers[cmd], handler)
}

// NextPacket pops the oldest received packet.
func (c *Client) NextPacket() (protocol.Packet, bool) {
	return c.packets.Pop()
}

// SendPacket sends one packet in its own datagram.
func (c *Client) SendPacket(p *protocol.Packet) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if !c.connected.Load() {
		return ErrNotConnected
	}
	return c.send(p)
}

// SendUserUpdates sends the inputs of one frame. Nothing is sent when u is
// empty.
func (c *Client) SendUserUpdates(u protocol.UserUpdates) error {
	if u.Empty() {
		return nil
	}
	return c.SendPacket(protocol.NewUserUpdatesPacket(u))
}

func (c *Client) send(p *protocol.Packet) error {
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	return c.socket.Send(data)
}

// Disconnect sends REQ_DISCONNECT, stops the receive loop and closes the
// socket. Packets already received stay available to NextPacket.
func (c *Client) Disconnect() error {
	if !c.connected.CompareAndSwap(true, false) {
		return ErrNotConnected
	}
	c.logger.Info("Disconnecting from server")

	errs := c.send(protocol.NewPacket(protocol.ReqDisconnect).WithPriority(protocol.PriorityHigh))
	c.cancel()
	c.wg.Wait()
	errs = multierr.Append(errs, c.mux.Close())
	errs = multierr.Append(errs, c.socket.Close())
	c.welcome.Store(nil)
	return errs
}

// Close disconnects if needed. A closed client cannot connect again.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.connected.Load() {
		return c.Disconnect()
	}
	return nil
}

func (c *Client) IsConnected() bool { return c.connected.Load() }
func (c *Client) IsClosed() bool    { return c.closed.Load() }

// LocalAddress is the address the kernel bound the client socket to.
func (c *Client) LocalAddress() *network.Address {
	if !c.connected.Load() {
		return nil
	}
	return c.socket.LocalAddress()
}
