package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"
	"github.com/zeusync/zeusnet/internal/core/network"
	"github.com/zeusync/zeusnet/internal/core/observability/log"
	"github.com/zeusync/zeusnet/internal/core/observability/metrics"
	"github.com/zeusync/zeusnet/internal/core/protocol"
	"github.com/zeusync/zeusnet/pkg/generic"
)

var (
	ErrNoSender = errors.New("session: no sender attached")
)

const defaultShards = 32

// Sender writes one datagram to a peer. *network.Socket implements it.
type Sender interface {
	SendTo(data []byte, addr *network.Address) error
}

// Handler receives session lifecycle notifications. Both methods run on the
// I/O goroutine, outside any table lock.
type Handler interface {
	OnConnect(client *Client, game, name string) error
	OnDisconnect(client *Client)
}

type shard struct {
	mu      sync.RWMutex
	clients map[network.AddressKey]*Client
}

// Manager is the table of live clients keyed by address. The table is
// split into shards, each with its own lock.
type Manager struct {
	sender  atomic.Pointer[Sender]
	handler atomic.Pointer[Handler]

	shards  []*shard
	clock   clock.Clock
	timeout time.Duration

	buffers *generic.Pool[*[]byte]
	metrics *metrics.Metrics
	logger  log.Log
}

type Option func(*Manager)

func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		m.clock = clk
	}
}

// WithTimeout sets the inactivity window after which clients are evicted.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

func WithShards(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.shards = newShards(n)
		}
	}
}

func WithMetrics(collectors *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = collectors
	}
}

func WithLogger(logger log.Log) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		shards:  newShards(defaultShards),
		clock:   clock.New(),
		timeout: DefaultTimeout,
		buffers: generic.NewPool(func() *[]byte {
			buf := make([]byte, 0, protocol.MaxDatagramSize)
			return &buf
		}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.Provide()
	}
	m.logger = m.logger.With(log.String("component", "session"))
	return m
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{clients: make(map[network.AddressKey]*Client)}
	}
	return shards
}

// SetSender attaches the socket replies are written to.
func (m *Manager) SetSender(sender Sender) {
	m.sender.Store(&sender)
}

// SetHandler attaches the consumer of connect and disconnect requests.
func (m *Manager) SetHandler(handler Handler) {
	m.handler.Store(&handler)
}

func (m *Manager) Timeout() time.Duration { return m.timeout }
func (m *Manager) Clock() clock.Clock     { return m.clock }

func (m *Manager) shardOf(addr *network.Address) *shard {
	b := addr.Bytes()
	return m.shards[xxhash.Sum64(b[:])%uint64(len(m.shards))]
}

// Get looks a client up by address.
func (m *Manager) Get(addr *network.Address) (*Client, bool) {
	s := m.shardOf(addr)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[addr.Key()]
	return c, ok
}

func (m *Manager) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.clients)
		s.mu.RUnlock()
	}
	return n
}

// Clients returns a snapshot of the table.
func (m *Manager) Clients() []*Client {
	var out []*Client
	for _, s := range m.shards {
		s.mu.RLock()
		for _, c := range s.clients {
			out = append(out, c)
		}
		s.mu.RUnlock()
	}
	return out
}

// AddClient registers addr on its first datagram and hands the datagram to
// ReceivePackets.
func (m *Manager) AddClient(addr *network.Address, datagram []byte) *Client {
	s := m.shardOf(addr)
	key := addr.Key()

	s.mu.Lock()
	c, ok := s.clients[key]
	if !ok {
		c = NewClient(addr, m.clock)
		s.clients[key] = c
	}
	s.mu.Unlock()

	if !ok {
		m.metrics.SessionOpened()
		m.logger.Info("Client connected",
			log.Stringer("address", addr),
			log.String("id", c.ID().String()),
		)
	}

	m.ReceivePackets(c, datagram)
	return c
}

// ReceivePackets decodes a datagram and routes each packet. Session level
// commands are handled here; everything else goes to the inbound queue.
func (m *Manager) ReceivePackets(c *Client, datagram []byte) {
	packets, err := protocol.DecodeDatagram(datagram)
	if err != nil {
		reason := metrics.ReasonMalformed
		if errors.Is(err, protocol.ErrUnknownCommand) || errors.Is(err, protocol.ErrUnknownVersion) {
			reason = metrics.ReasonUnknown
		}
		m.metrics.Dropped(reason)
		m.logger.Debug("Dropped malformed datagram",
			log.Stringer("address", c.Address()),
			log.Int("size", len(datagram)),
			log.Error(err),
		)
	}
	if len(packets) == 0 {
		return
	}

	m.metrics.ReceivedPackets(len(packets))
	c.KeepAlive()

	for _, p := range packets {
		m.dispatch(c, p)
	}
}

func (m *Manager) dispatch(c *Client, p protocol.Packet) {
	c.SetVersion(p.Header.Version)

	switch p.Header.Command {
	case protocol.ReqConnect:
		m.connect(c, p)
	case protocol.ReqDisconnect:
		c.Send(protocol.NewPacket(protocol.RepDisconnect).WithPriority(protocol.PriorityHigh))
		_ = m.Flush(c)
		m.remove(c, false)
	case protocol.ReqHeartbeat:
		if c.Game() != "" {
			c.Inbound.Push(p)
			return
		}
		c.Send(protocol.NewPacket(protocol.RepHeartbeat))
		_ = m.Flush(c)
	default:
		if c.Game() == "" {
			m.metrics.Dropped(metrics.ReasonNoGame)
			m.logger.Debug("Dropped packet from client outside any game",
				log.Stringer("address", c.Address()),
				log.Stringer("command", p.Header.Command),
			)
			return
		}
		c.Inbound.Push(p)
	}
}

// connect reads game:string and an optional name:string.
func (m *Manager) connect(c *Client, p protocol.Packet) {
	r := p.Reader()
	game, err := r.ReadString()
	if err != nil {
		m.metrics.Dropped(metrics.ReasonMalformed)
		return
	}
	var name string
	if r.Remaining() > 0 {
		if name, err = r.ReadString(); err != nil {
			m.metrics.Dropped(metrics.ReasonMalformed)
			return
		}
	}
	c.SetName(name)

	if current := c.Game(); current != "" {
		m.logger.Debug("Client already placed",
			log.Stringer("address", c.Address()),
			log.String("game", current),
		)
		return
	}

	h := m.handler.Load()
	if h == nil {
		return
	}
	if err := (*h).OnConnect(c, game, c.Name()); err != nil {
		m.metrics.Dropped(metrics.ReasonNoGame)
		m.logger.Warn("Client could not join game",
			log.Stringer("address", c.Address()),
			log.String("game", game),
			log.Error(err),
		)
		return
	}
	_ = m.Flush(c)
}

// Remove forgets a client and notifies the handler. It reports whether the
// client was still in the table.
func (m *Manager) Remove(c *Client) bool {
	return m.remove(c, false)
}

func (m *Manager) remove(c *Client, evicted bool) bool {
	s := m.shardOf(c.Address())
	key := c.Address().Key()

	s.mu.Lock()
	current, ok := s.clients[key]
	if ok && current == c {
		delete(s.clients, key)
	}
	s.mu.Unlock()
	if !ok || current != c {
		return false
	}

	m.closed(c, evicted)
	return true
}

func (m *Manager) closed(c *Client, evicted bool) {
	c.Close()
	m.metrics.SessionClosed(evicted)
	m.logger.Info("Client disconnected",
		log.Stringer("address", c.Address()),
		log.String("id", c.ID().String()),
		log.Bool("evicted", evicted),
	)
	if h := m.handler.Load(); h != nil {
		(*h).OnDisconnect(c)
	}
}

// CheckInactiveClients evicts every client silent for longer than the
// timeout and returns how many were removed.
func (m *Manager) CheckInactiveClients() int {
	var stale []*Client
	for _, s := range m.shards {
		s.mu.Lock()
		for key, c := range s.clients {
			if !c.IsConnected(m.timeout) {
				delete(s.clients, key)
				stale = append(stale, c)
			}
		}
		s.mu.Unlock()
	}

	for _, c := range stale {
		m.closed(c, true)
	}
	return len(stale)
}

// Send queues p for c. Nothing is written until Flush.
func (m *Manager) Send(c *Client, p *protocol.Packet) {
	c.Send(p)
}

// Flush writes every queued packet of c. Packets are concatenated into one
// datagram; a new datagram is started only when the next packet would not
// fit. A successful write counts as activity.
func (m *Manager) Flush(c *Client) error {
	packets := c.Outbound.DequeueAll()
	if len(packets) == 0 {
		return nil
	}

	bufp := m.buffers.Get()
	defer m.buffers.Put(bufp)

	var errs []error
	buf := (*bufp)[:0]
	for i := range packets {
		if len(buf) > 0 && len(buf)+packets[i].Size() > protocol.MaxDatagramSize {
			errs = append(errs, m.write(c, buf))
			buf = buf[:0]
		}
		next, err := packets[i].AppendTo(buf)
		if err != nil {
			m.metrics.Dropped(metrics.ReasonMalformed)
			m.logger.Warn("Dropped unencodable packet",
				log.Stringer("command", packets[i].Header.Command),
				log.Error(err),
			)
			continue
		}
		buf = next
	}
	if len(buf) > 0 {
		errs = append(errs, m.write(c, buf))
	}
	*bufp = buf[:0]

	return errors.Join(errs...)
}

func (m *Manager) write(c *Client, data []byte) error {
	sp := m.sender.Load()
	if sp == nil {
		m.metrics.Dropped(metrics.ReasonSendFailed)
		return ErrNoSender
	}

	if err := (*sp).SendTo(data, c.Address()); err != nil {
		m.metrics.Dropped(metrics.ReasonSendFailed)
		m.logger.Warn("Failed to send to client",
			log.Stringer("address", c.Address()),
			log.Int("size", len(data)),
			log.Error(err),
		)
		return err
	}

	m.metrics.Sent(len(data))
	c.KeepAlive()
	return nil
}
