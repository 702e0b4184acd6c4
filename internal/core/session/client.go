// Package session tracks remote clients: their liveness, their per-tick
// packet queues and the table that maps addresses to them.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/zeusync/zeusnet/internal/core/network"
	"github.com/zeusync/zeusnet/internal/core/protocol"
	"github.com/zeusync/zeusnet/pkg/sequence"
)

// DefaultTimeout is how long a client may stay silent before it is evicted.
const DefaultTimeout = 5 * time.Second

// State is the liveness of a client relative to a timeout.
type State uint8

const (
	Active State = iota
	Stale
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "stale"
}

// Client is the server side view of one remote peer. It never owns a
// socket; replies go through the Manager that created it.
type Client struct {
	id      uuid.UUID
	address *network.Address
	clock   clock.Clock

	lastActivity atomic.Int64
	closed       atomic.Bool
	sequence     atomic.Uint32

	mu      sync.RWMutex
	game    string
	scene   string
	name    string
	entity  uint64
	version protocol.Version

	// Inbound is filled by the I/O goroutine and drained by the game loop.
	Inbound *sequence.Queue[protocol.Packet]
	// Outbound holds replies until the next flush, highest priority first.
	Outbound *sequence.PriorityQueue[protocol.Packet]
}

// NewClient creates a client whose activity clock starts now.
func NewClient(address *network.Address, clk clock.Clock) *Client {
	if address == nil {
		panic("session: nil client address")
	}
	if clk == nil {
		clk = clock.New()
	}

	c := &Client{
		id:       uuid.New(),
		address:  address,
		clock:    clk,
		name:     address.String(),
		version:  protocol.CurrentVersion,
		Inbound:  sequence.NewQueue[protocol.Packet](),
		Outbound: sequence.NewPriorityQueue[protocol.Packet](),
	}
	c.KeepAlive()
	return c
}

func (c *Client) ID() uuid.UUID             { return c.id }
func (c *Client) Address() *network.Address { return c.address }

// KeepAlive marks the client as reachable now.
func (c *Client) KeepAlive() {
	c.lastActivity.Store(c.clock.Now().UnixNano())
}

func (c *Client) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// IsConnected reports whether the client was active within timeout. It has
// no side effects.
func (c *Client) IsConnected(timeout time.Duration) bool {
	if c.closed.Load() {
		return false
	}
	return c.clock.Since(c.LastActivity()) < timeout
}

func (c *Client) State(timeout time.Duration) State {
	if c.IsConnected(timeout) {
		return Active
	}
	return Stale
}

// Close marks the client as gone. Games notice on their next tick.
func (c *Client) Close() {
	c.closed.Store(true)
}

func (c *Client) Closed() bool {
	return c.closed.Load()
}

// Send queues a packet for the next flush. The sequence number is assigned
// here so it follows enqueue order.
func (c *Client) Send(p *protocol.Packet) {
	if p == nil {
		return
	}
	packet := *p
	packet.Header.Version = c.Version()
	packet.Header.Sequence = c.sequence.Add(1)
	c.Outbound.Enqueue(packet, int(packet.Header.Priority))
}

// Placement returns the game and scene the client is assigned to.
func (c *Client) Placement() (game, scene string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.game, c.scene
}

func (c *Client) SetGame(game string) {
	c.mu.Lock()
	c.game = game
	c.mu.Unlock()
}

func (c *Client) Game() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.game
}

func (c *Client) SetScene(scene string) {
	c.mu.Lock()
	c.scene = scene
	c.mu.Unlock()
}

func (c *Client) Scene() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scene
}

func (c *Client) SetName(name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

func (c *Client) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Client) SetEntity(entity uint64) {
	c.mu.Lock()
	c.entity = entity
	c.mu.Unlock()
}

func (c *Client) Entity() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entity
}

// SetVersion records the protocol version the peer speaks. Replies are
// encoded with it.
func (c *Client) SetVersion(version protocol.Version) {
	if !version.Valid() {
		return
	}
	c.mu.Lock()
	c.version = version
	c.mu.Unlock()
}

func (c *Client) Version() protocol.Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
