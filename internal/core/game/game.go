// Package game runs game instances: it loads game definitions, builds one
// ECS registry per scene, runs the tick loop that turns client input into
// simulation and simulation changes into packets, and places clients into
// instances.
package game

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/ecs/components"
	"github.com/zeusync/zeusnet/internal/core/events/bus"
	"github.com/zeusync/zeusnet/internal/core/observability/log"
	"github.com/zeusync/zeusnet/internal/core/observability/metrics"
	"github.com/zeusync/zeusnet/internal/core/protocol"
	"github.com/zeusync/zeusnet/internal/core/protocol/codec"
	"github.com/zeusync/zeusnet/internal/core/session"
	"github.com/zeusync/zeusnet/internal/core/systems"
)

const (
	DefaultMaxPacketsPerTick = 20
	DefaultMinTickInterval   = time.Millisecond

	defaultBulletTemplate = "Bullet"
)

// Flusher writes the queued packets of a client. *session.Manager
// implements it.
type Flusher interface {
	Flush(c *session.Client) error
}

// Options are shared by every instance a Manager creates.
type Options struct {
	// MaxPacketsPerTick bounds how many inbound packets of one client a
	// tick handles; the rest wait for the next tick.
	MaxPacketsPerTick int
	// MinTickInterval is the shortest tick. Zero lets the loop spin.
	MinTickInterval time.Duration
	ClientTimeout   time.Duration

	Clock     clock.Clock
	Codecs    *codec.Registry
	Resources *ResourceManager
	Flusher   Flusher
	Metrics   *metrics.Metrics
	Logger    log.Log
}

func (o Options) withDefaults() Options {
	if o.MaxPacketsPerTick <= 0 {
		o.MaxPacketsPerTick = DefaultMaxPacketsPerTick
	}
	if o.MinTickInterval < 0 {
		o.MinTickInterval = 0
	}
	if o.ClientTimeout <= 0 {
		o.ClientTimeout = session.DefaultTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Codecs == nil {
		o.Codecs = codec.NewRegistry()
		_ = components.RegisterStandard(o.Codecs)
	}
	if o.Resources == nil {
		o.Resources = NewResourceManager()
	}
	if o.Logger == nil {
		o.Logger = log.Provide()
	}
	return o
}

type scene struct {
	name     string
	config   *Scene
	world    ecs.Registry
	contacts *systems.Contacts
}

// Game is one running instance of a game definition.
type Game struct {
	id     uuid.UUID
	config *Config
	opts   Options
	bus    bus.EventBus
	logger log.Log

	mu      sync.Mutex
	scenes  map[string]*scene
	players []*session.Client
	last    time.Time

	ticks   atomic.Uint64
	running atomic.Bool
	life    sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewGame builds an instance with its start scene loaded.
func NewGame(cfg *Config, opts Options) (*Game, error) {
	if len(cfg.Scenes) == 0 {
		return nil, fmt.Errorf("%s: %w", cfg.Title, ErrNoScenes)
	}

	opts = opts.withDefaults()
	g := &Game{
		id:     uuid.New(),
		config: cfg,
		opts:   opts,
		bus:    bus.New(bus.WithClock(opts.Clock)),
		scenes: make(map[string]*scene),
		last:   opts.Clock.Now(),
	}
	if opts.Metrics != nil {
		g.bus.AddObserver(opts.Metrics)
	}
	g.logger = opts.Logger.With(
		log.String("component", "game"),
		log.String("game", cfg.Title),
		log.String("instance", g.id.String()),
	)

	if err := g.loadScene(cfg.StartGame); err != nil {
		return nil, err
	}
	opts.Resources.AddScene(cfg, cfg.StartGame)
	return g, nil
}

func (g *Game) ID() uuid.UUID   { return g.id }
func (g *Game) Name() string    { return g.config.Title }
func (g *Game) Config() *Config { return g.config }
func (g *Game) Running() bool   { return g.running.Load() }
func (g *Game) Ticks() uint64   { return g.ticks.Load() }

// Bus is the event bus systems of this instance publish on.
func (g *Game) Bus() bus.EventBus {
	return g.bus
}

// World returns the registry of a loaded scene.
func (g *Game) World(name string) (ecs.Registry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sc, ok := g.scenes[name]
	if !ok {
		return nil, false
	}
	return sc.world, true
}

func (g *Game) Players() []*session.Client {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.players)
}

func (g *Game) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

// HasPlayer reports whether c is one of the players.
func (g *Game) HasPlayer(c *session.Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Contains(g.players, c)
}

// loadScene builds the registry of a scene: its systems in configuration
// order, input control first when the scene does not place it, and one
// entity per entity entry.
func (g *Game) loadScene(name string) error {
	cfg, ok := g.config.Scene(name)
	if !ok {
		return fmt.Errorf("%w: scene %q of %s", protocol.ErrInvalidConfig, name, g.config.Title)
	}

	world, err := ecs.New(g.config.Engine)
	if err != nil {
		return err
	}
	sc := &scene{name: name, config: cfg, world: world, contacts: &systems.Contacts{}}

	ctx := systems.Context{
		Scene:    name,
		Bus:      g.bus,
		Bounds:   g.config.World,
		Contacts: sc.contacts,
		Logger:   g.logger,
	}
	names := cfg.Systems
	if !slices.Contains(names, "control") {
		names = append([]string{"control"}, names...)
	}
	for _, n := range names {
		s, err := systems.New(n, ctx)
		if err != nil {
			return err
		}
		world.AddSystem(s)
	}

	for _, ref := range cfg.Entities {
		if _, err := g.spawnTemplate(sc, ref.Template); err != nil {
			g.logger.Warn("Entity loaded with errors",
				log.String("scene", name),
				log.String("entity", ref.Name),
				log.Error(err),
			)
		}
	}

	if err := g.subscribe(name); err != nil {
		return err
	}
	g.scenes[name] = sc
	return nil
}

// spawnTemplate creates an entity from a template of the scene and tags it
// with the template id. Components that fail to decode are skipped and
// reported.
func (g *Game) spawnTemplate(sc *scene, id string) (ecs.Entity, error) {
	def, ok := g.opts.Resources.Template(g.config, sc.name, id)
	if !ok {
		if def, ok = sc.config.Template(id); !ok {
			return ecs.Null, fmt.Errorf("%w: template %q", components.ErrUnknownComponent, id)
		}
	}

	e := sc.world.Spawn()
	built, buildErr := def.Build()
	for _, c := range built {
		if err := sc.world.Set(e, c); err != nil {
			return e, err
		}
	}
	if err := sc.world.Set(e, &components.Template{Name: id}); err != nil {
		return e, err
	}
	return e, buildErr
}

// subscribe turns the entity events of one scene into broadcasts.
func (g *Game) subscribe(name string) error {
	handlers := []struct {
		typ     string
		handler bus.EventHandler
	}{
		{systems.EventMoved, g.broadcastEntity(protocol.ReqEntityMoved, movedComponents...)},
		{systems.EventSpawned, g.broadcastEntity(protocol.ReqEntitySpawn)},
		{systems.EventDamaged, g.broadcastEntity(protocol.ReqEntityUpdate, updateComponents...)},
		{systems.EventDestroyed, g.broadcastDestroy},
	}
	for _, h := range handlers {
		if _, err := g.bus.SubscribeTopic(name, h.typ, h.handler); err != nil {
			return err
		}
	}
	return nil
}

func (g *Game) broadcastDestroy(ev bus.Event) error {
	e := ev.Data().(systems.EntityEvent)
	g.broadcast(e.Scene, entityIDPacket(protocol.ReqEntityDestroy, e.Entity), nil)
	return nil
}

// broadcastEntity runs inside the tick, with g.mu held.
func (g *Game) broadcastEntity(cmd protocol.CommandID, hashes ...codec.ComponentHash) bus.EventHandler {
	return func(ev bus.Event) error {
		e := ev.Data().(systems.EntityEvent)
		sc, ok := g.scenes[e.Scene]
		if !ok || !sc.world.Alive(e.Entity) {
			return nil
		}
		p, err := entityPacket(g.opts.Codecs, cmd, sc.world, e.Entity, hashes...)
		if err != nil {
			return err
		}
		g.broadcast(e.Scene, p, nil)
		return nil
	}
}

// broadcast queues p for every connected player of scene except one.
// Callers hold g.mu.
func (g *Game) broadcast(scene string, p *protocol.Packet, except *session.Client) {
	for _, c := range g.players {
		if c == except || c.Scene() != scene || !c.IsConnected(g.opts.ClientTimeout) {
			continue
		}
		c.Send(p)
	}
}

// AddPlayer spawns the player template for c in the start scene, answers
// with REP_CONNECT and announces the new entity to the rest of the scene.
// The joiner then receives every entity already in the scene.
func (g *Game) AddPlayer(c *session.Client) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if slices.Contains(g.players, c) {
		return ErrAlreadyPlaying
	}
	if len(g.players) >= g.config.MaxPlayers {
		return ErrInstanceFull
	}
	if !c.IsConnected(g.opts.ClientTimeout) {
		return ErrClientGone
	}

	start := g.config.StartGame
	sc := g.scenes[start]
	template := g.config.PlayerTemplate

	e, err := g.spawnTemplate(sc, template)
	if e == ecs.Null {
		return err
	}
	if err != nil {
		g.logger.Warn("Player template loaded with errors", log.String("template", template), log.Error(err))
	}
	_ = sc.world.Set(e, &components.NetworkIP{Address: c.Address().String()})
	_ = sc.world.Set(e, &components.NetworkEvent{})

	c.SetGame(g.config.Title)
	c.SetScene(start)
	c.SetEntity(uint64(e))
	g.players = append(g.players, c)

	g.logger.Info("Player joined",
		log.Stringer("address", c.Address()),
		log.Stringer("entity", e),
		log.Int("players", len(g.players)),
	)

	reply, err := connectReply(e, start, c.Name(), template)
	if err != nil {
		return err
	}
	c.Send(reply)

	spawn, err := entityPacket(g.opts.Codecs, protocol.ReqEntitySpawn, sc.world, e)
	if err != nil {
		return err
	}
	g.broadcast(start, spawn.WithPriority(protocol.PriorityHigh), c)

	g.sendAllEntities(sc, c, e)
	return nil
}

// sendAllEntities sends a spawn snapshot of every entity of the scene
// except skip to c.
func (g *Game) sendAllEntities(sc *scene, c *session.Client, skip ecs.Entity) {
	for _, e := range sc.world.Entities() {
		if e == skip {
			continue
		}
		p, err := entityPacket(g.opts.Codecs, protocol.ReqEntitySpawn, sc.world, e)
		if err != nil {
			g.logger.Warn("Entity snapshot failed", log.Stringer("entity", e), log.Error(err))
			continue
		}
		c.Send(p)
	}
}

// RemovePlayer announces the destruction of the player entity to the scene
// and kills it. It reports false when c is not a player.
func (g *Game) RemovePlayer(c *session.Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removePlayer(c, protocol.ReqEntityDestroy)
}

func (g *Game) removePlayer(c *session.Client, cmd protocol.CommandID) bool {
	i := slices.Index(g.players, c)
	if i < 0 {
		return false
	}

	e := ecs.Entity(c.Entity())
	if sc, ok := g.scenes[c.Scene()]; ok {
		g.broadcast(sc.name, entityIDPacket(cmd, e), c)
		sc.world.Kill(e)
	}
	g.players = slices.Delete(g.players, i, i+1)
	c.SetGame("")

	g.logger.Info("Player left",
		log.Stringer("address", c.Address()),
		log.Stringer("entity", e),
		log.Stringer("reason", cmd),
	)
	return true
}

// Update runs one tick: eviction of silent players, inbound packets,
// systems, then one flush per player.
func (g *Game) Update() {
	g.mu.Lock()
	now := g.opts.Clock.Now()
	dt := now.Sub(g.last).Seconds()
	g.last = now

	g.checkDisconnect()
	g.updateIncomingPackets()
	for _, sc := range g.scenes {
		if err := sc.world.RunSystems(dt); err != nil {
			g.logger.Warn("Systems failed", log.String("scene", sc.name), log.Error(err))
		}
	}
	players := slices.Clone(g.players)
	g.mu.Unlock()

	g.flush(players)
	g.ticks.Add(1)
	g.opts.Metrics.ObserveTick(g.config.Title, g.opts.Clock.Since(now))
}

// checkDisconnect evicts players that went silent. The rest of the scene
// gets REQ_DISCONNECT with the entity id.
func (g *Game) checkDisconnect() {
	for _, c := range slices.Clone(g.players) {
		if c.IsConnected(g.opts.ClientTimeout) {
			continue
		}
		g.removePlayer(c, protocol.ReqDisconnect)
	}
}

func (g *Game) updateIncomingPackets() {
	for _, c := range g.players {
		if !c.IsConnected(g.opts.ClientTimeout) {
			continue
		}
		for _, p := range c.Inbound.Drain(g.opts.MaxPacketsPerTick) {
			g.handlePacket(c, p)
		}
	}
}

func (g *Game) handlePacket(c *session.Client, p protocol.Packet) {
	switch p.Header.Command {
	case protocol.ReqUserUpdates:
		updates, err := protocol.ReadUserUpdates(p.Reader())
		if err != nil {
			g.opts.Metrics.Dropped(metrics.ReasonMalformed)
			g.logger.Debug("Dropped user updates", log.Stringer("address", c.Address()), log.Error(err))
			return
		}
		g.handleUserUpdates(c, updates)
	case protocol.ReqHeartbeat:
		c.Send(protocol.NewPacket(protocol.RepHeartbeat))
	case protocol.ReqEntityShoot:
		g.shoot(c)
	default:
		g.opts.Metrics.Dropped(metrics.ReasonUnknown)
		g.logger.Debug("Unhandled command",
			log.Stringer("address", c.Address()),
			log.Stringer("command", p.Header.Command),
		)
	}
}

// handleUserUpdates records held buttons and look axes on the player's
// NetworkEvent. Releasing shoot fires when the entity may shoot.
func (g *Game) handleUserUpdates(c *session.Client, u protocol.UserUpdates) {
	sc, ok := g.scenes[c.Scene()]
	if !ok {
		return
	}
	e := ecs.Entity(c.Entity())
	input, ok := ecs.Get[*components.NetworkEvent](sc.world, e)
	if !ok {
		return
	}

	for _, ev := range u.Events {
		if !ev.ID.Valid() {
			continue
		}
		input.Held[ev.ID] = ev.State == protocol.EventPressed
		if ev.ID == protocol.EventShoot && ev.State == protocol.EventReleased && canShoot(sc.world, e) {
			g.shoot(c)
		}
	}
	for _, a := range u.Axes {
		if a.ID.Valid() {
			input.Axes[a.ID] = a.Value
		}
	}
}

func canShoot(world ecs.Registry, e ecs.Entity) bool {
	if ctrl, ok := ecs.Get[*components.Control2D](world, e); ok && ctrl.Shoot {
		return true
	}
	if ctrl, ok := ecs.Get[*components.Control3D](world, e); ok && ctrl.Shoot {
		return true
	}
	return false
}

// shoot announces the shot to the scene and, when the scene has a bullet
// template, spawns the bullet at the shooter.
func (g *Game) shoot(c *session.Client) {
	sc, ok := g.scenes[c.Scene()]
	if !ok {
		return
	}
	shooter := ecs.Entity(c.Entity())
	if !sc.world.Alive(shooter) {
		return
	}

	p, err := shootPacket(sc.name, shooter)
	if err != nil {
		return
	}
	g.broadcast(sc.name, p, nil)

	bullet, ok := g.spawnBullet(sc, shooter)
	if !ok {
		return
	}
	spawn, err := entityPacket(g.opts.Codecs, protocol.ReqEntitySpawn, sc.world, bullet)
	if err != nil {
		g.logger.Warn("Bullet snapshot failed", log.Error(err))
		return
	}
	g.broadcast(sc.name, spawn.WithPriority(protocol.PriorityHigh), nil)
}

// spawnBullet places a bullet at the shooter, owned by it. 3D bullets fly
// along the shooter's facing at the speed of their template velocity.
func (g *Game) spawnBullet(sc *scene, shooter ecs.Entity) (ecs.Entity, bool) {
	template := g.config.BulletTemplate
	if template == "" {
		template = defaultBulletTemplate
	}
	if _, ok := sc.config.Template(template); !ok {
		return ecs.Null, false
	}

	b, err := g.spawnTemplate(sc, template)
	if b == ecs.Null {
		return ecs.Null, false
	}
	if err != nil {
		g.logger.Warn("Bullet template loaded with errors", log.Error(err))
	}
	w := sc.world

	_ = w.Set(b, &components.Parent{Entity: uint64(shooter)})
	_ = w.Set(b, &components.Spawned{Done: true})
	if !ecs.Has[*components.Tag](w, b) {
		_ = w.Set(b, &components.Tag{Value: components.TagBullet})
	}
	if !ecs.Has[*components.Weapon](w, b) {
		if weapon, ok := ecs.Get[*components.Weapon](w, shooter); ok {
			copied := *weapon
			_ = w.Set(b, &copied)
		}
	}

	if from, ok := ecs.Get[*components.Transform2D](w, shooter); ok {
		if to, ok := ecs.Get[*components.Transform2D](w, b); ok {
			to.Position = from.Position
		}
	}
	if from, ok := ecs.Get[*components.Transform3D](w, shooter); ok {
		if to, ok := ecs.Get[*components.Transform3D](w, b); ok {
			to.Position = from.Position
			to.Rotation = from.Rotation
			if m, ok := ecs.Get[*components.Movable3D](w, b); ok {
				rot := from.Rotation
				if rot.Len() == 0 {
					rot = mgl32.QuatIdent()
				}
				m.Velocity = rot.Rotate(mgl32.Vec3{0, 0, -1}).Mul(m.Velocity.Len())
			}
		}
	}
	return b, true
}

func (g *Game) flush(players []*session.Client) {
	if g.opts.Flusher == nil {
		return
	}
	for _, c := range players {
		_ = g.opts.Flusher.Flush(c)
	}
}

// Start runs the loop in its own goroutine. Starting a running game does
// nothing.
func (g *Game) Start(ctx context.Context) {
	g.life.Lock()
	defer g.life.Unlock()
	if !g.running.CompareAndSwap(false, true) {
		return
	}
	ctx, g.cancel = context.WithCancel(ctx)
	g.done = make(chan struct{})

	g.mu.Lock()
	g.last = g.opts.Clock.Now()
	g.mu.Unlock()

	go func() {
		defer close(g.done)
		g.Run(ctx)
	}()
	g.logger.Info("Game started")
}

// Run ticks until ctx is done, never faster than MinTickInterval.
func (g *Game) Run(ctx context.Context) {
	for ctx.Err() == nil {
		start := g.opts.Clock.Now()
		g.Update()

		wait := g.opts.MinTickInterval - g.opts.Clock.Since(start)
		if wait <= 0 {
			continue
		}
		timer := g.opts.Clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Stop cancels the loop and waits for it to return.
func (g *Game) Stop() {
	g.life.Lock()
	defer g.life.Unlock()
	if !g.running.CompareAndSwap(true, false) {
		return
	}
	g.cancel()
	<-g.done
	g.logger.Info("Game stopped", log.Uint64("ticks", g.Ticks()))
}

// Close stops the loop and releases the scenes.
func (g *Game) Close() {
	g.Stop()

	g.mu.Lock()
	defer g.mu.Unlock()
	for name, sc := range g.scenes {
		g.bus.DeleteTopic(name)
		sc.world.Clear()
		delete(g.scenes, name)
	}
}
