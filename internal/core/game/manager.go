package game

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/zeusnet/internal/core/observability/log"
	"github.com/zeusync/zeusnet/internal/core/session"
	"github.com/zeusync/zeusnet/pkg/concurrent"
	"github.com/zeusync/zeusnet/pkg/sequence"
)

// Manager places clients into instances of the loaded games. Instances of
// one game fill up in creation order; when every allowed instance is full
// clients wait in a FIFO queue per game.
type Manager struct {
	dir    string
	opts   Options
	logger log.Log

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	store     map[string]*Config
	instances map[string][]*Game
	waiting   map[string]*sequence.Queue[*session.Client]
	placed    map[uuid.UUID]*Game
}

// NewManager loads every game directory under dir in parallel. Games that
// fail to load are logged and skipped.
func NewManager(dir string, opts Options) (*Manager, error) {
	if dir == "" {
		return nil, ErrNoGameDir
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoGameDir, err)
	}

	opts = opts.withDefaults()
	m := &Manager{
		dir:       dir,
		opts:      opts,
		logger:    opts.Logger.With(log.String("component", "game_manager")),
		store:     make(map[string]*Config),
		instances: make(map[string][]*Game),
		waiting:   make(map[string]*sequence.Queue[*session.Client]),
		placed:    make(map[uuid.UUID]*Game),
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	_ = concurrent.Throttle(m.ctx, sequence.From(names), runtime.NumCPU(), func(_ context.Context, name string) error {
		if err := m.AddGame(name); err != nil {
			m.logger.Error("Game not loaded", log.String("game", name), log.Error(err))
		}
		return nil
	})
	return m, nil
}

func (m *Manager) load(name string) (*Config, error) {
	cfg, err := LoadGameDir(filepath.Join(m.dir, name))
	if err != nil {
		return nil, err
	}
	// the directory name is the key clients connect with
	cfg.Title = name
	return cfg, nil
}

// AddGame loads <dir>/<name>.
func (m *Manager) AddGame(name string) error {
	m.mu.Lock()
	_, exists := m.store[name]
	m.mu.Unlock()
	if exists {
		return fmt.Errorf("%s: %w", name, ErrGameExists)
	}

	cfg, err := m.load(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrGameExists)
	}
	m.store[name] = cfg
	m.logger.Info("Game loaded", log.String("game", name), log.String("lobby", string(cfg.Lobby)))
	return nil
}

// UpdateGame reloads the definition of a loaded game. Running instances
// keep the definition they were created with.
func (m *Manager) UpdateGame(name string) error {
	m.mu.Lock()
	_, ok := m.store[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrGameNotFound)
	}

	cfg, err := m.load(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.store[name] = cfg
	m.mu.Unlock()
	m.opts.Resources.DeleteGame(name)
	m.logger.Info("Game updated", log.String("game", name))
	return nil
}

// RemoveGame forgets a definition. Running instances are left alone.
func (m *Manager) RemoveGame(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[name]; !ok {
		return fmt.Errorf("%s: %w", name, ErrGameNotFound)
	}
	delete(m.store, name)
	m.opts.Resources.DeleteGame(name)
	m.logger.Info("Game removed", log.String("game", name))
	return nil
}

// ListGames returns the loaded game names, sorted.
func (m *Manager) ListGames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.store)
}

// Instances returns the live instances of a game, oldest first.
func (m *Manager) Instances(name string) []*Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.instances[name])
}

// Join places c into the newest instance of the game, creating one when
// allowed. A client arriving while every instance is full waits; that is
// not an error.
func (m *Manager) Join(name string, c *session.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.store[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrGameNotFound)
	}
	if _, ok := m.placed[c.ID()]; ok {
		return ErrAlreadyPlaying
	}
	queue := m.queue(name)
	if queue.Index(sameClient(c)) >= 0 {
		return nil
	}

	instances := m.instances[name]
	var inst *Game
	if n := len(instances); n > 0 && instances[n-1].PlayerCount() < cfg.MaxPlayers {
		inst = instances[n-1]
	}
	if inst == nil {
		if len(instances) >= cfg.MaxInstances {
			queue.Push(c)
			m.opts.Metrics.SetWaiting(name, queue.Len())
			m.logger.Info("Game is full, client waits",
				log.String("game", name),
				log.Stringer("address", c.Address()),
				log.Int("position", queue.Len()-1),
			)
			return nil
		}

		created, err := m.newInstance(name, cfg)
		if err != nil {
			return err
		}
		inst = created
	}

	if err := inst.AddPlayer(c); err != nil {
		if inst.PlayerCount() == 0 {
			m.destroy(name, inst)
		}
		return err
	}
	m.place(cfg, inst, c)
	return nil
}

// newInstance creates an instance of the game. Callers hold m.mu.
func (m *Manager) newInstance(name string, cfg *Config) (*Game, error) {
	inst, err := NewGame(cfg, m.opts)
	if err != nil {
		return nil, err
	}
	m.instances[name] = append(m.instances[name], inst)
	m.opts.Metrics.SetInstances(name, len(m.instances[name]))
	m.logger.Info("Instance created", log.String("game", name), log.String("instance", inst.ID().String()))
	return inst, nil
}

// place records c in inst and starts inst when the lobby policy allows.
func (m *Manager) place(cfg *Config, inst *Game, c *session.Client) {
	m.placed[c.ID()] = inst
	switch cfg.Lobby {
	case LobbyOpenWorld:
		inst.Start(m.ctx)
	case LobbyMatchmaking:
		if inst.PlayerCount() >= cfg.MinPlayers {
			inst.Start(m.ctx)
		}
	}
}

// Leave takes c out of its instance or out of the waiting queue of the
// game. An instance left empty is destroyed and the waiting queue is seated
// into fresh instances in order. When an instance still holds more than
// MinPlayers the head of the waiting queue is moved into it.
func (m *Manager) Leave(name string, c *session.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.placed[c.ID()]
	if !ok {
		if q, ok := m.waiting[name]; ok && q.Remove(sameClient(c)) {
			m.opts.Metrics.SetWaiting(name, q.Len())
			m.logger.Debug("Client left the waiting queue", log.String("game", name), log.Stringer("address", c.Address()))
		}
		return
	}
	name = inst.Name()
	delete(m.placed, c.ID())
	inst.RemovePlayer(c)

	if inst.PlayerCount() == 0 {
		m.destroy(name, inst)
		m.seatWaiting(name)
		return
	}

	cfg, ok := m.store[name]
	if !ok {
		cfg = inst.Config()
	}
	if inst.PlayerCount() > cfg.MinPlayers {
		m.promote(cfg, inst)
	}
}

// promote moves the waiting head into inst. A head that cannot join is
// dropped when it is no longer connected and kept otherwise.
func (m *Manager) promote(cfg *Config, inst *Game) {
	q, ok := m.waiting[cfg.Title]
	if !ok {
		return
	}
	head, ok := q.Peek()
	if !ok {
		return
	}

	err := inst.AddPlayer(head)
	if err == nil {
		q.Pop()
		m.place(cfg, inst, head)
		m.logger.Info("Waiting client promoted", log.String("game", cfg.Title), log.Stringer("address", head.Address()))
	} else if !head.IsConnected(m.opts.ClientTimeout) || errors.Is(err, ErrClientGone) {
		q.Pop()
	} else {
		m.logger.Warn("Waiting client not promoted",
			log.String("game", cfg.Title),
			log.Stringer("address", head.Address()),
			log.Error(err),
		)
	}
	m.opts.Metrics.SetWaiting(cfg.Title, q.Len())
}

// seatWaiting places waiting clients, oldest first, while the game has room
// for them. Heads that are no longer connected are dropped.
func (m *Manager) seatWaiting(name string) {
	cfg, ok := m.store[name]
	if !ok {
		return
	}
	q, ok := m.waiting[name]
	if !ok {
		return
	}
	defer func() { m.opts.Metrics.SetWaiting(name, q.Len()) }()

	for {
		head, ok := q.Peek()
		if !ok {
			return
		}
		if !head.IsConnected(m.opts.ClientTimeout) {
			q.Pop()
			continue
		}

		instances := m.instances[name]
		var inst *Game
		if n := len(instances); n > 0 && instances[n-1].PlayerCount() < cfg.MaxPlayers {
			inst = instances[n-1]
		} else if n >= cfg.MaxInstances {
			return
		} else {
			created, err := m.newInstance(name, cfg)
			if err != nil {
				m.logger.Error("Instance creation failed", log.String("game", name), log.Error(err))
				return
			}
			inst = created
		}

		if err := inst.AddPlayer(head); err != nil {
			if inst.PlayerCount() == 0 {
				m.destroy(name, inst)
			}
			if errors.Is(err, ErrClientGone) {
				q.Pop()
				continue
			}
			m.logger.Warn("Waiting client not seated",
				log.String("game", name),
				log.Stringer("address", head.Address()),
				log.Error(err),
			)
			return
		}
		q.Pop()
		m.place(cfg, inst, head)
		m.logger.Info("Waiting client seated", log.String("game", name), log.Stringer("address", head.Address()))
	}
}

// destroy closes inst and drops it from the instance list. Callers hold
// m.mu.
func (m *Manager) destroy(name string, inst *Game) {
	m.instances[name] = slices.DeleteFunc(m.instances[name], func(g *Game) bool { return g == inst })
	if len(m.instances[name]) == 0 {
		delete(m.instances, name)
	}
	inst.Close()
	m.opts.Metrics.SetInstances(name, len(m.instances[name]))
	m.logger.Info("Instance destroyed", log.String("game", name), log.String("instance", inst.ID().String()))
}

// WaitingIndex returns the position of c in the waiting queue of the game,
// or -1.
func (m *Manager) WaitingIndex(name string, c *session.Client) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.waiting[name]
	if !ok {
		return -1
	}
	return q.Index(sameClient(c))
}

// WaitingLen is the length of the waiting queue of the game.
func (m *Manager) WaitingLen(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.waiting[name]; ok {
		return q.Len()
	}
	return 0
}

// InstanceOf returns the instance c plays in.
func (m *Manager) InstanceOf(c *session.Client) (*Game, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.placed[c.ID()]
	return inst, ok
}

func (m *Manager) queue(name string) *sequence.Queue[*session.Client] {
	q, ok := m.waiting[name]
	if !ok {
		q = sequence.NewQueue[*session.Client]()
		m.waiting[name] = q
	}
	return q
}

func sameClient(c *session.Client) func(*session.Client) bool {
	return func(other *session.Client) bool { return other.ID() == c.ID() }
}

// OnConnect implements session.Handler.
func (m *Manager) OnConnect(c *session.Client, game, _ string) error {
	return m.Join(game, c)
}

// OnDisconnect implements session.Handler. The instance may already have
// evicted the client on its own tick, so placement is looked up by id.
func (m *Manager) OnDisconnect(c *session.Client) {
	if inst, ok := m.InstanceOf(c); ok {
		m.Leave(inst.Name(), c)
		return
	}

	m.mu.Lock()
	var name string
	for game, q := range m.waiting {
		if q.Index(sameClient(c)) >= 0 {
			name = game
			break
		}
	}
	m.mu.Unlock()
	if name != "" {
		m.Leave(name, c)
	}
}

// Shutdown stops every instance and forgets the waiting clients.
func (m *Manager) Shutdown() {
	m.cancel()

	m.mu.Lock()
	var all []*Game
	for _, list := range m.instances {
		all = append(all, list...)
	}
	clear(m.instances)
	clear(m.waiting)
	clear(m.placed)
	m.mu.Unlock()

	concurrent.Mute(sequence.From(all), (*Game).Close)
	m.logger.Info("Games shut down", log.Int("instances", len(all)))
}
