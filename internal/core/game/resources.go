package game

import (
	"maps"
	"sync"

	"github.com/zeusync/zeusnet/internal/core/ecs/components"
)

// ResourceManager caches the templates of every loaded scene, keyed by
// game title, scene name and template id. One instance is shared by all
// games of the process. Each game entry belongs to one Config; lookups made
// with another Config of the same title miss, so instances started before a
// reload keep spawning from their own definition.
type ResourceManager struct {
	mu        sync.RWMutex
	templates map[string]*cachedGame
}

type cachedGame struct {
	config *Config
	scenes map[string]map[string]components.Definition
}

func NewResourceManager() *ResourceManager {
	return &ResourceManager{
		templates: make(map[string]*cachedGame),
	}
}

// AddScene caches the templates of one scene of cfg. Unknown scenes are
// ignored.
func (r *ResourceManager) AddScene(cfg *Config, scene string) {
	s, ok := cfg.Scene(scene)
	if !ok {
		return
	}

	templates := make(map[string]components.Definition, len(s.Templates))
	for _, t := range s.Templates {
		templates[t.ID] = maps.Clone(t.Components)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cached, ok := r.templates[cfg.Title]
	if !ok || cached.config != cfg {
		cached = &cachedGame{config: cfg, scenes: make(map[string]map[string]components.Definition)}
		r.templates[cfg.Title] = cached
	}
	cached.scenes[scene] = templates
}

// DeleteScene drops one scene; the game entry goes with its last scene.
func (r *ResourceManager) DeleteScene(game, scene string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cached, ok := r.templates[game]
	if !ok {
		return
	}
	delete(cached.scenes, scene)
	if len(cached.scenes) == 0 {
		delete(r.templates, game)
	}
}

// DeleteGame drops every scene of game.
func (r *ResourceManager) DeleteGame(game string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.templates, game)
}

// Template returns the component set of a template cached from cfg.
func (r *ResourceManager) Template(cfg *Config, scene, id string) (components.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cached, ok := r.templates[cfg.Title]
	if !ok || cached.config != cfg {
		return nil, false
	}
	t, ok := cached.scenes[scene][id]
	return t, ok
}

// HasScene reports whether the scene is cached from cfg.
func (r *ResourceManager) HasScene(cfg *Config, scene string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cached, ok := r.templates[cfg.Title]
	if !ok || cached.config != cfg {
		return false
	}
	_, ok = cached.scenes[scene]
	return ok
}
