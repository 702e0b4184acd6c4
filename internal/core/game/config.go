package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/ecs/components"
	"github.com/zeusync/zeusnet/internal/core/protocol"
	"github.com/zeusync/zeusnet/internal/core/systems"
	"github.com/zeusync/zeusnet/internal/core/systems/physics"
)

// Configuration file names looked up in every game directory, in order.
const (
	ConfigJSON = "config.cfg"
	ConfigYAML = "config.yaml"
)

var ErrNoConfig = errors.New("game directory has no configuration")

// Lobby decides when an instance starts ticking.
type Lobby string

const (
	// LobbyMatchmaking starts an instance once it has MinPlayers.
	LobbyMatchmaking Lobby = "Matchmaking"
	// LobbyOpenWorld starts an instance with its first player.
	LobbyOpenWorld Lobby = "OpenWorld"
)

// EntityRef places one template instance in a scene.
type EntityRef struct {
	Name     string
	Template string
}

// TemplateDef is a named component set.
type TemplateDef struct {
	ID         string
	Components components.Definition
}

type Scene struct {
	Name      string
	Systems   []string
	Entities  []EntityRef
	Templates []TemplateDef
}

// Template returns the component set of the template id.
func (s *Scene) Template(id string) (components.Definition, bool) {
	for _, t := range s.Templates {
		if t.ID == id {
			return t.Components, true
		}
	}
	return nil, false
}

// Config is one game definition.
type Config struct {
	Title          string
	MinPlayers     int
	MaxPlayers     int
	MaxInstances   int
	Lobby          Lobby
	StartGame      string
	PlayerTemplate string
	BulletTemplate string
	Engine         ecs.Backend
	World          *physics.AABB
	Scenes         []Scene
}

// Scene looks a scene up by name.
func (c *Config) Scene(name string) (*Scene, bool) {
	for i := range c.Scenes {
		if c.Scenes[i].Name == name {
			return &c.Scenes[i], true
		}
	}
	return nil, false
}

// Validate checks the settings the placement and loop depend on.
func (c *Config) Validate() error {
	var errs error
	if c.Title == "" {
		errs = multierr.Append(errs, errors.New("title is empty"))
	}
	if c.MaxPlayers < 1 {
		errs = multierr.Append(errs, fmt.Errorf("maxPlayers %d is below 1", c.MaxPlayers))
	}
	if c.MinPlayers < 0 || c.MinPlayers > c.MaxPlayers {
		errs = multierr.Append(errs, fmt.Errorf("minPlayers %d is outside [0, %d]", c.MinPlayers, c.MaxPlayers))
	}
	if c.MaxInstances < 1 {
		errs = multierr.Append(errs, fmt.Errorf("maxInstances %d is below 1", c.MaxInstances))
	}
	if c.Lobby != LobbyMatchmaking && c.Lobby != LobbyOpenWorld {
		errs = multierr.Append(errs, fmt.Errorf("unknown lobby %q", c.Lobby))
	}
	if len(c.Scenes) == 0 {
		errs = multierr.Append(errs, errors.New("no scenes"))
	}
	start, ok := c.Scene(c.StartGame)
	if !ok {
		errs = multierr.Append(errs, fmt.Errorf("startGame %q is not a scene", c.StartGame))
	} else if _, ok := start.Template(c.PlayerTemplate); !ok {
		errs = multierr.Append(errs, fmt.Errorf("playerTemplate %q is not a template of %s", c.PlayerTemplate, start.Name))
	}
	for _, s := range c.Scenes {
		for _, name := range s.Systems {
			if !slices.Contains(systems.Names(), name) {
				errs = multierr.Append(errs, fmt.Errorf("scene %s: %w: %q", s.Name, systems.ErrUnknownSystem, name))
			}
		}
		for _, e := range s.Entities {
			if _, ok := s.Template(e.Template); !ok {
				errs = multierr.Append(errs, fmt.Errorf("scene %s: entity %s uses unknown template %q", s.Name, e.Name, e.Template))
			}
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: game %q: %w", protocol.ErrInvalidConfig, c.Title, errs)
	}
	return nil
}

// file is the on-disk shape. Scenes, entities and templates are lists of
// single key objects so their order survives decoding.
type file struct {
	Title          string                 `json:"title" yaml:"title"`
	MinPlayers     int                    `json:"minPlayers" yaml:"minPlayers"`
	MaxPlayers     int                    `json:"maxPlayers" yaml:"maxPlayers"`
	MaxInstances   int                    `json:"maxInstances" yaml:"maxInstances"`
	Lobby          Lobby                  `json:"lobby" yaml:"lobby"`
	StartGame      string                 `json:"startGame" yaml:"startGame"`
	PlayerTemplate string                 `json:"playerTemplate" yaml:"playerTemplate"`
	BulletTemplate string                 `json:"bulletTemplate" yaml:"bulletTemplate"`
	Engine         string                 `json:"engine" yaml:"engine"`
	World          *box                   `json:"world" yaml:"world"`
	Scenes         []map[string]sceneFile `json:"scenes" yaml:"scenes"`
}

type sceneFile struct {
	Systems   []string                           `json:"systems" yaml:"systems"`
	Entities  []map[string]string                `json:"entities" yaml:"entities"`
	Templates []map[string]components.Definition `json:"templates" yaml:"templates"`
}

type point struct {
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
	Z float32 `json:"z" yaml:"z"`
}

type box struct {
	Min point `json:"min" yaml:"min"`
	Max point `json:"max" yaml:"max"`
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (f *file) config() (*Config, error) {
	engine, err := ecs.ParseBackend(f.Engine)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrInvalidConfig, err)
	}

	c := &Config{
		Title:          f.Title,
		MinPlayers:     f.MinPlayers,
		MaxPlayers:     f.MaxPlayers,
		MaxInstances:   f.MaxInstances,
		Lobby:          f.Lobby,
		StartGame:      f.StartGame,
		PlayerTemplate: f.PlayerTemplate,
		BulletTemplate: f.BulletTemplate,
		Engine:         engine,
	}
	if c.Lobby == "" {
		c.Lobby = LobbyMatchmaking
	}
	if c.MaxInstances == 0 {
		c.MaxInstances = 1
	}
	if f.World != nil {
		c.World = &physics.AABB{
			Min: mgl32.Vec3{f.World.Min.X, f.World.Min.Y, f.World.Min.Z},
			Max: mgl32.Vec3{f.World.Max.X, f.World.Max.Y, f.World.Max.Z},
		}
	}

	for _, entry := range f.Scenes {
		for _, name := range sortedKeys(entry) {
			raw := entry[name]
			scene := Scene{Name: name, Systems: raw.Systems}
			for _, e := range raw.Entities {
				for _, entity := range sortedKeys(e) {
					scene.Entities = append(scene.Entities, EntityRef{Name: entity, Template: e[entity]})
				}
			}
			for _, t := range raw.Templates {
				for _, id := range sortedKeys(t) {
					scene.Templates = append(scene.Templates, TemplateDef{ID: id, Components: t[id]})
				}
			}
			c.Scenes = append(c.Scenes, scene)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeFile(data []byte, yamlFormat bool) (*file, error) {
	var f file
	var err error
	if yamlFormat {
		err = yaml.Unmarshal(data, &f)
	} else {
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrInvalidConfig, err)
	}
	return &f, nil
}

// ParseConfig decodes a game definition. YAML is used when yamlFormat is
// set, JSON otherwise.
func ParseConfig(data []byte, yamlFormat bool) (*Config, error) {
	f, err := decodeFile(data, yamlFormat)
	if err != nil {
		return nil, err
	}
	return f.config()
}

// LoadConfig reads a definition file; the extension picks the format.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	cfg, err := ParseConfig(data, ext == ".yaml" || ext == ".yml")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadGameDir loads <dir>/config.cfg, falling back to <dir>/config.yaml.
// A title missing from the file defaults to the directory name.
func LoadGameDir(dir string) (*Config, error) {
	for _, name := range []string{ConfigJSON, ConfigYAML} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		f, err := decodeFile(data, name == ConfigYAML)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if f.Title == "" {
			f.Title = filepath.Base(dir)
		}
		cfg, err := f.config()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("%s: %w", dir, ErrNoConfig)
}
