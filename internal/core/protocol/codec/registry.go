package codec

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrHashCollision = errors.New("component hash collision")
	ErrTypeMismatch  = errors.New("component value has unexpected type")
	ErrEmptyName     = errors.New("component name is empty")
)

// Codec converts one component type to and from bytes.
type Codec interface {
	Name() string
	Hash() ComponentHash
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

type typed[T any] struct {
	name   string
	hash   ComponentHash
	encode func(T) []byte
	decode func([]byte) (T, error)
}

// New builds a Codec for values of type T.
func New[T any](name string, encode func(T) []byte, decode func([]byte) (T, error)) Codec {
	return &typed[T]{
		name:   name,
		hash:   Hash(name),
		encode: encode,
		decode: decode,
	}
}

func (c *typed[T]) Name() string        { return c.name }
func (c *typed[T]) Hash() ComponentHash { return c.hash }

func (c *typed[T]) Encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case T:
		return c.encode(v), nil
	case *T:
		if v == nil {
			return nil, fmt.Errorf("%w: nil %s", ErrTypeMismatch, c.name)
		}
		return c.encode(*v), nil
	default:
		return nil, fmt.Errorf("%w: %s got %T", ErrTypeMismatch, c.name, value)
	}
}

func (c *typed[T]) Decode(data []byte) (any, error) {
	v, err := c.decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return v, nil
}

// Registry maps component hashes to codecs. One registry is built at
// startup and shared by every game of the process.
type Registry struct {
	mu     sync.RWMutex
	codecs map[ComponentHash]Codec
}

func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[ComponentHash]Codec),
	}
}

// Register adds c. Registering the same name twice replaces the previous
// codec; a different name with the same hash is rejected.
func (r *Registry) Register(c Codec) error {
	if c.Name() == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.codecs[c.Hash()]; ok && existing.Name() != c.Name() {
		return fmt.Errorf("%w: %q and %q share %s", ErrHashCollision, existing.Name(), c.Name(), c.Hash())
	}
	r.codecs[c.Hash()] = c
	return nil
}

// MustRegister panics on collision; meant for init-time tables.
func (r *Registry) MustRegister(codecs ...Codec) {
	for _, c := range codecs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the codec for hash. A missing codec is not an error.
func (r *Registry) Lookup(hash ComponentHash) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[hash]
	return c, ok
}

func (r *Registry) LookupName(name string) (Codec, bool) {
	return r.Lookup(Hash(name))
}

func (r *Registry) Has(hash ComponentHash) bool {
	_, ok := r.Lookup(hash)
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codecs)
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.codecs))
	for _, c := range r.codecs {
		names = append(names, c.Name())
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}
