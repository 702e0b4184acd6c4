// Package factory reads and writes entity packets: an entity id followed by
// component blocks keyed by component hash.
//
//	[8 bytes: entity id]
//	[1 byte: component count]
//	([4 bytes: hash] [2 bytes: length] [length bytes: component])*
package factory

import (
	"fmt"
	"math"

	"github.com/zeusync/zeusnet/internal/core/protocol"
	"github.com/zeusync/zeusnet/internal/core/protocol/codec"
)

// MaxComponents is the most blocks a single entity packet can announce.
const MaxComponents = math.MaxUint8

// ComponentData is a component already encoded by its codec.
type ComponentData struct {
	Hash codec.ComponentHash
	Data []byte
}

// Component is a decoded block. Value is nil when no codec knows Hash.
type Component struct {
	Hash  codec.ComponentHash
	Value any
}

// Known reports whether the block was decoded.
func (c Component) Known() bool {
	return c.Value != nil
}

// Encode runs the codec for hash over value. ok is false when the registry
// does not know hash.
func Encode(reg *codec.Registry, hash codec.ComponentHash, value any) (ComponentData, bool, error) {
	c, found := reg.Lookup(hash)
	if !found {
		return ComponentData{}, false, nil
	}
	data, err := c.Encode(value)
	if err != nil {
		return ComponentData{}, true, err
	}
	if len(data) > math.MaxUint16 {
		return ComponentData{}, true, fmt.Errorf("%s: %w", c.Name(), protocol.ErrPayloadTooLarge)
	}
	return ComponentData{Hash: hash, Data: data}, true, nil
}

// AddComponent appends one component block to the packet. An unknown hash
// writes nothing and is not an error.
func AddComponent(p *protocol.Packet, reg *codec.Registry, hash codec.ComponentHash, value any) error {
	data, ok, err := Encode(reg, hash, value)
	if !ok || err != nil {
		return err
	}
	writeBlock(p, data)
	return nil
}

func writeBlock(p *protocol.Packet, data ComponentData) {
	p.WriteUint32(uint32(data.Hash)).
		WriteUint16(uint16(len(data.Data))).
		WriteBytes(data.Data)
}

// ReadComponent reads one block. The declared length is always consumed,
// so the next block lines up even when this one was not understood.
func ReadComponent(r *protocol.Reader, reg *codec.Registry) (Component, error) {
	hash, err := r.ReadUint32()
	if err != nil {
		return Component{}, err
	}
	length, err := r.ReadUint16()
	if err != nil {
		return Component{}, err
	}
	data, err := r.ReadBytes(int(length))
	if err != nil {
		return Component{}, err
	}

	out := Component{Hash: codec.ComponentHash(hash)}
	c, ok := reg.Lookup(out.Hash)
	if !ok {
		return out, nil
	}
	out.Value, err = c.Decode(data)
	if err != nil {
		return Component{Hash: out.Hash}, fmt.Errorf("%w: %w", protocol.ErrMalformedPacket, err)
	}
	return out, nil
}

// CreateEntityPacket builds the entity snapshot packet used for spawn,
// update and move messages.
func CreateEntityPacket(command protocol.CommandID, entity uint64, components []ComponentData) (*protocol.Packet, error) {
	if len(components) > MaxComponents {
		return nil, protocol.ErrTooManyComponents
	}
	p := protocol.NewPacket(command)
	p.WriteUint64(entity).WriteUint8(uint8(len(components)))
	for _, c := range components {
		if len(c.Data) > math.MaxUint16 {
			return nil, protocol.ErrPayloadTooLarge
		}
		writeBlock(p, c)
	}
	return p, nil
}

// EntityPacket is the decoded form of CreateEntityPacket output.
type EntityPacket struct {
	Entity     uint64
	Components []Component
}

// Get returns the decoded value for hash, if present and known.
func (e EntityPacket) Get(hash codec.ComponentHash) (any, bool) {
	for _, c := range e.Components {
		if c.Hash == hash && c.Known() {
			return c.Value, true
		}
	}
	return nil, false
}

// ReadEntityPacket decodes an entity snapshot. Unknown components are kept
// with a nil Value.
func ReadEntityPacket(p *protocol.Packet, reg *codec.Registry) (EntityPacket, error) {
	r := p.Reader()

	var out EntityPacket
	entity, err := r.ReadUint64()
	if err != nil {
		return out, err
	}
	out.Entity = entity

	count, err := r.ReadUint8()
	if err != nil {
		return out, err
	}

	out.Components = make([]Component, 0, count)
	for i := 0; i < int(count); i++ {
		c, err := ReadComponent(r, reg)
		if err != nil {
			return out, err
		}
		out.Components = append(out.Components, c)
	}
	return out, nil
}
