package game

import (
	"slices"

	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/ecs/components"
	"github.com/zeusync/zeusnet/internal/core/protocol"
	"github.com/zeusync/zeusnet/internal/core/protocol/codec"
	"github.com/zeusync/zeusnet/internal/core/protocol/factory"
)

// Component sets sent with partial entity packets.
var (
	movedComponents = []codec.ComponentHash{
		ecs.Hash[*components.Transform2D](),
		ecs.Hash[*components.Movable2D](),
		ecs.Hash[*components.Transform3D](),
		ecs.Hash[*components.Movable3D](),
	}
	updateComponents = []codec.ComponentHash{
		ecs.Hash[*components.Health](),
	}
)

// entityPacket snapshots e into an entity packet. With no hashes every
// component the codec registry knows is included; server side components
// have no codec and never leave.
func entityPacket(reg *codec.Registry, cmd protocol.CommandID, world ecs.Registry, e ecs.Entity, hashes ...codec.ComponentHash) (*protocol.Packet, error) {
	var blocks []factory.ComponentData
	for _, c := range world.Components(e) {
		hash := ecs.HashOf(c)
		if len(hashes) > 0 && !slices.Contains(hashes, hash) {
			continue
		}
		data, ok, err := factory.Encode(reg, hash, c)
		if err != nil {
			return nil, err
		}
		if ok {
			blocks = append(blocks, data)
		}
	}
	return factory.CreateEntityPacket(cmd, uint64(e), blocks)
}

// entityIDPacket carries only the entity id.
func entityIDPacket(cmd protocol.CommandID, e ecs.Entity) *protocol.Packet {
	p := protocol.NewPacket(cmd).WithPriority(protocol.PriorityHigh)
	p.WriteUint64(uint64(e))
	return p
}

// connectReply is REP_CONNECT: entity, scene, player name, template.
func connectReply(e ecs.Entity, scene, name, template string) (*protocol.Packet, error) {
	p := protocol.NewPacket(protocol.RepConnect).WithPriority(protocol.PriorityCritical)
	p.WriteUint64(uint64(e))
	for _, s := range []string{scene, name, template} {
		if err := p.WriteString(s); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// shootPacket is REQ_ENTITY_SHOOT: scene, shooter.
func shootPacket(scene string, shooter ecs.Entity) (*protocol.Packet, error) {
	p := protocol.NewPacket(protocol.ReqEntityShoot).WithPriority(protocol.PriorityHigh)
	if err := p.WriteString(scene); err != nil {
		return nil, err
	}
	p.WriteUint64(uint64(shooter))
	return p, nil
}
