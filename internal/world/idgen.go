package world

import (
	"sync/atomic"

	"github.com/aievolve/simcore/internal/model"
)

// IDGenerator hands out unique entity IDs, partitioned by range so a handle's
// origin is readable straight off its value.
//
// ID ranges (convention):
//
//	0x00000000 - 0x0FFFFFFF: reserved (0 = invalid handle)
//	0x10000000 - 0x1FFFFFFF: players
//	0x20000000 - 0x2FFFFFFF: NPCs
//	0x30000000 - 0xFFFFFFFF: reserved for future use
//
// Owned by the simulation context; there is no package-level instance.
type IDGenerator struct {
	nextPlayerID atomic.Uint32
	nextNpcID    atomic.Uint32
}

// NewIDGenerator creates a generator with both ranges at their start.
func NewIDGenerator() *IDGenerator {
	g := &IDGenerator{}
	g.nextPlayerID.Store(0x10000000)
	g.nextNpcID.Store(0x20000000)
	return g
}

// NextPlayerID returns the next unique player handle.
// Thread-safe via atomic increment.
func (g *IDGenerator) NextPlayerID() model.EntityID {
	return model.EntityID(g.nextPlayerID.Add(1))
}

// NextNpcID returns the next unique NPC handle.
// Thread-safe via atomic increment.
func (g *IDGenerator) NextNpcID() model.EntityID {
	return model.EntityID(g.nextNpcID.Add(1))
}

// Next returns a handle for the given entity kind.
func (g *IDGenerator) Next(kind model.Kind) model.EntityID {
	if kind == model.KindPlayer {
		return g.NextPlayerID()
	}
	return g.NextNpcID()
}
