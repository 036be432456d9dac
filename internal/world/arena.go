package world

import (
	"fmt"
	"slices"
	"sync"

	"github.com/aievolve/simcore/internal/model"
)

// Arena owns every live entity, keyed by handle. Components hold EntityIDs
// and resolve them here; nothing stores *Entity across ticks.
//
// Iteration follows registration order so a run with the same spawn sequence
// and seed is deterministic. Not a singleton: the simulation context owns it.
type Arena struct {
	mu       sync.RWMutex
	entities map[model.EntityID]*model.Entity
	order    []model.EntityID
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		entities: make(map[model.EntityID]*model.Entity),
	}
}

// Add registers an entity. Re-adding an existing handle is an error.
func (a *Arena) Add(e *model.Entity) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.entities[e.ID()]; ok {
		return fmt.Errorf("arena: entity %d already registered", e.ID())
	}
	a.entities[e.ID()] = e
	a.order = append(a.order, e.ID())
	return nil
}

// Remove unregisters an entity. Removing an absent handle is a no-op.
func (a *Arena) Remove(id model.EntityID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.entities[id]; !ok {
		return
	}
	delete(a.entities, id)
	if i := slices.Index(a.order, id); i >= 0 {
		a.order = slices.Delete(a.order, i, i+1)
	}
}

// Get resolves a handle.
func (a *Arena) Get(id model.EntityID) (*model.Entity, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entities[id]
	return e, ok
}

// IDs returns the live handles in registration order (copy).
func (a *Arena) IDs() []model.EntityID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// ForEach visits entities in registration order. Return false to stop.
// The visit runs outside the arena lock so callbacks may call back in.
func (a *Arena) ForEach(fn func(*model.Entity) bool) {
	for _, id := range a.IDs() {
		e, ok := a.Get(id)
		if !ok {
			continue
		}
		if !fn(e) {
			return
		}
	}
}

// Position resolves a handle to coordinates; used as the range-check callback
// handed to the skill engine.
func (a *Arena) Position(id model.EntityID) (model.Position, bool) {
	e, ok := a.Get(id)
	if !ok {
		return model.Position{}, false
	}
	return e.Position(), true
}

// Count returns the number of live entities.
func (a *Arena) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entities)
}
