package model

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aievolve/simcore/internal/game/stats"
)

// EntityID is the handle every subsystem uses to reference an entity.
// Components never hold *Entity back-pointers across ticks; they store the
// id and resolve it through the arena when needed.
type EntityID uint32

// Kind distinguishes player-controlled entities from AI-driven ones.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindNPC
)

// String returns a short label for logs.
func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindNPC:
		return "npc"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Resource identifies one spendable resource pool.
type Resource uint8

const (
	ResourceHealth Resource = iota
	ResourceMana
	ResourceStamina

	// ResourceCount sizes per-resource arrays (skill costs).
	ResourceCount
)

// String returns the content key of the resource.
func (r Resource) String() string {
	switch r {
	case ResourceHealth:
		return "health"
	case ResourceMana:
		return "mana"
	case ResourceStamina:
		return "stamina"
	}
	return fmt.Sprintf("resource(%d)", uint8(r))
}

// ParseResource maps a content key to a Resource. Unknown keys are an error.
func ParseResource(s string) (Resource, error) {
	for r := ResourceHealth; r < ResourceCount; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown resource %q", s)
}

// Entity is one combatant in the arena: identity, base attributes behind a
// derived-stat cache, current resource pools, immunity tags and the stagger
// pool used by the stun-threshold mechanic.
//
// All mutators are guarded; the simulation loop is single-threaded, but
// observers (snapshot writers, debug dumps) may read concurrently.
type Entity struct {
	id   EntityID
	name string
	kind Kind

	statsCache *stats.Cache

	mu        sync.RWMutex
	position  Position
	current   [ResourceCount]float64
	enabled   [ResourceCount]bool
	immunity  map[string]struct{}
	stagger   float64
	deathOnce sync.Once

	stunned atomic.Bool
}

// NewEntity creates an entity with all resource pools filled to their derived
// maxima. Attributes are validated up front; the stat cache is resolved once
// so Current() is safe immediately after construction.
func NewEntity(id EntityID, name string, kind Kind, attrs stats.AttributeSet, pos Position) (*Entity, error) {
	cache := stats.NewCache(attrs)
	derived, err := cache.Resolve(0)
	if err != nil {
		return nil, fmt.Errorf("new entity %q: %w", name, err)
	}

	e := &Entity{
		id:         id,
		name:       name,
		kind:       kind,
		statsCache: cache,
		position:   pos,
		immunity:   make(map[string]struct{}),
	}
	e.current[ResourceHealth] = derived.MaxHealth
	e.current[ResourceMana] = derived.MaxMana
	e.current[ResourceStamina] = derived.MaxStamina
	for r := range e.enabled {
		e.enabled[r] = true
	}
	return e, nil
}

// ID returns the entity handle (immutable).
func (e *Entity) ID() EntityID { return e.id }

// Name returns the entity name (immutable).
func (e *Entity) Name() string { return e.name }

// Kind returns the entity kind (immutable).
func (e *Entity) Kind() Kind { return e.kind }

// Stats exposes the derived-stat cache. Effect and equipment code registers
// modifier sources here; combat reads resolved values.
func (e *Entity) Stats() *stats.Cache { return e.statsCache }

// Level returns the entity level from its attribute set.
func (e *Entity) Level() int32 {
	return e.statsCache.Attributes().Level
}

// SetAttributes replaces the base attributes (level-up, respec) and
// invalidates the derived-stat cache.
func (e *Entity) SetAttributes(attrs stats.AttributeSet) error {
	if err := attrs.Validate(); err != nil {
		return fmt.Errorf("set attributes on %q: %w", e.name, err)
	}
	e.statsCache.SetAttributes(attrs)
	return nil
}

// Position returns a copy of the entity coordinates.
func (e *Entity) Position() Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.position
}

// SetPosition moves the entity.
func (e *Entity) SetPosition(pos Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = pos
}

// DistanceTo returns the distance to another entity.
func (e *Entity) DistanceTo(other *Entity) float64 {
	return e.Position().Distance(other.Position())
}

// --- Resource pools ---

// HasResource reports whether the entity owns the given pool. Health is
// always present; mana or stamina can be absent (constructs, training dummies).
func (e *Entity) HasResource(r Resource) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled[r]
}

// SetResourceEnabled toggles a pool's presence. Disabling health is a
// programming error.
func (e *Entity) SetResourceEnabled(r Resource, enabled bool) {
	if r == ResourceHealth && !enabled {
		panic("model: health pool cannot be disabled")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled[r] = enabled
	if !enabled {
		e.current[r] = 0
	}
}

// ResourceValue returns the current value of a pool.
func (e *Entity) ResourceValue(r Resource) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current[r]
}

// ResourceMax returns the derived maximum of a pool.
func (e *Entity) ResourceMax(r Resource) float64 {
	d := e.statsCache.Current()
	switch r {
	case ResourceHealth:
		return d.MaxHealth
	case ResourceMana:
		return d.MaxMana
	case ResourceStamina:
		return d.MaxStamina
	}
	panic(fmt.Sprintf("model: unknown resource %d", uint8(r)))
}

// ResourceRatio returns current/max in [0,1]; 0 when the max is zero.
func (e *Entity) ResourceRatio(r Resource) float64 {
	maxV := e.ResourceMax(r)
	if maxV <= 0 {
		return 0
	}
	return min(e.ResourceValue(r)/maxV, 1)
}

// Health reports current health.
func (e *Entity) Health() float64 { return e.ResourceValue(ResourceHealth) }

// Mana reports current mana.
func (e *Entity) Mana() float64 { return e.ResourceValue(ResourceMana) }

// Stamina reports current stamina.
func (e *Entity) Stamina() float64 { return e.ResourceValue(ResourceStamina) }

// SpendResource deducts amount from a pool. Returns false (and deducts
// nothing) when the pool is missing or short.
func (e *Entity) SpendResource(r Resource, amount float64) bool {
	if amount < 0 {
		panic("model: negative resource spend")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled[r] || e.current[r] < amount {
		return false
	}
	e.current[r] -= amount
	return true
}

// RestoreResource adds amount to a pool, clamped to the derived maximum.
// Returns the amount actually restored.
func (e *Entity) RestoreResource(r Resource, amount float64) float64 {
	if amount < 0 {
		panic("model: negative resource restore")
	}
	maxV := e.ResourceMax(r)
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled[r] {
		return 0
	}
	restored := min(amount, maxV-e.current[r])
	if restored < 0 {
		restored = 0
	}
	e.current[r] += restored
	return restored
}

// ApplyDamage reduces health (clamped at 0) and returns the damage actually
// absorbed. Death finalization goes through Die so it runs exactly once.
func (e *Entity) ApplyDamage(amount float64) float64 {
	if amount < 0 {
		panic("model: negative damage")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	absorbed := min(amount, e.current[ResourceHealth])
	e.current[ResourceHealth] -= absorbed
	return absorbed
}

// Heal restores health up to the derived maximum and returns the amount
// actually healed. Healing a dead entity is a no-op.
func (e *Entity) Heal(amount float64) float64 {
	if e.IsDead() {
		return 0
	}
	return e.RestoreResource(ResourceHealth, amount)
}

// IsDead reports whether health has reached zero.
func (e *Entity) IsDead() bool {
	return e.Health() <= 0
}

// Die finalizes death. Returns true for the first caller only; later calls
// return false so death-triggered logic (rewards, kill procs) runs once.
func (e *Entity) Die() bool {
	executed := false
	e.deathOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.current[ResourceHealth] = 0
		executed = true
	})
	return executed
}

// --- Immunity tags ---

// AddImmunity marks the entity immune to effects carrying the tag.
func (e *Entity) AddImmunity(tag string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.immunity[tag] = struct{}{}
}

// RemoveImmunity clears an immunity tag.
func (e *Entity) RemoveImmunity(tag string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.immunity, tag)
}

// IsImmune reports whether any of the given tags is on the immunity list.
func (e *Entity) IsImmune(tags ...string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, tag := range tags {
		if _, ok := e.immunity[tag]; ok {
			return true
		}
	}
	return false
}

// --- Stagger / stun ---

// AddStagger accumulates stagger damage and returns the new pool value.
func (e *Entity) AddStagger(v float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stagger += v
	return e.stagger
}

// DecayStagger reduces the stagger pool (floored at zero).
func (e *Entity) DecayStagger(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stagger = max(e.stagger-v, 0)
}

// ResetStagger empties the stagger pool (after a stun fires).
func (e *Entity) ResetStagger() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stagger = 0
}

// Stagger returns the current stagger pool.
func (e *Entity) Stagger() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stagger
}

// IsStunned returns true while a stun effect is active (no actions).
func (e *Entity) IsStunned() bool { return e.stunned.Load() }

// SetStunned sets or clears the stun flag; owned by the effect engine.
func (e *Entity) SetStunned(v bool) { e.stunned.Store(v) }
