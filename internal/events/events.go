// Package events carries the semantic happenings of the simulation out to
// presentation layers. The core publishes; it never calls into subscribers'
// domains. Dispatch is synchronous and in subscription order, matching the
// single-threaded simulation loop.
package events

import (
	"fmt"

	"github.com/aievolve/simcore/internal/model"
)

// Type identifies one kind of simulation event.
type Type uint8

const (
	EffectApplied Type = iota
	EffectRemoved
	EffectExpired
	SkillUsed
	DamageDealt
	EntityStunned
	EntityDied
	ProcFired
)

// String returns a short label for logs.
func (t Type) String() string {
	switch t {
	case EffectApplied:
		return "effect_applied"
	case EffectRemoved:
		return "effect_removed"
	case EffectExpired:
		return "effect_expired"
	case SkillUsed:
		return "skill_used"
	case DamageDealt:
		return "damage_dealt"
	case EntityStunned:
		return "entity_stunned"
	case EntityDied:
		return "entity_died"
	case ProcFired:
		return "proc_fired"
	}
	return fmt.Sprintf("event(%d)", uint8(t))
}

// Event is one semantic happening. Name carries the effect/skill content key;
// Value carries the magnitude (damage dealt, healing done) where it applies.
type Event struct {
	Type   Type
	Tick   int64
	Source model.EntityID
	Target model.EntityID
	Name   string
	Value  float64
}

// Handler consumes events synchronously. Handlers must not block.
type Handler func(Event)

// Bus fans events out to subscribers. Owned by the simulation context;
// subscribe during setup, publish from the tick.
type Bus struct {
	handlers []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler. Handlers run in subscription order.
func (b *Bus) Subscribe(h Handler) {
	b.handlers = append(b.handlers, h)
}

// Publish delivers the event to every subscriber. Nil-safe so components can
// run without a bus in tests.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	for _, h := range b.handlers {
		h(ev)
	}
}

// Recorder collects events for assertions in tests.
type Recorder struct {
	Events []Event
}

// Attach subscribes the recorder to a bus and returns it.
func (r *Recorder) Attach(b *Bus) *Recorder {
	b.Subscribe(func(ev Event) {
		r.Events = append(r.Events, ev)
	})
	return r
}

// OfType returns the recorded events matching a type.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, ev := range r.Events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
