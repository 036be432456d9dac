package trigger

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aievolve/simcore/internal/events"
	"github.com/aievolve/simcore/internal/game/effect"
	"github.com/aievolve/simcore/internal/model"
)

// Roller supplies chance rolls. *rand.Rand satisfies it; tests plug in
// fixed sequences.
type Roller interface {
	Float64() float64
}

// ProcResult reports one effect application a proc produced. Gate failures
// (cooldown, max procs, missed roll) produce no result at all.
type ProcResult struct {
	Proc   string
	Effect string
	Target model.EntityID

	// Deferred is set when the effect was scheduled instead of applied;
	// DueTick says when.
	Deferred bool
	DueTick  int64

	Receipt effect.Receipt
	Err     error
}

// GlobalOwner registers a proc for every source (environmental procs).
const GlobalOwner model.EntityID = 0

// binding pairs an immutable proc and its owner with per-source state.
// Owned procs fire only off their owner's trigger moments; global bindings
// fire for everyone, with state still tracked per source.
type binding struct {
	owner  model.EntityID
	proc   Proc
	states map[model.EntityID]*procState
}

type procState struct {
	lastFireTick int64
	fireCount    int32
}

func (b *binding) state(source model.EntityID) *procState {
	st, ok := b.states[source]
	if !ok {
		// A fresh source may proc immediately.
		st = &procState{lastFireTick: -b.proc.CooldownTicks}
		b.states[source] = st
	}
	return st
}

// pending is one scheduled future application. Drained in schedule order so
// same-tick applications stay deterministic.
type pending struct {
	dueTick int64
	proc    string
	effect  string
	source  model.EntityID
	target  model.EntityID
}

type bindingKey struct {
	owner model.EntityID
	name  string
}

// Table owns every registered proc and the schedule of delayed applications.
// One table per simulation context.
type Table struct {
	mu     sync.Mutex
	eng    *effect.Engine
	bus    *events.Bus
	roll   Roller
	now    func() int64
	byKey  map[bindingKey]*binding
	byCond [conditionCount][]*binding
	queue  []pending
}

// NewTable creates a proc table applying through the given effect engine.
func NewTable(eng *effect.Engine, bus *events.Bus, roll Roller, now func() int64) *Table {
	if roll == nil {
		panic("trigger: nil roller")
	}
	if now == nil {
		panic("trigger: nil clock")
	}
	return &Table{
		eng:   eng,
		bus:   bus,
		roll:  roll,
		now:   now,
		byKey: make(map[bindingKey]*binding),
	}
}

// Register validates and installs a proc for an owner (GlobalOwner for
// everyone). The bound effect templates must already exist so content wiring
// errors surface at load, not mid-combat.
func (t *Table) Register(owner model.EntityID, p Proc) error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("register proc: %w", err)
	}
	if _, ok := t.eng.EffectTemplate(p.Effect); !ok {
		return fmt.Errorf("register proc %q: %w: %q", p.Name, effect.ErrUnknownEffect, p.Effect)
	}
	for _, link := range p.Chain {
		if _, ok := t.eng.EffectTemplate(link.Effect); !ok {
			return fmt.Errorf("register proc %q: %w: chained %q", p.Name, effect.ErrUnknownEffect, link.Effect)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	key := bindingKey{owner: owner, name: p.Name}
	if _, ok := t.byKey[key]; ok {
		return fmt.Errorf("register proc: duplicate %q for owner %d", p.Name, owner)
	}
	b := &binding{owner: owner, proc: p, states: make(map[model.EntityID]*procState)}
	t.byKey[key] = b
	t.byCond[p.Condition] = append(t.byCond[p.Condition], b)
	return nil
}

// UnregisterOwner drops every proc the owner registered, e.g. on despawn.
func (t *Table) UnregisterOwner(owner model.EntityID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.byKey {
		if key.owner == owner {
			delete(t.byKey, key)
		}
	}
	for c := range t.byCond {
		t.byCond[c] = slices.DeleteFunc(t.byCond[c], func(b *binding) bool {
			return b.owner == owner
		})
	}
}

// Procs lists registered proc names for a condition in registration order.
func (t *Table) Procs(c Condition) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.byCond[c]))
	for _, b := range t.byCond[c] {
		out = append(out, b.proc.Name)
	}
	return out
}

// Fire runs every proc listening on the condition for this source: the
// source's own procs plus global ones, in registration order. Each proc
// gates on cooldown, max-proc count and a chance roll; a proc that passes
// applies (or schedules) its effect chain. One proc failing to apply never
// blocks its siblings.
func (t *Table) Fire(c Condition, source, target model.EntityID) []ProcResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var results []ProcResult
	for _, b := range t.byCond[c] {
		if b.owner != GlobalOwner && b.owner != source {
			continue
		}
		p := &b.proc
		st := b.state(source)
		if now-st.lastFireTick < p.CooldownTicks {
			continue
		}
		if p.MaxProcs > 0 && st.fireCount >= p.MaxProcs {
			continue
		}
		if t.roll.Float64() >= p.Chance {
			continue
		}
		st.lastFireTick = now
		st.fireCount++

		t.bus.Publish(events.Event{
			Type:   events.ProcFired,
			Tick:   now,
			Source: source,
			Target: target,
			Name:   p.Name,
		})
		slog.Debug("proc fired", "proc", p.Name, "condition", c, "source", source, "target", target)

		results = append(results, t.launch(p, source, target, now)...)
	}
	return results
}

// launch applies or schedules the proc's main effect and its chain. Link
// delays accumulate so a chain runs as a timed sequence.
func (t *Table) launch(p *Proc, source, target model.EntityID, now int64) []ProcResult {
	results := make([]ProcResult, 0, 1+len(p.Chain))

	due := now + p.DelayTicks
	results = append(results, t.dispatch(p.Name, p.Effect, source, resolveTarget(p.Self, source, target), now, due))
	for _, link := range p.Chain {
		due += link.DelayTicks
		results = append(results, t.dispatch(p.Name, link.Effect, source, resolveTarget(link.Self, source, target), now, due))
	}
	return results
}

// dispatch applies immediately when due now, otherwise queues.
func (t *Table) dispatch(proc, eff string, source, target model.EntityID, now, due int64) ProcResult {
	r := ProcResult{Proc: proc, Effect: eff, Target: target}
	if due > now {
		r.Deferred = true
		r.DueTick = due
		t.queue = append(t.queue, pending{dueTick: due, proc: proc, effect: eff, source: source, target: target})
		return r
	}
	r.Receipt, r.Err = t.eng.Apply(eff, source, target)
	return r
}

// Tick drains scheduled applications that came due. Applications that fail
// (target died or despawned in the meantime) are dropped with a debug line.
func (t *Table) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	remaining := t.queue[:0]
	for _, pend := range t.queue {
		if pend.dueTick > now {
			remaining = append(remaining, pend)
			continue
		}
		if _, err := t.eng.Apply(pend.effect, pend.source, pend.target); err != nil {
			slog.Debug("scheduled proc effect dropped", "proc", pend.proc, "effect", pend.effect, "err", err)
		}
	}
	t.queue = remaining
}

// PendingCount reports scheduled applications not yet due.
func (t *Table) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// ResetSource drops all per-source proc state, e.g. on respawn.
func (t *Table) ResetSource(source model.EntityID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range t.byKey {
		delete(b.states, source)
	}
}

func resolveTarget(self bool, source, target model.EntityID) model.EntityID {
	if self {
		return source
	}
	return target
}
