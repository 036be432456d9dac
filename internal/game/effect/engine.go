package effect

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aievolve/simcore/internal/events"
	"github.com/aievolve/simcore/internal/game/stats"
	"github.com/aievolve/simcore/internal/model"
	"github.com/aievolve/simcore/internal/world"
)

var (
	ErrUnknownEffect       = errors.New("unknown effect template")
	ErrUnknownActiveEffect = errors.New("unknown active effect")
	ErrUnknownEntity       = errors.New("unknown entity")
	ErrTargetImmune        = errors.New("target immune")
	ErrCapabilityMissing   = errors.New("target lacks required capability")
	ErrAlreadyAtMaxStacks  = errors.New("effect already at max stacks")
	ErrTargetDead          = errors.New("target is dead")
)

// Outcome reports how an application resolved against existing instances.
type Outcome uint8

const (
	// OutcomeApplied installed a fresh instance.
	OutcomeApplied Outcome = iota
	// OutcomeInstant executed an instant effect; no instance remains.
	OutcomeInstant
	// OutcomeStacked incremented an existing instance's stack count.
	OutcomeStacked
	// OutcomeMerged folded the magnitude into an existing instance.
	OutcomeMerged
	// OutcomeReplaced evicted the previous instance before installing.
	OutcomeReplaced
	// OutcomeIgnored left the existing instance in place; nothing installed.
	OutcomeIgnored
)

// String returns a short label for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeInstant:
		return "instant"
	case OutcomeStacked:
		return "stacked"
	case OutcomeMerged:
		return "merged"
	case OutcomeReplaced:
		return "replaced"
	case OutcomeIgnored:
		return "ignored"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// Receipt is a successful (or reported no-op) application result.
type Receipt struct {
	ID      uint64
	Outcome Outcome
	Stacks  int32
}

// Engine owns every effect template and every active instance in the
// simulation. One engine per simulation context; no package-level state.
//
// Thread-safe: all methods are protected by sync.RWMutex. The simulation
// loop is the only writer; observers may query concurrently.
type Engine struct {
	mu        sync.RWMutex
	arena     *world.Arena
	bus       *events.Bus
	now       func() int64
	templates map[string]*Template

	seq      uint64
	byID     map[uint64]*Active
	byTarget map[model.EntityID][]*Active

	onDeath func(model.EntityID)
}

// NewEngine creates an effect engine over the given arena. now supplies the
// current simulation tick (injected so tests drive time directly).
func NewEngine(arena *world.Arena, bus *events.Bus, now func() int64) *Engine {
	if now == nil {
		panic("effect: nil clock")
	}
	return &Engine{
		arena:     arena,
		bus:       bus,
		now:       now,
		templates: make(map[string]*Template),
		byID:      make(map[uint64]*Active),
		byTarget:  make(map[model.EntityID][]*Active),
	}
}

// SetDeathHandler installs the callback invoked when an effect pulse kills
// an entity. Optional; events carry the same information.
func (e *Engine) SetDeathHandler(fn func(model.EntityID)) {
	e.onDeath = fn
}

// RegisterTemplate validates and installs a template. Duplicate names are
// rejected so content packs cannot silently shadow each other.
func (e *Engine) RegisterTemplate(t *Template) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("register effect: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.templates[t.Name]; ok {
		return fmt.Errorf("register effect: duplicate template %q", t.Name)
	}
	e.templates[t.Name] = t
	return nil
}

// EffectTemplate resolves a template by name.
func (e *Engine) EffectTemplate(name string) (*Template, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.templates[name]
	return t, ok
}

// TemplateCount reports how many templates are registered.
func (e *Engine) TemplateCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.templates)
}

// Apply resolves one effect application onto a target.
//
// Validation order: template, target, liveness, immunity tags, capability.
// Then cancellation tags (most recent application wins unless its policy is
// ignore), then the template's conflict policy against an active instance of
// the same template, then installation.
func (e *Engine) Apply(name string, source, target model.EntityID) (Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tmpl, ok := e.templates[name]
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %q", ErrUnknownEffect, name)
	}
	tgt, ok := e.arena.Get(target)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: target %d", ErrUnknownEntity, target)
	}
	if tgt.IsDead() {
		return Receipt{}, fmt.Errorf("%w: target %d", ErrTargetDead, target)
	}
	if len(tmpl.Tags) > 0 && tgt.IsImmune(tmpl.Tags...) {
		slog.Debug("effect rejected: immune", "effect", name, "target", target)
		return Receipt{}, fmt.Errorf("%w: %q on %d", ErrTargetImmune, name, target)
	}
	if tmpl.Kind == KindRestore && !tgt.HasResource(tmpl.Resource) {
		return Receipt{}, fmt.Errorf("%w: %q needs %s pool on %d", ErrCapabilityMissing, name, tmpl.Resource, target)
	}

	now := e.now()
	mag, err := e.scaledMagnitude(tmpl, source, tgt, now)
	if err != nil {
		return Receipt{}, err
	}

	// Same-template identity resolves through the conflict policy.
	if existing := e.findActive(target, tmpl.Name); existing != nil {
		return e.resolveConflict(existing, tgt, mag, now)
	}

	// Cancellation across different templates: the incoming application wins
	// and evicts tag-sharers, unless its own policy declines the fight.
	for _, act := range e.byTarget[target] {
		if act.State == StateActive && sharesCancelTag(tmpl, act.Template) {
			if tmpl.Conflict == ConflictIgnore {
				slog.Debug("effect rejected: cancel tag held", "effect", name, "holder", act.Template.Name, "target", target)
				return Receipt{Outcome: OutcomeIgnored}, nil
			}
			e.evict(act, StateReplaced, tgt)
			e.publish(events.EffectRemoved, act, act.Magnitude)
		}
	}

	return e.install(tmpl, source, target, tgt, mag, now), nil
}

// Remove cancels one active instance by id.
func (e *Engine) Remove(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	act, ok := e.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownActiveEffect, id)
	}
	tgt, _ := e.arena.Get(act.TargetID)
	e.evict(act, StateRemoved, tgt)
	e.publish(events.EffectRemoved, act, act.Magnitude)
	return nil
}

// Dispel removes every active effect on the target carrying the given tag.
// Returns the number of instances removed.
func (e *Engine) Dispel(target model.EntityID, tag string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	tgt, _ := e.arena.Get(target)
	removed := 0
	for _, act := range slices.Clone(e.byTarget[target]) {
		if act.State != StateActive || !slices.Contains(act.Template.Tags, tag) {
			continue
		}
		e.evict(act, StateRemoved, tgt)
		e.publish(events.EffectRemoved, act, act.Magnitude)
		removed++
	}
	return removed
}

// Tick advances every active instance once: due pulses fire, expired
// instances are culled, instances on dead or despawned targets are dropped.
// Targets are visited in arena registration order for determinism.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	for _, id := range e.arena.IDs() {
		list := e.byTarget[id]
		if len(list) == 0 {
			continue
		}
		tgt, ok := e.arena.Get(id)
		if !ok {
			continue
		}
		for _, act := range slices.Clone(list) {
			if act.State != StateActive {
				continue
			}
			if tgt.IsDead() {
				e.evict(act, StateRemoved, tgt)
				continue
			}
			if act.Template.Pulses() {
				for act.NextPulseTick <= now && act.State == StateActive {
					e.pulse(act, tgt)
					act.NextPulseTick += act.Template.PeriodTicks
					if tgt.IsDead() {
						break
					}
				}
			}
			if act.State == StateActive && act.Expired(now) {
				e.evict(act, StateExpired, tgt)
				e.publish(events.EffectExpired, act, act.Magnitude)
			}
		}
	}

	// Orphans: effects whose target left the arena. Pure cleanup, no events.
	for target, list := range e.byTarget {
		if _, ok := e.arena.Get(target); ok {
			continue
		}
		for _, act := range list {
			act.State = StateRemoved
			delete(e.byID, act.ID)
		}
		delete(e.byTarget, target)
	}
}

// Query returns read-only views of the target's active effects in
// application order.
func (e *Engine) Query(target model.EntityID) []View {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.now()
	list := e.byTarget[target]
	out := make([]View, 0, len(list))
	for _, act := range list {
		if act.State == StateActive {
			out = append(out, act.view(now))
		}
	}
	return out
}

// ActiveCount reports the number of live instances on a target.
func (e *Engine) ActiveCount(target model.EntityID) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, act := range e.byTarget[target] {
		if act.State == StateActive {
			n++
		}
	}
	return n
}

// --- internals ---

// scaledMagnitude folds source attribute/stat scaling into the base
// magnitude, then target element resist for damage kinds. Scaling iterates
// in enum order so float summation is reproducible run to run.
func (e *Engine) scaledMagnitude(tmpl *Template, source model.EntityID, tgt *model.Entity, now int64) (float64, error) {
	mag := tmpl.Magnitude
	if src, ok := e.arena.Get(source); ok {
		if len(tmpl.AttrScaling) > 0 {
			attrs := src.Stats().Attributes()
			for a := stats.AttrStrength; a <= stats.AttrLuck; a++ {
				if coef, ok := tmpl.AttrScaling[a]; ok {
					mag += coef * attrs.Get(a)
				}
			}
		}
		if len(tmpl.StatScaling) > 0 {
			derived, err := src.Stats().Resolve(now)
			if err != nil {
				return 0, fmt.Errorf("resolving source stats: %w", err)
			}
			for s := stats.StatMaxHealth; s <= stats.StatStunResist; s++ {
				if coef, ok := tmpl.StatScaling[s]; ok {
					mag += coef * derived.Get(s)
				}
			}
		}
	}
	if tmpl.Kind == KindDamage {
		derived, err := tgt.Stats().Resolve(now)
		if err != nil {
			return 0, fmt.Errorf("resolving target stats: %w", err)
		}
		mag *= 1 - derived.Resist[tmpl.Element]
	}
	return mag, nil
}

func (e *Engine) findActive(target model.EntityID, name string) *Active {
	for _, act := range e.byTarget[target] {
		if act.State == StateActive && act.Template.Name == name {
			return act
		}
	}
	return nil
}

func (e *Engine) resolveConflict(existing *Active, tgt *model.Entity, mag float64, now int64) (Receipt, error) {
	tmpl := existing.Template
	switch tmpl.Conflict {
	case ConflictIgnore:
		slog.Debug("effect ignored: already active", "effect", tmpl.Name, "target", existing.TargetID)
		return Receipt{ID: existing.ID, Outcome: OutcomeIgnored, Stacks: existing.Stacks}, nil

	case ConflictReplace:
		e.evict(existing, StateReplaced, tgt)
		e.publish(events.EffectRemoved, existing, existing.Magnitude)
		r := e.install(tmpl, existing.SourceID, existing.TargetID, tgt, mag, now)
		r.Outcome = OutcomeReplaced
		return r, nil

	case ConflictStack:
		if existing.Stacks >= tmpl.MaxStacks {
			slog.Debug("effect at max stacks", "effect", tmpl.Name, "target", existing.TargetID, "stacks", existing.Stacks)
			return Receipt{ID: existing.ID, Outcome: OutcomeIgnored, Stacks: existing.Stacks},
				fmt.Errorf("%w: %q at %d", ErrAlreadyAtMaxStacks, tmpl.Name, existing.Stacks)
		}
		existing.Stacks++
		existing.Magnitude = mag
		if tmpl.DurationTicks > 0 {
			existing.ExpiryTick = now + tmpl.DurationTicks
		}
		if tmpl.Kind == KindModifyStats {
			tgt.Stats().AddSource(actSourceKey(existing.ID), scaledModifiers(tmpl, existing.Stacks))
		}
		e.publish(events.EffectApplied, existing, existing.Magnitude)
		return Receipt{ID: existing.ID, Outcome: OutcomeStacked, Stacks: existing.Stacks}, nil

	case ConflictMerge:
		existing.Magnitude += mag
		if tmpl.DurationTicks > 0 && existing.ExpiryTick != NoExpiry {
			existing.ExpiryTick = max(existing.ExpiryTick, now+tmpl.DurationTicks)
		}
		e.publish(events.EffectApplied, existing, existing.Magnitude)
		return Receipt{ID: existing.ID, Outcome: OutcomeMerged, Stacks: existing.Stacks}, nil
	}
	panic(fmt.Sprintf("effect: unknown conflict policy %d", uint8(tmpl.Conflict)))
}

func (e *Engine) install(tmpl *Template, source, target model.EntityID, tgt *model.Entity, mag float64, now int64) Receipt {
	e.seq++
	act := &Active{
		ID:          e.seq,
		Template:    tmpl,
		SourceID:    source,
		TargetID:    target,
		Magnitude:   mag,
		Stacks:      1,
		AppliedTick: now,
		State:       StatePending,
	}

	if tmpl.Category == CategoryInstant {
		e.execute(act, tgt)
		act.State = StateExpired
		e.publish(events.EffectApplied, act, mag)
		return Receipt{ID: act.ID, Outcome: OutcomeInstant, Stacks: 1}
	}

	switch tmpl.Category {
	case CategoryDuration, CategoryStacking:
		act.ExpiryTick = now + tmpl.DurationTicks
	case CategoryPermanent, CategoryTrigger:
		act.ExpiryTick = NoExpiry
	}
	if tmpl.Pulses() {
		act.NextPulseTick = now + tmpl.PeriodTicks
	}

	act.State = StateActive
	e.byID[act.ID] = act
	e.byTarget[target] = append(e.byTarget[target], act)

	switch tmpl.Kind {
	case KindModifyStats:
		tgt.Stats().AddSource(actSourceKey(act.ID), scaledModifiers(tmpl, 1))
	case KindStun:
		tgt.SetStunned(true)
		e.publish(events.EntityStunned, act, mag)
	}

	slog.Debug("effect applied", "effect", tmpl.Name, "target", target, "source", source, "id", act.ID)
	e.publish(events.EffectApplied, act, mag)
	return Receipt{ID: act.ID, Outcome: OutcomeApplied, Stacks: 1}
}

// pulse runs one periodic action of a live instance.
func (e *Engine) pulse(act *Active, tgt *model.Entity) {
	e.execute(act, tgt)
}

// execute performs the effect's work once (instant application or one pulse).
func (e *Engine) execute(act *Active, tgt *model.Entity) {
	amount := act.Magnitude * float64(act.Stacks)
	switch act.Template.Kind {
	case KindDamage:
		dealt := tgt.ApplyDamage(amount)
		e.publish(events.DamageDealt, act, dealt)
		if tgt.IsDead() && tgt.Die() {
			e.publish(events.EntityDied, act, dealt)
			if e.onDeath != nil {
				e.onDeath(tgt.ID())
			}
		}
	case KindHeal:
		tgt.Heal(amount)
	case KindRestore:
		tgt.RestoreResource(act.Template.Resource, amount)
	default:
		panic(fmt.Sprintf("effect: kind %s cannot execute", act.Template.Kind))
	}
}

// evict removes an instance from the books and reverts its side effects.
// tgt may be nil when the entity already left the arena.
func (e *Engine) evict(act *Active, state State, tgt *model.Entity) {
	act.State = state
	delete(e.byID, act.ID)
	list := e.byTarget[act.TargetID]
	if i := slices.Index(list, act); i >= 0 {
		e.byTarget[act.TargetID] = slices.Delete(list, i, i+1)
	}
	if len(e.byTarget[act.TargetID]) == 0 {
		delete(e.byTarget, act.TargetID)
	}

	if tgt == nil {
		return
	}
	switch act.Template.Kind {
	case KindModifyStats:
		tgt.Stats().RemoveSource(actSourceKey(act.ID))
	case KindStun:
		if !e.hasActiveStun(act.TargetID) {
			tgt.SetStunned(false)
		}
	}
}

func (e *Engine) hasActiveStun(target model.EntityID) bool {
	for _, act := range e.byTarget[target] {
		if act.State == StateActive && act.Template.Kind == KindStun {
			return true
		}
	}
	return false
}

func (e *Engine) publish(t events.Type, act *Active, value float64) {
	e.bus.Publish(events.Event{
		Type:   t,
		Tick:   e.now(),
		Source: act.SourceID,
		Target: act.TargetID,
		Name:   act.Template.Name,
		Value:  value,
	})
}

func actSourceKey(id uint64) string {
	return fmt.Sprintf("effect:%d", id)
}

// scaledModifiers multiplies the template's per-stack modifiers by the stack
// count. Multiplicative modifiers are left untouched: stacking a percentage
// buff multiplies magnitude through repeated addition of the bonus fraction.
func scaledModifiers(tmpl *Template, stacks int32) []stats.Modifier {
	mods := make([]stats.Modifier, len(tmpl.Modifiers))
	copy(mods, tmpl.Modifiers)
	if stacks <= 1 {
		return mods
	}
	for i := range mods {
		switch mods[i].Kind {
		case stats.ModStatMul:
			mods[i].Value = 1 + (mods[i].Value-1)*float64(stacks)
		default:
			mods[i].Value *= float64(stacks)
		}
	}
	return mods
}
