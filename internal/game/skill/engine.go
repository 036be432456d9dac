package skill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aievolve/simcore/internal/events"
	"github.com/aievolve/simcore/internal/game/effect"
	"github.com/aievolve/simcore/internal/game/stats"
	"github.com/aievolve/simcore/internal/game/trigger"
	"github.com/aievolve/simcore/internal/model"
	"github.com/aievolve/simcore/internal/world"
)

var (
	ErrUnknownSkill          = errors.New("unknown skill")
	ErrAlreadyLearned        = errors.New("skill already learned")
	ErrInsufficientResources = errors.New("insufficient resources")
	ErrOnCooldown            = errors.New("skill on cooldown")
	ErrRequirementsNotMet    = errors.New("requirements not met")
	ErrOutOfRange            = errors.New("target out of range")
	ErrInvalidTarget         = errors.New("invalid target")
)

// Engine owns skill templates, combo chains and all per-caster skill state.
// One engine per simulation context.
type Engine struct {
	mu      sync.Mutex
	effects *effect.Engine
	procs   *trigger.Table
	arena   *world.Arena
	bus     *events.Bus
	now     func() int64

	templates  map[string]*Template
	combos     map[string]*ComboChain
	comboIndex map[string]comboPos
	casters    map[model.EntityID]*casterState
}

// NewEngine creates a skill engine applying through the given effect engine
// and firing procs through the trigger table.
func NewEngine(effects *effect.Engine, procs *trigger.Table, arena *world.Arena, bus *events.Bus, now func() int64) *Engine {
	if now == nil {
		panic("skill: nil clock")
	}
	return &Engine{
		effects:    effects,
		procs:      procs,
		arena:      arena,
		bus:        bus,
		now:        now,
		templates:  make(map[string]*Template),
		combos:     make(map[string]*ComboChain),
		comboIndex: make(map[string]comboPos),
		casters:    make(map[model.EntityID]*casterState),
	}
}

// RegisterTemplate validates and installs a skill. Every referenced effect
// template must already exist in the effect engine.
func (e *Engine) RegisterTemplate(t *Template) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("register skill: %w", err)
	}
	for _, eff := range t.Effects {
		if _, ok := e.effects.EffectTemplate(eff); !ok {
			return fmt.Errorf("register skill %q: %w: %q", t.Name, effect.ErrUnknownEffect, eff)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.templates[t.Name]; ok {
		return fmt.Errorf("register skill: duplicate template %q", t.Name)
	}
	e.templates[t.Name] = t
	return nil
}

// RegisterCombo validates and installs a combo chain. Every step must be a
// registered skill and belong to at most one chain.
func (e *Engine) RegisterCombo(c *ComboChain) error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("register combo: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.combos[c.Name]; ok {
		return fmt.Errorf("register combo: duplicate chain %q", c.Name)
	}
	for _, step := range c.Steps {
		if _, ok := e.templates[step]; !ok {
			return fmt.Errorf("register combo %q: %w: %q", c.Name, ErrUnknownSkill, step)
		}
		if prev, taken := e.comboIndex[step]; taken {
			return fmt.Errorf("register combo %q: skill %q already in chain %q", c.Name, step, prev.chain.Name)
		}
	}
	e.combos[c.Name] = c
	for i, step := range c.Steps {
		e.comboIndex[step] = comboPos{chain: c, idx: i}
	}
	return nil
}

// Template resolves a skill template by name.
func (e *Engine) Template(name string) (*Template, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.templates[name]
	return t, ok
}

// TemplateCount reports how many skills are registered.
func (e *Engine) TemplateCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.templates)
}

// Learn grants a skill to a caster with full charges.
func (e *Engine) Learn(caster model.EntityID, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tmpl, ok := e.templates[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSkill, name)
	}
	if _, ok := e.arena.Get(caster); !ok {
		return fmt.Errorf("%w: caster %d", effect.ErrUnknownEntity, caster)
	}
	st := e.caster(caster)
	if _, ok := st.learned[name]; ok {
		return fmt.Errorf("%w: %q on %d", ErrAlreadyLearned, name, caster)
	}
	st.learned[name] = &LearnedSkill{
		LastUsedTick: -tmpl.CooldownTicks,
		Charges:      tmpl.MaxCharges,
	}
	st.order = append(st.order, name)
	return nil
}

// Forget removes a learned skill and its state.
func (e *Engine) Forget(caster model.EntityID, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.casters[caster]
	if !ok {
		return
	}
	if _, ok := st.learned[name]; !ok {
		return
	}
	delete(st.learned, name)
	for i, n := range st.order {
		if n == name {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
}

// Learned lists the caster's skills in learn order.
func (e *Engine) Learned(caster model.EntityID) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.casters[caster]
	if !ok {
		return nil
	}
	out := make([]string, len(st.order))
	copy(out, st.order)
	return out
}

// CanUse reports whether the caster could use the skill on the target right
// now. Checks run in a fixed order: resources, cooldown/charges, GCD group,
// requirements, target validity, range. Never mutates state.
func (e *Engine) CanUse(caster, target model.EntityID, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _, err := e.canUse(caster, target, name)
	return err
}

func (e *Engine) canUse(caster, target model.EntityID, name string) (*Template, *LearnedSkill, error) {
	tmpl, ok := e.templates[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownSkill, name)
	}
	cst, ok := e.arena.Get(caster)
	if !ok {
		return nil, nil, fmt.Errorf("%w: caster %d", effect.ErrUnknownEntity, caster)
	}
	st, ok := e.casters[caster]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q not learned by %d", ErrUnknownSkill, name, caster)
	}
	ls, ok := st.learned[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q not learned by %d", ErrUnknownSkill, name, caster)
	}

	now := e.now()
	for r := model.Resource(0); r < model.ResourceCount; r++ {
		cost := tmpl.Costs[r]
		if cost == 0 {
			continue
		}
		if !cst.HasResource(r) || cst.ResourceValue(r) < cost {
			return nil, nil, fmt.Errorf("%w: %q needs %v %s", ErrInsufficientResources, name, cost, r)
		}
	}
	if ls.Charges <= 0 {
		return nil, nil, fmt.Errorf("%w: %q ready at tick %d", ErrOnCooldown, name, ls.nextChargeTick)
	}
	if tmpl.GCDTicks > 0 {
		if last, ok := st.gcd[tmpl.GCDGroup]; ok && now-last < tmpl.GCDTicks {
			return nil, nil, fmt.Errorf("%w: gcd group %q", ErrOnCooldown, tmpl.GCDGroup)
		}
	}
	if err := e.checkRequirements(tmpl, cst); err != nil {
		return nil, nil, err
	}
	if err := e.checkTarget(tmpl, cst, caster, target); err != nil {
		return nil, nil, err
	}
	return tmpl, ls, nil
}

func (e *Engine) checkRequirements(tmpl *Template, cst *model.Entity) error {
	attrs := cst.Stats().Attributes()
	if attrs.Level < tmpl.Requirements.Level {
		return fmt.Errorf("%w: %q needs level %d", ErrRequirementsNotMet, tmpl.Name, tmpl.Requirements.Level)
	}
	for a := stats.AttrStrength; a <= stats.AttrLuck; a++ {
		if need, ok := tmpl.Requirements.Attributes[a]; ok && attrs.Get(a) < need {
			return fmt.Errorf("%w: %q needs %s %v", ErrRequirementsNotMet, tmpl.Name, a, need)
		}
	}
	return nil
}

func (e *Engine) checkTarget(tmpl *Template, cst *model.Entity, caster, target model.EntityID) error {
	tgt, ok := e.arena.Get(target)
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}
	if tmpl.Type.Hostile() {
		if target == caster {
			return fmt.Errorf("%w: %q cannot target self", ErrInvalidTarget, tmpl.Name)
		}
		if tgt.IsDead() {
			return fmt.Errorf("%w: %d is dead", ErrInvalidTarget, target)
		}
	} else if tgt.IsDead() {
		return fmt.Errorf("%w: %d is dead", ErrInvalidTarget, target)
	}
	dist := cst.DistanceTo(tgt)
	if dist < tmpl.MinRange {
		return fmt.Errorf("%w: %q inside min range (%.1f < %.1f)", ErrOutOfRange, tmpl.Name, dist, tmpl.MinRange)
	}
	if tmpl.MaxRange > 0 && dist > tmpl.MaxRange {
		return fmt.Errorf("%w: %q beyond max range (%.1f > %.1f)", ErrOutOfRange, tmpl.Name, dist, tmpl.MaxRange)
	}
	return nil
}

// Use executes a skill. Nil or empty targets means self-cast. The context is
// honored only until resources commit; from there the use runs to completion
// so effect application stays atomic.
func (e *Engine) Use(ctx context.Context, caster model.EntityID, name string, targets []model.EntityID) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(targets) == 0 {
		targets = []model.EntityID{caster}
	}
	primary := targets[0]

	tmpl, ls, err := e.canUse(caster, primary, name)
	if err != nil {
		slog.Debug("skill rejected", "skill", name, "caster", caster, "err", err)
		return Outcome{}, err
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("skill use cancelled: %w", err)
	}

	cst, _ := e.arena.Get(caster)
	now := e.now()
	st := e.casters[caster]

	mag, err := e.magnitude(tmpl, cst, now)
	if err != nil {
		return Outcome{}, err
	}

	for r := model.Resource(0); r < model.ResourceCount; r++ {
		if cost := tmpl.Costs[r]; cost > 0 {
			if !cst.SpendResource(r, cost) {
				panic(fmt.Sprintf("skill: validated cost deduction failed for %q", name))
			}
		}
	}
	if ls.Charges == tmpl.MaxCharges {
		ls.nextChargeTick = now + tmpl.CooldownTicks
	}
	ls.Charges--
	ls.LastUsedTick = now
	if tmpl.GCDTicks > 0 {
		st.gcd[tmpl.GCDGroup] = now
	}

	mult, step := e.advanceCombo(st, name, now)
	mag *= mult

	out := Outcome{
		Skill:        tmpl.Name,
		Type:         tmpl.Type,
		Element:      tmpl.Element,
		WeaponAttack: tmpl.WeaponAttack,
		Caster:       caster,
		Targets:      targets,
		Magnitude:    mag,
		ComboStep:    step,
	}
	for _, target := range targets {
		for _, eff := range tmpl.Effects {
			receipt, applyErr := e.effects.Apply(eff, caster, target)
			out.Applications = append(out.Applications, Application{
				Effect:  eff,
				Target:  target,
				Receipt: receipt,
				Err:     applyErr,
			})
		}
	}

	e.bus.Publish(events.Event{
		Type:   events.SkillUsed,
		Tick:   now,
		Source: caster,
		Target: primary,
		Name:   tmpl.Name,
		Value:  mag,
	})
	slog.Debug("skill used", "skill", tmpl.Name, "caster", caster, "target", primary, "magnitude", mag, "combo_step", step)

	e.procs.Fire(trigger.OnCast, caster, primary)
	if tmpl.WeaponAttack {
		e.procs.Fire(trigger.OnHit, caster, primary)
	}
	return out, nil
}

// magnitude folds the caster's attributes and derived stats into the base
// value. Enum-order iteration keeps float summation reproducible.
func (e *Engine) magnitude(tmpl *Template, cst *model.Entity, now int64) (float64, error) {
	mag := tmpl.BaseMagnitude
	if len(tmpl.AttrScaling) > 0 {
		attrs := cst.Stats().Attributes()
		for a := stats.AttrStrength; a <= stats.AttrLuck; a++ {
			if coef, ok := tmpl.AttrScaling[a]; ok {
				mag += coef * attrs.Get(a)
			}
		}
	}
	if len(tmpl.StatScaling) > 0 {
		derived, err := cst.Stats().Resolve(now)
		if err != nil {
			return 0, fmt.Errorf("resolving caster stats: %w", err)
		}
		for s := stats.StatMaxHealth; s <= stats.StatStunResist; s++ {
			if coef, ok := tmpl.StatScaling[s]; ok {
				mag += coef * derived.Get(s)
			}
		}
	}
	return mag, nil
}

// advanceCombo applies the chain rules: the first step always starts a
// chain; a later step continues it only when the previous step landed inside
// the window, otherwise the chain resets and the use gets no bonus.
func (e *Engine) advanceCombo(st *casterState, name string, now int64) (float64, int32) {
	pos, isCombo := e.comboIndex[name]
	if !isCombo {
		return 1, 0
	}
	c := pos.chain
	if pos.idx == 0 {
		st.combo = comboState{chain: c.Name, step: 1, lastHitTick: now}
		return 1, 1
	}
	if st.combo.chain == c.Name && st.combo.step == int32(pos.idx) && now-st.combo.lastHitTick <= c.WindowTicks {
		step := int32(pos.idx) + 1
		st.combo = comboState{chain: c.Name, step: step, lastHitTick: now}
		return 1 + c.StepBonus*float64(pos.idx), step
	}
	st.combo = comboState{}
	return 1, 1
}

// Tick regenerates charges: one per cooldown interval while below max.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	for _, st := range e.casters {
		for name, ls := range st.learned {
			tmpl := e.templates[name]
			for ls.Charges < tmpl.MaxCharges && now >= ls.nextChargeTick {
				ls.Charges++
				ls.nextChargeTick += tmpl.CooldownTicks
			}
		}
	}
}

// Charges reports the caster's current charge count for a skill.
func (e *Engine) Charges(caster model.EntityID, name string) (int32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.casters[caster]
	if !ok {
		return 0, false
	}
	ls, ok := st.learned[name]
	if !ok {
		return 0, false
	}
	return ls.Charges, true
}

// CooldownRemaining reports ticks until the skill is usable again, 0 when
// ready.
func (e *Engine) CooldownRemaining(caster model.EntityID, name string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.casters[caster]
	if !ok {
		return 0
	}
	ls, ok := st.learned[name]
	if !ok || ls.Charges > 0 {
		return 0
	}
	return max(ls.nextChargeTick-e.now(), 0)
}

// ComboProgress reports the caster's current chain and 1-based step, empty
// when no chain is running.
func (e *Engine) ComboProgress(caster model.EntityID) (string, int32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.casters[caster]
	if !ok {
		return "", 0
	}
	return st.combo.chain, st.combo.step
}

// DropCaster forgets all per-caster state, e.g. on despawn.
func (e *Engine) DropCaster(caster model.EntityID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.casters, caster)
}

func (e *Engine) caster(id model.EntityID) *casterState {
	st, ok := e.casters[id]
	if !ok {
		st = newCasterState()
		e.casters[id] = st
	}
	return st
}
