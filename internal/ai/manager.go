package ai

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aievolve/simcore/internal/game/combat"
	"github.com/aievolve/simcore/internal/game/effect"
	"github.com/aievolve/simcore/internal/game/skill"
	"github.com/aievolve/simcore/internal/model"
	"github.com/aievolve/simcore/internal/world"
)

var (
	// ErrAlreadyManaged rejects adopting an entity twice.
	ErrAlreadyManaged = errors.New("entity already managed")
	// ErrNotManaged reports an entity without a controller.
	ErrNotManaged = errors.New("entity not managed")
)

// Roller supplies the exploration rolls.
type Roller interface {
	Float64() float64
}

// Manager owns the controllers and memory groups for one simulation context.
// Step drives every controller one transition in adoption order, so runs are
// deterministic for a fixed seed.
type Manager struct {
	mu     sync.Mutex
	skills *skill.Engine
	combat *combat.Resolver
	arena  *world.Arena
	roll   Roller
	now    func() int64
	params Params

	controllers map[model.EntityID]*Controller
	order       []model.EntityID
	groups      map[string]*Group
	groupOrder  []string

	// restored holds entity tables loaded from a snapshot before their
	// entity was adopted; Adopt claims them.
	restored map[model.EntityID]*Memory

	generation int64

	deathMu sync.Mutex
	deaths  []model.EntityID
}

// NewManager builds an AI manager over the shared engines. Panics on nil
// collaborators or invalid params; both are wiring bugs.
func NewManager(skills *skill.Engine, cbt *combat.Resolver, arena *world.Arena, roll Roller, now func() int64, params Params) *Manager {
	if roll == nil {
		panic("ai: nil roller")
	}
	if now == nil {
		panic("ai: nil clock")
	}
	if err := params.Validate(); err != nil {
		panic(err)
	}
	return &Manager{
		skills:      skills,
		combat:      cbt,
		arena:       arena,
		roll:        roll,
		now:         now,
		params:      params,
		controllers: make(map[model.EntityID]*Controller),
		groups:      make(map[string]*Group),
		restored:    make(map[model.EntityID]*Memory),
	}
}

// Adopt starts managing an entity with a private value table (or the table a
// snapshot restored for it).
func (m *Manager) Adopt(id model.EntityID) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adopt(id, "")
}

// AdoptIntoGroup starts managing an entity learning into a shared group
// table, creating the group on first use.
func (m *Manager) AdoptIntoGroup(id model.EntityID, group string) (*Controller, error) {
	if group == "" {
		return nil, fmt.Errorf("adopt %d: empty group name", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adopt(id, group)
}

func (m *Manager) adopt(id model.EntityID, group string) (*Controller, error) {
	if _, ok := m.arena.Get(id); !ok {
		return nil, fmt.Errorf("%w: %d", effect.ErrUnknownEntity, id)
	}
	if _, dup := m.controllers[id]; dup {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyManaged, id)
	}

	c := &Controller{id: id, state: StateIdle, group: group}
	switch {
	case group != "":
		g := m.ensureGroup(group)
		g.members = append(g.members, id)
		c.mem = g.mem
	default:
		if mem, ok := m.restored[id]; ok {
			delete(m.restored, id)
			c.mem = mem
		} else {
			c.mem = NewMemory(m.params)
		}
	}

	m.controllers[id] = c
	m.order = append(m.order, id)
	slog.Debug("ai adopted", "entity", id, "group", group)
	return c, nil
}

func (m *Manager) ensureGroup(name string) *Group {
	if g, ok := m.groups[name]; ok {
		return g
	}
	g := &Group{name: name, mem: newSharedMemory(m.params)}
	m.groups[name] = g
	m.groupOrder = append(m.groupOrder, name)
	return g
}

// Drop stops managing an entity. Its group keeps the pooled experience.
func (m *Manager) Drop(id model.EntityID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[id]
	if !ok {
		return
	}
	delete(m.controllers, id)
	m.order = slices.DeleteFunc(m.order, func(e model.EntityID) bool { return e == id })
	if c.group != "" {
		if g, ok := m.groups[c.group]; ok {
			g.drop(id)
		}
	}
	slog.Debug("ai dropped", "entity", id)
}

// Controller returns the controller managing an entity.
func (m *Manager) Controller(id model.EntityID) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotManaged, id)
	}
	return c, nil
}

// Group returns a memory group by name.
func (m *Manager) Group(name string) (*Group, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[name]
	return g, ok
}

// Managed returns the managed entity ids in adoption order.
func (m *Manager) Managed() []model.EntityID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order)
}

// Generation returns the snapshot generation counter.
func (m *Manager) Generation() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Step advances every controller one transition, in adoption order. Death
// notifications queued since the last step settle first so fatal actions are
// devalued before new decisions read the tables, and again after, so kills
// made during this step land before the next tick.
func (m *Manager) Step() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settleDeaths()
	for _, id := range m.order {
		m.controllers[id].step(m)
	}
	m.settleDeaths()
}

// NotifyDeath queues a death penalty. Safe to call from combat and
// effect-engine death handlers while a step is running.
func (m *Manager) NotifyDeath(id model.EntityID) {
	m.deathMu.Lock()
	m.deaths = append(m.deaths, id)
	m.deathMu.Unlock()
}

func (m *Manager) settleDeaths() {
	m.deathMu.Lock()
	deaths := m.deaths
	m.deaths = nil
	m.deathMu.Unlock()
	for _, id := range deaths {
		if c, ok := m.controllers[id]; ok {
			c.penalizeDeath(m)
		}
	}
}

// Reset clears all learned tables back to fresh learning state. Adoption
// order and group membership survive; the generation counter restarts.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.groupOrder {
		g := m.groups[name]
		g.mem = newSharedMemory(m.params)
		for _, id := range g.members {
			if c, ok := m.controllers[id]; ok {
				c.mem = g.mem
			}
		}
	}
	for _, id := range m.order {
		c := m.controllers[id]
		if c.group == "" {
			c.mem = NewMemory(m.params)
		}
		c.pending = decision{}
		c.hasLast = false
		c.state = StateIdle
	}
	m.restored = make(map[model.EntityID]*Memory)
	m.generation = 0
	slog.Info("ai memory reset")
}

// observation is one sampled view of the controller's situation.
type observation struct {
	sig    Signature
	health float64
	mana   float64
}

func (m *Manager) observe(c *Controller) (observation, error) {
	ent, ok := m.arena.Get(c.id)
	if !ok {
		return observation{}, fmt.Errorf("%w: %d", effect.ErrUnknownEntity, c.id)
	}
	d, err := ent.Stats().Resolve(m.now())
	if err != nil {
		return observation{}, fmt.Errorf("observing %d: %w", c.id, err)
	}

	obs := observation{health: 1, mana: 1}
	if d.MaxHealth > 0 {
		obs.health = ent.Health() / d.MaxHealth
	}
	if ent.HasResource(model.ResourceMana) && d.MaxMana > 0 {
		obs.mana = ent.ResourceValue(model.ResourceMana) / d.MaxMana
	}

	targetHealth, distance := 0.0, 0.0
	if tgt, ok := m.arena.Get(c.target); ok {
		if td, err := tgt.Stats().Resolve(m.now()); err == nil && td.MaxHealth > 0 {
			targetHealth = tgt.Health() / td.MaxHealth
		}
		distance = ent.DistanceTo(tgt)
	}
	obs.sig = MakeSignature(obs.health, obs.mana, targetHealth, distance)
	return obs, nil
}

// legalSkills filters the learned list through CanUse, keeping learn order
// so ties and random picks are deterministic.
func (m *Manager) legalSkills(c *Controller) []string {
	var legal []string
	for _, name := range m.skills.Learned(c.id) {
		if err := m.skills.CanUse(c.id, m.useTarget(c, name), name); err == nil {
			legal = append(legal, name)
		}
	}
	return legal
}

// useTarget picks who a skill would be used on: hostile skills hit the
// controller's target, everything else self-casts.
func (m *Manager) useTarget(c *Controller, name string) model.EntityID {
	if tmpl, ok := m.skills.Template(name); ok && !tmpl.Type.Hostile() {
		return c.id
	}
	return c.target
}

// score combines static priority, the learned estimate and the contextual
// multiplier for one candidate skill.
func (m *Manager) score(c *Controller, name string, obs observation) float64 {
	tmpl, ok := m.skills.Template(name)
	if !ok {
		return 0
	}
	base := tmpl.Priority.Base
	if base == 0 {
		base = 1
	}
	mult := 1.0
	if tmpl.Priority.HealthThreshold > 0 && obs.health < tmpl.Priority.HealthThreshold && defensive(tmpl) {
		mult *= m.params.DefensiveBoost
	}
	if tmpl.Priority.ManaThreshold > 0 && obs.mana < tmpl.Priority.ManaThreshold && tmpl.Costs[model.ResourceMana] > 0 {
		mult *= m.params.ManaDamp
	}
	mult = min(max(mult, 0.1), 10)
	return base * c.mem.Value(obs.sig, name) * mult
}

func defensive(t *skill.Template) bool {
	return t.Type == skill.TypeHeal || t.Type == skill.TypeBuff || slices.Contains(t.Priority.Tags, "defensive")
}
