package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aievolve/simcore/internal/game/combat"
	"github.com/aievolve/simcore/internal/game/skill"
	"github.com/aievolve/simcore/internal/model"
)

// State is a controller's position in the decision cycle.
type State uint8

const (
	StateIdle State = iota
	StateEvaluating
	StateActing
	StateObserving
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StateActing:
		return "acting"
	case StateObserving:
		return "observing"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// decision carries an evaluated choice through acting and observing.
type decision struct {
	skill    string
	sig      Signature
	explored bool
}

// Controller runs the Idle -> Evaluating -> Acting -> Observing cycle for
// one managed entity, one transition per manager step. All mutation happens
// inside the manager's step, so fields need no locking of their own.
type Controller struct {
	id     model.EntityID
	mem    *Memory
	group  string
	state  State
	target model.EntityID

	pending      decision
	outcome      skill.Outcome
	result       combat.DamageResult
	useErr       error
	healthBefore float64

	last    decision
	hasLast bool
}

// ID returns the managed entity.
func (c *Controller) ID() model.EntityID { return c.id }

// State returns the current cycle position.
func (c *Controller) State() State { return c.state }

// Memory returns the value table this controller learns into (shared when
// the controller was adopted into a group).
func (c *Controller) Memory() *Memory { return c.mem }

// GroupName returns the memory group, empty for a private table.
func (c *Controller) GroupName() string { return c.group }

// Target returns the current target.
func (c *Controller) Target() model.EntityID { return c.target }

// LastOutcome returns the most recent skill outcome and use error.
func (c *Controller) LastOutcome() (skill.Outcome, error) { return c.outcome, c.useErr }

// LastResult returns the most recent combat resolution.
func (c *Controller) LastResult() combat.DamageResult { return c.result }

// SetTarget points the controller at an enemy. The controller stays idle
// while the target is missing or dead.
func (c *Controller) SetTarget(id model.EntityID) { c.target = id }

func (c *Controller) step(m *Manager) {
	switch c.state {
	case StateIdle:
		c.stepIdle(m)
	case StateEvaluating:
		c.stepEvaluating(m)
	case StateActing:
		c.stepActing(m)
	case StateObserving:
		c.stepObserving(m)
	default:
		panic(fmt.Sprintf("ai: unknown controller state %d", uint8(c.state)))
	}
}

// stepIdle leaves idle only when the entity can act and has a live target.
func (c *Controller) stepIdle(m *Manager) {
	ent, ok := m.arena.Get(c.id)
	if !ok || ent.IsDead() || ent.IsStunned() {
		return
	}
	tgt, ok := m.arena.Get(c.target)
	if !ok || tgt.IsDead() {
		return
	}
	c.state = StateEvaluating
}

// stepEvaluating scores the legal skills and commits to one, either greedily
// or, with probability eps, a uniform random pick.
func (c *Controller) stepEvaluating(m *Manager) {
	obs, err := m.observe(c)
	if err != nil {
		c.state = StateIdle
		return
	}
	legal := m.legalSkills(c)
	if len(legal) == 0 {
		c.state = StateIdle
		return
	}

	_, eps := c.mem.Rates()
	if m.roll.Float64() < eps {
		idx := int(m.roll.Float64() * float64(len(legal)))
		if idx >= len(legal) {
			idx = len(legal) - 1
		}
		c.pending = decision{skill: legal[idx], sig: obs.sig, explored: true}
	} else {
		name := legal[0]
		best := m.score(c, name, obs)
		for _, s := range legal[1:] {
			if score := m.score(c, s, obs); score > best {
				name, best = s, score
			}
		}
		c.pending = decision{skill: name, sig: obs.sig}
	}
	slog.Debug("ai decision",
		"entity", c.id, "skill", c.pending.skill, "state", c.pending.sig, "explored", c.pending.explored)
	c.state = StateActing
}

// stepActing uses the committed skill; attack outcomes route through the
// combat resolver for mitigation and stagger.
func (c *Controller) stepActing(m *Manager) {
	c.useErr = nil
	c.outcome = skill.Outcome{}
	c.result = combat.DamageResult{}

	ent, ok := m.arena.Get(c.id)
	if !ok {
		c.state = StateIdle
		return
	}
	c.healthBefore = ent.Health()

	targets := []model.EntityID{m.useTarget(c, c.pending.skill)}
	out, err := m.skills.Use(context.Background(), c.id, c.pending.skill, targets)
	c.outcome, c.useErr = out, err
	if err == nil && out.Type == skill.TypeAttack {
		res, rerr := m.combat.ResolveAttack(c.id, c.target, out)
		if rerr != nil {
			c.useErr = rerr
		} else {
			c.result = res
		}
	}
	c.state = StateObserving
}

// stepObserving turns the observed outcome into a reward and performs the
// value update against the best next-state estimate.
func (c *Controller) stepObserving(m *Manager) {
	reward := 0.0
	success := c.useErr == nil
	if !success {
		reward = m.params.RewardFailed
	}

	ent, alive := m.arena.Get(c.id)
	if alive {
		if d, err := ent.Stats().Resolve(m.now()); err == nil && d.MaxHealth > 0 {
			after := ent.Health()
			if after > c.healthBefore {
				reward += m.params.RewardHeal * (after - c.healthBefore) / d.MaxHealth
			} else if after < c.healthBefore {
				reward += m.params.RewardHealthLost * (c.healthBefore - after) / d.MaxHealth
			}
		}
	}
	if success && c.result.Absorbed > 0 {
		if tgt, ok := m.arena.Get(c.result.Defender); ok {
			if d, err := tgt.Stats().Resolve(m.now()); err == nil && d.MaxHealth > 0 {
				reward += m.params.RewardDamage * c.result.Absorbed / d.MaxHealth
			}
		}
	}
	if success && c.result.TargetDied {
		reward += m.params.RewardKill
	}

	maxNext := m.params.DefaultValue
	if alive && !ent.IsDead() {
		if obs, err := m.observe(c); err == nil {
			maxNext = c.mem.Best(obs.sig, m.legalSkills(c))
		}
	}

	v := c.mem.Record(c.pending.sig, c.pending.skill, reward, maxNext, success)
	slog.Debug("ai observed",
		"entity", c.id, "skill", c.pending.skill, "reward", reward, "value", v, "success", success)
	c.last, c.hasLast = c.pending, true
	c.pending = decision{}
	c.state = StateIdle
}

// penalizeDeath devalues the action that preceded the entity's death.
// Mid-cycle deaths punish the committed decision, otherwise the last
// recorded one. Runs at most once per death.
func (c *Controller) penalizeDeath(m *Manager) {
	d := c.pending
	if d.skill == "" {
		if !c.hasLast {
			c.state = StateIdle
			return
		}
		d = c.last
	}
	v := c.mem.Punish(d.sig, d.skill, m.params.RewardDeath)
	slog.Debug("ai death penalty", "entity", c.id, "skill", d.skill, "value", v)
	c.pending = decision{}
	c.hasLast = false
	c.state = StateIdle
}
