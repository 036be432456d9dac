// Package combat turns skill outcomes into applied damage: mitigation,
// crits, blocks, and the stagger/stun mechanic.
package combat

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aievolve/simcore/internal/events"
	"github.com/aievolve/simcore/internal/game/effect"
	"github.com/aievolve/simcore/internal/game/skill"
	"github.com/aievolve/simcore/internal/game/stats"
	"github.com/aievolve/simcore/internal/game/trigger"
	"github.com/aievolve/simcore/internal/model"
	"github.com/aievolve/simcore/internal/world"
)

// ErrTargetAlreadyDead rejects attacks resolved against a corpse.
var ErrTargetAlreadyDead = errors.New("target already dead")

// Roller supplies the dodge/crit/block rolls.
type Roller interface {
	Float64() float64
}

// Tuning holds the combat balance knobs. Defaults match the shipped balance
// config; the config layer may override them.
type Tuning struct {
	// DefenseSoftCap shapes the mitigation curve def/(def+cap).
	DefenseSoftCap float64
	// MaxDamageReduction caps combined resist+defense mitigation.
	MaxDamageReduction float64
	// BlockReduction scales damage on a successful block.
	BlockReduction float64
	// StaggerFactor converts dealt damage into stagger pool growth.
	StaggerFactor float64
	// StunEffect is the effect template applied when the stagger pool
	// breaks the defender's threshold.
	StunEffect string
}

// DefaultTuning returns the shipped combat balance.
func DefaultTuning() Tuning {
	return Tuning{
		DefenseSoftCap:     100,
		MaxDamageReduction: 0.95,
		BlockReduction:     0.5,
		StaggerFactor:      0.3,
		StunEffect:         "stagger_stun",
	}
}

// attackStatDivisor converts the attack stat into a damage multiplier:
// 1 + stat/divisor.
const attackStatDivisor = 100.0

// DamageResult reports one resolved attack.
type DamageResult struct {
	Attacker model.EntityID
	Defender model.EntityID
	Skill    string

	// Raw is the magnitude after attack-stat scaling, before mitigation.
	Raw float64
	// Final is the damage after mitigation, crit and block.
	Final float64
	// Absorbed is what the defender's health actually lost (clamped).
	Absorbed float64
	// StaggerPool is the defender's pool right after accumulation, before
	// a break resets it.
	StaggerPool float64

	Dodged     bool
	Crit       bool
	Blocked    bool
	Stunned    bool
	TargetDied bool
}

// Resolver applies attack outcomes to defenders. One per simulation context.
type Resolver struct {
	arena   *world.Arena
	effects *effect.Engine
	procs   *trigger.Table
	bus     *events.Bus
	roll    Roller
	now     func() int64
	tune    Tuning

	onDeath func(model.EntityID)
}

// NewResolver builds a combat resolver over the shared engines.
func NewResolver(arena *world.Arena, effects *effect.Engine, procs *trigger.Table, bus *events.Bus, roll Roller, now func() int64, tune Tuning) *Resolver {
	if roll == nil {
		panic("combat: nil roller")
	}
	if now == nil {
		panic("combat: nil clock")
	}
	return &Resolver{
		arena:   arena,
		effects: effects,
		procs:   procs,
		bus:     bus,
		roll:    roll,
		now:     now,
		tune:    tune,
	}
}

// SetDeathHandler installs the callback invoked on a killing blow.
func (r *Resolver) SetDeathHandler(fn func(model.EntityID)) {
	r.onDeath = fn
}

// ResolveAttack mitigates and applies the outcome's magnitude to the
// defender. Roll order is fixed: dodge, crit, block. Stagger accumulates
// from the final damage; breaking the threshold applies the stun effect and
// resets the pool.
func (r *Resolver) ResolveAttack(attacker, defender model.EntityID, out skill.Outcome) (DamageResult, error) {
	atkEnt, ok := r.arena.Get(attacker)
	if !ok {
		return DamageResult{}, fmt.Errorf("%w: attacker %d", effect.ErrUnknownEntity, attacker)
	}
	dfdEnt, ok := r.arena.Get(defender)
	if !ok {
		return DamageResult{}, fmt.Errorf("%w: defender %d", effect.ErrUnknownEntity, defender)
	}
	if dfdEnt.IsDead() {
		return DamageResult{}, fmt.Errorf("%w: %d", ErrTargetAlreadyDead, defender)
	}

	now := r.now()
	atk, err := atkEnt.Stats().Resolve(now)
	if err != nil {
		return DamageResult{}, fmt.Errorf("resolving attacker stats: %w", err)
	}
	dfd, err := dfdEnt.Stats().Resolve(now)
	if err != nil {
		return DamageResult{}, fmt.Errorf("resolving defender stats: %w", err)
	}

	res := DamageResult{Attacker: attacker, Defender: defender, Skill: out.Skill}
	res.Raw = out.Magnitude * r.attackScale(atk, out.Element)

	if r.roll.Float64() < dfd.DodgeChance {
		res.Dodged = true
		slog.Debug("attack dodged", "attacker", attacker, "defender", defender, "skill", out.Skill)
		return res, nil
	}

	dmg := r.mitigate(res.Raw, dfd, out.Element)

	if r.roll.Float64() < atk.CritChance {
		dmg *= atk.CritMultiplier
		res.Crit = true
		r.procs.Fire(trigger.OnCrit, attacker, defender)
	}
	if r.roll.Float64() < dfd.BlockChance {
		dmg *= r.tune.BlockReduction
		res.Blocked = true
		r.procs.Fire(trigger.OnBlock, defender, attacker)
	}
	res.Final = dmg

	res.StaggerPool = dfdEnt.AddStagger(dmg * r.tune.StaggerFactor)
	if res.StaggerPool > dfd.Toughness+dfd.StunResist {
		dfdEnt.ResetStagger()
		if _, err := r.effects.Apply(r.tune.StunEffect, attacker, defender); err != nil {
			slog.Debug("stagger break without stun", "defender", defender, "err", err)
		} else {
			res.Stunned = true
		}
		r.procs.Fire(trigger.OnStun, defender, attacker)
	}

	res.Absorbed = dfdEnt.ApplyDamage(dmg)
	r.bus.Publish(events.Event{
		Type:   events.DamageDealt,
		Tick:   now,
		Source: attacker,
		Target: defender,
		Name:   out.Skill,
		Value:  res.Absorbed,
	})
	r.procs.Fire(trigger.OnDamaged, defender, attacker)

	if dfdEnt.IsDead() && dfdEnt.Die() {
		res.TargetDied = true
		r.bus.Publish(events.Event{
			Type:   events.EntityDied,
			Tick:   now,
			Source: attacker,
			Target: defender,
			Name:   out.Skill,
			Value:  res.Absorbed,
		})
		r.procs.Fire(trigger.OnKill, attacker, defender)
		if r.onDeath != nil {
			r.onDeath(defender)
		}
	}

	slog.Debug("attack resolved",
		"attacker", attacker, "defender", defender, "skill", out.Skill,
		"raw", res.Raw, "final", res.Final, "crit", res.Crit, "blocked", res.Blocked,
		"stunned", res.Stunned, "died", res.TargetDied)
	return res, nil
}

// attackScale converts the relevant attack stat into a multiplier.
func (r *Resolver) attackScale(atk stats.DerivedStats, elem stats.Element) float64 {
	if elem == stats.ElementPhysical {
		return 1 + atk.PhysicalDamage/attackStatDivisor
	}
	return 1 + atk.MagicalDamage/attackStatDivisor
}

// mitigate folds element resist and the defense curve into the raw damage,
// with combined reduction capped.
func (r *Resolver) mitigate(raw float64, dfd stats.DerivedStats, elem stats.Element) float64 {
	defense := dfd.MagicResist
	if elem == stats.ElementPhysical {
		defense = dfd.Defense
	}
	reduction := defense / (defense + r.tune.DefenseSoftCap)
	dmg := raw * (1 - dfd.Resist[elem]) * (1 - reduction)
	if floor := raw * (1 - r.tune.MaxDamageReduction); dmg < floor {
		dmg = floor
	}
	return dmg
}
