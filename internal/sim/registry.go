// Package sim assembles the engines into one deterministic world and drives
// them with a fixed-order tick loop. Everything below this package is
// single-threaded per tick; concurrency only exists at the loop boundary
// (pacing, shutdown, autosave reads).
package sim

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"

	"github.com/aievolve/simcore/internal/ai"
	"github.com/aievolve/simcore/internal/config"
	"github.com/aievolve/simcore/internal/events"
	"github.com/aievolve/simcore/internal/game/combat"
	"github.com/aievolve/simcore/internal/game/effect"
	"github.com/aievolve/simcore/internal/game/skill"
	"github.com/aievolve/simcore/internal/game/stats"
	"github.com/aievolve/simcore/internal/game/trigger"
	"github.com/aievolve/simcore/internal/model"
	"github.com/aievolve/simcore/internal/world"
)

// World owns every engine of one simulation. All chance flows through a
// single seeded RNG and all time through a single tick counter, so two
// worlds built from the same config and driven the same way replay
// identically.
type World struct {
	cfg config.Simulation
	bal config.Balance

	tick     atomic.Int64
	rng      *rand.Rand
	stopCh   chan struct{}
	tickFunc func(tick int64)

	Arena   *world.Arena
	Bus     *events.Bus
	IDs     *world.IDGenerator
	Effects *effect.Engine
	Procs   *trigger.Table
	Skills  *skill.Engine
	Combat  *combat.Resolver
	AI      *ai.Manager
}

// New builds a world from config. The balance config is validated and the
// stun effect backing the stagger break is registered, so a fresh world can
// resolve combat before any content pack loads.
func New(cfg config.Simulation, bal config.Balance) (*World, error) {
	if err := bal.Validate(); err != nil {
		return nil, fmt.Errorf("building world: %w", err)
	}

	w := &World{
		cfg:    cfg,
		bal:    bal,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		stopCh: make(chan struct{}),
		Arena:  world.NewArena(),
		Bus:    events.NewBus(),
		IDs:    world.NewIDGenerator(),
	}
	now := w.Tick

	w.Effects = effect.NewEngine(w.Arena, w.Bus, now)
	w.Procs = trigger.NewTable(w.Effects, w.Bus, w.rng, now)
	w.Skills = skill.NewEngine(w.Effects, w.Procs, w.Arena, w.Bus, now)

	tune := combat.Tuning{
		DefenseSoftCap:     bal.Combat.DefenseSoftCap,
		MaxDamageReduction: bal.Combat.MaxDamageReduction,
		BlockReduction:     bal.Combat.BlockReduction,
		StaggerFactor:      bal.Combat.StaggerFactor,
		StunEffect:         bal.Combat.StunEffect,
	}
	w.Combat = combat.NewResolver(w.Arena, w.Effects, w.Procs, w.Bus, w.rng, now, tune)

	w.AI = ai.NewManager(w.Skills, w.Combat, w.Arena, w.rng, now, learningParams(bal.Learning))

	// Deaths feed the learner no matter which engine lands the kill.
	w.Combat.SetDeathHandler(w.AI.NotifyDeath)
	w.Effects.SetDeathHandler(w.AI.NotifyDeath)

	if err := w.Effects.RegisterTemplate(stunTemplate(bal.Combat)); err != nil {
		return nil, fmt.Errorf("building world: %w", err)
	}

	slog.Info("world built",
		"seed", cfg.Seed,
		"tickMillis", cfg.TickMillis,
		"stunEffect", bal.Combat.StunEffect)
	return w, nil
}

// stunTemplate is the baseline control effect the stagger break applies.
func stunTemplate(cb config.CombatBalance) *effect.Template {
	return &effect.Template{
		Name:          cb.StunEffect,
		Category:      effect.CategoryDuration,
		Kind:          effect.KindStun,
		DurationTicks: cb.StunDurationTicks,
		MaxStacks:     1,
		Conflict:      effect.ConflictReplace,
		Tags:          []string{"stun", "control"},
	}
}

func learningParams(lb config.LearningBalance) ai.Params {
	return ai.Params{
		LearningRate:      lb.LearningRate,
		LearningRateDecay: lb.LearningRateDecay,
		LearningRateFloor: lb.LearningRateFloor,
		Discount:          lb.Discount,
		Exploration:       lb.Exploration,
		ExplorationDecay:  lb.ExplorationDecay,
		ExplorationFloor:  lb.ExplorationFloor,
		GroupBlend:        lb.GroupBlend,
		DefaultValue:      lb.DefaultValue,
		GenerationDecay:   lb.GenerationDecay,
		RewardDamage:      lb.RewardDamage,
		RewardHeal:        lb.RewardHeal,
		RewardKill:        lb.RewardKill,
		RewardFailed:      lb.RewardFailed,
		RewardHealthLost:  lb.RewardHealthLost,
		RewardDeath:       lb.RewardDeath,
		DefensiveBoost:    lb.DefensiveBoost,
		ManaDamp:          lb.ManaDamp,
	}
}

// Tick returns the current tick. Safe to call from outside the loop
// goroutine.
func (w *World) Tick() int64 {
	return w.tick.Load()
}

// Spawn creates an entity, assigns it an id from the kind's range and places
// it in the arena.
func (w *World) Spawn(name string, kind model.Kind, attrs stats.AttributeSet, pos model.Position) (*model.Entity, error) {
	id := w.IDs.Next(kind)
	ent, err := model.NewEntity(id, name, kind, attrs, pos)
	if err != nil {
		return nil, fmt.Errorf("spawning %s: %w", name, err)
	}
	if err := w.Arena.Add(ent); err != nil {
		return nil, fmt.Errorf("spawning %s: %w", name, err)
	}

	slog.Debug("entity spawned",
		"id", id,
		"name", name,
		"kind", kind,
		"x", pos.X,
		"y", pos.Y)
	return ent, nil
}

// Despawn drops the entity's controller, if any, and removes it from the
// arena. Its learned table stays with the manager only when it was grouped.
func (w *World) Despawn(id model.EntityID) {
	w.AI.Drop(id)
	w.Arena.Remove(id)
	slog.Debug("entity despawned", "id", id)
}
