// Package ai drives managed entities: a per-entity controller state machine
// scores legal skills with learned value estimates, acts, observes the
// outcome and performs Q-style updates. Memory groups pool learned values
// across entities of the same class; snapshots persist them across
// generations.
package ai

import "fmt"

// Params are the learning and scoring knobs. DefaultParams matches the
// shipped balance config; config.Balance may override.
type Params struct {
	// LearningRate is the Q-update step size, decayed per recorded action.
	LearningRate      float64
	LearningRateDecay float64
	LearningRateFloor float64

	// Discount weights the best next-state estimate in the update target.
	Discount float64

	// Exploration is the chance to pick a random legal skill instead of the
	// greedy one, decayed per recorded action.
	Exploration      float64
	ExplorationDecay float64
	ExplorationFloor float64

	// GroupBlend weights a member's update when written into a shared
	// group table: v <- (1-blend)*v + blend*update.
	GroupBlend float64

	// DefaultValue is the neutral estimate for unseen (state, skill) pairs.
	DefaultValue float64

	// GenerationDecay pulls restored values toward DefaultValue on snapshot
	// load; 1 keeps them untouched.
	GenerationDecay float64

	// Reward shaping.
	RewardDamage     float64 // x damage dealt / target max health
	RewardHeal       float64 // x healing done / own max health
	RewardKill       float64
	RewardFailed     float64 // flat, negative
	RewardHealthLost float64 // x health lost / own max health, negative
	RewardDeath      float64 // flat, negative

	// Context multipliers applied during scoring.
	DefensiveBoost float64 // defensive skills below their health threshold
	ManaDamp       float64 // mana spenders below their mana threshold
}

// DefaultParams returns the shipped learning configuration.
func DefaultParams() Params {
	return Params{
		LearningRate:      0.1,
		LearningRateDecay: 0.9995,
		LearningRateFloor: 0.01,
		Discount:          0.95,
		Exploration:       0.2,
		ExplorationDecay:  0.999,
		ExplorationFloor:  0.01,
		GroupBlend:        0.5,
		DefaultValue:      1.0,
		GenerationDecay:   1.0,
		RewardDamage:      1.0,
		RewardHeal:        0.8,
		RewardKill:        1.0,
		RewardFailed:      -0.3,
		RewardHealthLost:  -0.5,
		RewardDeath:       -10,
		DefensiveBoost:    2.0,
		ManaDamp:          0.5,
	}
}

// Validate rejects rates outside their documented bounds.
func (p Params) Validate() error {
	check01 := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("ai params: %s = %v outside [0,1]", name, v)
		}
		return nil
	}
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"learning_rate", p.LearningRate},
		{"learning_rate_decay", p.LearningRateDecay},
		{"learning_rate_floor", p.LearningRateFloor},
		{"discount", p.Discount},
		{"exploration", p.Exploration},
		{"exploration_decay", p.ExplorationDecay},
		{"exploration_floor", p.ExplorationFloor},
		{"group_blend", p.GroupBlend},
		{"generation_decay", p.GenerationDecay},
	} {
		if err := check01(c.name, c.v); err != nil {
			return err
		}
	}
	if p.DefaultValue <= 0 {
		return fmt.Errorf("ai params: default_value = %v, must be positive", p.DefaultValue)
	}
	if p.DefensiveBoost <= 0 || p.ManaDamp <= 0 {
		return fmt.Errorf("ai params: context multipliers must be positive")
	}
	return nil
}
