package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CombatBalance tunes the damage pipeline and the stagger break.
type CombatBalance struct {
	DefenseSoftCap      float64 `yaml:"defense_soft_cap"`
	MaxDamageReduction  float64 `yaml:"max_damage_reduction"`
	BlockReduction      float64 `yaml:"block_reduction"`
	StaggerFactor       float64 `yaml:"stagger_factor"`
	StaggerDecayPerTick float64 `yaml:"stagger_decay_per_tick"`
	StunEffect          string  `yaml:"stun_effect"`
	StunDurationTicks   int64   `yaml:"stun_duration_ticks"`
}

// LearningBalance tunes the reinforcement learner.
type LearningBalance struct {
	LearningRate      float64 `yaml:"learning_rate"`
	LearningRateDecay float64 `yaml:"learning_rate_decay"`
	LearningRateFloor float64 `yaml:"learning_rate_floor"`
	Discount          float64 `yaml:"discount"`
	Exploration       float64 `yaml:"exploration"`
	ExplorationDecay  float64 `yaml:"exploration_decay"`
	ExplorationFloor  float64 `yaml:"exploration_floor"`
	GroupBlend        float64 `yaml:"group_blend"`
	DefaultValue      float64 `yaml:"default_value"`
	GenerationDecay   float64 `yaml:"generation_decay"`

	RewardDamage     float64 `yaml:"reward_damage"`
	RewardHeal       float64 `yaml:"reward_heal"`
	RewardKill       float64 `yaml:"reward_kill"`
	RewardFailed     float64 `yaml:"reward_failed"`
	RewardHealthLost float64 `yaml:"reward_health_lost"`
	RewardDeath      float64 `yaml:"reward_death"`

	DefensiveBoost float64 `yaml:"defensive_boost"`
	ManaDamp       float64 `yaml:"mana_damp"`
}

// Balance groups every tunable the designers are expected to touch.
type Balance struct {
	Combat   CombatBalance   `yaml:"combat"`
	Learning LearningBalance `yaml:"learning"`
}

// DefaultBalance returns the shipped balance values.
func DefaultBalance() Balance {
	return Balance{
		Combat: CombatBalance{
			DefenseSoftCap:      100,
			MaxDamageReduction:  0.95,
			BlockReduction:      0.5,
			StaggerFactor:       0.3,
			StaggerDecayPerTick: 2,
			StunEffect:          "stagger_stun",
			StunDurationTicks:   20,
		},
		Learning: LearningBalance{
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

			RewardDamage:     1.0,
			RewardHeal:       0.8,
			RewardKill:       1.0,
			RewardFailed:     -0.3,
			RewardHealthLost: -0.5,
			RewardDeath:      -10,

			DefensiveBoost: 2.0,
			ManaDamp:       0.5,
		},
	}
}

// LoadBalance loads balance config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadBalance(path string) (Balance, error) {
	bal := DefaultBalance()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return bal, nil
		}
		return bal, fmt.Errorf("reading balance %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &bal); err != nil {
		return bal, fmt.Errorf("parsing balance %s: %w", path, err)
	}

	if err := bal.Validate(); err != nil {
		return bal, fmt.Errorf("balance %s: %w", path, err)
	}
	return bal, nil
}

// Validate rejects values outside their working ranges.
func (b Balance) Validate() error {
	rates := []struct {
		name string
		v    float64
	}{
		{"max_damage_reduction", b.Combat.MaxDamageReduction},
		{"block_reduction", b.Combat.BlockReduction},
		{"learning_rate", b.Learning.LearningRate},
		{"learning_rate_decay", b.Learning.LearningRateDecay},
		{"discount", b.Learning.Discount},
		{"exploration", b.Learning.Exploration},
		{"exploration_decay", b.Learning.ExplorationDecay},
		{"group_blend", b.Learning.GroupBlend},
		{"generation_decay", b.Learning.GenerationDecay},
	}
	for _, r := range rates {
		if r.v < 0 || r.v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", r.name, r.v)
		}
	}
	if b.Combat.DefenseSoftCap <= 0 {
		return fmt.Errorf("defense_soft_cap must be positive, got %v", b.Combat.DefenseSoftCap)
	}
	if b.Combat.StaggerFactor < 0 {
		return fmt.Errorf("stagger_factor must not be negative, got %v", b.Combat.StaggerFactor)
	}
	if b.Combat.StunEffect == "" {
		return fmt.Errorf("stun_effect must name an effect template")
	}
	if b.Combat.StunDurationTicks <= 0 {
		return fmt.Errorf("stun_duration_ticks must be positive, got %d", b.Combat.StunDurationTicks)
	}
	if b.Learning.DefaultValue <= 0 {
		return fmt.Errorf("default_value must be positive, got %v", b.Learning.DefaultValue)
	}
	if b.Learning.DefensiveBoost <= 0 || b.Learning.ManaDamp <= 0 {
		return fmt.Errorf("context multipliers must be positive")
	}
	return nil
}
