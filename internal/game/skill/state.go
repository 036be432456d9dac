package skill

import (
	"fmt"

	"github.com/aievolve/simcore/internal/game/effect"
	"github.com/aievolve/simcore/internal/game/stats"
	"github.com/aievolve/simcore/internal/model"
)

// LearnedSkill is the per-caster mutable state of one known skill.
type LearnedSkill struct {
	LastUsedTick int64
	Charges      int32

	// nextChargeTick is when the running regen timer completes; meaningful
	// only while Charges < MaxCharges.
	nextChargeTick int64
}

// comboState tracks the caster's position inside a combo chain.
// Zero value means no chain in progress.
type comboState struct {
	chain       string
	step        int32
	lastHitTick int64
}

// casterState bundles everything the engine tracks per entity.
type casterState struct {
	learned map[string]*LearnedSkill
	// order preserves learn order so skill enumeration is deterministic.
	order []string
	gcd   map[string]int64
	combo comboState
}

func newCasterState() *casterState {
	return &casterState{
		learned: make(map[string]*LearnedSkill),
		gcd:     make(map[string]int64),
	}
}

// ComboChain is an ordered skill sequence with a per-step damage bonus.
// Executing consecutive steps inside the window multiplies the magnitude by
// 1 + StepBonus×(step−1).
type ComboChain struct {
	Name        string
	Steps       []string
	StepBonus   float64
	WindowTicks int64
}

func (c *ComboChain) validate() error {
	if c.Name == "" {
		return fmt.Errorf("combo chain: empty name")
	}
	if len(c.Steps) < 2 {
		return fmt.Errorf("combo chain %q: needs at least 2 steps", c.Name)
	}
	if c.StepBonus < 0 {
		return fmt.Errorf("combo chain %q: negative step bonus", c.Name)
	}
	if c.WindowTicks <= 0 {
		return fmt.Errorf("combo chain %q: window must be positive", c.Name)
	}
	seen := make(map[string]struct{}, len(c.Steps))
	for _, s := range c.Steps {
		if s == "" {
			return fmt.Errorf("combo chain %q: empty step", c.Name)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("combo chain %q: step %q repeats", c.Name, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// comboPos locates a skill inside its chain.
type comboPos struct {
	chain *ComboChain
	idx   int
}

// Application is one effect application attempted during Use.
// Err carries recoverable effect-engine failures (immunity etc.).
type Application struct {
	Effect  string
	Target  model.EntityID
	Receipt effect.Receipt
	Err     error
}

// Outcome is the result of a successful Use. Combat resolution and the AI
// observer consume it; it carries the template facts they need so neither
// has to look the skill up again.
type Outcome struct {
	Skill        string
	Type         Type
	Element      stats.Element
	WeaponAttack bool

	Caster  model.EntityID
	Targets []model.EntityID

	// Magnitude is the scaled, combo-adjusted strength of the use.
	Magnitude float64
	// ComboStep is the 1-based step executed, 0 for non-combo skills.
	ComboStep int32

	Applications []Application
}
