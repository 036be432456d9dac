package skill

import (
	"fmt"

	"github.com/aievolve/simcore/internal/game/stats"
	"github.com/aievolve/simcore/internal/model"
)

// Type classifies what a skill is for. Closed set; the AI keys contextual
// scoring off it and combat treats Attack specially.
type Type uint8

const (
	TypeAttack Type = iota
	TypeHeal
	TypeBuff
	TypeDebuff
	TypeUtility
	TypeMovement
	TypeSummon

	typeCount
)

// String returns the content key of the type.
func (t Type) String() string {
	switch t {
	case TypeAttack:
		return "attack"
	case TypeHeal:
		return "heal"
	case TypeBuff:
		return "buff"
	case TypeDebuff:
		return "debuff"
	case TypeUtility:
		return "utility"
	case TypeMovement:
		return "movement"
	case TypeSummon:
		return "summon"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseType maps a content key to a Type.
func ParseType(s string) (Type, error) {
	for t := TypeAttack; t < typeCount; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown skill type %q", s)
}

// Hostile reports whether the type requires a living enemy target.
func (t Type) Hostile() bool {
	return t == TypeAttack || t == TypeDebuff
}

// Requirements gate learning and use on caster progression.
type Requirements struct {
	Level      int32
	Attributes map[stats.Attribute]float64
}

// Priority is the AI scoring metadata carried by a skill.
type Priority struct {
	// Base is the static priority multiplied by the learned value estimate.
	Base float64
	// HealthThreshold marks the self-health ratio below which defensive
	// skills get boosted (0 disables).
	HealthThreshold float64
	// ManaThreshold marks the self-mana ratio below which mana spenders get
	// suppressed (0 disables).
	ManaThreshold float64
	Tags          []string
}

// Template is the immutable description of one skill. Per-caster state
// (cooldowns, charges, combo position) lives in the engine.
type Template struct {
	Name         string
	Type         Type
	Element      stats.Element
	WeaponAttack bool

	// Effects are effect template names applied to each target on use.
	Effects []string

	// BaseMagnitude seeds the scaled magnitude reported in the outcome and
	// consumed by combat resolution for attack skills.
	BaseMagnitude float64
	AttrScaling   map[stats.Attribute]float64
	StatScaling   map[stats.Stat]float64

	// Costs indexed by resource; zero entries are free.
	Costs [model.ResourceCount]float64

	CooldownTicks int64
	GCDGroup      string
	GCDTicks      int64
	MaxCharges    int32

	MinRange float64
	// MaxRange 0 means unlimited reach.
	MaxRange float64

	Requirements Requirements
	Priority     Priority
}

// Validate rejects malformed templates at registration.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("skill template: empty name")
	}
	if t.Type >= typeCount {
		return fmt.Errorf("skill template %q: unknown type %d", t.Name, uint8(t.Type))
	}
	if t.Element >= stats.ElementCount {
		return fmt.Errorf("skill template %q: unknown element %d", t.Name, uint8(t.Element))
	}
	for r, cost := range t.Costs {
		if cost < 0 {
			return fmt.Errorf("skill template %q: negative %s cost", t.Name, model.Resource(r))
		}
	}
	if t.CooldownTicks < 0 {
		return fmt.Errorf("skill template %q: negative cooldown", t.Name)
	}
	if t.GCDTicks < 0 {
		return fmt.Errorf("skill template %q: negative gcd", t.Name)
	}
	if t.GCDTicks > 0 && t.GCDGroup == "" {
		return fmt.Errorf("skill template %q: gcd ticks without a group", t.Name)
	}
	if t.MaxCharges < 1 {
		return fmt.Errorf("skill template %q: max charges %d < 1", t.Name, t.MaxCharges)
	}
	if t.MaxCharges > 1 && t.CooldownTicks <= 0 {
		return fmt.Errorf("skill template %q: charges need a positive cooldown to regenerate", t.Name)
	}
	if t.MinRange < 0 {
		return fmt.Errorf("skill template %q: negative min range", t.Name)
	}
	if t.MaxRange > 0 && t.MaxRange < t.MinRange {
		return fmt.Errorf("skill template %q: max range %v below min range %v", t.Name, t.MaxRange, t.MinRange)
	}
	if t.Requirements.Level < 0 {
		return fmt.Errorf("skill template %q: negative level requirement", t.Name)
	}
	for a, v := range t.Requirements.Attributes {
		if v < 0 {
			return fmt.Errorf("skill template %q: negative %s requirement", t.Name, a)
		}
	}
	if t.Priority.Base < 0 {
		return fmt.Errorf("skill template %q: negative base priority", t.Name)
	}
	return nil
}
