package effect

import (
	"fmt"

	"github.com/aievolve/simcore/internal/game/stats"
	"github.com/aievolve/simcore/internal/model"
)

// Category classifies an effect's lifetime. Closed set.
type Category uint8

const (
	// CategoryInstant completes during Apply and leaves no active instance.
	CategoryInstant Category = iota
	// CategoryDuration lives until its expiry tick.
	CategoryDuration
	// CategoryPermanent lives until explicitly removed.
	CategoryPermanent
	// CategoryTrigger is a persistent passive that exists to be referenced by
	// procs; the engine treats its lifetime like CategoryPermanent.
	CategoryTrigger
	// CategoryStacking is a duration effect whose repeat applications stack.
	CategoryStacking
)

// String returns the content key of the category.
func (c Category) String() string {
	switch c {
	case CategoryInstant:
		return "instant"
	case CategoryDuration:
		return "duration"
	case CategoryPermanent:
		return "permanent"
	case CategoryTrigger:
		return "trigger"
	case CategoryStacking:
		return "stacking"
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// ParseCategory maps a content key to a Category.
func ParseCategory(s string) (Category, error) {
	for c := CategoryInstant; c <= CategoryStacking; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown effect category %q", s)
}

// ConflictPolicy decides what happens when an effect is applied while an
// instance of the same template is already active on the target.
type ConflictPolicy uint8

const (
	// ConflictIgnore keeps the existing instance; the application is a
	// reported no-op.
	ConflictIgnore ConflictPolicy = iota
	// ConflictReplace evicts the existing instance and installs the new one.
	ConflictReplace
	// ConflictStack increments the stack count up to MaxStacks and refreshes
	// the expiry.
	ConflictStack
	// ConflictMerge sums magnitudes and keeps the later expiry.
	ConflictMerge
)

// String returns the content key of the policy.
func (p ConflictPolicy) String() string {
	switch p {
	case ConflictIgnore:
		return "ignore"
	case ConflictReplace:
		return "replace"
	case ConflictStack:
		return "stack"
	case ConflictMerge:
		return "merge"
	}
	return fmt.Sprintf("conflict(%d)", uint8(p))
}

// ParseConflictPolicy maps a content key to a ConflictPolicy.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	for p := ConflictIgnore; p <= ConflictMerge; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown conflict policy %q", s)
}

// Kind selects what the effect does to its target. Closed set, matched
// exhaustively by the engine.
type Kind uint8

const (
	// KindDamage deals direct damage, per pulse when PeriodTicks > 0.
	KindDamage Kind = iota
	// KindHeal restores health, per pulse when PeriodTicks > 0.
	KindHeal
	// KindRestore refills a non-health resource pool.
	KindRestore
	// KindModifyStats contributes stat modifiers while active.
	KindModifyStats
	// KindStun sets the stun flag while active.
	KindStun
)

// String returns the content key of the kind.
func (k Kind) String() string {
	switch k {
	case KindDamage:
		return "damage"
	case KindHeal:
		return "heal"
	case KindRestore:
		return "restore"
	case KindModifyStats:
		return "modify_stats"
	case KindStun:
		return "stun"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a content key to a Kind.
func ParseKind(s string) (Kind, error) {
	for k := KindDamage; k <= KindStun; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown effect kind %q", s)
}

// Template is the immutable description of one effect. Instances are cloned
// into Active records at apply time; templates themselves never change after
// registration.
type Template struct {
	Name     string
	Category Category
	Kind     Kind
	Element  stats.Element

	// Magnitude is the base per-stack strength (damage per pulse, heal per
	// pulse, restore amount). Scaled by the source's attributes/stats at
	// apply time via the coefficients below.
	Magnitude   float64
	AttrScaling map[stats.Attribute]float64
	StatScaling map[stats.Stat]float64

	// Resource names the pool KindRestore refills.
	Resource model.Resource

	// Modifiers are the per-stack stat contributions of KindModifyStats.
	Modifiers []stats.Modifier

	DurationTicks int64
	PeriodTicks   int64
	MaxStacks     int32
	Conflict      ConflictPolicy

	// Tags describe the effect for immunity checks ("poison", "stun").
	Tags []string
	// CancelTags link mutually exclusive effects: a newly applied effect
	// evicts active ones sharing a cancel tag (unless its policy is ignore).
	CancelTags []string
}

// Validate rejects malformed templates at registration time so the engine
// never has to re-check content invariants on the hot path.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("effect template: empty name")
	}
	if t.Category > CategoryStacking {
		return fmt.Errorf("effect template %q: unknown category %d", t.Name, uint8(t.Category))
	}
	if t.Kind > KindStun {
		return fmt.Errorf("effect template %q: unknown kind %d", t.Name, uint8(t.Kind))
	}
	if t.Element >= stats.ElementCount {
		return fmt.Errorf("effect template %q: unknown element %d", t.Name, uint8(t.Element))
	}
	if t.MaxStacks < 1 {
		return fmt.Errorf("effect template %q: max stacks %d < 1", t.Name, t.MaxStacks)
	}
	if t.MaxStacks > 1 && t.Category != CategoryStacking {
		return fmt.Errorf("effect template %q: max stacks %d on non-stacking category %s", t.Name, t.MaxStacks, t.Category)
	}
	switch t.Category {
	case CategoryDuration, CategoryStacking:
		if t.DurationTicks <= 0 {
			return fmt.Errorf("effect template %q: category %s needs a positive duration", t.Name, t.Category)
		}
	case CategoryInstant:
		if t.DurationTicks != 0 || t.PeriodTicks != 0 {
			return fmt.Errorf("effect template %q: instant effects cannot carry duration or period", t.Name)
		}
	case CategoryPermanent, CategoryTrigger:
		if t.DurationTicks != 0 {
			return fmt.Errorf("effect template %q: category %s cannot carry a duration", t.Name, t.Category)
		}
	}
	if t.PeriodTicks < 0 {
		return fmt.Errorf("effect template %q: negative period", t.Name)
	}
	if t.PeriodTicks > 0 {
		switch t.Kind {
		case KindDamage, KindHeal, KindRestore:
		default:
			return fmt.Errorf("effect template %q: kind %s cannot pulse", t.Name, t.Kind)
		}
	}
	switch t.Kind {
	case KindModifyStats:
		if len(t.Modifiers) == 0 {
			return fmt.Errorf("effect template %q: modify_stats without modifiers", t.Name)
		}
		if t.Category == CategoryInstant {
			return fmt.Errorf("effect template %q: modify_stats cannot be instant", t.Name)
		}
	case KindStun:
		if t.Category == CategoryInstant {
			return fmt.Errorf("effect template %q: stun cannot be instant", t.Name)
		}
	case KindRestore:
		if t.Resource == model.ResourceHealth {
			return fmt.Errorf("effect template %q: restore targets health, use kind heal", t.Name)
		}
		if t.Resource >= model.ResourceCount {
			return fmt.Errorf("effect template %q: unknown resource %d", t.Name, uint8(t.Resource))
		}
	}
	return nil
}

// Pulses reports whether the effect does periodic work while active.
func (t *Template) Pulses() bool {
	return t.PeriodTicks > 0
}
