// Package trigger fires proc-bound effects off combat conditions: on-hit
// weapon procs, on-crit passives, delayed and chained follow-up effects.
package trigger

import "fmt"

// Condition names the combat moment a proc listens for. Closed set.
type Condition uint8

const (
	// OnHit fires when a weapon attack lands.
	OnHit Condition = iota
	// OnCast fires when any skill is used.
	OnCast
	// OnCrit fires when an attack crits.
	OnCrit
	// OnKill fires when the source kills its target.
	OnKill
	// OnDamaged fires on the victim when it takes damage.
	OnDamaged
	// OnBlock fires on the defender when it blocks.
	OnBlock
	// OnStun fires on the victim when it gets stunned.
	OnStun

	conditionCount
)

// String returns the content key of the condition.
func (c Condition) String() string {
	switch c {
	case OnHit:
		return "on_hit"
	case OnCast:
		return "on_cast"
	case OnCrit:
		return "on_crit"
	case OnKill:
		return "on_kill"
	case OnDamaged:
		return "on_damaged"
	case OnBlock:
		return "on_block"
	case OnStun:
		return "on_stun"
	}
	return fmt.Sprintf("condition(%d)", uint8(c))
}

// ParseCondition maps a content key to a Condition.
func ParseCondition(s string) (Condition, error) {
	for c := OnHit; c < conditionCount; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown trigger condition %q", s)
}

// ChainLink is a follow-up effect scheduled after the proc's main effect.
// DelayTicks counts from the previous link's application.
type ChainLink struct {
	Effect     string
	DelayTicks int64
	Self       bool
}

// Proc binds an effect template to a trigger condition. The binding is
// immutable after registration; mutable proc state (last fire tick, fire
// count) is tracked per source entity by the table.
type Proc struct {
	Name      string
	Condition Condition

	// Chance in [0,1] rolled on every gated fire.
	Chance float64
	// CooldownTicks is the minimum spacing between fires per source.
	CooldownTicks int64
	// MaxProcs caps total fires per source; 0 means unlimited.
	MaxProcs int32

	// Effect is the template applied when the proc fires.
	Effect string
	// Self targets the proc's source instead of the trigger target.
	Self bool
	// DelayTicks defers the effect to a future tick instead of applying
	// inside Fire.
	DelayTicks int64

	// Chain schedules follow-up effects after the main one.
	Chain []ChainLink
}

func (p *Proc) validate() error {
	if p.Name == "" {
		return fmt.Errorf("proc: empty name")
	}
	if p.Condition >= conditionCount {
		return fmt.Errorf("proc %q: unknown condition %d", p.Name, uint8(p.Condition))
	}
	if p.Chance < 0 || p.Chance > 1 {
		return fmt.Errorf("proc %q: chance %v outside [0,1]", p.Name, p.Chance)
	}
	if p.CooldownTicks < 0 {
		return fmt.Errorf("proc %q: negative cooldown", p.Name)
	}
	if p.MaxProcs < 0 {
		return fmt.Errorf("proc %q: negative max procs", p.Name)
	}
	if p.Effect == "" {
		return fmt.Errorf("proc %q: no effect bound", p.Name)
	}
	if p.DelayTicks < 0 {
		return fmt.Errorf("proc %q: negative delay", p.Name)
	}
	for i, link := range p.Chain {
		if link.Effect == "" {
			return fmt.Errorf("proc %q: chain link %d without effect", p.Name, i)
		}
		if link.DelayTicks < 0 {
			return fmt.Errorf("proc %q: chain link %d negative delay", p.Name, i)
		}
	}
	return nil
}
