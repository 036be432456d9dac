// Package content defines the data-driven game catalog: effect, skill, proc
// and combo definitions in a source-neutral form, with loaders for the
// builtin set, Lua packs and SQLite databases. Definitions compile into
// engine templates once at load time; the engines never see raw defs.
package content

// EffectDef describes one effect template. Enum-valued fields hold content
// keys ("duration", "fire") and are rejected at compile time when unknown.
type EffectDef struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Element  string `json:"element,omitempty"`

	Magnitude   float64            `json:"magnitude,omitempty"`
	AttrScaling map[string]float64 `json:"attr_scaling,omitempty"`
	StatScaling map[string]float64 `json:"stat_scaling,omitempty"`

	Resource string `json:"resource,omitempty"`

	Modifiers []ModifierDef `json:"modifiers,omitempty"`

	DurationTicks int64  `json:"duration_ticks,omitempty"`
	PeriodTicks   int64  `json:"period_ticks,omitempty"`
	MaxStacks     int32  `json:"max_stacks,omitempty"`
	Conflict      string `json:"conflict,omitempty"`

	Tags       []string `json:"tags,omitempty"`
	CancelTags []string `json:"cancel_tags,omitempty"`
}

// ModifierDef is one contribution of a modify_stats effect. Op selects the
// modifier kind; Target names an attribute, derived stat or element
// accordingly.
type ModifierDef struct {
	Op     string  `json:"op"` // attr_add, stat_add, stat_mul, resist_add
	Target string  `json:"target"`
	Value  float64 `json:"value"`
}

// SkillDef describes one skill template.
type SkillDef struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Element      string `json:"element,omitempty"`
	WeaponAttack bool   `json:"weapon_attack,omitempty"`

	Effects []string `json:"effects,omitempty"`

	BaseMagnitude float64            `json:"base_magnitude,omitempty"`
	AttrScaling   map[string]float64 `json:"attr_scaling,omitempty"`
	StatScaling   map[string]float64 `json:"stat_scaling,omitempty"`

	Costs map[string]float64 `json:"costs,omitempty"`

	CooldownTicks int64  `json:"cooldown_ticks,omitempty"`
	GCDGroup      string `json:"gcd_group,omitempty"`
	GCDTicks      int64  `json:"gcd_ticks,omitempty"`
	MaxCharges    int32  `json:"max_charges,omitempty"`

	MinRange float64 `json:"min_range,omitempty"`
	MaxRange float64 `json:"max_range,omitempty"`

	MinLevel      int32              `json:"min_level,omitempty"`
	RequiredAttrs map[string]float64 `json:"required_attrs,omitempty"`

	Priority        float64  `json:"priority,omitempty"`
	HealthThreshold float64  `json:"health_threshold,omitempty"`
	ManaThreshold   float64  `json:"mana_threshold,omitempty"`
	PriorityTags    []string `json:"priority_tags,omitempty"`
}

// ProcDef describes one trigger-bound effect.
type ProcDef struct {
	Name          string  `json:"name"`
	Condition     string  `json:"condition"`
	Chance        float64 `json:"chance"`
	CooldownTicks int64   `json:"cooldown_ticks,omitempty"`
	MaxProcs      int32   `json:"max_procs,omitempty"`

	Effect     string `json:"effect"`
	Self       bool   `json:"self,omitempty"`
	DelayTicks int64  `json:"delay_ticks,omitempty"`

	Chain []ChainDef `json:"chain,omitempty"`
}

// ChainDef is one follow-up link of a proc.
type ChainDef struct {
	Effect     string `json:"effect"`
	DelayTicks int64  `json:"delay_ticks,omitempty"`
	Self       bool   `json:"self,omitempty"`
}

// ComboDef describes one combo chain. A zero StepBonus compiles to the
// shipped default.
type ComboDef struct {
	Name        string   `json:"name"`
	Steps       []string `json:"steps"`
	StepBonus   float64  `json:"step_bonus,omitempty"`
	WindowTicks int64    `json:"window_ticks,omitempty"`
}

// Pack is one complete content catalog from any source.
type Pack struct {
	Effects []EffectDef `json:"effects"`
	Skills  []SkillDef  `json:"skills"`
	Procs   []ProcDef   `json:"procs"`
	Combos  []ComboDef  `json:"combos"`
}

// Merge appends another pack's definitions onto p. Duplicate names surface
// later, at compile time.
func (p *Pack) Merge(other Pack) {
	p.Effects = append(p.Effects, other.Effects...)
	p.Skills = append(p.Skills, other.Skills...)
	p.Procs = append(p.Procs, other.Procs...)
	p.Combos = append(p.Combos, other.Combos...)
}
