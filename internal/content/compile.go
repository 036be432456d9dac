package content

import (
	"fmt"

	"github.com/aievolve/simcore/internal/game/effect"
	"github.com/aievolve/simcore/internal/game/skill"
	"github.com/aievolve/simcore/internal/game/stats"
	"github.com/aievolve/simcore/internal/game/trigger"
	"github.com/aievolve/simcore/internal/model"
)

// defaultStepBonus applies when a combo definition omits step_bonus.
const defaultStepBonus = 0.2

// Compiled is a pack translated into engine templates. Effects, skills and
// combos install into the engines once; procs stay in the catalog and attach
// to entities individually.
type Compiled struct {
	Effects []*effect.Template
	Skills  []*skill.Template
	Combos  []*skill.ComboChain

	procs     map[string]trigger.Proc
	procOrder []string
}

// Proc returns a compiled proc by name.
func (c *Compiled) Proc(name string) (trigger.Proc, bool) {
	p, ok := c.procs[name]
	return p, ok
}

// ProcNames returns the proc catalog in definition order.
func (c *Compiled) ProcNames() []string {
	out := make([]string, len(c.procOrder))
	copy(out, c.procOrder)
	return out
}

// Compile translates a pack into engine templates, rejecting unknown enum
// keys and dangling references. The engines re-validate structural
// invariants at registration; compile owns everything name-shaped.
func Compile(p Pack) (*Compiled, error) {
	c := &Compiled{procs: make(map[string]trigger.Proc, len(p.Procs))}

	effectNames := make(map[string]struct{}, len(p.Effects))
	for _, def := range p.Effects {
		tmpl, err := compileEffect(def)
		if err != nil {
			return nil, err
		}
		if _, dup := effectNames[def.Name]; dup {
			return nil, fmt.Errorf("content: effect %q defined twice", def.Name)
		}
		effectNames[def.Name] = struct{}{}
		c.Effects = append(c.Effects, tmpl)
	}

	skillNames := make(map[string]struct{}, len(p.Skills))
	for _, def := range p.Skills {
		tmpl, err := compileSkill(def)
		if err != nil {
			return nil, err
		}
		if _, dup := skillNames[def.Name]; dup {
			return nil, fmt.Errorf("content: skill %q defined twice", def.Name)
		}
		for _, ref := range def.Effects {
			if _, ok := effectNames[ref]; !ok {
				return nil, fmt.Errorf("content: skill %q references unknown effect %q", def.Name, ref)
			}
		}
		skillNames[def.Name] = struct{}{}
		c.Skills = append(c.Skills, tmpl)
	}

	for _, def := range p.Procs {
		pr, err := compileProc(def)
		if err != nil {
			return nil, err
		}
		if _, dup := c.procs[def.Name]; dup {
			return nil, fmt.Errorf("content: proc %q defined twice", def.Name)
		}
		if _, ok := effectNames[def.Effect]; !ok {
			return nil, fmt.Errorf("content: proc %q references unknown effect %q", def.Name, def.Effect)
		}
		for i, link := range def.Chain {
			if _, ok := effectNames[link.Effect]; !ok {
				return nil, fmt.Errorf("content: proc %q chain link %d references unknown effect %q", def.Name, i, link.Effect)
			}
		}
		c.procs[def.Name] = pr
		c.procOrder = append(c.procOrder, def.Name)
	}

	comboNames := make(map[string]struct{}, len(p.Combos))
	for _, def := range p.Combos {
		if _, dup := comboNames[def.Name]; dup {
			return nil, fmt.Errorf("content: combo %q defined twice", def.Name)
		}
		for _, step := range def.Steps {
			if _, ok := skillNames[step]; !ok {
				return nil, fmt.Errorf("content: combo %q step %q is not a defined skill", def.Name, step)
			}
		}
		comboNames[def.Name] = struct{}{}
		stepBonus := def.StepBonus
		if stepBonus == 0 {
			stepBonus = defaultStepBonus
		}
		c.Combos = append(c.Combos, &skill.ComboChain{
			Name:        def.Name,
			Steps:       def.Steps,
			StepBonus:   stepBonus,
			WindowTicks: def.WindowTicks,
		})
	}

	return c, nil
}

// Install registers every compiled effect, skill and combo. Procs are not
// installed here; attach them per entity with trigger.Table.Register.
func (c *Compiled) Install(effects *effect.Engine, skills *skill.Engine) error {
	for _, tmpl := range c.Effects {
		if err := effects.RegisterTemplate(tmpl); err != nil {
			return fmt.Errorf("content: installing effect %q: %w", tmpl.Name, err)
		}
	}
	for _, tmpl := range c.Skills {
		if err := skills.RegisterTemplate(tmpl); err != nil {
			return fmt.Errorf("content: installing skill %q: %w", tmpl.Name, err)
		}
	}
	for _, chain := range c.Combos {
		if err := skills.RegisterCombo(chain); err != nil {
			return fmt.Errorf("content: installing combo %q: %w", chain.Name, err)
		}
	}
	return nil
}

func compileEffect(def EffectDef) (*effect.Template, error) {
	fail := func(err error) (*effect.Template, error) {
		return nil, fmt.Errorf("content: effect %q: %w", def.Name, err)
	}

	category, err := effect.ParseCategory(orDefault(def.Category, "instant"))
	if err != nil {
		return fail(err)
	}
	kind, err := effect.ParseKind(def.Kind)
	if err != nil {
		return fail(err)
	}
	element, err := stats.ParseElement(orDefault(def.Element, "physical"))
	if err != nil {
		return fail(err)
	}
	conflict, err := effect.ParseConflictPolicy(orDefault(def.Conflict, "ignore"))
	if err != nil {
		return fail(err)
	}

	tmpl := &effect.Template{
		Name:          def.Name,
		Category:      category,
		Kind:          kind,
		Element:       element,
		Magnitude:     def.Magnitude,
		DurationTicks: def.DurationTicks,
		PeriodTicks:   def.PeriodTicks,
		MaxStacks:     max(def.MaxStacks, 1),
		Conflict:      conflict,
		Tags:          def.Tags,
		CancelTags:    def.CancelTags,
	}

	if tmpl.AttrScaling, err = attrMap(def.AttrScaling); err != nil {
		return fail(err)
	}
	if tmpl.StatScaling, err = statMap(def.StatScaling); err != nil {
		return fail(err)
	}

	if def.Resource != "" {
		if tmpl.Resource, err = model.ParseResource(def.Resource); err != nil {
			return fail(err)
		}
	}

	for _, m := range def.Modifiers {
		mod, err := compileModifier(m)
		if err != nil {
			return fail(err)
		}
		tmpl.Modifiers = append(tmpl.Modifiers, mod)
	}

	return tmpl, nil
}

func compileModifier(def ModifierDef) (stats.Modifier, error) {
	switch def.Op {
	case "attr_add":
		a, err := stats.ParseAttribute(def.Target)
		if err != nil {
			return stats.Modifier{}, err
		}
		return stats.AttrAdd(a, def.Value), nil
	case "stat_add":
		s, err := stats.ParseStat(def.Target)
		if err != nil {
			return stats.Modifier{}, err
		}
		return stats.StatAdd(s, def.Value), nil
	case "stat_mul":
		s, err := stats.ParseStat(def.Target)
		if err != nil {
			return stats.Modifier{}, err
		}
		return stats.StatMul(s, def.Value), nil
	case "resist_add":
		e, err := stats.ParseElement(def.Target)
		if err != nil {
			return stats.Modifier{}, err
		}
		return stats.ResistAdd(e, def.Value), nil
	}
	return stats.Modifier{}, fmt.Errorf("unknown modifier op %q", def.Op)
}

func compileSkill(def SkillDef) (*skill.Template, error) {
	fail := func(err error) (*skill.Template, error) {
		return nil, fmt.Errorf("content: skill %q: %w", def.Name, err)
	}

	typ, err := skill.ParseType(def.Type)
	if err != nil {
		return fail(err)
	}
	element, err := stats.ParseElement(orDefault(def.Element, "physical"))
	if err != nil {
		return fail(err)
	}

	tmpl := &skill.Template{
		Name:          def.Name,
		Type:          typ,
		Element:       element,
		WeaponAttack:  def.WeaponAttack,
		Effects:       def.Effects,
		BaseMagnitude: def.BaseMagnitude,
		CooldownTicks: def.CooldownTicks,
		GCDGroup:      def.GCDGroup,
		GCDTicks:      def.GCDTicks,
		MaxCharges:    max(def.MaxCharges, 1),
		MinRange:      def.MinRange,
		MaxRange:      def.MaxRange,
		Requirements: skill.Requirements{
			Level: def.MinLevel,
		},
		Priority: skill.Priority{
			Base:            def.Priority,
			HealthThreshold: def.HealthThreshold,
			ManaThreshold:   def.ManaThreshold,
			Tags:            def.PriorityTags,
		},
	}

	if tmpl.AttrScaling, err = attrMap(def.AttrScaling); err != nil {
		return fail(err)
	}
	if tmpl.StatScaling, err = statMap(def.StatScaling); err != nil {
		return fail(err)
	}
	if tmpl.Requirements.Attributes, err = attrMap(def.RequiredAttrs); err != nil {
		return fail(err)
	}

	for name, amount := range def.Costs {
		r, err := model.ParseResource(name)
		if err != nil {
			return fail(err)
		}
		tmpl.Costs[r] = amount
	}

	return tmpl, nil
}

func compileProc(def ProcDef) (trigger.Proc, error) {
	cond, err := trigger.ParseCondition(def.Condition)
	if err != nil {
		return trigger.Proc{}, fmt.Errorf("content: proc %q: %w", def.Name, err)
	}

	p := trigger.Proc{
		Name:          def.Name,
		Condition:     cond,
		Chance:        def.Chance,
		CooldownTicks: def.CooldownTicks,
		MaxProcs:      def.MaxProcs,
		Effect:        def.Effect,
		Self:          def.Self,
		DelayTicks:    def.DelayTicks,
	}
	for _, link := range def.Chain {
		p.Chain = append(p.Chain, trigger.ChainLink{
			Effect:     link.Effect,
			DelayTicks: link.DelayTicks,
			Self:       link.Self,
		})
	}
	return p, nil
}

func attrMap(in map[string]float64) (map[stats.Attribute]float64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[stats.Attribute]float64, len(in))
	for name, v := range in {
		a, err := stats.ParseAttribute(name)
		if err != nil {
			return nil, err
		}
		out[a] = v
	}
	return out, nil
}

func statMap(in map[string]float64) (map[stats.Stat]float64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[stats.Stat]float64, len(in))
	for name, v := range in {
		s, err := stats.ParseStat(name)
		if err != nil {
			return nil, err
		}
		out[s] = v
	}
	return out, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
