package content

import (
	"strings"
	"testing"

	"github.com/aievolve/simcore/internal/events"
	"github.com/aievolve/simcore/internal/game/effect"
	"github.com/aievolve/simcore/internal/game/skill"
	"github.com/aievolve/simcore/internal/game/trigger"
	"github.com/aievolve/simcore/internal/model"
	"github.com/aievolve/simcore/internal/world"
)

type steadyRoll struct{}

func (steadyRoll) Float64() float64 { return 0.99 }

func newEngines(t *testing.T) (*effect.Engine, *skill.Engine) {
	t.Helper()
	arena := world.NewArena()
	bus := events.NewBus()
	now := func() int64 { return 0 }
	effects := effect.NewEngine(arena, bus, now)
	procs := trigger.NewTable(effects, bus, steadyRoll{}, now)
	return effects, skill.NewEngine(effects, procs, arena, bus, now)
}

func TestBuiltinCompiles(t *testing.T) {
	pack := Builtin()
	c, err := Compile(pack)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(c.Effects) != len(pack.Effects) {
		t.Errorf("effects = %d, want %d", len(c.Effects), len(pack.Effects))
	}
	if len(c.Skills) != len(pack.Skills) {
		t.Errorf("skills = %d, want %d", len(c.Skills), len(pack.Skills))
	}
	if len(c.Combos) != len(pack.Combos) {
		t.Errorf("combos = %d, want %d", len(c.Combos), len(pack.Combos))
	}
	if got := len(c.ProcNames()); got != len(pack.Procs) {
		t.Errorf("procs = %d, want %d", got, len(pack.Procs))
	}
	if _, ok := c.Proc("second_wind"); !ok {
		t.Error("proc second_wind missing from catalog")
	}
}

func TestBuiltinInstalls(t *testing.T) {
	c, err := Compile(Builtin())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	effects, skills := newEngines(t)
	if err := c.Install(effects, skills); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if effects.TemplateCount() != len(c.Effects) {
		t.Errorf("installed effects = %d, want %d", effects.TemplateCount(), len(c.Effects))
	}
	if skills.TemplateCount() != len(c.Skills) {
		t.Errorf("installed skills = %d, want %d", skills.TemplateCount(), len(c.Skills))
	}
}

func TestCompileFillsEnumsAndCosts(t *testing.T) {
	c, err := Compile(Builtin())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var fireball *skill.Template
	for _, tmpl := range c.Skills {
		if tmpl.Name == "fireball" {
			fireball = tmpl
		}
	}
	if fireball == nil {
		t.Fatal("fireball not compiled")
	}
	if fireball.Type != skill.TypeAttack {
		t.Errorf("type = %v, want attack", fireball.Type)
	}
	if got := fireball.Costs[model.ResourceMana]; got != 12 {
		t.Errorf("mana cost = %v, want 12", got)
	}
	if fireball.Priority.ManaThreshold != 0.25 {
		t.Errorf("mana threshold = %v, want 0.25", fireball.Priority.ManaThreshold)
	}

	var poisoned *effect.Template
	for _, tmpl := range c.Effects {
		if tmpl.Name == "poisoned" {
			poisoned = tmpl
		}
	}
	if poisoned == nil {
		t.Fatal("poisoned not compiled")
	}
	if poisoned.Category != effect.CategoryStacking || poisoned.MaxStacks != 5 {
		t.Errorf("poisoned compiled as %v x%d, want stacking x5", poisoned.Category, poisoned.MaxStacks)
	}
}

func TestCompileDefaultsStepBonus(t *testing.T) {
	pack := Pack{
		Skills: []SkillDef{
			{Name: "jab", Type: "attack"},
			{Name: "cross", Type: "attack"},
		},
		Combos: []ComboDef{
			{Name: "one_two", Steps: []string{"jab", "cross"}, WindowTicks: 10},
			{Name: "tuned", Steps: []string{"cross", "jab"}, StepBonus: 0.35, WindowTicks: 10},
		},
	}
	c, err := Compile(pack)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := c.Combos[0].StepBonus; got != defaultStepBonus {
		t.Errorf("omitted step bonus compiled to %v, want %v", got, defaultStepBonus)
	}
	if got := c.Combos[1].StepBonus; got != 0.35 {
		t.Errorf("explicit step bonus compiled to %v, want 0.35", got)
	}
}

func TestCompileRejectsUnknownKeys(t *testing.T) {
	cases := []struct {
		name string
		pack Pack
		want string
	}{
		{
			"effect category",
			Pack{Effects: []EffectDef{{Name: "x", Category: "sometimes", Kind: "damage"}}},
			"category",
		},
		{
			"effect kind",
			Pack{Effects: []EffectDef{{Name: "x", Kind: "explode"}}},
			"kind",
		},
		{
			"effect element",
			Pack{Effects: []EffectDef{{Name: "x", Kind: "damage", Element: "void"}}},
			"element",
		},
		{
			"effect resource",
			Pack{Effects: []EffectDef{{Name: "x", Kind: "restore", Resource: "rage"}}},
			"resource",
		},
		{
			"modifier op",
			Pack{Effects: []EffectDef{{
				Name: "x", Kind: "modify_stats",
				Modifiers: []ModifierDef{{Op: "stat_div", Target: "defense", Value: 2}},
			}}},
			"op",
		},
		{
			"modifier target",
			Pack{Effects: []EffectDef{{
				Name: "x", Kind: "modify_stats",
				Modifiers: []ModifierDef{{Op: "stat_add", Target: "swagger", Value: 2}},
			}}},
			"stat",
		},
		{
			"skill type",
			Pack{Skills: []SkillDef{{Name: "x", Type: "dance"}}},
			"type",
		},
		{
			"skill cost resource",
			Pack{Skills: []SkillDef{{Name: "x", Type: "attack", Costs: map[string]float64{"rage": 5}}}},
			"resource",
		},
		{
			"proc condition",
			Pack{
				Effects: []EffectDef{{Name: "e", Kind: "heal"}},
				Procs:   []ProcDef{{Name: "x", Condition: "on_tuesday", Chance: 1, Effect: "e"}},
			},
			"condition",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.pack)
			if err == nil {
				t.Fatal("expected compile error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCompileRejectsDanglingReferences(t *testing.T) {
	cases := []struct {
		name string
		pack Pack
	}{
		{
			"skill to missing effect",
			Pack{Skills: []SkillDef{{Name: "x", Type: "heal", Effects: []string{"ghost"}}}},
		},
		{
			"proc to missing effect",
			Pack{Procs: []ProcDef{{Name: "x", Condition: "on_hit", Chance: 1, Effect: "ghost"}}},
		},
		{
			"proc chain to missing effect",
			Pack{
				Effects: []EffectDef{{Name: "e", Kind: "heal"}},
				Procs: []ProcDef{{
					Name: "x", Condition: "on_hit", Chance: 1, Effect: "e",
					Chain: []ChainDef{{Effect: "ghost"}},
				}},
			},
		},
		{
			"combo to missing skill",
			Pack{Combos: []ComboDef{{Name: "x", Steps: []string{"a", "b"}, WindowTicks: 10}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Compile(tc.pack); err == nil {
				t.Error("expected compile error")
			}
		})
	}
}

func TestCompileRejectsDuplicateNames(t *testing.T) {
	pack := Pack{Effects: []EffectDef{
		{Name: "twin", Kind: "heal"},
		{Name: "twin", Kind: "damage"},
	}}
	if _, err := Compile(pack); err == nil {
		t.Error("expected duplicate-name error")
	}
}

func TestMergeCombinesPacks(t *testing.T) {
	base := Builtin()
	extra := Pack{
		Effects: []EffectDef{{Name: "frostbite", Category: "duration", Kind: "damage",
			Element: "ice", Magnitude: 3, DurationTicks: 20, PeriodTicks: 4}},
		Skills: []SkillDef{{Name: "ice_lance", Type: "attack", Element: "ice",
			BaseMagnitude: 26, Effects: []string{"frostbite"}, MaxRange: 12}},
	}
	base.Merge(extra)

	c, err := Compile(base)
	if err != nil {
		t.Fatalf("Compile merged: %v", err)
	}
	found := false
	for _, tmpl := range c.Skills {
		if tmpl.Name == "ice_lance" {
			found = true
		}
	}
	if !found {
		t.Error("merged skill missing after compile")
	}
}
