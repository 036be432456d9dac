package ai

import (
	"errors"
	"testing"

	"github.com/aievolve/simcore/internal/events"
	"github.com/aievolve/simcore/internal/game/combat"
	"github.com/aievolve/simcore/internal/game/effect"
	"github.com/aievolve/simcore/internal/game/skill"
	"github.com/aievolve/simcore/internal/game/stats"
	"github.com/aievolve/simcore/internal/game/trigger"
	"github.com/aievolve/simcore/internal/model"
	"github.com/aievolve/simcore/internal/world"
)

// scriptRoll replays a fixed sequence, then repeats the last value.
type scriptRoll struct {
	vals []float64
	i    int
}

func (s *scriptRoll) Float64() float64 {
	if len(s.vals) == 0 {
		return 0.99
	}
	if s.i >= len(s.vals) {
		return s.vals[len(s.vals)-1]
	}
	v := s.vals[s.i]
	s.i++
	return v
}

// steadyRoll never dodges, crits, blocks or procs by chance.
type steadyRoll struct{}

func (steadyRoll) Float64() float64 { return 0.99 }

type harness struct {
	t       *testing.T
	tick    int64
	arena   *world.Arena
	bus     *events.Bus
	effects *effect.Engine
	procs   *trigger.Table
	skills  *skill.Engine
	cbt     *combat.Resolver
	mgr     *Manager
	roll    *scriptRoll
	hero    *model.Entity
	foe     *model.Entity
}

func testAttrs() stats.AttributeSet {
	return stats.AttributeSet{
		Strength: 10, Agility: 10, Intelligence: 10, Constitution: 10,
		Wisdom: 10, Charisma: 10, Luck: 10, Level: 1,
	}
}

// greedyParams disables exploration so decisions are purely score-driven.
func greedyParams() Params {
	p := DefaultParams()
	p.Exploration = 0
	p.ExplorationFloor = 0
	return p
}

func newHarness(t *testing.T, params Params, aiRolls ...float64) *harness {
	t.Helper()
	h := &harness{t: t, arena: world.NewArena(), bus: events.NewBus(), roll: &scriptRoll{vals: aiRolls}}
	now := func() int64 { return h.tick }
	h.effects = effect.NewEngine(h.arena, h.bus, now)
	h.procs = trigger.NewTable(h.effects, h.bus, steadyRoll{}, now)
	h.skills = skill.NewEngine(h.effects, h.procs, h.arena, h.bus, now)
	h.cbt = combat.NewResolver(h.arena, h.effects, h.procs, h.bus, steadyRoll{}, now, combat.DefaultTuning())
	h.mgr = NewManager(h.skills, h.cbt, h.arena, h.roll, now, params)

	var err error
	if h.hero, err = model.NewEntity(1, "hero", model.KindNPC, testAttrs(), model.NewPosition(0, 0)); err != nil {
		t.Fatalf("new hero: %v", err)
	}
	if h.foe, err = model.NewEntity(2, "foe", model.KindNPC, testAttrs(), model.NewPosition(3, 0)); err != nil {
		t.Fatalf("new foe: %v", err)
	}
	if err := h.arena.Add(h.hero); err != nil {
		t.Fatalf("add hero: %v", err)
	}
	if err := h.arena.Add(h.foe); err != nil {
		t.Fatalf("add foe: %v", err)
	}

	if err := h.effects.RegisterTemplate(&effect.Template{
		Name: "mend_heal", Category: effect.CategoryInstant, Kind: effect.KindHeal,
		Magnitude: 30, MaxStacks: 1,
	}); err != nil {
		t.Fatalf("register mend_heal: %v", err)
	}
	return h
}

func (h *harness) registerSkill(tmpl *skill.Template) {
	h.t.Helper()
	if err := h.skills.RegisterTemplate(tmpl); err != nil {
		h.t.Fatalf("register skill %q: %v", tmpl.Name, err)
	}
}

func (h *harness) learn(id model.EntityID, names ...string) {
	h.t.Helper()
	for _, name := range names {
		if err := h.skills.Learn(id, name); err != nil {
			h.t.Fatalf("learn %q: %v", name, err)
		}
	}
}

func (h *harness) adopt(id model.EntityID, target model.EntityID) *Controller {
	h.t.Helper()
	c, err := h.mgr.Adopt(id)
	if err != nil {
		h.t.Fatalf("adopt %d: %v", id, err)
	}
	c.SetTarget(target)
	return c
}

// step advances one tick and runs the manager, like the simulation loop.
func (h *harness) step() {
	h.tick++
	h.mgr.Step()
}

func strike(base float64, prio skill.Priority) *skill.Template {
	return &skill.Template{
		Name:          "strike",
		Type:          skill.TypeAttack,
		Element:       stats.ElementPhysical,
		BaseMagnitude: base,
		MaxCharges:    1,
		MaxRange:      10,
		Priority:      prio,
	}
}

func TestCycleRunsOneTransitionPerStep(t *testing.T) {
	h := newHarness(t, greedyParams())
	h.registerSkill(strike(20, skill.Priority{}))
	h.learn(h.hero.ID(), "strike")
	c := h.adopt(h.hero.ID(), h.foe.ID())

	want := []State{StateEvaluating, StateActing, StateObserving, StateIdle}
	for i, w := range want {
		h.step()
		if c.State() != w {
			t.Fatalf("after step %d state = %s, want %s", i+1, c.State(), w)
		}
	}

	// 20 base, x1.25 attack scale, x5/6 defense curve
	if got := h.foe.Health(); !(got < 105 && got > 80) {
		t.Errorf("foe health = %v, want one strike of ~20.8 applied", got)
	}
	cnt := c.Memory().Counters()
	if cnt.Actions != 1 || cnt.Successes != 1 {
		t.Errorf("counters = %+v, want one successful action", cnt)
	}
	out, err := c.LastOutcome()
	if err != nil || out.Skill != "strike" {
		t.Errorf("last outcome = %+v err %v", out, err)
	}
	if res := c.LastResult(); res.Absorbed <= 0 {
		t.Errorf("last result absorbed = %v, want > 0", res.Absorbed)
	}
}

func TestIdleGates(t *testing.T) {
	h := newHarness(t, greedyParams())
	h.registerSkill(strike(20, skill.Priority{}))
	h.learn(h.hero.ID(), "strike")
	c := h.adopt(h.hero.ID(), h.foe.ID())

	// dead target keeps the controller idle
	h.foe.ApplyDamage(h.foe.Health())
	h.foe.Die()
	h.step()
	if c.State() != StateIdle {
		t.Fatalf("state with dead target = %s, want idle", c.State())
	}

	// no target at all
	c.SetTarget(0)
	h.step()
	if c.State() != StateIdle {
		t.Fatalf("state without target = %s, want idle", c.State())
	}
}

func TestStunnedControllerStaysIdle(t *testing.T) {
	h := newHarness(t, greedyParams())
	h.registerSkill(strike(20, skill.Priority{}))
	h.learn(h.hero.ID(), "strike")
	c := h.adopt(h.hero.ID(), h.foe.ID())

	h.hero.SetStunned(true)
	h.step()
	if c.State() != StateIdle {
		t.Fatalf("stunned state = %s, want idle", c.State())
	}
	h.hero.SetStunned(false)
	h.step()
	if c.State() != StateEvaluating {
		t.Fatalf("state after stun cleared = %s, want evaluating", c.State())
	}
}

func TestGreedyPrefersHigherScore(t *testing.T) {
	h := newHarness(t, greedyParams())
	h.registerSkill(strike(20, skill.Priority{Base: 1}))
	h.registerSkill(&skill.Template{
		Name: "heavy_blow", Type: skill.TypeAttack, Element: stats.ElementPhysical,
		BaseMagnitude: 20, MaxCharges: 1, MaxRange: 10,
		Priority: skill.Priority{Base: 2},
	})
	h.learn(h.hero.ID(), "strike", "heavy_blow")
	c := h.adopt(h.hero.ID(), h.foe.ID())

	h.step()
	h.step()
	h.step() // acting
	if out, _ := c.LastOutcome(); out.Skill != "heavy_blow" {
		t.Errorf("chose %q, want heavy_blow (higher base priority)", out.Skill)
	}
}

func TestTieBreaksByLearnOrder(t *testing.T) {
	h := newHarness(t, greedyParams())
	h.registerSkill(strike(20, skill.Priority{Base: 1}))
	h.registerSkill(&skill.Template{
		Name: "jab", Type: skill.TypeAttack, Element: stats.ElementPhysical,
		BaseMagnitude: 20, MaxCharges: 1, MaxRange: 10,
		Priority: skill.Priority{Base: 1},
	})
	h.learn(h.hero.ID(), "jab", "strike")
	c := h.adopt(h.hero.ID(), h.foe.ID())

	h.step()
	h.step()
	h.step()
	if out, _ := c.LastOutcome(); out.Skill != "jab" {
		t.Errorf("tie chose %q, want jab (learned first)", out.Skill)
	}
}

func TestLearnedValueSwaysGreedyChoice(t *testing.T) {
	h := newHarness(t, greedyParams())
	h.registerSkill(strike(20, skill.Priority{Base: 1}))
	h.registerSkill(&skill.Template{
		Name: "jab", Type: skill.TypeAttack, Element: stats.ElementPhysical,
		BaseMagnitude: 20, MaxCharges: 1, MaxRange: 10,
		Priority: skill.Priority{Base: 1},
	})
	h.learn(h.hero.ID(), "jab", "strike")
	c := h.adopt(h.hero.ID(), h.foe.ID())

	// full health/mana, full-health target at short range
	sig := Signature{SelfHealth: 4, SelfMana: 4, TargetHealth: 4, Range: 1}
	c.Memory().Record(sig, "strike", 10, 1, true)

	h.step()
	h.step()
	h.step()
	if out, _ := c.LastOutcome(); out.Skill != "strike" {
		t.Errorf("chose %q, want strike (learned value beats tie order)", out.Skill)
	}
}

func TestExplorationPicksRandomLegal(t *testing.T) {
	p := DefaultParams()
	p.Exploration = 1
	p.ExplorationDecay = 1
	p.ExplorationFloor = 1
	// first roll passes the eps gate, second lands on index 1
	h := newHarness(t, p, 0.0, 0.9)
	h.registerSkill(strike(20, skill.Priority{Base: 100}))
	h.registerSkill(&skill.Template{
		Name: "jab", Type: skill.TypeAttack, Element: stats.ElementPhysical,
		BaseMagnitude: 20, MaxCharges: 1, MaxRange: 10,
		Priority: skill.Priority{Base: 0.1},
	})
	h.learn(h.hero.ID(), "strike", "jab")
	c := h.adopt(h.hero.ID(), h.foe.ID())

	h.step()
	h.step()
	h.step()
	if out, _ := c.LastOutcome(); out.Skill != "jab" {
		t.Errorf("exploration chose %q, want jab despite tiny priority", out.Skill)
	}
}

func TestLowHealthBoostsDefensiveSkill(t *testing.T) {
	h := newHarness(t, greedyParams())
	h.registerSkill(strike(20, skill.Priority{Base: 1.5}))
	h.registerSkill(&skill.Template{
		Name: "mend", Type: skill.TypeHeal, Effects: []string{"mend_heal"},
		MaxCharges: 1,
		Priority:   skill.Priority{Base: 1, HealthThreshold: 0.5},
	})
	h.learn(h.hero.ID(), "strike", "mend")
	c := h.adopt(h.hero.ID(), h.foe.ID())

	h.hero.ApplyDamage(80) // 105 -> 25, under the 0.5 threshold
	before := h.hero.Health()

	h.step()
	h.step()
	h.step()
	if out, _ := c.LastOutcome(); out.Skill != "mend" {
		t.Fatalf("chose %q, want mend (defensive boost at low health)", out.Skill)
	}
	if got := h.hero.Health(); got != before+30 {
		t.Errorf("hero health = %v, want self-heal to %v", got, before+30)
	}
}

func TestLowManaDampsSpender(t *testing.T) {
	h := newHarness(t, greedyParams())
	h.registerSkill(strike(20, skill.Priority{Base: 1}))
	h.registerSkill(&skill.Template{
		Name: "zap", Type: skill.TypeAttack, Element: stats.ElementLightning,
		BaseMagnitude: 30, MaxCharges: 1, MaxRange: 10,
		Costs:    costsOf(model.ResourceMana, 5),
		Priority: skill.Priority{Base: 1.5, ManaThreshold: 0.4},
	})
	h.learn(h.hero.ID(), "strike", "zap")
	c := h.adopt(h.hero.ID(), h.foe.ID())

	// drain mana to 10/103, under the 0.4 threshold
	h.hero.SpendResource(model.ResourceMana, h.hero.Mana()-10)

	h.step()
	h.step()
	h.step()
	if out, _ := c.LastOutcome(); out.Skill != "strike" {
		t.Errorf("chose %q, want strike (zap damped at low mana)", out.Skill)
	}
}

func TestFailedUseRecordsFailure(t *testing.T) {
	h := newHarness(t, greedyParams())
	h.registerSkill(strike(20, skill.Priority{}))
	h.learn(h.hero.ID(), "strike")
	c := h.adopt(h.hero.ID(), h.foe.ID())

	h.step() // -> evaluating
	h.step() // -> acting committed
	h.foe.ApplyDamage(h.foe.Health())
	h.foe.Die() // dies before the act lands
	h.step()    // use fails on the corpse
	h.step()    // observe records the failure

	cnt := c.Memory().Counters()
	if cnt.Failures != 1 || cnt.Successes != 0 {
		t.Errorf("counters = %+v, want one failure", cnt)
	}
	sig := Signature{SelfHealth: 4, SelfMana: 4, TargetHealth: 4, Range: 1}
	if v := c.Memory().Value(sig, "strike"); v >= 1 {
		t.Errorf("value after failure = %v, want below neutral", v)
	}
}

func TestSharedGroupPropagatesExperience(t *testing.T) {
	h := newHarness(t, greedyParams())
	h.registerSkill(strike(20, skill.Priority{}))
	h.learn(h.hero.ID(), "strike") // second member never learns it

	second, err := model.NewEntity(3, "packmate", model.KindNPC, testAttrs(), model.NewPosition(0, 1))
	if err != nil {
		t.Fatalf("new packmate: %v", err)
	}
	if err := h.arena.Add(second); err != nil {
		t.Fatalf("add packmate: %v", err)
	}

	c1, err := h.mgr.AdoptIntoGroup(h.hero.ID(), "pack")
	if err != nil {
		t.Fatalf("adopt hero: %v", err)
	}
	c1.SetTarget(h.foe.ID())
	c2, err := h.mgr.AdoptIntoGroup(second.ID(), "pack")
	if err != nil {
		t.Fatalf("adopt packmate: %v", err)
	}

	for range 4 {
		h.step()
	}

	cnt := c1.Memory().Counters()
	if cnt.Actions != 1 {
		t.Fatalf("group actions = %d, want hero's one recorded action", cnt.Actions)
	}
	sig := Signature{SelfHealth: 4, SelfMana: 4, TargetHealth: 4, Range: 1}
	v2 := c2.Memory().Value(sig, "strike")
	if v2 == DefaultParams().DefaultValue {
		t.Errorf("packmate estimate = %v, want non-default from pooled experience", v2)
	}
	if v1 := c1.Memory().Value(sig, "strike"); v1 != v2 {
		t.Errorf("group members disagree: %v vs %v", v1, v2)
	}

	g, ok := h.mgr.Group("pack")
	if !ok || len(g.Members()) != 2 {
		t.Errorf("group members = %v", g.Members())
	}
}

func TestDeathPenaltyDevaluesLastAction(t *testing.T) {
	h := newHarness(t, greedyParams())
	h.registerSkill(strike(20, skill.Priority{}))
	h.learn(h.hero.ID(), "strike")
	c := h.adopt(h.hero.ID(), h.foe.ID())

	for range 4 {
		h.step()
	}
	sig := Signature{SelfHealth: 4, SelfMana: 4, TargetHealth: 4, Range: 1}
	before := c.Memory().Value(sig, "strike")

	h.hero.ApplyDamage(h.hero.Health())
	h.hero.Die()
	h.mgr.NotifyDeath(h.hero.ID())
	h.step()

	after := c.Memory().Value(sig, "strike")
	if after >= before {
		t.Errorf("value after death = %v, want below %v", after, before)
	}
	if c.State() != StateIdle {
		t.Errorf("state after death = %s, want idle", c.State())
	}
}

func TestAdoptAndLookupErrors(t *testing.T) {
	h := newHarness(t, greedyParams())

	if _, err := h.mgr.Adopt(99); !errors.Is(err, effect.ErrUnknownEntity) {
		t.Errorf("adopt unknown: err = %v, want ErrUnknownEntity", err)
	}
	if _, err := h.mgr.Adopt(h.hero.ID()); err != nil {
		t.Fatalf("adopt: %v", err)
	}
	if _, err := h.mgr.Adopt(h.hero.ID()); !errors.Is(err, ErrAlreadyManaged) {
		t.Errorf("double adopt: err = %v, want ErrAlreadyManaged", err)
	}
	if _, err := h.mgr.Controller(h.foe.ID()); !errors.Is(err, ErrNotManaged) {
		t.Errorf("unmanaged lookup: err = %v, want ErrNotManaged", err)
	}
	if _, err := h.mgr.AdoptIntoGroup(h.foe.ID(), ""); err == nil {
		t.Error("empty group name accepted")
	}
}

func TestDropKeepsGroupExperience(t *testing.T) {
	h := newHarness(t, greedyParams())
	c1, err := h.mgr.AdoptIntoGroup(h.hero.ID(), "pack")
	if err != nil {
		t.Fatalf("adopt: %v", err)
	}
	if _, err := h.mgr.AdoptIntoGroup(h.foe.ID(), "pack"); err != nil {
		t.Fatalf("adopt: %v", err)
	}
	sig := Signature{SelfHealth: 4, SelfMana: 4, TargetHealth: 4, Range: 1}
	c1.Memory().Record(sig, "strike", 5, 1, true)

	h.mgr.Drop(h.hero.ID())

	g, ok := h.mgr.Group("pack")
	if !ok || len(g.Members()) != 1 {
		t.Fatalf("members after drop = %v", g.Members())
	}
	if v := g.Memory().Value(sig, "strike"); v == DefaultParams().DefaultValue {
		t.Errorf("group value = %v, experience lost on drop", v)
	}
	if got := h.mgr.Managed(); len(got) != 1 || got[0] != h.foe.ID() {
		t.Errorf("managed = %v, want only foe", got)
	}
}

func TestResetClearsLearning(t *testing.T) {
	h := newHarness(t, greedyParams())
	c := h.adopt(h.hero.ID(), h.foe.ID())
	sig := Signature{SelfHealth: 4, SelfMana: 4, TargetHealth: 4, Range: 1}
	c.Memory().Record(sig, "strike", 5, 1, true)

	h.mgr.Reset()

	if v := c.Memory().Value(sig, "strike"); v != DefaultParams().DefaultValue {
		t.Errorf("value after reset = %v, want neutral", v)
	}
	if cnt := c.Memory().Counters(); cnt.Actions != 0 {
		t.Errorf("counters after reset = %+v", cnt)
	}
}

func costsOf(r model.Resource, v float64) [model.ResourceCount]float64 {
	var c [model.ResourceCount]float64
	c[r] = v
	return c
}
