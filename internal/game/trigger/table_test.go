package trigger

import (
	"errors"
	"testing"

	"github.com/aievolve/simcore/internal/events"
	"github.com/aievolve/simcore/internal/game/effect"
	"github.com/aievolve/simcore/internal/game/stats"
	"github.com/aievolve/simcore/internal/model"
	"github.com/aievolve/simcore/internal/world"
)

// fixedRoll replays a hand-picked roll sequence.
type fixedRoll struct {
	vals []float64
	i    int
}

func (f *fixedRoll) Float64() float64 {
	if len(f.vals) == 0 {
		return 0
	}
	v := f.vals[f.i%len(f.vals)]
	f.i++
	return v
}

type harness struct {
	t     *testing.T
	tick  int64
	arena *world.Arena
	bus   *events.Bus
	rec   *events.Recorder
	eng   *effect.Engine
	tab   *Table
	roll  *fixedRoll
	src   *model.Entity
	tgt   *model.Entity
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, arena: world.NewArena(), bus: events.NewBus(), roll: &fixedRoll{}}
	h.rec = (&events.Recorder{}).Attach(h.bus)
	now := func() int64 { return h.tick }
	h.eng = effect.NewEngine(h.arena, h.bus, now)
	h.tab = NewTable(h.eng, h.bus, h.roll, now)

	attrs := stats.AttributeSet{
		Strength: 10, Agility: 10, Intelligence: 10, Constitution: 10,
		Wisdom: 10, Charisma: 10, Luck: 10, Level: 1,
	}
	var err error
	if h.src, err = model.NewEntity(1, "wielder", model.KindPlayer, attrs, model.Position{}); err != nil {
		t.Fatalf("new wielder: %v", err)
	}
	if h.tgt, err = model.NewEntity(2, "victim", model.KindNPC, attrs, model.Position{}); err != nil {
		t.Fatalf("new victim: %v", err)
	}
	if err := h.arena.Add(h.src); err != nil {
		t.Fatalf("add wielder: %v", err)
	}
	if err := h.arena.Add(h.tgt); err != nil {
		t.Fatalf("add victim: %v", err)
	}

	templates := []*effect.Template{
		{Name: "zap", Category: effect.CategoryInstant, Kind: effect.KindDamage, Element: stats.ElementLightning, Magnitude: 10, MaxStacks: 1},
		{Name: "spark", Category: effect.CategoryInstant, Kind: effect.KindDamage, Element: stats.ElementLightning, Magnitude: 4, MaxStacks: 1},
		{
			Name: "venom", Category: effect.CategoryDuration, Kind: effect.KindDamage,
			Element: stats.ElementPoison, Magnitude: 2, DurationTicks: 10, PeriodTicks: 2,
			MaxStacks: 1, Tags: []string{"poison"},
		},
		{
			Name: "battle_focus", Category: effect.CategoryDuration, Kind: effect.KindModifyStats,
			Modifiers:     []stats.Modifier{stats.StatAdd(stats.StatPhysicalDamage, 5)},
			DurationTicks: 20, MaxStacks: 1,
		},
	}
	for _, tmpl := range templates {
		if err := h.eng.RegisterTemplate(tmpl); err != nil {
			t.Fatalf("register template %q: %v", tmpl.Name, err)
		}
	}
	return h
}

func (h *harness) register(owner model.EntityID, p Proc) {
	h.t.Helper()
	if err := h.tab.Register(owner, p); err != nil {
		h.t.Fatalf("register proc %q: %v", p.Name, err)
	}
}

func TestFireAppliesBoundEffect(t *testing.T) {
	h := newHarness(t)
	h.register(h.src.ID(), Proc{Name: "shock_strike", Condition: OnHit, Chance: 1, Effect: "zap"})

	results := h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID())
	if len(results) != 1 {
		t.Fatalf("results = %+v, want 1", results)
	}
	r := results[0]
	if r.Err != nil || r.Deferred || r.Receipt.Outcome != effect.OutcomeInstant {
		t.Errorf("result = %+v, want immediate instant application", r)
	}
	if got := h.tgt.Health(); got != 95 {
		t.Errorf("health = %v, want 95", got)
	}
	fired := h.rec.OfType(events.ProcFired)
	if len(fired) != 1 || fired[0].Name != "shock_strike" {
		t.Errorf("proc events = %+v, want one shock_strike", fired)
	}
}

func TestOwnedProcFiresOnlyForOwner(t *testing.T) {
	h := newHarness(t)
	h.register(h.src.ID(), Proc{Name: "shock_strike", Condition: OnHit, Chance: 1, Effect: "zap"})

	if n := len(h.tab.Fire(OnHit, h.tgt.ID(), h.src.ID())); n != 0 {
		t.Fatal("someone else's hit fired an owned proc")
	}
	if n := len(h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID())); n != 1 {
		t.Fatal("owner's hit did not fire the proc")
	}
}

func TestGlobalProcFiresForEveryone(t *testing.T) {
	h := newHarness(t)
	h.register(GlobalOwner, Proc{Name: "static_field", Condition: OnHit, Chance: 1, Effect: "spark"})

	if n := len(h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID())); n != 1 {
		t.Fatal("global proc skipped for first source")
	}
	if n := len(h.tab.Fire(OnHit, h.tgt.ID(), h.src.ID())); n != 1 {
		t.Fatal("global proc skipped for second source")
	}
}

func TestChanceGateUsesRoller(t *testing.T) {
	h := newHarness(t)
	h.register(h.src.ID(), Proc{Name: "maybe_shock", Condition: OnHit, Chance: 0.25, Effect: "zap"})

	h.roll.vals = []float64{0.5, 0.1}
	if results := h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID()); len(results) != 0 {
		t.Fatalf("roll 0.5 vs chance 0.25 procced: %+v", results)
	}
	if results := h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID()); len(results) != 1 {
		t.Fatalf("roll 0.1 vs chance 0.25 did not proc")
	}
}

func TestCooldownGatePerSource(t *testing.T) {
	h := newHarness(t)
	h.register(GlobalOwner, Proc{Name: "shock_strike", Condition: OnHit, Chance: 1, CooldownTicks: 5, Effect: "zap"})

	if n := len(h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID())); n != 1 {
		t.Fatal("first fire should proc")
	}
	h.tick = 3
	if n := len(h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID())); n != 0 {
		t.Fatal("fire inside cooldown procced")
	}
	// Another source carries its own cooldown state.
	if n := len(h.tab.Fire(OnHit, h.tgt.ID(), h.src.ID())); n != 1 {
		t.Fatal("fresh source blocked by someone else's cooldown")
	}
	h.tick = 5
	if n := len(h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID())); n != 1 {
		t.Fatal("fire after cooldown should proc")
	}
}

func TestMaxProcsGate(t *testing.T) {
	h := newHarness(t)
	h.register(h.src.ID(), Proc{Name: "first_blood", Condition: OnHit, Chance: 1, MaxProcs: 2, Effect: "zap"})

	total := 0
	for i := 0; i < 5; i++ {
		h.tick = int64(i)
		total += len(h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID()))
	}
	if total != 2 {
		t.Errorf("procs = %d, want capped at 2", total)
	}
}

func TestSiblingProcsFireInOrderDespiteFailure(t *testing.T) {
	h := newHarness(t)
	h.register(h.src.ID(), Proc{Name: "poison_blade", Condition: OnHit, Chance: 1, Effect: "venom"})
	h.register(h.src.ID(), Proc{Name: "shock_strike", Condition: OnHit, Chance: 1, Effect: "zap"})

	h.tgt.AddImmunity("poison")
	results := h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID())
	if len(results) != 2 {
		t.Fatalf("results = %+v, want 2", results)
	}
	if results[0].Proc != "poison_blade" || !errors.Is(results[0].Err, effect.ErrTargetImmune) {
		t.Errorf("first = %+v, want immune venom failure", results[0])
	}
	if results[1].Proc != "shock_strike" || results[1].Err != nil {
		t.Errorf("second = %+v, want clean zap", results[1])
	}
	if got := h.tgt.Health(); got != 95 {
		t.Errorf("health = %v, want 95 (zap landed, venom did not)", got)
	}
}

func TestDelayedEffectAppliesOnSchedule(t *testing.T) {
	h := newHarness(t)
	h.register(h.src.ID(), Proc{Name: "static_charge", Condition: OnHit, Chance: 1, Effect: "zap", DelayTicks: 3})

	results := h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID())
	if len(results) != 1 || !results[0].Deferred || results[0].DueTick != 3 {
		t.Fatalf("results = %+v, want one deferred to tick 3", results)
	}
	if got := h.tgt.Health(); got != 105 {
		t.Fatalf("health = %v, deferred effect applied early", got)
	}
	if n := h.tab.PendingCount(); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}

	h.tick = 2
	h.tab.Tick()
	if got := h.tgt.Health(); got != 105 {
		t.Fatalf("health = %v at tick 2, want untouched", got)
	}

	h.tick = 3
	h.tab.Tick()
	if got := h.tgt.Health(); got != 95 {
		t.Errorf("health = %v at tick 3, want 95", got)
	}
	if n := h.tab.PendingCount(); n != 0 {
		t.Errorf("pending = %d, want drained", n)
	}
}

func TestChainDelaysAccumulate(t *testing.T) {
	h := newHarness(t)
	h.register(h.src.ID(), Proc{
		Name: "storm_brand", Condition: OnCrit, Chance: 1, Effect: "zap",
		Chain: []ChainLink{
			{Effect: "spark", DelayTicks: 2},
			{Effect: "spark", DelayTicks: 3},
		},
	})

	results := h.tab.Fire(OnCrit, h.src.ID(), h.tgt.ID())
	if len(results) != 3 {
		t.Fatalf("results = %+v, want main + 2 links", results)
	}
	if results[0].Deferred {
		t.Errorf("main effect deferred, want immediate")
	}
	if !results[1].Deferred || results[1].DueTick != 2 {
		t.Errorf("link 1 = %+v, want due tick 2", results[1])
	}
	if !results[2].Deferred || results[2].DueTick != 5 {
		t.Errorf("link 2 = %+v, want due tick 5 (delays accumulate)", results[2])
	}

	h.tick = 2
	h.tab.Tick()
	if got := h.tgt.Health(); got != 105-10-4 {
		t.Errorf("health = %v at tick 2, want %v", got, 105-10-4)
	}
	h.tick = 5
	h.tab.Tick()
	if got := h.tgt.Health(); got != 105-10-8 {
		t.Errorf("health = %v at tick 5, want %v", got, 105-10-8)
	}
}

func TestSelfTargetedProc(t *testing.T) {
	h := newHarness(t)
	h.register(h.src.ID(), Proc{Name: "adrenaline", Condition: OnKill, Chance: 1, Effect: "battle_focus", Self: true})

	results := h.tab.Fire(OnKill, h.src.ID(), h.tgt.ID())
	if len(results) != 1 || results[0].Target != h.src.ID() {
		t.Fatalf("results = %+v, want buff on source", results)
	}
	if n := h.eng.ActiveCount(h.src.ID()); n != 1 {
		t.Errorf("source active effects = %d, want 1", n)
	}
	if n := h.eng.ActiveCount(h.tgt.ID()); n != 0 {
		t.Errorf("target active effects = %d, want 0", n)
	}
}

func TestRegisterRejectsBadProcs(t *testing.T) {
	h := newHarness(t)

	if err := h.tab.Register(h.src.ID(), Proc{Name: "ghost", Condition: OnHit, Chance: 1, Effect: "no_such"}); !errors.Is(err, effect.ErrUnknownEffect) {
		t.Errorf("unknown effect: err = %v, want ErrUnknownEffect", err)
	}
	if err := h.tab.Register(h.src.ID(), Proc{Name: "", Condition: OnHit, Chance: 1, Effect: "zap"}); err == nil {
		t.Error("empty name accepted")
	}
	if err := h.tab.Register(h.src.ID(), Proc{Name: "over", Condition: OnHit, Chance: 1.5, Effect: "zap"}); err == nil {
		t.Error("chance above 1 accepted")
	}
	h.register(h.src.ID(), Proc{Name: "dup", Condition: OnHit, Chance: 1, Effect: "zap"})
	if err := h.tab.Register(h.src.ID(), Proc{Name: "dup", Condition: OnCrit, Chance: 1, Effect: "zap"}); err == nil {
		t.Error("duplicate name for same owner accepted")
	}
	// The same proc name under another owner is a separate grant.
	if err := h.tab.Register(h.tgt.ID(), Proc{Name: "dup", Condition: OnHit, Chance: 1, Effect: "zap"}); err != nil {
		t.Errorf("same name other owner rejected: %v", err)
	}
}

func TestResetSourceReopensGates(t *testing.T) {
	h := newHarness(t)
	h.register(h.src.ID(), Proc{Name: "first_blood", Condition: OnHit, Chance: 1, MaxProcs: 1, Effect: "zap"})

	h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID())
	if n := len(h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID())); n != 0 {
		t.Fatal("max procs not enforced")
	}
	h.tab.ResetSource(h.src.ID())
	if n := len(h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID())); n != 1 {
		t.Error("reset source did not reopen the gate")
	}
}

func TestUnregisterOwnerDropsProcs(t *testing.T) {
	h := newHarness(t)
	h.register(h.src.ID(), Proc{Name: "shock_strike", Condition: OnHit, Chance: 1, Effect: "zap"})
	h.register(GlobalOwner, Proc{Name: "static_field", Condition: OnHit, Chance: 1, Effect: "spark"})

	h.tab.UnregisterOwner(h.src.ID())
	results := h.tab.Fire(OnHit, h.src.ID(), h.tgt.ID())
	if len(results) != 1 || results[0].Proc != "static_field" {
		t.Errorf("results = %+v, want only the global proc left", results)
	}
}

func TestProcsListsRegistrationOrder(t *testing.T) {
	h := newHarness(t)
	h.register(h.src.ID(), Proc{Name: "alpha", Condition: OnHit, Chance: 1, Effect: "zap"})
	h.register(GlobalOwner, Proc{Name: "beta", Condition: OnHit, Chance: 1, Effect: "spark"})
	h.register(h.src.ID(), Proc{Name: "other", Condition: OnCrit, Chance: 1, Effect: "zap"})

	got := h.tab.Procs(OnHit)
	if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Errorf("procs = %v, want [alpha beta]", got)
	}
}
