package events

import (
	"testing"

	"github.com/aievolve/simcore/internal/model"
)

func TestPublishRunsHandlersInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.Subscribe(func(Event) { order = append(order, "first") })
	bus.Subscribe(func(Event) { order = append(order, "second") })
	bus.Subscribe(func(Event) { order = append(order, "third") })

	bus.Publish(Event{Type: SkillUsed, Tick: 1})

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("handlers ran %d times, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("handler %d ran as %q, want %q", i, order[i], want[i])
		}
	}
}

func TestPublishOnNilBusIsSafe(t *testing.T) {
	var bus *Bus
	// Must not panic; components run without a bus in tests.
	bus.Publish(Event{Type: DamageDealt, Value: 12})
}

func TestRecorderFiltersByType(t *testing.T) {
	bus := NewBus()
	rec := (&Recorder{}).Attach(bus)

	src := model.EntityID(1)
	tgt := model.EntityID(2)
	bus.Publish(Event{Type: DamageDealt, Tick: 3, Source: src, Target: tgt, Name: "strike", Value: 40})
	bus.Publish(Event{Type: EffectApplied, Tick: 3, Source: src, Target: tgt, Name: "burn"})
	bus.Publish(Event{Type: DamageDealt, Tick: 4, Source: src, Target: tgt, Name: "burn", Value: 5})

	if len(rec.Events) != 3 {
		t.Fatalf("recorded %d events, want 3", len(rec.Events))
	}

	hits := rec.OfType(DamageDealt)
	if len(hits) != 2 {
		t.Fatalf("OfType(DamageDealt) returned %d events, want 2", len(hits))
	}
	if hits[0].Name != "strike" || hits[0].Value != 40 {
		t.Errorf("first hit = %q/%v, want strike/40", hits[0].Name, hits[0].Value)
	}
	if hits[1].Name != "burn" || hits[1].Tick != 4 {
		t.Errorf("second hit = %q at tick %d, want burn at tick 4", hits[1].Name, hits[1].Tick)
	}

	if n := len(rec.OfType(EntityDied)); n != 0 {
		t.Errorf("OfType(EntityDied) returned %d events, want 0", n)
	}
}

func TestTypeString(t *testing.T) {
	cases := []struct {
		typ  Type
		want string
	}{
		{EffectApplied, "effect_applied"},
		{EffectRemoved, "effect_removed"},
		{EffectExpired, "effect_expired"},
		{SkillUsed, "skill_used"},
		{DamageDealt, "damage_dealt"},
		{EntityStunned, "entity_stunned"},
		{EntityDied, "entity_died"},
		{ProcFired, "proc_fired"},
		{Type(200), "event(200)"},
	}
	for _, tc := range cases {
		if got := tc.typ.String(); got != tc.want {
			t.Errorf("Type(%d).String() = %q, want %q", tc.typ, got, tc.want)
		}
	}
}
