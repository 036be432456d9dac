package main

import (
	"fmt"
	"log/slog"

	"github.com/aievolve/simcore/internal/content"
	"github.com/aievolve/simcore/internal/game/stats"
	"github.com/aievolve/simcore/internal/model"
	"github.com/aievolve/simcore/internal/sim"
)

const (
	// teamGap separates the two spawn lines. At 2.0 the facing pair is in
	// melee reach while ranged skills with MinRange 2 still connect.
	teamGap = 2.0

	// maxBoutTicks calls a draw when neither side finishes the job.
	maxBoutTicks int64 = 3000
)

// fighterSpec is one archetype in the demo roster.
type fighterSpec struct {
	name  string
	attrs stats.AttributeSet
}

// rosterSpecs returns the archetypes each team fields. Every fighter learns
// the whole installed pack; the attribute spreads and levels decide what is
// actually usable, and the learner sorts out the rest.
func rosterSpecs() []fighterSpec {
	return []fighterSpec{
		{
			name: "bruiser",
			attrs: stats.AttributeSet{
				Strength: 16, Agility: 10, Intelligence: 6, Constitution: 14,
				Wisdom: 6, Charisma: 8, Luck: 8, Level: 1,
			},
		},
		{
			name: "arcanist",
			attrs: stats.AttributeSet{
				Strength: 6, Agility: 8, Intelligence: 16, Constitution: 8,
				Wisdom: 12, Charisma: 10, Luck: 10, Level: 1,
			},
		},
		{
			name: "warden",
			attrs: stats.AttributeSet{
				Strength: 10, Agility: 8, Intelligence: 10, Constitution: 12,
				Wisdom: 14, Charisma: 10, Luck: 8, Level: 3,
			},
		},
	}
}

// team is one side of the arena; its name doubles as the shared memory group,
// so pooled experience survives across bouts and process restarts.
type team struct {
	name string
	ids  []model.EntityID
}

// boutRunner referees the endless bout cycle: spawn both teams, watch for a
// wipe or a timeout, despawn everyone and start over. It runs on the loop
// goroutine via the world tick func.
type boutRunner struct {
	w        *sim.World
	compiled *content.Compiled
	teams    []*team

	bout      int64
	startTick int64
}

func newBoutRunner(w *sim.World, compiled *content.Compiled) *boutRunner {
	return &boutRunner{
		w:        w,
		compiled: compiled,
		teams:    []*team{{name: "red"}, {name: "blue"}},
	}
}

// spawn fields a fresh roster for both teams and pairs initial targets.
func (b *boutRunner) spawn() error {
	specs := rosterSpecs()
	procNames := b.compiled.ProcNames()

	for ti, t := range b.teams {
		for i, spec := range specs {
			pos := model.NewPosition(float64(ti)*teamGap, float64(i))
			ent, err := b.w.Spawn(t.name+"-"+spec.name, model.KindNPC, spec.attrs, pos)
			if err != nil {
				return fmt.Errorf("spawning %s %s: %w", t.name, spec.name, err)
			}
			id := ent.ID()

			for _, tmpl := range b.compiled.Skills {
				if err := b.w.Skills.Learn(id, tmpl.Name); err != nil {
					return fmt.Errorf("teaching %s to %s: %w", tmpl.Name, ent.Name(), err)
				}
			}
			if len(procNames) > 0 {
				p, _ := b.compiled.Proc(procNames[i%len(procNames)])
				if err := b.w.Procs.Register(id, p); err != nil {
					return fmt.Errorf("attaching proc to %s: %w", ent.Name(), err)
				}
			}

			if _, err := b.w.AI.AdoptIntoGroup(id, t.name); err != nil {
				return fmt.Errorf("adopting %s: %w", ent.Name(), err)
			}
			t.ids = append(t.ids, id)
		}
	}

	red, blue := b.teams[0], b.teams[1]
	for i := range red.ids {
		b.setTarget(red.ids[i], blue.ids[i])
		b.setTarget(blue.ids[i], red.ids[i])
	}

	b.bout++
	b.startTick = b.w.Tick()
	slog.Info("bout started",
		"bout", b.bout,
		"generation", b.w.AI.Generation(),
		"fighters", len(red.ids)+len(blue.ids))
	return nil
}

// onTick referees one tick: retarget survivors whose target fell, and when a
// side is wiped (or the bout times out) recycle the arena for the next bout.
func (b *boutRunner) onTick(tick int64) {
	redAlive := b.countAlive(b.teams[0])
	blueAlive := b.countAlive(b.teams[1])

	if redAlive > 0 && blueAlive > 0 && tick-b.startTick < maxBoutTicks {
		b.retarget(b.teams[0], b.teams[1])
		b.retarget(b.teams[1], b.teams[0])
		return
	}

	winner := "draw"
	switch {
	case redAlive > 0 && blueAlive == 0:
		winner = b.teams[0].name
	case blueAlive > 0 && redAlive == 0:
		winner = b.teams[1].name
	}
	slog.Info("bout finished",
		"bout", b.bout,
		"winner", winner,
		"ticks", tick-b.startTick,
		"red_alive", redAlive,
		"blue_alive", blueAlive)

	b.recycle()
}

// recycle clears the arena and fields the next roster. Group memory stays
// with the manager, so the next bout starts from everything learned so far.
func (b *boutRunner) recycle() {
	for _, t := range b.teams {
		for _, id := range t.ids {
			b.w.Despawn(id)
		}
		t.ids = t.ids[:0]
	}
	if err := b.spawn(); err != nil {
		slog.Error("respawning bout", "err", err)
	}
}

// retarget points fighters whose target died at the first living enemy.
func (b *boutRunner) retarget(side, enemies *team) {
	for _, id := range side.ids {
		e, ok := b.w.Arena.Get(id)
		if !ok || e.IsDead() {
			continue
		}
		ctrl, err := b.w.AI.Controller(id)
		if err != nil {
			continue
		}
		if b.isAlive(ctrl.Target()) {
			continue
		}
		for _, enemy := range enemies.ids {
			if b.isAlive(enemy) {
				ctrl.SetTarget(enemy)
				break
			}
		}
	}
}

func (b *boutRunner) setTarget(id, target model.EntityID) {
	if ctrl, err := b.w.AI.Controller(id); err == nil {
		ctrl.SetTarget(target)
	}
}

func (b *boutRunner) countAlive(t *team) int {
	alive := 0
	for _, id := range t.ids {
		if b.isAlive(id) {
			alive++
		}
	}
	return alive
}

func (b *boutRunner) isAlive(id model.EntityID) bool {
	e, ok := b.w.Arena.Get(id)
	return ok && !e.IsDead()
}
