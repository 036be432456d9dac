package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/aievolve/simcore/internal/model"
)

// Advance runs exactly one tick. Engines run in a fixed order so replays are
// stable: effect lifecycles first, then proc cooldown recovery, then skill
// casts and cooldowns, then stagger decay, then AI steps. Not safe to call
// concurrently with itself or Run.
func (w *World) Advance() {
	t := w.tick.Add(1)

	w.Effects.Tick()
	w.Procs.Tick()
	w.Skills.Tick()
	w.decayStagger()
	w.AI.Step()

	if w.tickFunc != nil {
		w.tickFunc(t)
	}
}

// SetTickFunc installs a callback that runs on the loop goroutine after the
// engines each tick. The runner uses it to referee bouts (retargeting,
// respawns) without racing the loop. Set before the first Advance or Run.
func (w *World) SetTickFunc(fn func(tick int64)) {
	w.tickFunc = fn
}

// AdvanceBy runs n ticks back to back.
func (w *World) AdvanceBy(n int64) {
	for range n {
		w.Advance()
	}
}

// decayStagger bleeds stagger pools so sparse hits never accumulate into a
// break. Dead entities keep their reset pool.
func (w *World) decayStagger() {
	per := w.bal.Combat.StaggerDecayPerTick
	if per <= 0 {
		return
	}
	w.Arena.ForEach(func(e *model.Entity) bool {
		if !e.IsDead() {
			e.DecayStagger(per)
		}
		return true
	})
}

// Run paces Advance with the configured tick interval until the context is
// canceled or Stop is called.
func (w *World) Run(ctx context.Context) error {
	interval := time.Duration(w.cfg.TickMillis) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("simulation loop started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation loop stopping", "tick", w.Tick())
			return ctx.Err()

		case <-w.stopCh:
			slog.Info("simulation loop stopped", "tick", w.Tick())
			return nil

		case <-ticker.C:
			w.Advance()
		}
	}
}

// Stop ends a running loop. Safe to call once.
func (w *World) Stop() {
	close(w.stopCh)
}
