package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aievolve/simcore/internal/config"
	"github.com/aievolve/simcore/internal/content"
	"github.com/aievolve/simcore/internal/db"
	"github.com/aievolve/simcore/internal/sim"
)

const (
	ConfigPath  = "config/simulation.yaml"
	BalancePath = "config/balance.yaml"

	// SnapshotName keys the stored generation-memory series.
	SnapshotName = "arena"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load config FIRST to determine log level
	cfgPath := ConfigPath
	if p := os.Getenv("SIMCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadSimulation(cfgPath)
	if err != nil {
		return fmt.Errorf("loading simulation config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("arena simulation starting", "log_level", cfg.LogLevel)

	balPath := BalancePath
	if p := os.Getenv("SIMCORE_BALANCE"); p != "" {
		balPath = p
	}
	bal, err := config.LoadBalance(balPath)
	if err != nil {
		return fmt.Errorf("loading balance config: %w", err)
	}

	slog.Info("configs loaded",
		"tick_millis", cfg.TickMillis,
		"seed", cfg.Seed,
		"snapshot_every", cfg.SnapshotEvery,
		"use_database", cfg.UseDatabase)

	pack, err := loadPack(cfg)
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}
	compiled, err := content.Compile(pack)
	if err != nil {
		return fmt.Errorf("compiling content: %w", err)
	}

	w, err := sim.New(cfg, bal)
	if err != nil {
		return fmt.Errorf("building world: %w", err)
	}
	if err := compiled.Install(w.Effects, w.Skills); err != nil {
		return fmt.Errorf("installing content: %w", err)
	}
	slog.Info("content installed",
		"effects", w.Effects.TemplateCount(),
		"skills", w.Skills.TemplateCount(),
		"procs", len(compiled.ProcNames()))

	// Snapshot backends: files always, Postgres when configured.
	files := db.NewFileStore(cfg.SnapshotDir)
	var repo *db.SnapshotRepository
	if cfg.UseDatabase {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		slog.Info("database connected")

		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		repo = db.NewSnapshotRepository(database.Pool())
	}
	archive := db.NewArchive(repo, files)

	// Pick up where the last run left off. A missing or unreadable snapshot
	// never stops the simulation; learning just starts fresh.
	if rec, err := archive.Load(ctx, SnapshotName); err != nil {
		slog.Error("loading snapshot", "err", err)
	} else if rec != nil {
		if err := w.AI.Restore(rec.Data); err != nil {
			slog.Error("restoring snapshot", "err", err)
		}
	}

	bouts := newBoutRunner(w, compiled)
	if err := bouts.spawn(); err != nil {
		return fmt.Errorf("spawning first bout: %w", err)
	}
	w.SetTickFunc(bouts.onTick)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("simulation loop: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if cfg.SnapshotEvery <= 0 {
			return nil
		}
		slog.Info("starting autosave loop", "interval", cfg.SnapshotEvery)
		ticker := time.NewTicker(cfg.SnapshotEvery)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				saveSnapshot(gctx, archive, w)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}

	// Final save with a fresh context; the run context is already canceled.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	saveSnapshot(saveCtx, archive, w)

	slog.Info("arena simulation stopped", "tick", w.Tick(), "bouts", bouts.bout)
	return nil
}

// loadPack selects the content source: external Lua and/or SQLite packs when
// configured (merged when both are), the builtin pack otherwise.
func loadPack(cfg config.Simulation) (content.Pack, error) {
	if cfg.ContentLua == "" && cfg.ContentSQLite == "" {
		return content.Builtin(), nil
	}

	var pack content.Pack
	if cfg.ContentLua != "" {
		lua, err := content.LoadLua(cfg.ContentLua)
		if err != nil {
			return content.Pack{}, err
		}
		pack.Merge(lua)
	}
	if cfg.ContentSQLite != "" {
		sq, err := content.LoadSQLite(cfg.ContentSQLite)
		if err != nil {
			return content.Pack{}, err
		}
		pack.Merge(sq)
	}
	return pack, nil
}

// saveSnapshot captures and archives the learning state. Failures are logged
// and the simulation keeps running.
func saveSnapshot(ctx context.Context, archive *db.Archive, w *sim.World) {
	data, err := w.AI.Snapshot()
	if err != nil {
		slog.Error("capturing snapshot", "err", err)
		return
	}
	if _, err := archive.Save(ctx, SnapshotName, w.AI.Generation(), data); err != nil {
		slog.Error("saving snapshot", "err", err)
	}
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
