package db

import (
	"context"
	"fmt"
	"log/slog"
)

// Archive routes snapshot saves and loads to the configured backend:
// PostgreSQL when a repository is present, files on disk otherwise.
// The simulation talks to this one surface and never cares which.
type Archive struct {
	repo  *SnapshotRepository // nil when running without a database
	files *FileStore
}

// NewArchive creates an Archive. Pass a nil repo to run file-only.
func NewArchive(repo *SnapshotRepository, files *FileStore) *Archive {
	return &Archive{repo: repo, files: files}
}

// Save stores a snapshot in the active backend.
func (a *Archive) Save(ctx context.Context, name string, generation int64, data []byte) (*SnapshotRecord, error) {
	var (
		rec *SnapshotRecord
		err error
	)
	if a.repo != nil {
		rec, err = a.repo.Save(ctx, name, generation, data)
	} else {
		rec, err = a.files.Save(name, generation, data)
	}
	if err != nil {
		return nil, fmt.Errorf("archiving snapshot %q: %w", name, err)
	}

	slog.Info("snapshot saved",
		"name", rec.Name,
		"generation", rec.Generation,
		"bytes", len(rec.Data),
		"backend", a.backend())

	return rec, nil
}

// Load returns the newest snapshot with the given name from the active
// backend, or (nil, nil) when none exists yet.
func (a *Archive) Load(ctx context.Context, name string) (*SnapshotRecord, error) {
	if a.repo != nil {
		return a.repo.Load(ctx, name)
	}
	return a.files.Load(name)
}

// Prune deletes all but the newest keep snapshots with the given name.
func (a *Archive) Prune(ctx context.Context, name string, keep int) (int64, error) {
	if a.repo != nil {
		return a.repo.Prune(ctx, name, keep)
	}
	return a.files.Prune(name, keep)
}

func (a *Archive) backend() string {
	if a.repo != nil {
		return "postgres"
	}
	return "files"
}
