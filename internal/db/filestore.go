package db

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore stores learning snapshots as JSON files on disk. It mirrors the
// SnapshotRepository contract for deployments that run without PostgreSQL:
// one file per save under <dir>/<name>/, newest first by filename.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

type snapshotEnvelope struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Generation int64     `json:"generation"`
	Digest     string    `json:"digest"`
	CreatedAt  time.Time `json:"created_at"`
	Data       []byte    `json:"data"`
}

// Save writes a new snapshot file and returns the stored record.
func (s *FileStore) Save(name string, generation int64, data []byte) (*SnapshotRecord, error) {
	if err := checkSnapshotName(name); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir %s: %w", dir, err)
	}

	rec := &SnapshotRecord{
		ID:         uuid.New(),
		Name:       name,
		Generation: generation,
		Digest:     Digest(data),
		Data:       data,
		CreatedAt:  time.Now().UTC(),
	}

	env := snapshotEnvelope{
		ID:         rec.ID,
		Name:       rec.Name,
		Generation: rec.Generation,
		Digest:     rec.Digest,
		CreatedAt:  rec.CreatedAt,
		Data:       rec.Data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot %q: %w", name, err)
	}

	// Zero-padded nanos keep lexical order == chronological order.
	filename := fmt.Sprintf("%020d-%s.json", rec.CreatedAt.UnixNano(), rec.ID)
	path := filepath.Join(dir, filename)

	// Write to a temp file then rename so a crash never leaves a
	// half-written file as the newest snapshot.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return nil, fmt.Errorf("writing snapshot file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("renaming snapshot file %s: %w", tmp, err)
	}

	return rec, nil
}

// Load returns the newest snapshot with the given name, verifying its digest.
// Returns (nil, nil) when no snapshot exists yet.
func (s *FileStore) Load(name string) (*SnapshotRecord, error) {
	files, err := s.listFiles(name)
	if err != nil || len(files) == 0 {
		return nil, err
	}

	path := filepath.Join(s.dir, name, files[0])
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file %s: %w", path, err)
	}

	var env snapshotEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decoding snapshot file %s: %w", path, err)
	}

	if got := Digest(env.Data); got != env.Digest {
		return nil, fmt.Errorf("snapshot %q (%s): digest mismatch", name, env.ID)
	}

	return &SnapshotRecord{
		ID:         env.ID,
		Name:       env.Name,
		Generation: env.Generation,
		Digest:     env.Digest,
		Data:       env.Data,
		CreatedAt:  env.CreatedAt,
	}, nil
}

// History returns up to limit snapshots with the given name, newest first.
// Payloads are not loaded; Data is nil on the returned records.
func (s *FileStore) History(name string, limit int) ([]*SnapshotRecord, error) {
	files, err := s.listFiles(name)
	if err != nil {
		return nil, err
	}
	if len(files) > limit {
		files = files[:limit]
	}

	recs := make([]*SnapshotRecord, 0, len(files))
	for _, f := range files {
		path := filepath.Join(s.dir, name, f)
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading snapshot file %s: %w", path, err)
		}

		var env snapshotEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, fmt.Errorf("decoding snapshot file %s: %w", path, err)
		}

		recs = append(recs, &SnapshotRecord{
			ID:         env.ID,
			Name:       env.Name,
			Generation: env.Generation,
			Digest:     env.Digest,
			CreatedAt:  env.CreatedAt,
		})
	}

	return recs, nil
}

// Prune deletes all but the newest keep snapshot files with the given name.
// Returns the number of files deleted.
func (s *FileStore) Prune(name string, keep int) (int64, error) {
	files, err := s.listFiles(name)
	if err != nil {
		return 0, err
	}
	if len(files) <= keep {
		return 0, nil
	}

	var deleted int64
	for _, f := range files[keep:] {
		path := filepath.Join(s.dir, name, f)
		if err := os.Remove(path); err != nil {
			return deleted, fmt.Errorf("removing snapshot file %s: %w", path, err)
		}
		deleted++
	}

	return deleted, nil
}

// listFiles returns snapshot filenames for name, newest first.
// Returns (nil, nil) when the directory does not exist.
func (s *FileStore) listFiles(name string) ([]string, error) {
	if err := checkSnapshotName(name); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.dir, name)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot dir %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	return files, nil
}

func checkSnapshotName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid snapshot name %q", name)
	}
	return nil
}
