package db

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())

	rec, err := store.Load("arena")
	if err != nil {
		t.Fatalf("loading from empty store: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record from empty store, got %+v", rec)
	}

	first := []byte(`{"values":{"strike":1.5}}`)
	saved, err := store.Save("arena", 1, first)
	if err != nil {
		t.Fatalf("saving snapshot: %v", err)
	}
	if saved.Digest != Digest(first) {
		t.Errorf("saved digest = %q, want %q", saved.Digest, Digest(first))
	}

	second := []byte(`{"values":{"strike":2.25}}`)
	if _, err := store.Save("arena", 2, second); err != nil {
		t.Fatalf("saving second snapshot: %v", err)
	}
	if _, err := store.Save("training", 9, []byte(`{}`)); err != nil {
		t.Fatalf("saving snapshot under other name: %v", err)
	}

	rec, err = store.Load("arena")
	if err != nil {
		t.Fatalf("loading snapshot: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record, got nil")
	}
	if rec.Generation != 2 {
		t.Errorf("loaded generation = %d, want 2 (newest)", rec.Generation)
	}
	if !bytes.Equal(rec.Data, second) {
		t.Errorf("loaded data = %s, want %s", rec.Data, second)
	}

	other, err := store.Load("training")
	if err != nil {
		t.Fatalf("loading other name: %v", err)
	}
	if other == nil || other.Generation != 9 {
		t.Errorf("loaded training snapshot = %+v, want generation 9", other)
	}
}

func TestFileStoreHistoryAndPrune(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	for gen := int64(1); gen <= 5; gen++ {
		if _, err := store.Save("arena", gen, []byte(`{}`)); err != nil {
			t.Fatalf("saving generation %d: %v", gen, err)
		}
	}

	recs, err := store.History("arena", 10)
	if err != nil {
		t.Fatalf("listing history: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("history length = %d, want 5", len(recs))
	}
	for i, rec := range recs {
		if want := int64(5 - i); rec.Generation != want {
			t.Errorf("history[%d].Generation = %d, want %d (newest first)", i, rec.Generation, want)
		}
		if rec.Data != nil {
			t.Errorf("history[%d] carries payload, want nil Data", i)
		}
	}

	deleted, err := store.Prune("arena", 2)
	if err != nil {
		t.Fatalf("pruning: %v", err)
	}
	if deleted != 3 {
		t.Errorf("pruned %d files, want 3", deleted)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "arena"))
	if err != nil {
		t.Fatalf("reading snapshot dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("%d files left after prune, want 2", len(entries))
	}

	rec, err := store.Load("arena")
	if err != nil {
		t.Fatalf("loading after prune: %v", err)
	}
	if rec == nil || rec.Generation != 5 {
		t.Errorf("loaded after prune = %+v, want generation 5", rec)
	}

	if deleted, err := store.Prune("arena", 10); err != nil || deleted != 0 {
		t.Errorf("pruning below keep: deleted = %d, err = %v, want 0, nil", deleted, err)
	}
}

func TestFileStoreDigestMismatch(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	if _, err := store.Save("arena", 1, []byte(`{"values":{}}`)); err != nil {
		t.Fatalf("saving snapshot: %v", err)
	}

	// Corrupt the payload inside the newest file, keeping the old digest.
	files, err := store.listFiles("arena")
	if err != nil || len(files) != 1 {
		t.Fatalf("listing files: %v (%d files)", err, len(files))
	}
	path := filepath.Join(dir, "arena", files[0])
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading snapshot file: %v", err)
	}
	var env snapshotEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decoding snapshot file: %v", err)
	}
	env.Data = []byte(`garbage`)
	raw, err = json.Marshal(env)
	if err != nil {
		t.Fatalf("encoding corrupted envelope: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("writing corrupted file: %v", err)
	}

	if _, err := store.Load("arena"); err == nil {
		t.Fatal("expected digest mismatch error, got nil")
	}
}

func TestFileStoreRejectsBadName(t *testing.T) {
	store := NewFileStore(t.TempDir())

	for _, name := range []string{"", "a/b", `a\b`} {
		if _, err := store.Save(name, 1, []byte(`{}`)); err == nil {
			t.Errorf("Save(%q) accepted an invalid name", name)
		}
	}
}
