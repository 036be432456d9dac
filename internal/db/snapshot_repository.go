package db

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"
)

// SnapshotRecord is one stored generation snapshot. Rows are append-only:
// every save inserts a new record and Load picks the newest by name.
type SnapshotRecord struct {
	ID         uuid.UUID
	Name       string
	Generation int64
	Digest     string
	Data       []byte
	CreatedAt  time.Time
}

// Digest returns the hex-encoded BLAKE2b-256 digest of a snapshot payload.
// Stored next to the data and re-checked on load to catch corruption.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SnapshotRepository stores learning snapshots in PostgreSQL.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save appends a new snapshot row and returns the stored record.
func (r *SnapshotRepository) Save(ctx context.Context, name string, generation int64, data []byte) (*SnapshotRecord, error) {
	rec := &SnapshotRecord{
		ID:         uuid.New(),
		Name:       name,
		Generation: generation,
		Digest:     Digest(data),
		Data:       data,
	}

	query := `
		INSERT INTO snapshots (id, name, generation, digest, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query, rec.ID, rec.Name, rec.Generation, rec.Digest, rec.Data).Scan(&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting snapshot %q: %w", name, err)
	}

	return rec, nil
}

// Load returns the newest snapshot with the given name, verifying its digest.
// Returns (nil, nil) when no snapshot exists yet.
func (r *SnapshotRepository) Load(ctx context.Context, name string) (*SnapshotRecord, error) {
	query := `
		SELECT id, name, generation, digest, data, created_at
		FROM snapshots
		WHERE name = $1
		ORDER BY created_at DESC, generation DESC
		LIMIT 1
	`

	rec := &SnapshotRecord{}
	err := r.db.QueryRow(ctx, query, name).Scan(
		&rec.ID, &rec.Name, &rec.Generation, &rec.Digest, &rec.Data, &rec.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil // NOT ERROR, just not found
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot %q: %w", name, err)
	}

	if got := Digest(rec.Data); got != rec.Digest {
		return nil, fmt.Errorf("snapshot %q (%s): digest mismatch", name, rec.ID)
	}

	return rec, nil
}

// History returns up to limit snapshots with the given name, newest first.
// Payloads are not loaded; Data is nil on the returned records.
func (r *SnapshotRepository) History(ctx context.Context, name string, limit int) ([]*SnapshotRecord, error) {
	query := `
		SELECT id, name, generation, digest, created_at
		FROM snapshots
		WHERE name = $1
		ORDER BY created_at DESC, generation DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot history for %q: %w", name, err)
	}
	defer rows.Close()

	recs := make([]*SnapshotRecord, 0, limit)
	for rows.Next() {
		rec := &SnapshotRecord{}
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Generation, &rec.Digest, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}

	return recs, nil
}

// Prune deletes all but the newest keep snapshots with the given name.
// Returns the number of rows deleted.
func (r *SnapshotRepository) Prune(ctx context.Context, name string, keep int) (int64, error) {
	query := `
		DELETE FROM snapshots
		WHERE name = $1 AND id NOT IN (
			SELECT id FROM snapshots
			WHERE name = $1
			ORDER BY created_at DESC, generation DESC
			LIMIT $2
		)
	`

	tag, err := r.db.Exec(ctx, query, name, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots for %q: %w", name, err)
	}

	return tag.RowsAffected(), nil
}
