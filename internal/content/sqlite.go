package content

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// SQLite content databases hold one row per definition: the name as the
// primary key and the whole def as JSON text, encoded with the same json
// tags the defs carry.

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS effects (
	name TEXT PRIMARY KEY,
	def  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS skills (
	name TEXT PRIMARY KEY,
	def  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS procs (
	name TEXT PRIMARY KEY,
	def  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS combos (
	name TEXT PRIMARY KEY,
	def  TEXT NOT NULL
);
`

// LoadSQLite reads a content pack from a SQLite database. Rows load in name
// order so repeated loads produce identical packs.
func LoadSQLite(path string) (Pack, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Pack{}, fmt.Errorf("content: opening %s: %w", path, err)
	}
	defer db.Close()

	var pack Pack
	if err := loadRows(db, "effects", &pack.Effects); err != nil {
		return Pack{}, err
	}
	if err := loadRows(db, "skills", &pack.Skills); err != nil {
		return Pack{}, err
	}
	if err := loadRows(db, "procs", &pack.Procs); err != nil {
		return Pack{}, err
	}
	if err := loadRows(db, "combos", &pack.Combos); err != nil {
		return Pack{}, err
	}

	slog.Info("loaded sqlite content pack",
		"path", path,
		"effects", len(pack.Effects),
		"skills", len(pack.Skills),
		"procs", len(pack.Procs),
		"combos", len(pack.Combos))
	return pack, nil
}

// loadRows decodes every def row of one table into out, a *[]T of defs.
func loadRows[T any](db *sql.DB, table string, out *[]T) error {
	rows, err := db.Query(fmt.Sprintf(`SELECT def FROM %s ORDER BY name`, table))
	if err != nil {
		return fmt.Errorf("content: querying %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("content: scanning %s: %w", table, err)
		}
		var def T
		if err := json.Unmarshal([]byte(raw), &def); err != nil {
			return fmt.Errorf("content: decoding %s row: %w", table, err)
		}
		*out = append(*out, def)
	}
	return rows.Err()
}

// SaveSQLite writes a pack into a SQLite database, creating the schema and
// replacing existing rows by name. The authoring tools build distributable
// packs with it.
func SaveSQLite(path string, pack Pack) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("content: opening %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("content: creating schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("content: beginning save: %w", err)
	}
	defer tx.Rollback()

	for _, def := range pack.Effects {
		if err := saveRow(tx, "effects", def.Name, def); err != nil {
			return err
		}
	}
	for _, def := range pack.Skills {
		if err := saveRow(tx, "skills", def.Name, def); err != nil {
			return err
		}
	}
	for _, def := range pack.Procs {
		if err := saveRow(tx, "procs", def.Name, def); err != nil {
			return err
		}
	}
	for _, def := range pack.Combos {
		if err := saveRow(tx, "combos", def.Name, def); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func saveRow(tx *sql.Tx, table, name string, def any) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("content: encoding %s %q: %w", table, name, err)
	}
	_, err = tx.Exec(
		fmt.Sprintf(`INSERT INTO %s (name, def) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET def = excluded.def`, table),
		name, string(raw),
	)
	if err != nil {
		return fmt.Errorf("content: saving %s %q: %w", table, name, err)
	}
	return nil
}
