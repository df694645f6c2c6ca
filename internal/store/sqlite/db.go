// Package sqlite is the embedded storage backend. It implements the same store
// contracts as the Postgres package on a single SQLite file, for local runs,
// the CLI and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS personas (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	config       TEXT NOT NULL DEFAULT '{}',
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS beliefs (
	id         TEXT PRIMARY KEY,
	persona_id TEXT NOT NULL REFERENCES personas(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
	tags       TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE (id, persona_id)
);

CREATE INDEX IF NOT EXISTS idx_beliefs_persona ON beliefs(persona_id);

CREATE TABLE IF NOT EXISTS belief_edges (
	id         TEXT PRIMARY KEY,
	persona_id TEXT NOT NULL,
	source_id  TEXT NOT NULL,
	target_id  TEXT NOT NULL,
	relation   TEXT NOT NULL,
	weight     REAL NOT NULL CHECK (weight >= 0 AND weight <= 1),
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	FOREIGN KEY (source_id, persona_id) REFERENCES beliefs(id, persona_id) ON DELETE CASCADE,
	FOREIGN KEY (target_id, persona_id) REFERENCES beliefs(id, persona_id) ON DELETE CASCADE,
	UNIQUE (source_id, target_id, relation),
	CHECK (source_id <> target_id)
);

CREATE INDEX IF NOT EXISTS idx_belief_edges_persona ON belief_edges(persona_id);

CREATE TABLE IF NOT EXISTS stance_versions (
	id         TEXT PRIMARY KEY,
	belief_id  TEXT NOT NULL,
	persona_id TEXT NOT NULL,
	version    INTEGER NOT NULL,
	text       TEXT NOT NULL,
	confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
	status     TEXT NOT NULL CHECK (status IN ('current', 'deprecated', 'locked')),
	rationale  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	FOREIGN KEY (belief_id, persona_id) REFERENCES beliefs(id, persona_id) ON DELETE CASCADE,
	UNIQUE (belief_id, version)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_stance_versions_head
	ON stance_versions(belief_id) WHERE status IN ('current', 'locked');

CREATE TABLE IF NOT EXISTS evidence_links (
	id          TEXT PRIMARY KEY,
	belief_id   TEXT NOT NULL,
	persona_id  TEXT NOT NULL,
	source_type TEXT NOT NULL,
	source_ref  TEXT NOT NULL,
	strength    TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	FOREIGN KEY (belief_id, persona_id) REFERENCES beliefs(id, persona_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_evidence_links_belief ON evidence_links(belief_id);

CREATE TABLE IF NOT EXISTS belief_updates (
	id           TEXT PRIMARY KEY,
	belief_id    TEXT NOT NULL,
	persona_id   TEXT NOT NULL,
	old_value    TEXT NOT NULL,
	new_value    TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	trigger_type TEXT NOT NULL,
	actor        TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	FOREIGN KEY (belief_id, persona_id) REFERENCES beliefs(id, persona_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_belief_updates_belief ON belief_updates(belief_id);

CREATE TABLE IF NOT EXISTS interactions (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	persona_id      TEXT NOT NULL REFERENCES personas(id) ON DELETE CASCADE,
	content         TEXT NOT NULL,
	type            TEXT NOT NULL,
	external_ref    TEXT NOT NULL,
	metadata        TEXT NOT NULL DEFAULT '{}',
	embedding       TEXT,
	embedding_model TEXT NOT NULL DEFAULT '',
	embedded_at     TIMESTAMP,
	embed_attempts  INTEGER NOT NULL DEFAULT 0,
	embed_error     TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL,
	UNIQUE (persona_id, external_ref)
);

CREATE INDEX IF NOT EXISTS idx_interactions_persona ON interactions(persona_id, seq);
`

// Open opens (creating if needed) the database file at path and applies the schema.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// One writer at a time; immediate transactions queue on the connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}
	if err := upgrade(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// columnUpgrades adds columns introduced after a table was first created.
var columnUpgrades = []struct{ table, column, ddl string }{
	{"interactions", "embed_attempts", `ALTER TABLE interactions ADD COLUMN embed_attempts INTEGER NOT NULL DEFAULT 0`},
	{"interactions", "embed_error", `ALTER TABLE interactions ADD COLUMN embed_error TEXT NOT NULL DEFAULT ''`},
}

func upgrade(ctx context.Context, db *sql.DB) error {
	for _, u := range columnUpgrades {
		var n int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, u.table, u.column,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("inspect %s.%s: %w", u.table, u.column, err)
		}
		if n > 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, u.ddl); err != nil {
			return fmt.Errorf("add %s.%s: %w", u.table, u.column, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func now() time.Time {
	return time.Now().UTC()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}

func isUnique(err error) bool {
	return isConstraint(err, sqlite3.ErrConstraintUnique)
}

func isForeignKey(err error) bool {
	return isConstraint(err, sqlite3.ErrConstraintForeignKey)
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}
