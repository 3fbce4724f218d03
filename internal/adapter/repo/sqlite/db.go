// Package sqliterepo is the embedded single-file store, for running the worker
// without Postgres.
package sqliterepo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS base_states (
  player_id     TEXT PRIMARY KEY,
  payload       BLOB NOT NULL,
  digest        TEXT NOT NULL,
  size_bytes    INTEGER NOT NULL,
  updated_at_ms INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS player_bases (
  player_id            TEXT PRIMARY KEY,
  cash                 REAL NOT NULL DEFAULT 0,
  yield                REAL NOT NULL DEFAULT 0,
  alpha                REAL NOT NULL DEFAULT 0,
  tickets              REAL NOT NULL DEFAULT 0,
  mon                  REAL NOT NULL DEFAULT 0,
  faith                REAL NOT NULL DEFAULT 0,
  levels               TEXT NOT NULL DEFAULT '{}',
  mechanics            TEXT NOT NULL DEFAULT '{}',
  last_collected_at_ms INTEGER NOT NULL,
  created_at_ms        INTEGER NOT NULL,
  updated_at_ms        INTEGER NOT NULL,
  version              INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS base_events (
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  player_id      TEXT NOT NULL,
  type           TEXT NOT NULL,
  occurred_at_ms INTEGER NOT NULL,
  payload        TEXT
);
CREATE INDEX IF NOT EXISTS idx_base_events_player ON base_events (player_id, occurred_at_ms);
CREATE TABLE IF NOT EXISTS player_credentials (
  player_id     TEXT PRIMARY KEY,
  key_salt      BLOB NOT NULL,
  key_hash      BLOB NOT NULL,
  status        TEXT NOT NULL,
  created_at_ms INTEGER NOT NULL
);
`

// Open creates the file if needed and applies the schema. One connection keeps
// writers serialised, which sqlite requires anyway.
func Open(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("open sqlite: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;", "PRAGMA busy_timeout=5000;", schema} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return db, nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKeyType struct{}

var txKey = txKeyType{}

func getQuerier(ctx context.Context, db *sql.DB) querier {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return db
}

type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) TxManager {
	return TxManager{db: db}
}

func (t TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
