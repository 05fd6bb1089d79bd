// Package store provides the optional local cache of reconstructed
// message bodies.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// BodyCache persists reconstructed message bodies keyed by folder and
// UID so repeated lookups of the same message skip the server
// round-trip.
type BodyCache struct {
	db *sqlx.DB
}

// migration is one schema step, applied in version order.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY
			);
			CREATE TABLE IF NOT EXISTS bodies (
				folder     TEXT    NOT NULL,
				uid        INTEGER NOT NULL,
				body       TEXT    NOT NULL,
				fetched_at TEXT    NOT NULL,
				PRIMARY KEY (folder, uid)
			);
			INSERT INTO schema_version (version) VALUES (1);
		`,
	},
}

// Open opens (or creates) the cache database at dbPath, enables WAL
// mode, and runs any pending schema migrations.
func Open(dbPath string) (*BodyCache, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	c := &BodyCache{db: db}
	if err := c.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return c, nil
}

// Close closes the underlying database connection.
func (c *BodyCache) Close() error {
	return c.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (c *BodyCache) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := c.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = c.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := c.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Put stores (or replaces) the body for one message.
func (c *BodyCache) Put(ctx context.Context, folder string, uid uint32, body string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO bodies (folder, uid, body, fetched_at)
		 VALUES (?, ?, ?, ?)`,
		folder, uid, body, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("caching body %d@%s: %w", uid, folder, err)
	}
	return nil
}

// Get returns the cached body for one message and whether it was
// present.
func (c *BodyCache) Get(ctx context.Context, folder string, uid uint32) (string, bool, error) {
	var body string
	err := c.db.GetContext(ctx, &body,
		"SELECT body FROM bodies WHERE folder = ? AND uid = ?",
		folder, uid,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cached body %d@%s: %w", uid, folder, err)
	}
	return body, true, nil
}
