// Package cache is the local plaintext side-store. The ledger only ever holds
// content hashes and sealed blobs, so the plaintext an agent posts or decrypts
// has to live somewhere on its own machine; this is that somewhere. Nothing
// here is authoritative and the whole file can be purged without losing
// protocol state.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// cacheSchemaVersion is the latest cache schema version.
const cacheSchemaVersion = 1

// Entry is the cached plaintext for one prayer. Either side may be empty:
// a requester caches content at post time, an answerer caches the answer it
// sent, and a reader fills in whichever side it managed to decrypt.
type Entry struct {
	PrayerID  uint64 `json:"prayer_id"`
	Content   string `json:"content,omitempty"`
	Answer    string `json:"answer,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

// Cache wraps the cache.db handle.
type Cache struct {
	db *sql.DB
}

// Open initializes the plaintext cache at baseDir/cache.db.
// The baseDir parameter lets tests use t.TempDir() instead of ~/.chorus.
func Open(baseDir string) (*Cache, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	dbPath := filepath.Join(baseDir, "cache.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Plaintext lives here; keep it owner-only (best-effort).
	_ = os.Chmod(dbPath, 0600)

	return &Cache{db: db}, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("failed to get user_version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS prayers (
		  prayer_id  INTEGER PRIMARY KEY,
		  content    TEXT,
		  answer     TEXT,
		  updated_at INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("cache migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", cacheSchemaVersion)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}

	return nil
}

// PutContent stores the plaintext content for a prayer, keeping any cached
// answer.
func (c *Cache) PutContent(ctx context.Context, prayerID uint64, content string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO prayers (prayer_id, content, answer, updated_at) VALUES (?, ?, NULL, ?)
		ON CONFLICT(prayer_id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		int64(prayerID), content, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to cache content: %w", err)
	}
	return nil
}

// PutAnswer stores the plaintext answer for a prayer, keeping any cached
// content.
func (c *Cache) PutAnswer(ctx context.Context, prayerID uint64, answer string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO prayers (prayer_id, content, answer, updated_at) VALUES (?, NULL, ?, ?)
		ON CONFLICT(prayer_id) DO UPDATE SET answer = excluded.answer, updated_at = excluded.updated_at`,
		int64(prayerID), answer, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to cache answer: %w", err)
	}
	return nil
}

// Get returns the cached entry for a prayer, or nil when nothing is cached.
// A miss is normal, not an error.
func (c *Cache) Get(ctx context.Context, prayerID uint64) (*Entry, error) {
	var e Entry
	var id int64
	var content, answer sql.NullString
	err := c.db.QueryRowContext(ctx,
		"SELECT prayer_id, content, answer, updated_at FROM prayers WHERE prayer_id = ?",
		int64(prayerID),
	).Scan(&id, &content, &answer, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	e.PrayerID = uint64(id)
	e.Content = content.String
	e.Answer = answer.String
	return &e, nil
}

// Purge drops every cached entry and reports how many were removed.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM prayers")
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged rows: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
