// Package cache stores compiled programs keyed by the content hash of
// their source, so repeated runs of an unchanged script skip compilation.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrMiss indicates the requested source hash has no cached program.
var ErrMiss = errors.New("not cached")

// Cache is a SQLite-backed store of serialized programs.
type Cache struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the cache database under dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	dbPath := filepath.Join(dir, "programs.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		source_hash TEXT PRIMARY KEY,
		program     BLOB NOT NULL,
		created_at  INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Key returns the cache key for a source text.
func Key(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Get returns the serialized program cached for the given source, or
// ErrMiss.
func (c *Cache) Get(source []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var blob []byte
	err := c.db.QueryRow(
		"SELECT program FROM programs WHERE source_hash = ?", Key(source),
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	return blob, nil
}

// Put stores a serialized program for the given source, replacing any
// previous entry.
func (c *Cache) Put(source, program []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO programs (source_hash, program, created_at) VALUES (?, ?, ?)",
		Key(source), program, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Prune deletes entries older than the given age and reports how many were
// removed.
func (c *Cache) Prune(maxAge time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec(
		"DELETE FROM programs WHERE created_at < ?",
		time.Now().Add(-maxAge).Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}
