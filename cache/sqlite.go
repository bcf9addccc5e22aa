package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteStore is a durable Store backed by SQLite. Each key maps to one
// row; Put is an upsert inside a single statement, so replacement is
// atomic and readers never see a half-written entry. Entries survive
// process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the documentation database at
// dir/docs.db, enabling WAL mode and running migrations.
func OpenSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cache: create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "docs.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}

	// SQLite durability and concurrency pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: migration: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS docs (
			library     TEXT    NOT NULL,
			topic       TEXT    NOT NULL DEFAULT '',
			content     TEXT    NOT NULL,
			fetched_at  INTEGER NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			confidence  TEXT    NOT NULL DEFAULT 'fresh',
			PRIMARY KEY (library, topic)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get retrieves the entry for key. Returns ok=false on miss.
func (s *SQLiteStore) Get(ctx context.Context, key Key) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT content, fetched_at, ttl_seconds, confidence
		FROM docs WHERE library = ? AND topic = ?`,
		key.Library, key.Topic)

	var (
		content    string
		fetchedAt  int64
		ttlSeconds int64
		confidence string
	)
	if err := row.Scan(&content, &fetchedAt, &ttlSeconds, &confidence); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("cache: get %q: %w", key.String(), err)
	}

	return Entry{
		Key:        key,
		Content:    content,
		FetchedAt:  time.Unix(0, fetchedAt).UTC(),
		TTL:        time.Duration(ttlSeconds) * time.Second,
		Confidence: Confidence(confidence),
	}, true, nil
}

// Put stores entry, replacing any existing row for the same key in a
// single upsert statement.
func (s *SQLiteStore) Put(ctx context.Context, entry Entry) error {
	if err := entry.Key.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO docs (library, topic, content, fetched_at, ttl_seconds, confidence)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (library, topic) DO UPDATE SET
			content     = excluded.content,
			fetched_at  = excluded.fetched_at,
			ttl_seconds = excluded.ttl_seconds,
			confidence  = excluded.confidence`,
		entry.Key.Library, entry.Key.Topic, entry.Content,
		entry.FetchedAt.UnixNano(), int64(entry.TTL/time.Second), string(entry.Confidence))
	if err != nil {
		return fmt.Errorf("cache: put %q: %w", entry.Key.String(), err)
	}
	return nil
}

// Invalidate removes the entry for key. Idempotent - no error on miss.
func (s *SQLiteStore) Invalidate(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM docs WHERE library = ? AND topic = ?`,
		key.Library, key.Topic)
	if err != nil {
		return fmt.Errorf("cache: invalidate %q: %w", key.String(), err)
	}
	return nil
}

// Keys enumerates all stored keys in (library, topic) order.
func (s *SQLiteStore) Keys(ctx context.Context) ([]Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT library, topic FROM docs ORDER BY library, topic`)
	if err != nil {
		return nil, fmt.Errorf("cache: list keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.Library, &k.Topic); err != nil {
			return nil, fmt.Errorf("cache: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache: list keys: %w", err)
	}
	return keys, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
