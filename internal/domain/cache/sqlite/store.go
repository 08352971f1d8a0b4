// Package sqlite provides the SQLite-backed durable mirror of the payload
// cache, so widgets can render last-known data before the first poll
// completes after a restart.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"

	"github.com/inthisone/dashcore/internal/domain/cache"
	"github.com/inthisone/dashcore/internal/shared/types"
)

const timeFormat = time.RFC3339Nano

// Store mirrors cache entries into a single SQLite table
type Store struct {
	db   *sql.DB
	path string
}

var _ cache.DurableStore = (*Store)(nil)

// NewStore opens a SQLite database at path and runs migrations.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put upserts one entry. Entries without a parsed payload are skipped; there
// is nothing useful to warm-start from.
func (s *Store) Put(ctx context.Context, e types.CacheEntry) error {
	if e.Payload == nil {
		return nil
	}
	payload, err := sonic.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %q: %w", e.SourceID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payloads (source_id, payload, hash, size, fetched_at, ttl_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			payload = excluded.payload,
			hash = excluded.hash,
			size = excluded.size,
			fetched_at = excluded.fetched_at,
			ttl_ms = excluded.ttl_ms
	`, e.SourceID, payload, e.Hash, e.Size,
		e.FetchedAt.UTC().Format(timeFormat), time.Duration(e.TTL).Milliseconds())
	if err != nil {
		return fmt.Errorf("put payload %q: %w", e.SourceID, err)
	}
	return nil
}

// Delete removes the row for sourceID, if any.
func (s *Store) Delete(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM payloads WHERE source_id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("delete payload %q: %w", sourceID, err)
	}
	return nil
}

// LoadAll reads every stored entry. Rows that fail to decode are dropped
// from the result and from the table rather than failing the warm start.
func (s *Store) LoadAll(ctx context.Context) ([]types.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT source_id, payload, hash, size, fetched_at, ttl_ms FROM payloads")
	if err != nil {
		return nil, fmt.Errorf("load payloads: %w", err)
	}
	defer rows.Close()

	var result []types.CacheEntry
	var broken []string
	for rows.Next() {
		var e types.CacheEntry
		var payload []byte
		var fetchedAt string
		var ttlMS int64
		if err := rows.Scan(&e.SourceID, &payload, &e.Hash, &e.Size, &fetchedAt, &ttlMS); err != nil {
			return nil, fmt.Errorf("scan payload: %w", err)
		}

		if err := sonic.Unmarshal(payload, &e.Payload); err != nil {
			broken = append(broken, e.SourceID)
			continue
		}
		e.FetchedAt, err = time.Parse(timeFormat, fetchedAt)
		if err != nil {
			broken = append(broken, e.SourceID)
			continue
		}
		e.TTL = types.Duration(time.Duration(ttlMS) * time.Millisecond)

		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sourceID := range broken {
		if err := s.Delete(ctx, sourceID); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Count reports the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM payloads").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count payloads: %w", err)
	}
	return count, nil
}
