package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inthisone/dashcore/internal/shared/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorePutLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fetched := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	entry := types.CacheEntry{
		SourceID:  "src_round",
		Payload:   map[string]interface{}{"rows": []interface{}{"a", "b"}},
		Size:      42,
		FetchedAt: fetched,
		TTL:       types.Duration(30 * time.Second),
		Hash:      "deadbeef",
	}
	require.NoError(t, s.Put(ctx, entry))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, "src_round", got.SourceID)
	assert.Equal(t, "deadbeef", got.Hash)
	assert.Equal(t, int64(42), got.Size)
	assert.True(t, got.FetchedAt.Equal(fetched))
	assert.Equal(t, 30*time.Second, time.Duration(got.TTL))

	payload, ok := got.Payload.(map[string]interface{})
	require.True(t, ok)
	rows, ok := payload["rows"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, rows)
}

func TestStoreUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, types.CacheEntry{SourceID: "src_a", Payload: "first", FetchedAt: time.Now()}))
	require.NoError(t, s.Put(ctx, types.CacheEntry{SourceID: "src_a", Payload: "second", FetchedAt: time.Now()}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "second", loaded[0].Payload)
}

func TestStoreSkipsNilPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, types.CacheEntry{SourceID: "src_nil", Raw: []byte("bytes")}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, types.CacheEntry{SourceID: "src_gone", Payload: "x", FetchedAt: time.Now()}))
	require.NoError(t, s.Delete(ctx, "src_gone"))
	require.NoError(t, s.Delete(ctx, "src_never_was"))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStoreDropsUndecodableRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, types.CacheEntry{SourceID: "src_ok", Payload: "fine", FetchedAt: time.Now()}))

	// Corrupt a row behind the store's back
	_, err := s.db.Exec(`
		INSERT INTO payloads (source_id, payload, fetched_at)
		VALUES ('src_bad', X'DEADBEEF', 'not-a-time')
	`)
	require.NoError(t, err)

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "src_ok", loaded[0].SourceID)

	// The bad row is pruned, not left to fail every boot
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStorePragmas(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	assert.Equal(t, 1, s.db.Stats().MaxOpenConnections)
}

func TestStoreMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s1, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Put(context.Background(), types.CacheEntry{
		SourceID: "src_keep", Payload: "v", FetchedAt: time.Now(),
	}))
	s1.Close()

	// Reopen over the same file: migrations re-run cleanly, data survives
	s2, err := NewStore(path)
	require.NoError(t, err)
	defer s2.Close()

	var versions int
	require.NoError(t, s2.db.QueryRow("SELECT count(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 1, versions)

	loaded, err := s2.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}
