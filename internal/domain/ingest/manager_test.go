package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/domain/cache"
	"github.com/inthisone/dashcore/internal/events"
	"github.com/inthisone/dashcore/internal/shared/types"
)

// fakeFetcher counts calls and serves a configurable payload or error
type fakeFetcher struct {
	kind types.SourceKind

	mu      sync.Mutex
	calls   int
	fail    bool
	raw     []byte
	payload interface{}
}

func (f *fakeFetcher) Kind() types.SourceKind { return f.kind }

func (f *fakeFetcher) Fetch(ctx context.Context, cfg types.SourceConfig) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("%w: boom", types.ErrFetchFailed)
	}
	return &Result{Raw: f.raw, Payload: f.payload, MediaType: "json"}, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeFetcher) serve(raw string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw = []byte(raw)
	f.payload = payload
}

type testRig struct {
	mgr     *Manager
	bus     *events.Bus
	cache   *cache.Cache
	fetcher *fakeFetcher
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	fetcher := &fakeFetcher{kind: types.SourceRest, raw: []byte(`{"n":1}`),
		payload: map[string]interface{}{"n": float64(1)}}
	bus := events.New(zap.NewNop(), nil)

	var mgr *Manager
	c := cache.New(cache.Options{
		Subscribers: func(id string) int {
			if mgr == nil {
				return 0
			}
			return mgr.Refs(id)
		},
	})
	mgr = New(Options{
		Logger: zap.NewNop(),
		Bus:    bus,
		Cache:  c,
		Settings: Settings{
			DegradedAfter: 2,
			FetchTimeout:  5 * time.Second,
		},
		Fetchers: []Fetcher{fetcher},
	})

	t.Cleanup(func() {
		mgr.Close()
		bus.Close()
		c.Close()
	})
	return &testRig{mgr: mgr, bus: bus, cache: c, fetcher: fetcher}
}

// restDecl polls rarely so tests drive every fetch after the first
// explicitly
func restDecl(uri string) types.SourceConfig {
	return types.SourceConfig{
		Kind:         types.SourceRest,
		URI:          uri,
		PollInterval: types.Duration(time.Hour),
	}
}

func recvEvent(t *testing.T, sub *events.Subscription) events.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		require.True(t, ok, "subscription closed while waiting for event")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}

func assertNoEvent(t *testing.T, sub *events.Subscription) {
	t.Helper()
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %s on %s", ev.Type, ev.Topic)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestManagerEnsureSourceDedup(t *testing.T) {
	rig := newTestRig(t)

	id1, err := rig.mgr.EnsureSource(restDecl("https://api.example.com/a"))
	require.NoError(t, err)
	id2, err := rig.mgr.EnsureSource(restDecl("https://api.example.com/a"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "identical declarations share one poller")
	assert.Equal(t, 2, rig.mgr.Refs(id1))
	assert.Equal(t, 1, rig.mgr.Len())

	// A different interval is a different identity
	other := restDecl("https://api.example.com/a")
	other.PollInterval = types.Duration(30 * time.Minute)
	id3, err := rig.mgr.EnsureSource(other)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
	assert.Equal(t, 2, rig.mgr.Len())
}

func TestManagerDerivedIDStable(t *testing.T) {
	rig := newTestRig(t)

	id1, err := rig.mgr.EnsureSource(restDecl("https://api.example.com/stable"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id1, "src_"), "derived id %q", id1)

	rig.mgr.Release(id1)
	require.Equal(t, 0, rig.mgr.Refs(id1))

	id2, err := rig.mgr.EnsureSource(restDecl("https://api.example.com/stable"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "same declaration derives the same id across restarts")
}

func TestManagerReleaseStopsAtZero(t *testing.T) {
	rig := newTestRig(t)

	id, err := rig.mgr.EnsureSource(restDecl("https://api.example.com/r"))
	require.NoError(t, err)
	_, err = rig.mgr.EnsureSource(restDecl("https://api.example.com/r"))
	require.NoError(t, err)

	rig.mgr.Release(id)
	_, ok := rig.mgr.Status(id)
	assert.True(t, ok, "source survives while references remain")

	rig.mgr.Release(id)
	_, ok = rig.mgr.Status(id)
	assert.False(t, ok, "source gone at refcount zero")
	assert.ErrorIs(t, rig.mgr.Refresh(context.Background(), id), ErrUnknownSource)

	// Releasing an unknown id is a no-op
	rig.mgr.Release("src_nonexistent")
}

func TestManagerFirstFetchPopulatesCacheAndPublishes(t *testing.T) {
	rig := newTestRig(t)
	sub := rig.bus.Subscribe(types.TopicAll)
	defer rig.bus.Unsubscribe(sub)

	id, err := rig.mgr.EnsureSource(restDecl("https://api.example.com/data"))
	require.NoError(t, err)

	ev := recvEvent(t, sub)
	assert.Equal(t, events.TypeDataChanged, ev.Type)
	assert.Equal(t, id, ev.Topic)
	changed, ok := ev.Payload.(types.DataChanged)
	require.True(t, ok)
	assert.Equal(t, id, changed.SourceID)
	assert.False(t, changed.FetchedAt.IsZero())

	entry, ok := rig.cache.Get(id)
	require.True(t, ok, "write-through entry present")
	assert.Equal(t, map[string]interface{}{"n": float64(1)}, entry.Payload)
	assert.NotEmpty(t, entry.Hash)
	assert.Equal(t, int64(len(`{"n":1}`)), entry.Size)
}

func TestManagerUnchangedHashSkipsEvent(t *testing.T) {
	rig := newTestRig(t)
	sub := rig.bus.Subscribe(types.TopicAll)
	defer rig.bus.Unsubscribe(sub)

	id, err := rig.mgr.EnsureSource(restDecl("https://api.example.com/same"))
	require.NoError(t, err)
	first := recvEvent(t, sub)
	require.Equal(t, events.TypeDataChanged, first.Type)

	// Same bytes again: no event, entry stays served
	require.NoError(t, rig.mgr.Refresh(context.Background(), id))
	assertNoEvent(t, sub)
	_, ok := rig.cache.Get(id)
	assert.True(t, ok)

	// New bytes: event fires again
	rig.fetcher.serve(`{"n":2}`, map[string]interface{}{"n": float64(2)})
	require.NoError(t, rig.mgr.Refresh(context.Background(), id))
	ev := recvEvent(t, sub)
	assert.Equal(t, events.TypeDataChanged, ev.Type)

	entry, ok := rig.cache.Get(id)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"n": float64(2)}, entry.Payload)
}

func TestManagerDegradesAndRecovers(t *testing.T) {
	rig := newTestRig(t)
	rig.fetcher.setFail(true)
	sub := rig.bus.Subscribe(types.TopicAll)
	defer rig.bus.Unsubscribe(sub)

	id, err := rig.mgr.EnsureSource(restDecl("https://api.example.com/flaky"))
	require.NoError(t, err)

	// Immediate first fetch fails: backoff
	ev := recvEvent(t, sub)
	assert.Equal(t, events.TypeSourceHealth, ev.Type)
	health := ev.Payload.(types.SourceHealth)
	assert.Equal(t, types.SourceBackoff, health.State)
	assert.Equal(t, 1, health.Failures)
	assert.Contains(t, health.Error, "boom")

	// Second failure crosses the threshold: degraded
	err = rig.mgr.Refresh(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFetchFailed)

	ev = recvEvent(t, sub)
	require.Equal(t, events.TypeSourceHealth, ev.Type)
	health = ev.Payload.(types.SourceHealth)
	assert.Equal(t, types.SourceDegraded, health.State)
	assert.Equal(t, 2, health.Failures)

	info, ok := rig.mgr.Status(id)
	require.True(t, ok)
	assert.Equal(t, types.SourceDegraded, info.State)
	assert.Equal(t, 2, info.Failures)
	assert.Contains(t, info.LastError, "boom")

	// Further failures while degraded stay silent
	require.Error(t, rig.mgr.Refresh(context.Background(), id))
	assertNoEvent(t, sub)

	// Recovery announces active, then the fresh data
	rig.fetcher.setFail(false)
	require.NoError(t, rig.mgr.Refresh(context.Background(), id))

	ev = recvEvent(t, sub)
	require.Equal(t, events.TypeSourceHealth, ev.Type)
	health = ev.Payload.(types.SourceHealth)
	assert.Equal(t, types.SourceActive, health.State)

	ev = recvEvent(t, sub)
	assert.Equal(t, events.TypeDataChanged, ev.Type)

	info, _ = rig.mgr.Status(id)
	assert.Equal(t, types.SourceActive, info.State)
	assert.Equal(t, 0, info.Failures)
	assert.Empty(t, info.LastError)
}

func TestManagerRefreshUnknown(t *testing.T) {
	rig := newTestRig(t)
	err := rig.mgr.Refresh(context.Background(), "src_missing")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestManagerRejectsInvalidDeclarations(t *testing.T) {
	rig := newTestRig(t)

	tests := []struct {
		name string
		cfg  types.SourceConfig
	}{
		{"missing uri", types.SourceConfig{Kind: types.SourceRest, PollInterval: types.Duration(time.Minute)}},
		{"missing interval", types.SourceConfig{Kind: types.SourceRest, URI: "https://x"}},
		{"unknown kind", types.SourceConfig{Kind: "carrier_pigeon", URI: "coop", PollInterval: types.Duration(time.Minute)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rig.mgr.EnsureSource(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestManagerClampsAndDefaults(t *testing.T) {
	rig := newTestRig(t)

	cfg := restDecl("https://api.example.com/clamp")
	cfg.PollInterval = types.Duration(time.Millisecond) // below minimum
	id, err := rig.mgr.EnsureSource(cfg)
	require.NoError(t, err)

	info, ok := rig.mgr.Status(id)
	require.True(t, ok)
	assert.Equal(t, time.Second, time.Duration(info.Config.PollInterval), "clamped to the minimum")
	assert.Equal(t, 2*time.Second, time.Duration(info.Config.TTL), "ttl defaults to twice the interval")
}

func TestManagerRefreshAll(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.mgr.EnsureSource(restDecl("https://api.example.com/one"))
	require.NoError(t, err)
	_, err = rig.mgr.EnsureSource(restDecl("https://api.example.com/two"))
	require.NoError(t, err)

	// Wait out the immediate first fetches
	require.Eventually(t, func() bool { return rig.fetcher.count() >= 2 },
		2*time.Second, 10*time.Millisecond)
	before := rig.fetcher.count()

	nudged := rig.mgr.RefreshAll()
	assert.Equal(t, 2, nudged)
	require.Eventually(t, func() bool { return rig.fetcher.count() >= before+2 },
		2*time.Second, 10*time.Millisecond)
}

func TestManagerStatusesSorted(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.mgr.EnsureSource(restDecl("https://api.example.com/zz"))
	require.NoError(t, err)
	_, err = rig.mgr.EnsureSource(restDecl("https://api.example.com/aa"))
	require.NoError(t, err)

	infos := rig.mgr.Statuses()
	require.Len(t, infos, 2)
	assert.Less(t, infos[0].Config.SourceID, infos[1].Config.SourceID)
	for _, info := range infos {
		assert.Equal(t, 1, info.Refs)
	}
}

func TestManagerCloseRejectsNewSources(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.mgr.EnsureSource(restDecl("https://api.example.com/c"))
	require.NoError(t, err)

	rig.mgr.Close()
	rig.mgr.Close() // idempotent

	_, err = rig.mgr.EnsureSource(restDecl("https://api.example.com/after"))
	assert.Error(t, err)
}
