package layout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/shared/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.json")
	return NewStore(path, zap.NewNop(), nil)
}

func sampleSnapshot() types.LayoutSnapshot {
	return types.LayoutSnapshot{
		Version: types.SnapshotVersion,
		Widgets: []types.SnapshotEntry{
			{
				InstanceID: "wgt_11111111",
				PluginID:   "clock",
				Title:      "Clock",
				Geometry: types.Geometry{
					X: 0, Y: 0, Width: 220, Height: 120,
					DockArea: types.DockRight,
					Visible:  true,
				},
				PrivateState: json.RawMessage(`{"timezones":["UTC","Europe/Oslo"]}`),
			},
			{
				InstanceID: "wgt_22222222",
				PluginID:   "rest-table",
				Title:      "Orders",
				Geometry: types.Geometry{
					X: 10, Y: 40, Width: 480, Height: 320,
					DockArea: types.DockLeft,
					Floating: true,
					Visible:  true,
				},
			},
		},
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(sampleSnapshot()))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotVersion, loaded.Version)
	require.Len(t, loaded.Widgets, 2)
	assert.Equal(t, "wgt_11111111", loaded.Widgets[0].InstanceID)
	assert.Equal(t, types.DockRight, loaded.Widgets[0].Geometry.DockArea)
	assert.JSONEq(t, `{"timezones":["UTC","Europe/Oslo"]}`, string(loaded.Widgets[0].PrivateState))
	assert.True(t, loaded.Widgets[1].Geometry.Floating)
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, types.EmptySnapshot(), loaded)

	// A fresh-install load does not create the file
	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoreLoadCorruptQuarantines(t *testing.T) {
	store := newTestStore(t)
	garbage := []byte("{this is not json")
	require.NoError(t, os.WriteFile(store.Path(), garbage, 0o644))

	_, err := store.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCorruptSnapshot)

	// Original bytes preserved as .bak, path cleared for the next save
	bak, readErr := os.ReadFile(store.Path() + ".bak")
	require.NoError(t, readErr)
	assert.Equal(t, garbage, bak)
	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoreLoadFutureVersionFailsClosed(t *testing.T) {
	store := newTestStore(t)
	future := []byte(`{"version": 99, "widgets": []}`)
	require.NoError(t, os.WriteFile(store.Path(), future, 0o644))

	_, err := store.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnsupportedVersion)

	// File untouched: no quarantine, no rewrite
	data, readErr := os.ReadFile(store.Path())
	require.NoError(t, readErr)
	assert.Equal(t, future, data)
	_, statErr := os.Stat(store.Path() + ".bak")
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoreLoadMissingVersion(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"widgets": []}`), 0o644))

	_, err := store.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCorruptSnapshot)
}

func TestStoreMigratesV1(t *testing.T) {
	store := newTestStore(t)
	v1 := []byte(`{
		"version": 1,
		"widgets": [
			{"instance_id": "wgt_aaaa0001", "plugin_id": "clock",
			 "geometry": {"x": 0, "y": 0, "width": 200, "height": 100, "dock_area": 1}},
			{"instance_id": "wgt_aaaa0002", "plugin_id": "stats",
			 "geometry": {"x": 5, "y": 5, "width": 300, "height": 200, "dock_area": 2},
			 "private_state": {"series": [1, 2, 3]}},
			{"instance_id": "wgt_aaaa0003", "plugin_id": "file-viewer",
			 "geometry": {"x": 0, "y": 0, "width": 400, "height": 150, "dock_area": 4}},
			{"instance_id": "wgt_aaaa0004", "plugin_id": "pdf-viewer",
			 "geometry": {"x": 0, "y": 0, "width": 400, "height": 600, "dock_area": 8}}
		]
	}`)
	require.NoError(t, os.WriteFile(store.Path(), v1, 0o644))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Version)
	require.Len(t, loaded.Widgets, 4)

	areas := []types.DockArea{}
	for _, w := range loaded.Widgets {
		areas = append(areas, w.Geometry.DockArea)
		assert.False(t, w.Geometry.Floating)
		assert.True(t, w.Geometry.Visible)
		assert.Equal(t, w.PluginID, w.Title)
	}
	assert.Equal(t, []types.DockArea{types.DockLeft, types.DockRight, types.DockTop, types.DockBottom}, areas)
	assert.JSONEq(t, `{"series":[1,2,3]}`, string(loaded.Widgets[1].PrivateState))

	// Original preserved beside the migrated file
	bak, readErr := os.ReadFile(store.Path() + ".v1.bak")
	require.NoError(t, readErr)
	assert.Equal(t, v1, bak)

	// File on disk was rewritten at the current version
	data, readErr := os.ReadFile(store.Path())
	require.NoError(t, readErr)
	version, probeErr := probeVersion(data)
	require.NoError(t, probeErr)
	assert.Equal(t, types.SnapshotVersion, version)
}

func TestStoreMigrateRejectsUnknownDockCode(t *testing.T) {
	store := newTestStore(t)
	v1 := []byte(`{
		"version": 1,
		"widgets": [
			{"instance_id": "wgt_bad00001", "plugin_id": "clock",
			 "geometry": {"x": 0, "y": 0, "width": 200, "height": 100, "dock_area": 3}}
		]
	}`)
	require.NoError(t, os.WriteFile(store.Path(), v1, 0o644))

	_, err := store.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCorruptSnapshot)
	assert.Contains(t, err.Error(), "dock area code 3")

	// Backup written before the failed step, input left in place
	_, statErr := os.Stat(store.Path() + ".v1.bak")
	assert.NoError(t, statErr)
	data, readErr := os.ReadFile(store.Path())
	require.NoError(t, readErr)
	assert.Equal(t, v1, data)
}

func TestStoreSaveReplacesPrevious(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(sampleSnapshot()))

	second := types.LayoutSnapshot{
		Widgets: []types.SnapshotEntry{
			{InstanceID: "wgt_33333333", PluginID: "scrape-panel", Title: "Headlines",
				Geometry: types.Geometry{Width: 300, Height: 200, DockArea: types.DockTop, Visible: true}},
		},
	}
	require.NoError(t, store.Save(second))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Widgets, 1)
	assert.Equal(t, "wgt_33333333", loaded.Widgets[0].InstanceID)

	// No temp file left behind
	_, statErr := os.Stat(store.Path() + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoreSaveNormalizes(t *testing.T) {
	store := newTestStore(t)

	// Nil widgets and a stale version are both corrected on save
	require.NoError(t, store.Save(types.LayoutSnapshot{Version: 1}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotVersion, loaded.Version)
	assert.NotNil(t, loaded.Widgets)
	assert.Empty(t, loaded.Widgets)
}

func TestDockAreaFromCode(t *testing.T) {
	tests := []struct {
		code int
		want types.DockArea
		ok   bool
	}{
		{1, types.DockLeft, true},
		{2, types.DockRight, true},
		{4, types.DockTop, true},
		{8, types.DockBottom, true},
		{0, "", false},
		{16, "", false},
	}

	for _, tt := range tests {
		area, err := dockAreaFromCode(tt.code)
		if tt.ok {
			assert.NoError(t, err)
			assert.Equal(t, tt.want, area)
		} else {
			assert.Error(t, err)
		}
	}
}
