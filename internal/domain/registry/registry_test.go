package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inthisone/dashcore/internal/shared/types"
)

func testFactory(types.WidgetContext) (types.Widget, error) {
	return nil, nil
}

func manifest(id string) types.PluginManifest {
	return types.PluginManifest{
		PluginID:    id,
		DisplayName: "Test " + id,
		Factory:     testFactory,
	}
}

func TestRegistryRegisterLookup(t *testing.T) {
	reg := New(nil)

	require.NoError(t, reg.Register(manifest("clock")))

	m, ok := reg.Lookup("clock")
	require.True(t, ok)
	assert.Equal(t, "clock", m.PluginID)
	assert.Equal(t, "Test clock", m.DisplayName)
	assert.NotNil(t, m.Factory)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryDuplicateID(t *testing.T) {
	reg := New(nil)

	require.NoError(t, reg.Register(manifest("clock")))

	err := reg.Register(manifest("clock"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDuplicateID)

	// The first registration stays intact
	m, ok := reg.Lookup("clock")
	require.True(t, ok)
	assert.Equal(t, "Test clock", m.DisplayName)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryInvalidManifest(t *testing.T) {
	tests := []struct {
		name string
		m    types.PluginManifest
	}{
		{
			name: "empty plugin id",
			m:    types.PluginManifest{DisplayName: "X", Factory: testFactory},
		},
		{
			name: "uppercase plugin id",
			m:    types.PluginManifest{PluginID: "Clock", DisplayName: "X", Factory: testFactory},
		},
		{
			name: "plugin id with spaces",
			m:    types.PluginManifest{PluginID: "my clock", DisplayName: "X", Factory: testFactory},
		},
		{
			name: "missing display name",
			m:    types.PluginManifest{PluginID: "clock", Factory: testFactory},
		},
		{
			name: "nil factory",
			m:    types.PluginManifest{PluginID: "clock", DisplayName: "X"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New(nil)
			err := reg.Register(tt.m)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrInvalidManifest)
			assert.Equal(t, 0, reg.Len())
		})
	}
}

func TestRegistryListOrder(t *testing.T) {
	reg := New(nil)

	ids := []string{"zeta", "alpha", "mid"}
	for _, id := range ids {
		require.NoError(t, reg.Register(manifest(id)))
	}

	list := reg.List()
	require.Len(t, list, 3)
	for i, id := range ids {
		assert.Equal(t, id, list[i].PluginID, "registration order must be preserved")
	}
}

func writeManifest(t *testing.T, dir, plugin, content string) {
	t.Helper()
	pluginDir := filepath.Join(dir, plugin)
	require.NoError(t, os.MkdirAll(pluginDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.yaml"), []byte(content), 0644))
}

func TestRegistryDiscover(t *testing.T) {
	dir := t.TempDir()

	writeManifest(t, dir, "weather", `
plugin_id: weather
display_name: Weather Panel
description: Current conditions from a REST endpoint
sources:
  - kind: rest_api
    uri: https://api.example.com/weather
    poll_interval: 5m
    parser_hint: json
state:
  unit: celsius
`)
	writeManifest(t, dir, "broken-yaml", "plugin_id: [unclosed\n")
	writeManifest(t, dir, "no-id", `
display_name: Nameless
`)
	writeManifest(t, dir, "bad-interval", `
plugin_id: bad-interval
display_name: Bad Interval
sources:
  - kind: file
    uri: /tmp/data.json
    poll_interval: soon
`)

	reg := New(nil)
	builder := func(desc ManifestFile) types.WidgetFactory { return testFactory }
	results := reg.Discover(context.Background(), dir, builder)

	require.Len(t, results, 4, "every manifest gets a result")

	byPlugin := map[string]DiscoveryResult{}
	for _, res := range results {
		byPlugin[filepath.Base(filepath.Dir(res.Path))] = res
	}

	assert.True(t, byPlugin["weather"].Registered)
	assert.Empty(t, byPlugin["weather"].Error)
	assert.Equal(t, "weather", byPlugin["weather"].PluginID)

	assert.False(t, byPlugin["broken-yaml"].Registered)
	assert.NotEmpty(t, byPlugin["broken-yaml"].Error)

	assert.False(t, byPlugin["no-id"].Registered)
	assert.Contains(t, byPlugin["no-id"].Error, "plugin_id")

	assert.False(t, byPlugin["bad-interval"].Registered)
	assert.Contains(t, byPlugin["bad-interval"].Error, "poll_interval")

	// Only the valid plugin landed in the catalog
	assert.Equal(t, 1, reg.Len())
	_, ok := reg.Lookup("weather")
	assert.True(t, ok)

	stats := reg.Stats()
	assert.Equal(t, 1, stats["discovered"])
}

func TestRegistryDiscoverMissingDir(t *testing.T) {
	reg := New(nil)
	builder := func(desc ManifestFile) types.WidgetFactory { return testFactory }

	results := reg.Discover(context.Background(), filepath.Join(t.TempDir(), "nope"), builder)
	assert.Empty(t, results)

	results = reg.Discover(context.Background(), "", builder)
	assert.Empty(t, results)
}

func TestRegistryDiscoverDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "clock-clone", `
plugin_id: clock
display_name: Impostor Clock
`)

	reg := New(nil)
	require.NoError(t, reg.Register(manifest("clock")))

	builder := func(desc ManifestFile) types.WidgetFactory { return testFactory }
	results := reg.Discover(context.Background(), dir, builder)

	require.Len(t, results, 1)
	assert.False(t, results[0].Registered)
	assert.Contains(t, results[0].Error, "already registered")

	// The built-in keeps its manifest
	m, _ := reg.Lookup("clock")
	assert.Equal(t, "Test clock", m.DisplayName)
}

func TestDeclaredSourceConversion(t *testing.T) {
	d := DeclaredSource{
		Kind:         "rest_api",
		URI:          "https://api.example.com/data",
		PollInterval: "30s",
		ParserHint:   "json",
		TTL:          "2m",
	}

	cfg, err := d.SourceConfig()
	require.NoError(t, err)
	assert.Equal(t, types.SourceRest, cfg.Kind)
	assert.Equal(t, "https://api.example.com/data", cfg.URI)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.PollInterval))
	assert.Equal(t, 2*time.Minute, time.Duration(cfg.TTL))

	_, err = DeclaredSource{Kind: "carrier_pigeon", URI: "x", PollInterval: "1s"}.SourceConfig()
	assert.Error(t, err, "unknown kinds are rejected")
}

func TestSeeder(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.Register(manifest("already-there")))

	seeder := NewSeeder(reg, nil)
	loaded := seeder.Seed([]types.PluginManifest{
		manifest("clock"),
		manifest("already-there"),                      // shadowed
		{PluginID: "busted", DisplayName: "No Factory"}, // rejected
		manifest("stats"),
	})

	assert.Equal(t, 2, loaded)
	assert.Equal(t, 3, reg.Len())

	list := reg.List()
	assert.Equal(t, "already-there", list[0].PluginID)
	assert.Equal(t, "clock", list[1].PluginID)
	assert.Equal(t, "stats", list[2].PluginID)
}
