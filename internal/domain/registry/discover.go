package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/shared/types"
)

// ManifestGlob matches one plugin.yaml per plugin directory
const ManifestGlob = "*/plugin.yaml"

// ManifestFile is the on-disk shape of a third-party plugin.yaml. Unknown
// keys are ignored so newer manifests stay loadable.
type ManifestFile struct {
	PluginID    string                 `yaml:"plugin_id"`
	DisplayName string                 `yaml:"display_name"`
	Description string                 `yaml:"description"`
	Sources     []DeclaredSource       `yaml:"sources"`
	State       map[string]interface{} `yaml:"state"`
}

// DeclaredSource is a source declaration inside a plugin.yaml
type DeclaredSource struct {
	Kind         string `yaml:"kind"`
	URI          string `yaml:"uri"`
	PollInterval string `yaml:"poll_interval"`
	ParserHint   string `yaml:"parser_hint"`
	TTL          string `yaml:"ttl"`
}

// SourceConfig converts the declaration to its runtime form
func (d DeclaredSource) SourceConfig() (types.SourceConfig, error) {
	interval, err := time.ParseDuration(d.PollInterval)
	if err != nil {
		return types.SourceConfig{}, fmt.Errorf("poll_interval %q: %w", d.PollInterval, err)
	}
	cfg := types.SourceConfig{
		Kind:         types.SourceKind(d.Kind),
		URI:          d.URI,
		PollInterval: types.Duration(interval),
		ParserHint:   d.ParserHint,
	}
	if d.TTL != "" {
		ttl, err := time.ParseDuration(d.TTL)
		if err != nil {
			return types.SourceConfig{}, fmt.Errorf("ttl %q: %w", d.TTL, err)
		}
		cfg.TTL = types.Duration(ttl)
	}
	if !cfg.Valid() {
		return types.SourceConfig{}, fmt.Errorf("incomplete source declaration (kind=%q uri=%q)", d.Kind, d.URI)
	}
	return cfg, nil
}

// FactoryBuilder turns a parsed manifest descriptor into the factory that
// will drive its widgets
type FactoryBuilder func(desc ManifestFile) types.WidgetFactory

// DiscoveryResult reports the outcome for one manifest file
type DiscoveryResult struct {
	Path       string `json:"path"`
	PluginID   string `json:"plugin_id,omitempty"`
	Registered bool   `json:"registered"`
	Error      string `json:"error,omitempty"`
}

// Discover scans dir for plugin manifests matching ManifestGlob, parses each
// with the build callback supplying factories, and registers what validates.
// Results come back sorted by path, one per manifest found; a missing dir
// yields an empty result set.
func (r *Registry) Discover(ctx context.Context, dir string, build FactoryBuilder) []DiscoveryResult {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		r.logger.Warn("plugin directory not found", zap.String("dir", dir))
		return nil
	}

	var manifests []string
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		if matched, _ := doublestar.Match(ManifestGlob, filepath.ToSlash(rel)); matched {
			manifests = append(manifests, p)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("plugin discovery walk failed", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	sort.Strings(manifests)

	results := make([]DiscoveryResult, 0, len(manifests))
	for _, path := range manifests {
		results = append(results, r.discoverOne(path, build))
	}

	var registered int
	for _, res := range results {
		if res.Registered {
			registered++
		}
	}
	r.logger.Info("plugin discovery complete",
		zap.String("dir", dir),
		zap.Int("found", len(results)),
		zap.Int("registered", registered))
	return results
}

// discoverOne parses and registers a single manifest; any failure lands in
// the result instead of aborting the scan
func (r *Registry) discoverOne(path string, build FactoryBuilder) DiscoveryResult {
	result := DiscoveryResult{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var desc ManifestFile
	if err := yaml.Unmarshal(data, &desc); err != nil {
		result.Error = fmt.Errorf("%w: %v", types.ErrInvalidManifest, err).Error()
		return result
	}
	result.PluginID = desc.PluginID

	for _, src := range desc.Sources {
		if _, err := src.SourceConfig(); err != nil {
			result.Error = fmt.Errorf("%w: %v", types.ErrInvalidManifest, err).Error()
			return result
		}
	}

	manifest := types.PluginManifest{
		PluginID:    desc.PluginID,
		DisplayName: desc.DisplayName,
		Description: desc.Description,
		Factory:     build(desc),
	}
	if err := r.Register(manifest); err != nil {
		result.Error = err.Error()
		return result
	}

	r.mu.Lock()
	r.discovered++
	r.mu.Unlock()

	result.Registered = true
	return result
}
