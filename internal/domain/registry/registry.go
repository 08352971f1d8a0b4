package registry

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/shared/types"
	"github.com/inthisone/dashcore/internal/shared/utils"
)

// Registry is the thread-safe plugin catalog
type Registry struct {
	logger *zap.Logger

	mu         sync.RWMutex
	manifests  map[string]types.PluginManifest
	order      []string
	discovered int
}

// New creates an empty registry
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:    logger,
		manifests: make(map[string]types.PluginManifest),
	}
}

// Register adds a plugin manifest. The manifest must carry a well-formed
// plugin ID, a display name and a factory; IDs are first-come-wins.
func (r *Registry) Register(manifest types.PluginManifest) error {
	if err := validate(manifest); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.manifests[manifest.PluginID]; exists {
		return fmt.Errorf("%w: %s", types.ErrDuplicateID, manifest.PluginID)
	}
	r.manifests[manifest.PluginID] = manifest
	r.order = append(r.order, manifest.PluginID)

	r.logger.Info("plugin registered",
		zap.String("plugin_id", manifest.PluginID),
		zap.String("display_name", manifest.DisplayName))
	return nil
}

// Lookup retrieves a manifest by plugin ID
func (r *Registry) Lookup(pluginID string) (types.PluginManifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manifests[pluginID]
	return m, ok
}

// List returns all manifests in registration order
func (r *Registry) List() []types.PluginManifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.PluginManifest, 0, len(r.order))
	for _, pluginID := range r.order {
		out = append(out, r.manifests[pluginID])
	}
	return out
}

// Len returns the number of registered plugins
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.manifests)
}

// Stats returns registry statistics
func (r *Registry) Stats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]interface{}{
		"total_plugins": len(r.manifests),
		"discovered":    r.discovered,
		"builtin":       len(r.manifests) - r.discovered,
	}
}

func validate(m types.PluginManifest) error {
	if err := utils.ValidatePluginID(m.PluginID); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidManifest, err)
	}
	if err := utils.ValidateName(m.DisplayName, "display_name"); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidManifest, err)
	}
	if err := utils.ValidateDescription(m.Description, "description", false); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidManifest, err)
	}
	if m.Factory == nil {
		return fmt.Errorf("%w: factory is required", types.ErrInvalidManifest)
	}
	return nil
}
