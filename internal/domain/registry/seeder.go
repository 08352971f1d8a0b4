package registry

import (
	"errors"

	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/shared/types"
)

// Seeder registers the built-in plugin set at startup
type Seeder struct {
	registry *Registry
	logger   *zap.Logger
}

// NewSeeder creates a seeder over the given registry
func NewSeeder(registry *Registry, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{registry: registry, logger: logger}
}

// Seed registers each manifest in order. Individual failures are logged and
// do not stop the rest; an already-taken ID counts as shadowed, not failed.
func (s *Seeder) Seed(manifests []types.PluginManifest) int {
	var loaded int
	for _, m := range manifests {
		err := s.registry.Register(m)
		switch {
		case err == nil:
			loaded++
		case errors.Is(err, types.ErrDuplicateID):
			s.logger.Debug("built-in plugin shadowed",
				zap.String("plugin_id", m.PluginID))
		default:
			s.logger.Warn("built-in plugin rejected",
				zap.String("plugin_id", m.PluginID),
				zap.Error(err))
		}
	}
	s.logger.Info("built-in plugins seeded",
		zap.Int("loaded", loaded),
		zap.Int("offered", len(manifests)))
	return loaded
}
