package widget

import (
	"github.com/inthisone/dashcore/internal/shared/types"
)

// SourceManager is the ingest surface the lifecycle manager drives.
type SourceManager interface {
	EnsureSource(cfg types.SourceConfig) (string, error)
	Release(sourceID string)
	RefreshAll() int
}

// binder records the source declarations a widget makes while its factory or
// RestoreState runs. Declarations happen on the coordinating path, so no
// locking is needed; the manager drains the recorded set into the instance
// after construction succeeds.
type binder struct {
	sources SourceManager
	ids     []string
	cfgs    map[string]types.SourceConfig
}

func newBinder(sources SourceManager) *binder {
	return &binder{
		sources: sources,
		cfgs:    make(map[string]types.SourceConfig),
	}
}

// Bind declares one data source and returns its resolved source ID. Declaring
// the same effective source twice keeps a single ingest reference.
func (b *binder) Bind(cfg types.SourceConfig) (string, error) {
	sourceID, err := b.sources.EnsureSource(cfg)
	if err != nil {
		return "", err
	}
	if _, seen := b.cfgs[sourceID]; seen {
		b.sources.Release(sourceID)
		return sourceID, nil
	}
	b.cfgs[sourceID] = cfg
	b.ids = append(b.ids, sourceID)
	return sourceID, nil
}

// release drops every reference the binder collected. Used when construction
// fails after some sources were already ensured.
func (b *binder) release() {
	for _, sourceID := range b.ids {
		b.sources.Release(sourceID)
	}
	b.ids = nil
	b.cfgs = make(map[string]types.SourceConfig)
}

var _ types.SourceBinder = (*binder)(nil)
