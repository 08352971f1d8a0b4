package plugins

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/inthisone/dashcore/internal/domain/registry"
	"github.com/inthisone/dashcore/internal/shared/types"
)

// Descriptor builds the factory for a discovered third-party manifest. The
// produced widgets bind every declared source at construction and seed
// their private state from the manifest's state map. Discovery validates
// declarations before this factory runs, so a bind failure here is an
// ingest-level rejection, not a manifest syntax problem.
func Descriptor(desc registry.ManifestFile) types.WidgetFactory {
	return func(wctx types.WidgetContext) (types.Widget, error) {
		w := &manifestWidget{
			wctx:    wctx,
			state:   cloneStateMap(desc.State),
			fetched: map[string]time.Time{},
		}
		for _, src := range desc.Sources {
			cfg, err := src.SourceConfig()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", types.ErrInvalidManifest, err)
			}
			sourceID, err := wctx.Sources.Bind(cfg)
			if err != nil {
				return nil, fmt.Errorf("declared source %s: %w", cfg.URI, err)
			}
			w.tracked = append(w.tracked, sourceID)
		}
		return w, nil
	}
}

// manifestWidget is the generic widget behind declarative manifests. It has
// no plugin code of its own: state is an opaque map owned by whatever shell
// panel renders it, and refreshes record which sources have delivered.
type manifestWidget struct {
	wctx types.WidgetContext

	mu      sync.Mutex
	tracked []string
	state   map[string]interface{}
	fetched map[string]time.Time
}

var _ types.Widget = (*manifestWidget)(nil)

func (w *manifestWidget) Refresh(ctx context.Context, sourceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if sourceID != "" {
		w.record(sourceID)
		return nil
	}
	for _, src := range w.tracked {
		w.record(src)
	}
	return nil
}

// record notes the latest fetch time of one source, tracking sources
// attached after construction as they first deliver. Callers hold mu.
func (w *manifestWidget) record(sourceID string) {
	entry, ok := w.wctx.Data.Lookup(sourceID)
	if !ok {
		return
	}
	if !contains(w.tracked, sourceID) {
		w.tracked = append(w.tracked, sourceID)
	}
	w.fetched[sourceID] = entry.FetchedAt
}

func (w *manifestWidget) SerializeState() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sonic.Marshal(w.state)
}

func (w *manifestWidget) RestoreState(state []byte) error {
	var saved map[string]interface{}
	if err := sonic.Unmarshal(state, &saved); err != nil {
		return fmt.Errorf("manifest state: %w", err)
	}
	if saved == nil {
		saved = map[string]interface{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = saved
	return nil
}

func (w *manifestWidget) Dispose() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fetched = map[string]time.Time{}
	return nil
}

func (w *manifestWidget) stateMap() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneStateMap(w.state)
}

func (w *manifestWidget) lastFetched(sourceID string) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	at, ok := w.fetched[sourceID]
	return at, ok
}

func cloneStateMap(state map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
