package widget

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/shared/id"
	"github.com/inthisone/dashcore/internal/shared/types"
)

// CaptureSnapshot serializes every live instance into a layout snapshot, in
// creation order. Disposed tombstones are skipped. An instance whose
// SerializeState fails keeps its geometry in the snapshot with no private
// state, so a single bad serializer never blocks a checkpoint.
func (m *Manager) CaptureSnapshot() types.LayoutSnapshot {
	m.mu.RLock()
	targets := make([]*managed, 0, len(m.order))
	for _, instanceID := range m.order {
		targets = append(targets, m.widgets[instanceID])
	}
	m.mu.RUnlock()

	snap := types.EmptySnapshot()
	for _, w := range targets {
		w.callMu.Lock()
		w.mu.Lock()
		info := copyInfo(w.info)
		w.mu.Unlock()
		if info.State == types.WidgetDisposed {
			w.callMu.Unlock()
			continue
		}

		blob, err := serializeState(w.widget)
		w.callMu.Unlock()
		if err == nil && len(blob) > 0 && !json.Valid(blob) {
			err = fmt.Errorf("serialize state: blob is not valid json")
		}
		if err != nil {
			m.metrics.IncWidgetFaults()
			m.logger.Warn("widget state capture failed",
				zap.String("instance_id", info.ID),
				zap.Error(err))
			blob = nil
		}

		snap.Widgets = append(snap.Widgets, types.SnapshotEntry{
			InstanceID:   info.ID,
			PluginID:     info.PluginID,
			Title:        info.Title,
			Geometry:     info.Geometry,
			PrivateState: json.RawMessage(blob),
		})
	}
	return snap
}

// CreateFromSnapshot revives one persisted widget. The stored instance ID is
// kept and private state is replayed through RestoreState before sources are
// attached, so capturing again yields the same entry.
func (m *Manager) CreateFromSnapshot(entry types.SnapshotEntry) (types.WidgetInstance, error) {
	manifest, ok := m.registry.Lookup(entry.PluginID)
	if !ok {
		return types.WidgetInstance{}, fmt.Errorf("%w: %s", types.ErrUnknownPlugin, entry.PluginID)
	}

	title := entry.Title
	if title == "" {
		title = manifest.DisplayName
	}
	instanceID := entry.InstanceID
	if instanceID == "" {
		instanceID = id.NewWidgetID().String()
	}
	return m.construct(manifest, instanceID, title, entry.Geometry, entry.PrivateState)
}

// RestoreSnapshot replaces the current arrangement with a saved one: live
// instances are disposed, then every entry is revived. A failing entry is
// logged and skipped, never aborting the rest. Returns the number of widgets
// revived.
func (m *Manager) RestoreSnapshot(snap types.LayoutSnapshot) int {
	for _, inst := range m.List() {
		if inst.State == types.WidgetDisposed {
			continue
		}
		if err := m.Dispose(inst.ID); err != nil {
			m.logger.Warn("restore: dispose failed",
				zap.String("instance_id", inst.ID),
				zap.Error(err))
		}
	}

	restored := 0
	for _, entry := range snap.Widgets {
		if _, err := m.CreateFromSnapshot(entry); err != nil {
			m.logger.Warn("restore: widget skipped",
				zap.String("instance_id", entry.InstanceID),
				zap.String("plugin_id", entry.PluginID),
				zap.Error(err))
			continue
		}
		restored++
	}

	m.logger.Info("layout restored",
		zap.Int("widgets", restored),
		zap.Int("entries", len(snap.Widgets)))
	return restored
}

// serializeState runs a widget's SerializeState, converting a panic into an
// error
func serializeState(w types.Widget) (blob []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			blob, err = nil, fmt.Errorf("serialize state panic: %v", r)
		}
	}()
	return w.SerializeState()
}
