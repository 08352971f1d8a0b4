package layout

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/shared/types"
)

// migration transforms a snapshot file from one version to the next
type migration struct {
	from  int
	to    int
	apply func(raw []byte) ([]byte, error)
}

// migrations is the ordered list of snapshot migrations
var migrations = []migration{
	{from: 1, to: 2, apply: migrateV1toV2},
}

// migrate runs every step needed to bring data up to the current version.
// Before each step the current file is backed up as <path>.v<N>.bak, and the
// migrated bytes replace the file atomically, so a crash between steps loses
// nothing.
func (s *Store) migrate(data []byte, fromVersion int) error {
	current := fromVersion

	for _, m := range migrations {
		if m.from != current {
			continue
		}

		backupPath := fmt.Sprintf("%s.v%d.bak", s.path, current)
		if err := os.WriteFile(backupPath, data, 0o644); err != nil {
			return fmt.Errorf("%w: backup before migration v%d: %v", types.ErrIOFailure, current, err)
		}

		migrated, err := m.apply(data)
		if err != nil {
			return fmt.Errorf("%w: migrate snapshot v%d to v%d: %v", types.ErrCorruptSnapshot, m.from, m.to, err)
		}

		tmpPath := s.path + ".tmp"
		if err := os.WriteFile(tmpPath, migrated, 0o644); err != nil {
			return fmt.Errorf("%w: write migrated snapshot: %v", types.ErrIOFailure, err)
		}
		if err := os.Rename(tmpPath, s.path); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("%w: rename migrated snapshot: %v", types.ErrIOFailure, err)
		}

		s.logger.Info("layout snapshot migrated",
			zap.Int("from", m.from),
			zap.Int("to", m.to),
			zap.String("backup", backupPath))

		data = migrated
		current = m.to
	}

	if current != types.SnapshotVersion {
		return fmt.Errorf("%w: no migration path from version %d to %d",
			types.ErrUnsupportedVersion, fromVersion, types.SnapshotVersion)
	}
	return nil
}

// Version 1 stored dock areas as the numeric codes of the original desktop
// toolkit and had no title, floating, or visible fields.

type v1Snapshot struct {
	Version int       `json:"version"`
	Widgets []v1Entry `json:"widgets"`
}

type v1Entry struct {
	InstanceID   string          `json:"instance_id"`
	PluginID     string          `json:"plugin_id"`
	Geometry     v1Geometry      `json:"geometry"`
	PrivateState json.RawMessage `json:"private_state,omitempty"`
}

type v1Geometry struct {
	X        int `json:"x"`
	Y        int `json:"y"`
	Width    int `json:"width"`
	Height   int `json:"height"`
	DockArea int `json:"dock_area"`
}

// dock area codes used by v1 snapshots
const (
	v1DockLeft   = 1
	v1DockRight  = 2
	v1DockTop    = 4
	v1DockBottom = 8
)

func dockAreaFromCode(code int) (types.DockArea, error) {
	switch code {
	case v1DockLeft:
		return types.DockLeft, nil
	case v1DockRight:
		return types.DockRight, nil
	case v1DockTop:
		return types.DockTop, nil
	case v1DockBottom:
		return types.DockBottom, nil
	default:
		return "", fmt.Errorf("unknown dock area code %d", code)
	}
}

// migrateV1toV2 converts numeric dock areas to names and fills the fields v2
// introduced. Widgets migrate titled after their plugin, docked, and visible.
func migrateV1toV2(raw []byte) ([]byte, error) {
	var old v1Snapshot
	if err := sonic.Unmarshal(raw, &old); err != nil {
		return nil, fmt.Errorf("parse v1 snapshot: %w", err)
	}

	out := types.LayoutSnapshot{
		Version: 2,
		Widgets: make([]types.SnapshotEntry, 0, len(old.Widgets)),
	}
	for _, w := range old.Widgets {
		area, err := dockAreaFromCode(w.Geometry.DockArea)
		if err != nil {
			return nil, fmt.Errorf("widget %s: %w", w.InstanceID, err)
		}
		out.Widgets = append(out.Widgets, types.SnapshotEntry{
			InstanceID: w.InstanceID,
			PluginID:   w.PluginID,
			Title:      w.PluginID,
			Geometry: types.Geometry{
				X:        w.Geometry.X,
				Y:        w.Geometry.Y,
				Width:    w.Geometry.Width,
				Height:   w.Geometry.Height,
				DockArea: area,
				Floating: false,
				Visible:  true,
			},
			PrivateState: w.PrivateState,
		})
	}

	return sonic.MarshalIndent(out, "", "  ")
}
