package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/infrastructure/monitoring"
	"github.com/inthisone/dashcore/internal/shared/types"
)

// Store reads and writes the layout snapshot file
type Store struct {
	path    string
	logger  *zap.Logger
	metrics *monitoring.Metrics
	mu      sync.Mutex
}

// NewStore creates a snapshot store rooted at path
func NewStore(path string, logger *zap.Logger, metrics *monitoring.Metrics) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger, metrics: metrics}
}

// Path returns the snapshot file location
func (s *Store) Path() string {
	return s.path
}

// Save writes the snapshot atomically: temp file, fsync, rename. The stored
// envelope always carries the current schema version regardless of what the
// caller set.
func (s *Store) Save(snapshot types.LayoutSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot.Version = types.SnapshotVersion
	if snapshot.Widgets == nil {
		snapshot.Widgets = []types.SnapshotEntry{}
	}

	if err := s.flush(snapshot); err != nil {
		s.metrics.RecordSnapshotError("save")
		return err
	}

	s.metrics.IncSnapshotsSaved()
	s.logger.Debug("layout snapshot saved",
		zap.String("path", s.path),
		zap.Int("widgets", len(snapshot.Widgets)))
	return nil
}

// Load reads the snapshot from disk. A missing file is a fresh install and
// yields the empty snapshot. Older versions are migrated in place before the
// result is returned.
func (s *Store) Load() (types.LayoutSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no layout snapshot, starting empty", zap.String("path", s.path))
			return types.EmptySnapshot(), nil
		}
		s.metrics.RecordSnapshotError("load")
		return types.LayoutSnapshot{}, fmt.Errorf("%w: read snapshot %q: %v", types.ErrIOFailure, s.path, err)
	}

	version, err := probeVersion(data)
	if err != nil {
		return types.LayoutSnapshot{}, s.quarantine(data, err)
	}

	if version > types.SnapshotVersion {
		// Written by a newer build. Refuse without touching the file so a
		// downgrade never destroys a layout it cannot read.
		s.metrics.RecordSnapshotError("load")
		return types.LayoutSnapshot{}, fmt.Errorf("%w: snapshot version %d, this build reads up to %d",
			types.ErrUnsupportedVersion, version, types.SnapshotVersion)
	}

	if version < types.SnapshotVersion {
		if err := s.migrate(data, version); err != nil {
			s.metrics.RecordSnapshotError("migrate")
			return types.LayoutSnapshot{}, err
		}
		data, err = os.ReadFile(s.path)
		if err != nil {
			s.metrics.RecordSnapshotError("load")
			return types.LayoutSnapshot{}, fmt.Errorf("%w: reread migrated snapshot: %v", types.ErrIOFailure, err)
		}
	}

	var snapshot types.LayoutSnapshot
	if err := sonic.Unmarshal(data, &snapshot); err != nil {
		return types.LayoutSnapshot{}, s.quarantine(data, err)
	}
	if snapshot.Widgets == nil {
		snapshot.Widgets = []types.SnapshotEntry{}
	}

	s.metrics.IncSnapshotsRestored()
	s.logger.Info("layout snapshot loaded",
		zap.String("path", s.path),
		zap.Int("version", snapshot.Version),
		zap.Int("widgets", len(snapshot.Widgets)))
	return snapshot, nil
}

// envelope header, parsed before committing to a full decode
type versionProbe struct {
	Version int `json:"version"`
}

func probeVersion(data []byte) (int, error) {
	var probe versionProbe
	if err := sonic.Unmarshal(data, &probe); err != nil {
		return 0, err
	}
	if probe.Version <= 0 {
		return 0, fmt.Errorf("missing snapshot version")
	}
	return probe.Version, nil
}

// quarantine preserves an unreadable snapshot as .bak and reports corruption.
// The rename keeps the evidence while clearing the path for the next save.
func (s *Store) quarantine(data []byte, cause error) error {
	bak := s.path + ".bak"
	if err := os.Rename(s.path, bak); err != nil {
		s.logger.Error("quarantine snapshot failed",
			zap.String("path", s.path),
			zap.Error(err))
	} else {
		s.logger.Warn("corrupt layout snapshot quarantined",
			zap.String("path", s.path),
			zap.String("backup", bak),
			zap.Int("bytes", len(data)))
	}
	s.metrics.RecordSnapshotError("corrupt")
	return fmt.Errorf("%w: %v", types.ErrCorruptSnapshot, cause)
}

// flush writes the snapshot to a temp file, syncs it, and renames it over
// the target. Every error path removes the temp file.
func (s *Store) flush(snapshot types.LayoutSnapshot) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create snapshot directory: %v", types.ErrIOFailure, err)
	}

	data, err := sonic.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmpPath := s.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", types.ErrIOFailure, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write temp file: %v", types.ErrIOFailure, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: sync temp file: %v", types.ErrIOFailure, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %v", types.ErrIOFailure, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename snapshot: %v", types.ErrIOFailure, err)
	}
	return nil
}
