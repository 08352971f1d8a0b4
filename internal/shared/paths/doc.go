// Package paths resolves the daemon's on-disk locations.
//
// Configuration values may use a leading ~ for the invoking user's home
// directory; every consumer goes through Expand so the rule is applied
// exactly once. The well-known file names keep the data directory layout
// in one place:
//
//	~/.inthisone/dashcore/
//	  ├── layout.json   (workspace snapshot)
//	  └── cache.db      (durable payload cache)
//
// # Usage
//
//	dataDir, err := paths.Expand(cfg.Storage.DataDir)
//	if err != nil {
//		return err
//	}
//	if err := paths.EnsureDir(dataDir); err != nil {
//		return err
//	}
//	layoutPath := paths.DataFile(dataDir, paths.LayoutFile)
package paths
