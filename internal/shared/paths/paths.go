package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Well-known file names inside the data directory
const (
	LayoutFile  = "layout.json"
	CacheDBFile = "cache.db"
)

const dirPerm = 0755

// Expand resolves a leading ~ or ~/ against the current user's home
// directory. Paths without the prefix come back unchanged apart from
// cleaning.
func Expand(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return filepath.Clean(path), nil
}

// EnsureDir creates dir and any missing parents
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// DataFile joins a resolved data directory with one of the well-known file
// names
func DataFile(dataDir, name string) string {
	return filepath.Join(dataDir, name)
}
