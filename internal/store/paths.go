package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/lecternhq/lectern/internal/pathutil"
)

// ResolveDataPath resolves the configured data root.
// If empty, it falls back to ~/.lectern/data.
func ResolveDataPath(dataPath string) (string, error) {
	if trimmed := strings.TrimSpace(dataPath); trimmed != "" {
		return pathutil.Expand(trimmed)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".lectern", "data"), nil
}

// GetSessionsDir returns the sessions directory under the data root.
func GetSessionsDir(dataPath string) (string, error) {
	base, err := ResolveDataPath(dataPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "sessions"), nil
}

// GetVectorsDir returns the chromem database directory under the data root.
func GetVectorsDir(dataPath string) (string, error) {
	base, err := ResolveDataPath(dataPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "vectors"), nil
}

// GetLockPath returns the lock file path under the data root.
func GetLockPath(dataPath string) (string, error) {
	base, err := ResolveDataPath(dataPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "store.lock"), nil
}
