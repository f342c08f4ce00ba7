// Package paths provides centralized path resolution for aiorch.
// This package has NO internal imports (only stdlib) to avoid import cycles.
// All functions return errors to allow callers to log appropriately.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// baseDirEnv overrides the base directory, mostly for tests and sandboxes.
const baseDirEnv = "AIORCH_HOME"

// ConfigNames are the config file names searched, in order.
var ConfigNames = []string{"aiorch.toml", "aiorch.json", "aiorch.yaml", "aiorch.yml"}

// BaseDir returns the aiorch base directory (~/.ai-orch, or $AIORCH_HOME).
func BaseDir() (string, error) {
	if dir := os.Getenv(baseDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".ai-orch"), nil
}

// DataPath returns a path within the data directory (~/.ai-orch/<subpath>).
func DataPath(subpath string) (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, subpath), nil
}

// SessionsDir returns the directory holding saved conversations.
func SessionsDir() (string, error) {
	return DataPath("sessions")
}

// ConfigPath returns the active config file path.
// Priority: ./aiorch.<ext> (current dir) > ~/.ai-orch/config.<ext>
// Returns ("", nil) if no config exists - this is a valid state, not an error.
func ConfigPath() (string, error) {
	for _, name := range ConfigNames {
		if _, err := os.Stat(name); err == nil {
			absPath, err := filepath.Abs(name)
			if err != nil {
				return "", fmt.Errorf("failed to get absolute path: %w", err)
			}
			return absPath, nil
		}
	}

	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	for _, name := range ConfigNames {
		global := filepath.Join(base, "config"+filepath.Ext(name))
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// DefaultConfigPath returns the default location for new configs (~/.ai-orch/config.toml).
func DefaultConfigPath() (string, error) {
	return DataPath("config.toml")
}

// EnvFiles returns the .env files to consult for credentials, local first.
// Missing files are included; callers skip what does not exist.
func EnvFiles() []string {
	files := []string{".env"}
	if global, err := DataPath(".env"); err == nil {
		files = append(files, global)
	}
	return files
}

// EnsureDir creates a directory if it doesn't exist.
// Uses 0750 permissions (owner: rwx, group: rx, other: none).
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// EnsureParentDir creates the parent directory of a file path if it doesn't exist.
func EnsureParentDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// ExpandTilde expands a path that starts with ~ to the user's home directory.
// Returns the path unchanged if it doesn't start with ~.
func ExpandTilde(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if len(path) == 1 {
		return home, nil
	}
	return filepath.Join(home, path[1:]), nil
}
