// Package session resolves named session directories under ~/.nudge. A
// session bundles one mirror database, its lock, and its logs, so separate
// accounts or test fixtures never share state.
package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.nudge.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nudge")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// MirrorDBPath returns the app-owned nudge.db path.
func MirrorDBPath(name string) string {
	return filepath.Join(Dir(name), "nudge.db")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "nudged.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
