package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wagw.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wagw")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the UDS control socket path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// CredentialDBPath returns the whatsmeow-owned session.db path. The
// transport layer has exclusive ownership of this file; the supervisor
// only ever clears it wholesale.
func CredentialDBPath(name string) string {
	return filepath.Join(Dir(name), "session.db")
}

// RecordDBPath returns the gateway-owned wagw.db path (inbox and
// outgoing records).
func RecordDBPath(name string) string {
	return filepath.Join(Dir(name), "wagw.db")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "wagwd.log")
}

// ActivityLogPath returns the append-only activity log path.
func ActivityLogPath(name string) string {
	return filepath.Join(LogDir(name), "activity.log")
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
