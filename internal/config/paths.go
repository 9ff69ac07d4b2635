package config

import (
	"os"
	"path/filepath"
)

// DefaultStateDir resolves where durable state lives when MSGGATE_STATE_DIR
// is not set: $XDG_DATA_HOME/msggate, falling back to ~/.local/share/msggate,
// falling back to a temp directory for environments without a home.
func DefaultStateDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "msggate")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "share", "msggate")
	}
	return filepath.Join(os.TempDir(), "msggate")
}
