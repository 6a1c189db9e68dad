package application

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// AppName is the application name used for directories and identification
	AppName = "gitvault"

	// EnvBackupDir overrides the default backup root directory
	EnvBackupDir = "GITVAULT_BACKUP_DIR"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	once       sync.Once
	backupRoot string
	errRoot    error
)

// DefaultBackupDir returns the default backup root directory.
// GITVAULT_BACKUP_DIR takes precedence; otherwise ~/.local/share/gitvault/backups
// is used.
func DefaultBackupDir() (string, error) {
	once.Do(lazyLoad)

	if errRoot != nil {
		return "", errRoot
	}

	return backupRoot, nil
}

func lazyLoad() {
	if dir := os.Getenv(EnvBackupDir); dir != "" {
		backupRoot = dir
		return
	}

	home, err := os.UserHomeDir()
	if err != nil {
		errRoot = fmt.Errorf("failed to determine home directory: %w", err)
		return
	}

	backupRoot = filepath.Join(home, ".local", "share", AppName, "backups")
}

// UserAgent returns the HTTP user agent string for API calls.
func UserAgent() string {
	return AppName + "/" + Version
}
