package database

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppDirName       = ".relief-route-viewer"
	SQLiteDBFileName = "runs.db"
	StyleFileName    = "style.yaml"
)

// GetAppDir returns ~/.relief-route-viewer, creating it if needed
func GetAppDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	appDir := filepath.Join(homeDir, AppDirName)
	if err := os.MkdirAll(appDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create app directory: %w", err)
	}

	return appDir, nil
}

// GetDefaultDBPath returns the default SQLite database path: ~/.relief-route-viewer/runs.db
func GetDefaultDBPath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, SQLiteDBFileName), nil
}

// GetDefaultStylePath returns ~/.relief-route-viewer/style.yaml. The file
// is optional.
func GetDefaultStylePath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, StyleFileName), nil
}
