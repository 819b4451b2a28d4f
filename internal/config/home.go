package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetSymphonyHome returns the symphony home directory.
// Priority order:
//  1. SYMPHONY_HOME environment variable (if set)
//  2. Project root (detected by a .symphony-root marker or go.mod)
//  3. Current working directory (fallback)
//
// The directory is created if it doesn't exist.
func GetSymphonyHome() (string, error) {
	if home := os.Getenv("SYMPHONY_HOME"); home != "" {
		return home, nil
	}

	root, err := findProjectRoot()
	if err != nil || root == "" {
		root, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
	}

	home := filepath.Join(root, ".symphony")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create symphony home directory: %w", err)
	}
	return home, nil
}

// findProjectRoot walks up from the working directory looking for a
// .symphony-root marker or a go.mod.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	current := cwd
	for {
		if _, err := os.Stat(filepath.Join(current, ".symphony-root")); err == nil {
			return current, nil
		}
		if data, err := os.ReadFile(filepath.Join(current, "go.mod")); err == nil {
			if strings.Contains(string(data), "module ") {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", fmt.Errorf("project root not found (looking for .symphony-root or go.mod)")
}

// GetHistoryDBPath returns the absolute path to the history database:
// $SYMPHONY_HOME/history.db.
func GetHistoryDBPath() (string, error) {
	home, err := GetSymphonyHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history.db"), nil
}

// GetRunLogDir returns the run log directory, creating it if needed.
func GetRunLogDir() (string, error) {
	home, err := GetSymphonyHome()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	return dir, nil
}
