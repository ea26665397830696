package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetConfigDir returns the XDG config directory for gridtask.
func GetConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "gridtask")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "gridtask"
	}
	return filepath.Join(home, ".config", "gridtask")
}

// GetDataDir returns the XDG data directory for gridtask.
func GetDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "gridtask")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "gridtask"
	}
	return filepath.Join(home, ".local", "share", "gridtask")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
