package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	osWindows = "windows"
	osDarwin  = "darwin"
)

// GetConfigDir returns the platform-specific configuration directory for spindle.
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case osWindows:
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "spindle"), nil
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming", "spindle"), nil
	case osDarwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Preferences", "spindle"), nil
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "spindle"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "spindle"), nil
	}
}
