package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "textexpander"

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/textexpander/
//   - Linux:   $XDG_DATA_HOME/textexpander/ or ~/.local/share/textexpander/
//   - Windows: %APPDATA%\textexpander\
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", appName)
	case "linux":
		return xdgDir("XDG_DATA_HOME", ".local", "share")
	case "windows":
		return windowsDir("APPDATA")
	default:
		return filepath.Join(homeDir(), "."+appName)
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/textexpander/
//   - Linux:   $XDG_CONFIG_HOME/textexpander/ or ~/.config/textexpander/
//   - Windows: %APPDATA%\textexpander\
func PlatformConfigDir() string {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	return PlatformDataDir()
}

// PlatformLogDir returns the platform-specific log directory.
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Logs", appName)
	case "windows":
		return filepath.Join(windowsDir("LOCALAPPDATA"), "logs")
	default:
		return filepath.Join(PlatformDataDir(), "logs")
	}
}

func homeDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return home
}

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(append(append([]string{homeDir()}, fallback...), appName)...)
}

func windowsDir(env string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(homeDir(), "AppData", "Roaming", appName)
}

// configNames are probed in order in each search directory.
var configNames = []string{"config.toml", "config.json", "config.yaml", "config.yml"}

// FindConfigFile looks for a config file in the working directory and then
// the platform config directory. It returns "" when there is none.
func FindConfigFile() string {
	for _, dir := range []string{".", PlatformConfigDir()} {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
