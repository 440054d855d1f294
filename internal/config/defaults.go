package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Defaults mirror the behavior of the deployed predictor; everything here
// can be overridden in the config file.
const (
	DefaultArtifactBaseURL = "https://raw.githubusercontent.com/teamrocket43434/jessmodel/main"

	// The secondary bar is deliberately higher than the primary's: the
	// secondary model must be very confident before it may override.
	DefaultPrimaryThreshold   = 80.0
	DefaultSecondaryThreshold = 90.0

	DefaultCacheMaxSize    = 1000
	DefaultCacheTTLSeconds = 3600

	DefaultFetchMaxAttempts = 4
	DefaultFetchBackoffMS   = 500
	DefaultCDNConcurrency   = 3
	DefaultCDNMinIntervalMS = 200

	DefaultHTTPPort = 8080
)

// DefaultConfigPath returns the default path for the jess config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "jess", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "jess")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "jess")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "jess")
		}
		return filepath.Join(home, ".config", "jess")
	}
}

// DefaultCachePath returns the default path for the model artifact cache.
// The directory is a pure cache: deleting it only triggers a re-download on
// the next startup.
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "jess", "model_cache")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "jess", "model_cache")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "jess", "model_cache")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "jess", "model_cache")
		}
		return filepath.Join(home, ".cache", "jess", "model_cache")
	}
}
