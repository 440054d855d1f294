package config

import (
	"os"

	"github.com/vagangabrain/Optimised-jess/internal/envvar"
	"github.com/vagangabrain/Optimised-jess/internal/xfs"
)

// Config holds the main configuration for the prediction pipeline.
type Config struct {
	Version    string           `json:"version"              yaml:"version"`
	Storage    StorageConfig    `json:"storage,omitempty"    yaml:"storage,omitempty"`
	Artifacts  ArtifactsConfig  `json:"artifacts,omitempty"  yaml:"artifacts,omitempty"`
	Prediction PredictionConfig `json:"prediction,omitempty" yaml:"prediction,omitempty"`
	Cache      CacheConfig      `json:"cache,omitempty"      yaml:"cache,omitempty"`
	Fetch      FetchConfig      `json:"fetch,omitempty"      yaml:"fetch,omitempty"`
	Server     ServerConfig     `json:"server,omitempty"     yaml:"server,omitempty"`
}

// StorageConfig holds the local artifact cache location.
type StorageConfig struct {
	CacheDir string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`
}

// ArtifactsConfig points at the remote repository holding the model files.
type ArtifactsConfig struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Token   string `json:"token,omitempty"    yaml:"token,omitempty"`
}

// PredictionConfig holds the cascade acceptance thresholds, in percent.
type PredictionConfig struct {
	PrimaryThreshold   float64 `json:"primary_threshold,omitempty"   yaml:"primary_threshold,omitempty"`
	SecondaryThreshold float64 `json:"secondary_threshold,omitempty" yaml:"secondary_threshold,omitempty"`
}

// CacheConfig bounds the in-memory result cache.
type CacheConfig struct {
	MaxSize    int `json:"max_size,omitempty"    yaml:"max_size,omitempty"`
	TTLSeconds int `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
}

// FetchConfig tunes image fetch retries and the flaky-CDN gate.
type FetchConfig struct {
	MaxAttempts      int `json:"max_attempts,omitempty"        yaml:"max_attempts,omitempty"`
	BackoffMS        int `json:"backoff_ms,omitempty"          yaml:"backoff_ms,omitempty"`
	CDNConcurrency   int `json:"cdn_concurrency,omitempty"     yaml:"cdn_concurrency,omitempty"`
	CDNMinIntervalMS int `json:"cdn_min_interval_ms,omitempty" yaml:"cdn_min_interval_ms,omitempty"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	HTTPPort int `json:"http_port,omitempty" yaml:"http_port,omitempty"`
}

// Normalize fills unset fields with their defaults so partial config files
// keep working.
func (c *Config) Normalize() {
	if c.Artifacts.BaseURL == "" {
		c.Artifacts.BaseURL = DefaultArtifactBaseURL
	}
	if c.Prediction.PrimaryThreshold == 0 {
		c.Prediction.PrimaryThreshold = DefaultPrimaryThreshold
	}
	if c.Prediction.SecondaryThreshold == 0 {
		c.Prediction.SecondaryThreshold = DefaultSecondaryThreshold
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = DefaultCacheMaxSize
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = DefaultCacheTTLSeconds
	}
	if c.Fetch.MaxAttempts == 0 {
		c.Fetch.MaxAttempts = DefaultFetchMaxAttempts
	}
	if c.Fetch.BackoffMS == 0 {
		c.Fetch.BackoffMS = DefaultFetchBackoffMS
	}
	if c.Fetch.CDNConcurrency == 0 {
		c.Fetch.CDNConcurrency = DefaultCDNConcurrency
	}
	if c.Fetch.CDNMinIntervalMS == 0 {
		c.Fetch.CDNMinIntervalMS = DefaultCDNMinIntervalMS
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = DefaultHTTPPort
	}
}

// ResolveCacheDir returns the artifact cache directory.
// Precedence:
// 1. JESS_CACHE_DIR environment variable.
// 2. CacheDir field in the config.
// 3. Default cache path.
func ResolveCacheDir(cfg *Config) string {
	if p := os.Getenv(envvar.JessCacheDir); p != "" {
		return xfs.ExpandTilde(p)
	}
	if cfg.Storage.CacheDir != "" {
		return xfs.ExpandTilde(cfg.Storage.CacheDir)
	}
	return xfs.ExpandTilde(DefaultCachePath())
}

// ResolveToken returns the artifact download token, preferring the
// environment so the token can stay out of the config file.
func ResolveToken(cfg *Config) string {
	if t := os.Getenv(envvar.JessGitHubToken); t != "" {
		return t
	}
	return cfg.Artifacts.Token
}
