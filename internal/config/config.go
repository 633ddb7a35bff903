// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Data     DataConfig
	Remote   RemoteConfig
	Sync     SyncConfig
	Prefetch PrefetchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds local storage locations.
type DataConfig struct {
	BasePath string // Root for the cache database, settings and page files
}

// RemoteConfig holds the archive server connection defaults.
// Values saved through the settings store take precedence once present.
type RemoteConfig struct {
	ServerURL string
	APIKey    string
	Timeout   time.Duration // HTTP client timeout (default: 30s)
	APIRPS    float64       // Outbound JSON request rate, 0 = unlimited
	PageRPS   float64       // Outbound page download rate, 0 = unlimited
}

// SyncConfig tunes deferred background work.
type SyncConfig struct {
	TagRebuildDelay time.Duration // Debounce window for tag rebuilds (default: 10s)
	JobPollInterval time.Duration // Download job poll interval (default: 5s)
}

// PrefetchConfig holds the page image pipeline settings.
type PrefetchConfig struct {
	ScreenWidth        int
	ScreenHeight       int
	CompressMultiplier float64 // Recompress when pixels exceed multiplier * screen pixels (default: 2)
	CanvasScale        float64 // Downscale target is screen * CanvasScale (default: 2)
	JPEGQuality        int     // Re-encode quality (default: 80)
	MaxConcurrent      int     // 0 = unbounded
	Ahead              int     // Pages the reader downloads past the current one (default: 5)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("lanreader", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for the local cache")
	serverURL := fs.String("server-url", "", "Archive server base URL")
	apiKey := fs.String("api-key", "", "Archive server API key")
	requestTimeout := fs.String("request-timeout", "", "HTTP request timeout (default: 30s)")
	apiRPS := fs.String("api-rps", "", "Outbound API requests per second (default: unlimited)")
	pageRPS := fs.String("page-rps", "", "Outbound page downloads per second (default: unlimited)")
	tagRebuildDelay := fs.String("tag-rebuild-delay", "", "Debounce window for tag rebuilds (default: 10s)")
	jobPollInterval := fs.String("job-poll-interval", "", "Download job poll interval (default: 5s)")
	screenWidth := fs.String("screen-width", "", "Visible screen width in pixels")
	screenHeight := fs.String("screen-height", "", "Visible screen height in pixels")
	compressMultiplier := fs.String("compress-multiplier", "", "Pixel multiple of the screen that triggers recompression")
	canvasScale := fs.String("canvas-scale", "", "Downscale canvas as a multiple of the screen")
	jpegQuality := fs.String("jpeg-quality", "", "JPEG quality for recompressed pages")
	prefetchMax := fs.String("prefetch-max-concurrent", "", "Max concurrent page downloads (default: unbounded)")
	prefetchAhead := fs.String("prefetch-ahead", "", "Pages downloaded ahead of the reader (default: 5)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Remote: RemoteConfig{
			ServerURL: getConfigValue(*serverURL, "SERVER_URL", ""),
			APIKey:    getConfigValue(*apiKey, "API_KEY", ""),
			APIRPS:    getFloatConfigValue(*apiRPS, "API_RPS", 0),
			PageRPS:   getFloatConfigValue(*pageRPS, "PAGE_RPS", 0),
		},
		Prefetch: PrefetchConfig{
			ScreenWidth:        getIntConfigValue(*screenWidth, "SCREEN_WIDTH", 1170),
			ScreenHeight:       getIntConfigValue(*screenHeight, "SCREEN_HEIGHT", 2532),
			CompressMultiplier: getFloatConfigValue(*compressMultiplier, "COMPRESS_MULTIPLIER", 2),
			CanvasScale:        getFloatConfigValue(*canvasScale, "CANVAS_SCALE", 2),
			JPEGQuality:        getIntConfigValue(*jpegQuality, "JPEG_QUALITY", 80),
			MaxConcurrent:      getIntConfigValue(*prefetchMax, "PREFETCH_MAX_CONCURRENT", 0),
			Ahead:              getIntConfigValue(*prefetchAhead, "PREFETCH_AHEAD", 5),
		},
	}

	var err error
	if cfg.Remote.Timeout, err = getDurationConfigValue(*requestTimeout, "REQUEST_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Sync.TagRebuildDelay, err = getDurationConfigValue(*tagRebuildDelay, "TAG_REBUILD_DELAY", "10s"); err != nil {
		return nil, err
	}
	if cfg.Sync.JobPollInterval, err = getDurationConfigValue(*jobPollInterval, "JOB_POLL_INTERVAL", "5s"); err != nil {
		return nil, err
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	// An empty server URL is allowed; credentials may be supplied later.
	if c.Remote.ServerURL != "" {
		u, err := url.Parse(c.Remote.ServerURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid server url: %q", c.Remote.ServerURL)
		}
	}

	if c.Prefetch.ScreenWidth <= 0 || c.Prefetch.ScreenHeight <= 0 {
		return errors.New("screen dimensions must be positive")
	}
	if c.Prefetch.JPEGQuality < 1 || c.Prefetch.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality %d out of range 1-100", c.Prefetch.JPEGQuality)
	}
	if c.Prefetch.MaxConcurrent < 0 {
		return errors.New("prefetch max concurrent cannot be negative")
	}
	if c.Prefetch.Ahead < 0 {
		return errors.New("prefetch ahead cannot be negative")
	}

	return nil
}

// DatabasePath is the sqlite cache file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.BasePath, "cache.db")
}

// SettingsPath is the key-value settings directory.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Data.BasePath, "settings")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	expanded, err := expandPath(c.Data.BasePath, filepath.Join(homeDir, ".lanreader"))
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return n
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	raw := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), raw, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
