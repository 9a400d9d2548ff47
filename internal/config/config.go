// Package config loads server configuration from flags, environment
// variables, and an optional .env file, in that order of precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the full server configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Library   LibraryConfig
	Media     MediaConfig
	Transcode TranscodeConfig
	Discovery DiscoveryConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Environment string // development or production
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string
	Format string // pretty, json, or empty for auto
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LibraryConfig holds catalog and scanning settings.
type LibraryConfig struct {
	DataPath     string // database, search index, caches live under here
	WatchEnabled bool   // index new files as they land in library roots
}

// MediaConfig holds media tooling settings.
type MediaConfig struct {
	FFmpegPath  string
	FFprobePath string
	PosterWidth int
}

// TranscodeConfig holds HLS transcoding settings.
type TranscodeConfig struct {
	Workers        int
	SegmentSeconds int
}

// DiscoveryConfig holds LAN discovery settings.
type DiscoveryConfig struct {
	Enabled      bool
	InstanceName string
}

// LoadConfig parses flags, reads .env, and assembles the configuration.
func LoadConfig() (*Config, error) {
	var (
		environment     = flag.String("env", "", "Environment (development, production)")
		logLevel        = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logFormat       = flag.String("log-format", "", "Log format (pretty, json)")
		host            = flag.String("host", "", "Host address to bind to")
		port            = flag.String("port", "", "Port to listen on")
		dataPath        = flag.String("data-path", "", "Directory for database, index and caches")
		watch           = flag.String("watch", "", "Watch library roots for new files (true/false)")
		ffmpegPath      = flag.String("ffmpeg", "", "Path to the ffmpeg binary")
		ffprobePath     = flag.String("ffprobe", "", "Path to the ffprobe binary")
		posterWidth     = flag.String("poster-width", "", "Poster capture width in pixels")
		workers         = flag.String("transcode-workers", "", "Number of transcode workers")
		discovery       = flag.String("discovery", "", "Announce the server over mDNS (true/false)")
		instanceName    = flag.String("instance-name", "", "Name announced over mDNS")
		readTimeout     = flag.String("read-timeout", "", "HTTP read timeout (e.g. 30s)")
		writeTimeout    = flag.String("write-timeout", "", "HTTP write timeout (e.g. 0 for streaming)")
		shutdownTimeout = flag.String("shutdown-timeout", "", "Graceful shutdown timeout")
	)
	flag.Parse()

	loadEnvFile(".env")

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*environment, "HOMEFLIX_ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "HOMEFLIX_LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "HOMEFLIX_LOG_FORMAT", ""),
		},
		Server: ServerConfig{
			Host: getConfigValue(*host, "HOMEFLIX_HOST", "0.0.0.0"),
			Port: getConfigValue(*port, "HOMEFLIX_PORT", "8080"),
		},
		Library: LibraryConfig{
			DataPath:     expandPath(getConfigValue(*dataPath, "HOMEFLIX_DATA_PATH", "./data")),
			WatchEnabled: getBoolConfigValue(*watch, "HOMEFLIX_WATCH", true),
		},
		Media: MediaConfig{
			FFmpegPath:  getConfigValue(*ffmpegPath, "HOMEFLIX_FFMPEG", "ffmpeg"),
			FFprobePath: getConfigValue(*ffprobePath, "HOMEFLIX_FFPROBE", "ffprobe"),
			PosterWidth: getIntConfigValue(*posterWidth, "HOMEFLIX_POSTER_WIDTH", 600),
		},
		Transcode: TranscodeConfig{
			Workers:        getIntConfigValue(*workers, "HOMEFLIX_TRANSCODE_WORKERS", 2),
			SegmentSeconds: getIntConfigValue("", "HOMEFLIX_SEGMENT_SECONDS", 10),
		},
		Discovery: DiscoveryConfig{
			Enabled:      getBoolConfigValue(*discovery, "HOMEFLIX_DISCOVERY", true),
			InstanceName: getConfigValue(*instanceName, "HOMEFLIX_INSTANCE_NAME", "HomeFlix"),
		},
	}

	var err error
	// Write timeout defaults to 0 so long-lived streaming responses are not
	// cut off mid-transfer.
	cfg.Server.ReadTimeout, err = parseDurationConfig(*readTimeout, "HOMEFLIX_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Server.WriteTimeout, err = parseDurationConfig(*writeTimeout, "HOMEFLIX_WRITE_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	cfg.Server.ShutdownTimeout, err = parseDurationConfig(*shutdownTimeout, "HOMEFLIX_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment %q (want development or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level %q", c.Logger.Level)
	}

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid port %q: %w", c.Server.Port, err)
	}

	if c.Transcode.Workers < 1 {
		return fmt.Errorf("transcode workers must be at least 1, got %d", c.Transcode.Workers)
	}

	if c.Media.PosterWidth < 2 {
		return fmt.Errorf("poster width must be at least 2, got %d", c.Media.PosterWidth)
	}

	return nil
}

// PosterCachePath is where captured poster frames are stored.
func (c *Config) PosterCachePath() string {
	return filepath.Join(c.Library.DataPath, "cache", "posters")
}

// HLSCachePath is where transcode job output directories live.
func (c *Config) HLSCachePath() string {
	return filepath.Join(c.Library.DataPath, "cache", "hls")
}

// SearchIndexPath is where the bleve index lives.
func (c *Config) SearchIndexPath() string {
	return filepath.Join(c.Library.DataPath, "search.bleve")
}

// DatabasePath is the sqlite database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Library.DataPath, "homeflix.db")
}

// getConfigValue returns the first non-empty of flag value, env var, default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationConfig(flagValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue, nil
	}
	if raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", envKey, err)
	}
	return d, nil
}

// loadEnvFile reads KEY=VALUE pairs into the environment. Existing variables
// win over file entries. Missing file is not an error.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// expandPath resolves ~ and makes the path absolute and clean.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
