package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variable names.
const (
	EnvRootPath       = "YT_CH_ARCHIVER_ROOT_PATH"
	EnvAPIKey         = "YT_CH_ARCHIVER_API_KEY"
	EnvCachePath      = "YT_CH_ARCHIVER_DB_PATH"
	EnvRedisURL       = "REDIS_URL"
	EnvYtdlpPath      = "YT_CH_ARCHIVER_YTDLP_PATH"
	EnvFfprobePath    = "YT_CH_ARCHIVER_FFPROBE_PATH"
	EnvCookiesBrowser = "YT_CH_ARCHIVER_COOKIES_BROWSER"
	EnvLogLevel       = "YT_CH_ARCHIVER_LOG_LEVEL"
	EnvReportDir      = "YT_CH_ARCHIVER_REPORT_DIR"
)

// Config holds application configuration. It is built once at startup and
// passed down explicitly; nothing below main reads the environment.
type Config struct {
	RootPath       string `yaml:"root_path" env:"YT_CH_ARCHIVER_ROOT_PATH"`
	APIKey         string `yaml:"api_key" env:"YT_CH_ARCHIVER_API_KEY"`
	CachePath      string `yaml:"cache_path" env:"YT_CH_ARCHIVER_DB_PATH"`
	RedisURL       string `yaml:"redis_url" env:"REDIS_URL"`
	YtdlpPath      string `yaml:"ytdlp_path" env:"YT_CH_ARCHIVER_YTDLP_PATH"`
	FfprobePath    string `yaml:"ffprobe_path" env:"YT_CH_ARCHIVER_FFPROBE_PATH"`
	CookiesBrowser string `yaml:"cookies_browser" env:"YT_CH_ARCHIVER_COOKIES_BROWSER"`
	LogLevel       string `yaml:"log_level" env:"YT_CH_ARCHIVER_LOG_LEVEL"`
	ReportDir      string `yaml:"report_dir" env:"YT_CH_ARCHIVER_REPORT_DIR"`
}

// Load builds config from environment variables.
// If a required variable is not set, Load tries to load .env.local and .env
// from the current directory and the executable's directory first.
// YT_CH_ARCHIVER_ROOT_PATH and YT_CH_ARCHIVER_API_KEY are required.
func Load() (*Config, error) {
	if os.Getenv(EnvRootPath) == "" || os.Getenv(EnvAPIKey) == "" {
		loadEnvFiles()
	}
	c := &Config{
		RootPath:       os.Getenv(EnvRootPath),
		APIKey:         os.Getenv(EnvAPIKey),
		CachePath:      os.Getenv(EnvCachePath),
		RedisURL:       os.Getenv(EnvRedisURL),
		YtdlpPath:      os.Getenv(EnvYtdlpPath),
		FfprobePath:    os.Getenv(EnvFfprobePath),
		CookiesBrowser: os.Getenv(EnvCookiesBrowser),
		LogLevel:       os.Getenv(EnvLogLevel),
		ReportDir:      os.Getenv(EnvReportDir),
	}
	if err := c.finish(); err != nil {
		return nil, err
	}
	return c, nil
}

// finish applies defaults and validates required fields.
func (c *Config) finish() error {
	if c.RootPath == "" {
		return &ConfigurationError{Field: "root_path", Env: EnvRootPath}
	}
	if c.APIKey == "" {
		return &ConfigurationError{Field: "api_key", Env: EnvAPIKey}
	}
	if c.CachePath == "" {
		p, err := defaultCachePath()
		if err != nil {
			return err
		}
		c.CachePath = p
	}
	if c.YtdlpPath == "" {
		c.YtdlpPath = "yt-dlp"
	}
	if c.FfprobePath == "" {
		c.FfprobePath = "ffprobe"
	}
	if c.CookiesBrowser == "" {
		c.CookiesBrowser = "firefox"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ReportDir == "" {
		c.ReportDir = "."
	}
	return nil
}

// defaultCachePath returns videos.db under the per-user application data directory.
func defaultCachePath() (string, error) {
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".local", "share", "yt-ch-archiver", "videos.db"), nil
	}
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "yt-ch-archiver", "videos.db"), nil
	}
	return "", &ConfigurationError{Field: "cache_path", Env: EnvCachePath, Reason: "no home directory to derive a default from"}
}

// ConfigurationError reports a missing or unusable configuration value.
type ConfigurationError struct {
	Field  string
	Env    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("config: %s (%s): %s", e.Field, e.Env, e.Reason)
	}
	return fmt.Sprintf("config: %s is required; set the %s environment variable", e.Field, e.Env)
}
