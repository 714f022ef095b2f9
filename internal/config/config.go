package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bartekus/leafsync/internal/message"
)

// LogLevels is the accepted set of --log-level values.
var LogLevels = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

// Config holds everything a sync run needs. It is built once at the
// entry point and passed down explicitly.
type Config struct {
	Overleaf OverleafConfig `yaml:"overleaf"`
	Repo     RepoConfig     `yaml:"repo"`
	Browser  BrowserConfig  `yaml:"browser"`
	Model    ModelConfig    `yaml:"model"`
	Log      LogConfig      `yaml:"log"`
}

// OverleafConfig identifies the project to export.
type OverleafConfig struct {
	URL string `yaml:"url"`
}

// RepoConfig points at the git working tree that receives the export.
type RepoConfig struct {
	Path string `yaml:"path"`
}

// BrowserConfig controls the headless export session.
type BrowserConfig struct {
	DownloadDir     string        `yaml:"download_dir"`
	ProfileDir      string        `yaml:"profile_dir"`
	Headless        bool          `yaml:"headless"`
	NoSandbox       bool          `yaml:"no_sandbox"`
	ElementTimeout  time.Duration `yaml:"element_timeout"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

// ModelConfig holds the chat-completion endpoint used for commit messages.
type ModelConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt,omitempty"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Dir    string `yaml:"dir"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			DownloadDir:     "/tmp/",
			Headless:        true,
			ElementTimeout:  10 * time.Second,
			SettleDelay:     3 * time.Second,
			PollInterval:    500 * time.Millisecond,
			DownloadTimeout: 30 * time.Second,
		},
		Model: ModelConfig{
			Name: message.DefaultModel,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
			Dir:    "/tmp/overleaf_logs",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and the environment (a .env file in the working directory is
// loaded first if present). Later sources win. The result is not
// validated: callers apply their flag overrides first and then call
// Validate.
func Load(path string) (*Config, error) {
	// Try to load .env file (ignore errors - it's optional)
	_ = godotenv.Load(".env")

	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.Log.Level = strings.ToUpper(cfg.Log.Level)

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Overleaf.URL = getEnv("OVERLEAF_URL", c.Overleaf.URL)
	c.Repo.Path = getEnv("GIT_REPO_PATH", c.Repo.Path)

	c.Browser.DownloadDir = getEnv("TMP_ZIP_FOLDER", c.Browser.DownloadDir)
	c.Browser.ProfileDir = getEnv("BROWSER_PROFILE_DIR", c.Browser.ProfileDir)
	c.Browser.Headless = getEnvAsBool("BROWSER_HEADLESS", c.Browser.Headless)
	c.Browser.NoSandbox = getEnvAsBool("BROWSER_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.ElementTimeout = getEnvAsDuration("BROWSER_ELEMENT_TIMEOUT", c.Browser.ElementTimeout)
	c.Browser.DownloadTimeout = getEnvAsDuration("BROWSER_DOWNLOAD_TIMEOUT", c.Browser.DownloadTimeout)

	c.Model.URL = getEnv("OPENWEBUI_URL", c.Model.URL)
	c.Model.APIKey = getEnv("API_KEY", c.Model.APIKey)
	c.Model.Name = getEnv("OPENWEBUI_MODEL", c.Model.Name)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.Dir = getEnv("LOGS_FOLDER", c.Log.Dir)
}

// Validate checks the ambient settings. The project URL and working tree
// are checked by the sync run itself so that they fail as preconditions.
func (c *Config) Validate() error {
	c.Log.Level = strings.ToUpper(c.Log.Level)
	if !validLevel(c.Log.Level) {
		return fmt.Errorf("invalid log level %q (must be one of %s)", c.Log.Level, strings.Join(LogLevels, ", "))
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format %q (must be 'json' or 'text')", c.Log.Format)
	}

	if c.Log.Dir == "" {
		return fmt.Errorf("log directory is required")
	}

	if c.Browser.DownloadDir == "" {
		return fmt.Errorf("download directory is required")
	}

	for name, d := range map[string]time.Duration{
		"element_timeout":  c.Browser.ElementTimeout,
		"poll_interval":    c.Browser.PollInterval,
		"download_timeout": c.Browser.DownloadTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("browser %s must be positive, got %s", name, d)
		}
	}
	if c.Browser.SettleDelay < 0 {
		return fmt.Errorf("browser settle_delay must not be negative, got %s", c.Browser.SettleDelay)
	}

	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Model.APIKey != "" {
		cp.Model.APIKey = "********"
	}
	return &cp
}

func validLevel(level string) bool {
	for _, l := range LogLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Helper functions to get environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
