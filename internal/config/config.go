package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// BarcodeLookup contains configuration for the barcode catalog API.
type BarcodeLookup struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// LLM contains the inference provider settings used by the label reader.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	VisionModel    string `toml:"vision_model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workers contains configuration for the background job pool.
type Workers struct {
	Concurrency       int `toml:"concurrency"`
	QueueSize         int `toml:"queue_size"`
	StaleTaskMinutes  int `toml:"stale_task_minutes"`
	SweepIntervalSecs int `toml:"sweep_interval_seconds"`
	MaxImageBytes     int `toml:"max_image_bytes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for cellar.
//
// Configuration sections by subsystem:
//   - Paths: data directory, database file, and API bind address
//   - BarcodeLookup: barcode catalog credentials used by enrichment
//   - LLM: vision and summarization provider used by label reading
//   - Workers: background pool sizing and stale task handling
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	BarcodeLookup BarcodeLookup `toml:"barcode_lookup"`
	LLM           LLM           `toml:"llm"`
	Workers       Workers       `toml:"workers"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cellar.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if dbDir := filepath.Dir(c.Paths.DatabasePath); c.Paths.DatabasePath != "" && dbDir != "" {
		dirs = append(dirs, dbDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabaseFile returns the SQLite database location.
func (c *Config) DatabaseFile() string {
	if strings.TrimSpace(c.Paths.DatabasePath) != "" {
		return c.Paths.DatabasePath
	}
	return filepath.Join(c.Paths.DataDir, "cellar.db")
}

// LockFile returns the daemon single-instance lock location.
func (c *Config) LockFile() string {
	return filepath.Join(c.Paths.DataDir, "cellard.lock")
}

// LogFile returns the daemon log file location.
func (c *Config) LogFile() string {
	return filepath.Join(c.Paths.LogDir, "cellar.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved inference provider settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// TextLLM returns the settings for text-only completions (label reviews).
func (c *Config) TextLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

// VisionLLM returns the settings for label image analysis.
// Falls back to the text model when no vision model is configured.
func (c *Config) VisionLLM() LLMConfig {
	cfg := c.TextLLM()
	if model := strings.TrimSpace(c.LLM.VisionModel); model != "" {
		cfg.Model = model
	}
	return cfg
}
