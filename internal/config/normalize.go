package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBarcodeLookup()
	c.normalizeLLM()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.DatabasePath == "" {
		if value, ok := os.LookupEnv("DATABASE_PATH"); ok {
			c.Paths.DatabasePath = strings.TrimSpace(value)
		}
	}
	if c.Paths.DatabasePath, err = expandPath(strings.TrimSpace(c.Paths.DatabasePath)); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CELLAR_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeBarcodeLookup() {
	c.BarcodeLookup.APIKey = strings.TrimSpace(c.BarcodeLookup.APIKey)
	if c.BarcodeLookup.APIKey == "" {
		if value, ok := os.LookupEnv("BARCODELOOKUP_KEY"); ok {
			c.BarcodeLookup.APIKey = strings.TrimSpace(value)
		}
	}
	c.BarcodeLookup.BaseURL = strings.TrimSpace(c.BarcodeLookup.BaseURL)
	if c.BarcodeLookup.BaseURL == "" {
		c.BarcodeLookup.BaseURL = defaultBarcodeLookupBaseURL
	}
	if c.BarcodeLookup.TimeoutSeconds == 0 {
		c.BarcodeLookup.TimeoutSeconds = defaultBarcodeLookupTimeout
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("CELLAR_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.VisionModel = strings.TrimSpace(c.LLM.VisionModel)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
