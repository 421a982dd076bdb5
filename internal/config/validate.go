package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
)

// Validate ensures the configuration is usable. Provider credentials are
// optional: without them the corresponding worker logs and skips its work.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateProviders() error {
	for key, raw := range map[string]string{
		"barcode_lookup.base_url": c.BarcodeLookup.BaseURL,
		"llm.base_url":            c.LLM.BaseURL,
	} {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	return ensurePositiveMap(map[string]int{
		"barcode_lookup.timeout_seconds": c.BarcodeLookup.TimeoutSeconds,
		"llm.timeout_seconds":            c.LLM.TimeoutSeconds,
	})
}

func (c *Config) validateWorkers() error {
	if err := ensurePositiveMap(map[string]int{
		"workers.concurrency":            c.Workers.Concurrency,
		"workers.queue_size":             c.Workers.QueueSize,
		"workers.max_image_bytes":        c.Workers.MaxImageBytes,
		"workers.sweep_interval_seconds": c.Workers.SweepIntervalSecs,
	}); err != nil {
		return err
	}
	if c.Workers.StaleTaskMinutes < 0 {
		return errors.New("workers.stale_task_minutes must be zero (disabled) or positive")
	}
	if c.BarcodeLookup.CacheTTLMinutes < 0 {
		return errors.New("barcode_lookup.cache_ttl_minutes must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
