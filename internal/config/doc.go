// Package config loads, normalizes, and validates cellar configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BARCODELOOKUP_KEY and CELLAR_LLM_API_KEY. The Config type centralizes every
// knob the daemon and CLI need so the data directory, worker pool sizing, and
// external provider credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
