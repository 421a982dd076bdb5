package testsupport

import (
	"path/filepath"
	"testing"

	"cellar/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Provider credentials are cleared so tests never reach real services unless
// an option sets them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.BarcodeLookup.APIKey = ""
	cfgVal.LLM.APIKey = ""
	cfgVal.Workers.Concurrency = 2
	cfgVal.Workers.QueueSize = 16

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBarcodeLookup points the barcode provider at baseURL with the given key.
func WithBarcodeLookup(baseURL, key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.BarcodeLookup.BaseURL = baseURL
		b.cfg.BarcodeLookup.APIKey = key
	}
}

// WithLLM points the inference provider at baseURL with the given key.
func WithLLM(baseURL, key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = baseURL
		b.cfg.LLM.APIKey = key
		b.cfg.LLM.TimeoutSeconds = 5
	}
}

// WithWorkers overrides the background pool sizing.
func WithWorkers(concurrency, queueSize int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.Concurrency = concurrency
		b.cfg.Workers.QueueSize = queueSize
	}
}

// WithAPIToken requires bearer authentication on the daemon API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
