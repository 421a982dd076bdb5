package config

const (
	defaultConfigPath            = "~/.config/cellar/config.toml"
	defaultDataDir               = "~/.local/share/cellar"
	defaultLogDir                = "~/.local/share/cellar/logs"
	defaultAPIBind               = "127.0.0.1:7488"
	defaultBarcodeLookupBaseURL  = "https://api.barcodelookup.com/v3/products"
	defaultBarcodeLookupTimeout  = 10
	defaultBarcodeLookupCacheTTL = 60
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultLLMTitle              = "Cellar Label Reader"
	defaultLLMTimeoutSeconds     = 60
	defaultWorkerConcurrency     = 2
	defaultWorkerQueueSize       = 64
	defaultStaleTaskMinutes      = 30
	defaultSweepIntervalSeconds  = 300
	defaultMaxImageBytes         = 8 << 20
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		BarcodeLookup: BarcodeLookup{
			BaseURL:         defaultBarcodeLookupBaseURL,
			TimeoutSeconds:  defaultBarcodeLookupTimeout,
			CacheTTLMinutes: defaultBarcodeLookupCacheTTL,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Workers: Workers{
			Concurrency:       defaultWorkerConcurrency,
			QueueSize:         defaultWorkerQueueSize,
			StaleTaskMinutes:  defaultStaleTaskMinutes,
			SweepIntervalSecs: defaultSweepIntervalSeconds,
			MaxImageBytes:     defaultMaxImageBytes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
