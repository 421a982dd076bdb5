package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"cellar/internal/config"
	"cellar/internal/daemon"
	"cellar/internal/logging"
	"cellar/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the cellar daemon and blocks until the context is cancelled or
// the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogFile()},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logProviderSnapshot(logger, cfg)

	pidPath := PIDFile(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open cellar store", logging.Error(err))
		return err
	}
	defer st.Close()

	d, err := daemon.New(cfg, st, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			"check that no other cellar daemon holds the lock and api_bind is free",
			logging.Error(err),
		)
		_ = d.Close()
		return err
	}

	logger.Info("cellar daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("api_address", d.APIAddress()),
		logging.String("database_path", cfg.DatabaseFile()),
	)

	<-signalCtx.Done()
	logger.Info("cellar daemon shutting down")
	return d.Close()
}

// PIDFile returns where the running daemon records its process id.
func PIDFile(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return filepath.Join(cfg.Paths.DataDir, "cellard.pid")
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logProviderSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("provider snapshot",
		logging.String(logging.FieldEventType, "provider_snapshot"),
		logging.Bool("barcode_lookup_key_present", cfg.BarcodeLookup.APIKey != ""),
		logging.String("barcode_lookup_base_url", cfg.BarcodeLookup.BaseURL),
		logging.Bool("llm_key_present", cfg.LLM.APIKey != ""),
		logging.String("llm_model", cfg.TextLLM().Model),
		logging.String("llm_vision_model", cfg.VisionLLM().Model),
		logging.Int("workers", cfg.Workers.Concurrency),
		logging.Int("queue_size", cfg.Workers.QueueSize),
	)
}
