package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cellar/internal/daemonctl"
	"cellar/internal/daemonrun"
)

const (
	startWaitTimeout = 15 * time.Second
	stopGracePeriod  = 15 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newDaemonRunCommand(ctx),
		newStartCommand(ctx),
		newStopCommand(ctx),
	}
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the cellar daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the cellar daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			executable, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, executable,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath}, startWaitTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(out, "Daemon started (pid %d) at %s\n", result.PID, client.BaseURL())
			}
			return nil
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background cellar daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := daemonctl.Stop(cmd.Context(), client, daemonrun.PIDFile(cfg), stopGracePeriod)
			out := cmd.OutOrStdout()
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon (pid %d) did not stop in time and was killed\n", result.PID)
				return nil
			}
			fmt.Fprintf(out, "Daemon stopped (pid %d)\n", result.PID)
			return nil
		},
	}
}
