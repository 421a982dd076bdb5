package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cellar/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogFile()
			out := cmd.OutOrStdout()
			emit := func(line string) {
				if filter.Match(line) {
					fmt.Fprintln(out, line)
				}
			}

			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				emit(line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 250*time.Millisecond, emit)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error); JSON logs only")
	cmd.Flags().StringVar(&filter.Component, "component", "", "Only lines from this component; JSON logs only")
	cmd.Flags().Int64Var(&filter.WineID, "wine", 0, "Only lines about this wine; JSON logs only")
	cmd.Flags().StringVar(&filter.Contains, "grep", "", "Only lines containing this text")
	return cmd
}
