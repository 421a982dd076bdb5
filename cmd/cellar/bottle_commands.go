package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cellar/internal/apiclient"
)

func newBottlesCommand(ctx *commandContext) *cobra.Command {
	bottlesCmd := &cobra.Command{
		Use:   "bottles",
		Short: "Manage individual bottles",
	}

	bottlesCmd.AddCommand(&cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"drink", "rm"},
		Short:   "Remove a bottle (for example after drinking it)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "bottle")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.DeleteBottle(cmd.Context(), id); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int64{"bottleId": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed bottle %d\n", id)
				return nil
			})
		},
	})

	return bottlesCmd
}
