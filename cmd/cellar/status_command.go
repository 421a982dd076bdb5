package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"cellar/internal/api"
	"cellar/internal/apiclient"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and cellar status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderStatus(client.BaseURL(), status))
				return nil
			})
		},
	}
}

func renderStatus(address string, status api.DaemonStatus) string {
	fields := [][2]string{
		{"Daemon", address},
		{"Running", yesNo(status.Running)},
		{"PID", strconv.Itoa(status.PID)},
		{"Database", status.DatabasePath},
		{"Queued jobs", strconv.Itoa(status.QueuedJobs)},
		{"Wines", strconv.Itoa(status.Cellar.Wines)},
		{"Placeholders", strconv.Itoa(status.Cellar.Placeholders)},
		{"Bottles", strconv.Itoa(status.Cellar.Bottles)},
	}
	statuses := make([]string, 0, len(status.Cellar.LabelTasks))
	for name := range status.Cellar.LabelTasks {
		statuses = append(statuses, name)
	}
	sort.Strings(statuses)
	for _, name := range statuses {
		fields = append(fields, [2]string{"Label tasks " + name, strconv.Itoa(status.Cellar.LabelTasks[name])})
	}
	for _, p := range status.Providers {
		fields = append(fields, [2]string{fmt.Sprintf("Provider %s", p.Name), yesNo(p.Configured)})
	}
	return renderFields(fields)
}
