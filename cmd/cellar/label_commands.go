package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cellar/internal/api"
	"cellar/internal/apiclient"
)

const labelPollInterval = 500 * time.Millisecond

func newLabelsCommand(ctx *commandContext) *cobra.Command {
	labelsCmd := &cobra.Command{
		Use:     "labels",
		Aliases: []string{"label"},
		Short:   "Read wine labels from photos",
	}

	labelsCmd.AddCommand(newLabelUploadCommand(ctx))
	labelsCmd.AddCommand(newLabelShowCommand(ctx))
	labelsCmd.AddCommand(newLabelListCommand(ctx))
	labelsCmd.AddCommand(newLabelApplyCommand(ctx))

	return labelsCmd
}

func newLabelUploadCommand(ctx *commandContext) *cobra.Command {
	var review bool
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "upload <image>",
		Short: "Submit a label photo for reading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				task, err := client.UploadLabel(cmd.Context(), filepath.Base(args[0]), image, review)
				if err != nil {
					return err
				}
				if wait && !isTerminal(task.Status) {
					waitCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
					defer cancel()
					id := task.ID
					task, err = client.WaitForLabelTask(waitCtx, id, labelPollInterval)
					if err != nil {
						return fmt.Errorf("wait for label task %d: %w", id, err)
					}
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, task)
				}
				out := cmd.OutOrStdout()
				if !wait {
					fmt.Fprintf(out, "Label task %d %s\n", task.ID, task.Status)
					return nil
				}
				fmt.Fprintln(out, renderLabelTask(task))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&review, "review", false, "Also request a short tasting review")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the reading to finish")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Maximum time to wait with --wait")
	return cmd
}

func newLabelShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task>",
		Short: "Show a label task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "label task")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				task, err := client.GetLabelTask(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, task)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderLabelTask(task))
				return nil
			})
		},
	}
}

func newLabelListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List label tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				tasks, err := client.ListLabelTasks(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.LabelTaskListResponse{Tasks: tasks})
				}
				out := cmd.OutOrStdout()
				if len(tasks) == 0 {
					fmt.Fprintln(out, "No label tasks")
					return nil
				}
				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						strconv.FormatInt(task.ID, 10),
						task.Status,
						task.UpdatedAt,
						truncate(task.Error, 60),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "Updated", "Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (queued, processing, done, failed)")
	return cmd
}

func newLabelApplyCommand(ctx *commandContext) *cobra.Command {
	var wineID int64

	cmd := &cobra.Command{
		Use:   "apply <task>",
		Short: "Fill a wine's missing details from a finished label reading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID(args[0], "label task")
			if err != nil {
				return err
			}
			if wineID <= 0 {
				return fmt.Errorf("--wine is required")
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				update, err := client.ApplyLabelTask(cmd.Context(), taskID, wineID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, update)
				}
				out := cmd.OutOrStdout()
				if !update.Changed {
					fmt.Fprintln(out, "Wine already had every field the label provided")
				}
				fmt.Fprintln(out, renderWine(update.Wine))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&wineID, "wine", 0, "Wine to update")
	return cmd
}

func renderLabelTask(task api.LabelTask) string {
	fields := [][2]string{
		{"Task", strconv.FormatInt(task.ID, 10)},
		{"Status", task.Status},
		{"Created", task.CreatedAt},
		{"Updated", task.UpdatedAt},
	}
	if task.Error != "" {
		fields = append(fields, [2]string{"Error", task.Error})
	}
	if len(task.Payload) > 0 {
		fields = append(fields, [2]string{"Reading", indentJSON(task.Payload)})
	}
	return renderFields(fields)
}

func isTerminal(status string) bool {
	return status == "done" || status == "failed"
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
