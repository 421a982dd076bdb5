package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cellar/internal/api"
	"cellar/internal/apiclient"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var slot string
	var price float64

	cmd := &cobra.Command{
		Use:   "scan <barcode>",
		Short: "Record a scanned bottle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ScanRequest{Barcode: args[0]}
			if cmd.Flags().Changed("slot") {
				req.Slot = &slot
			}
			if cmd.Flags().Changed("price") {
				req.Price = &price
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.RecordScan(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Recorded bottle %d for wine %d\n", resp.BottleID, resp.WineID)
				if resp.EnrichmentQueued {
					fmt.Fprintln(out, "New wine; barcode lookup queued")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&slot, "slot", "", "Rack position for the bottle")
	cmd.Flags().Float64Var(&price, "price", 0, "Purchase price")
	return cmd
}
