package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cellar/internal/api"
	"cellar/internal/apiclient"
)

func newWinesCommand(ctx *commandContext) *cobra.Command {
	winesCmd := &cobra.Command{
		Use:     "wines",
		Aliases: []string{"wine"},
		Short:   "Browse and edit wines",
	}

	winesCmd.AddCommand(newWinesListCommand(ctx))
	winesCmd.AddCommand(newWineShowCommand(ctx))
	winesCmd.AddCommand(newWineEditCommand(ctx))
	winesCmd.AddCommand(newWineDeleteCommand(ctx))
	winesCmd.AddCommand(newWineEnrichCommand(ctx))

	return winesCmd
}

func newWinesListCommand(ctx *commandContext) *cobra.Command {
	var query api.WineQuery

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List wines with bottle counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				wines, err := client.ListWines(cmd.Context(), query)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.WineListResponse{Wines: wines})
				}
				out := cmd.OutOrStdout()
				if len(wines) == 0 {
					fmt.Fprintln(out, "No wines found")
					return nil
				}
				fmt.Fprintln(out, renderWineTable(wines))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&query.Query, "query", "q", "", "Match producer, label, region, country, or UPC")
	cmd.Flags().BoolVar(&query.PlaceholdersOnly, "placeholders", false, "Only wines still waiting for details")
	cmd.Flags().IntVar(&query.Limit, "limit", 0, "Maximum number of wines to return")
	cmd.Flags().IntVar(&query.Offset, "offset", 0, "Number of wines to skip")
	return cmd
}

func renderWineTable(wines []api.WineSummary) string {
	rows := make([][]string, 0, len(wines))
	for _, w := range wines {
		name := textOrDash(w.Label)
		if w.Placeholder {
			name = "(pending lookup)"
		}
		rows = append(rows, []string{
			strconv.FormatInt(w.ID, 10),
			textOrDash(w.Producer),
			name,
			intOrDash(w.Vintage),
			textOrDash(w.UPC),
			strconv.Itoa(w.BottleCount),
		})
	}
	return renderTable(
		[]string{"ID", "Producer", "Label", "Vintage", "UPC", "Bottles"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
	)
}

func newWineShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a wine and its bottles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "wine")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				detail, err := client.GetWine(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, detail)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderWine(detail.Wine))
				if len(detail.Bottles) == 0 {
					fmt.Fprintln(out, "No bottles")
					return nil
				}
				rows := make([][]string, 0, len(detail.Bottles))
				for _, b := range detail.Bottles {
					rows = append(rows, []string{
						strconv.FormatInt(b.ID, 10),
						textOrDash(b.Slot),
						priceOrDash(b.PurchasePrice),
						b.CreatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Bottle", "Slot", "Price", "Added"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func renderWine(w api.Wine) string {
	fields := [][2]string{
		{"ID", strconv.FormatInt(w.ID, 10)},
		{"UPC", textOrDash(w.UPC)},
		{"Producer", textOrDash(w.Producer)},
		{"Label", textOrDash(w.Label)},
		{"Vintage", intOrDash(w.Vintage)},
		{"Region", textOrDash(w.Region)},
		{"Country", textOrDash(w.Country)},
		{"Drink from", textOrDash(w.DrinkFrom)},
		{"Drink to", textOrDash(w.DrinkTo)},
		{"Placeholder", yesNo(w.Placeholder)},
	}
	if len(w.CriticData) > 0 {
		fields = append(fields, [2]string{"Critic data", indentJSON(w.CriticData)})
	}
	return renderFields(fields)
}

func newWineEditCommand(ctx *commandContext) *cobra.Command {
	var (
		upc, producer, label, region, country string
		drinkFrom, drinkTo, criticData        string
		vintage                               int
		clearFields                           []string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Update wine details",
		Long: "Update wine details. Only the flags given are changed; use --clear to\n" +
			"remove values (upc, producer, label, vintage, region, country, drinkFrom, drinkTo).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "wine")
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			var req api.WinePatchRequest
			for name, target := range map[string]**string{
				"upc":        &req.UPC,
				"producer":   &req.Producer,
				"label":      &req.Label,
				"region":     &req.Region,
				"country":    &req.Country,
				"drink-from": &req.DrinkFrom,
				"drink-to":   &req.DrinkTo,
			} {
				if flags.Changed(name) {
					value, _ := flags.GetString(name)
					*target = &value
				}
			}
			if flags.Changed("vintage") {
				req.Vintage = &vintage
			}
			if flags.Changed("critic-data") {
				if !json.Valid([]byte(criticData)) {
					return fmt.Errorf("--critic-data must be valid JSON")
				}
				req.CriticData = json.RawMessage(criticData)
			}
			for _, name := range clearFields {
				if name = strings.TrimSpace(name); name != "" {
					req.Clear = append(req.Clear, name)
				}
			}

			return ctx.withClient(func(client *apiclient.Client) error {
				wine, err := client.UpdateWine(cmd.Context(), id, req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, wine)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderWine(wine))
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&upc, "upc", "", "Barcode")
	flags.StringVar(&producer, "producer", "", "Producer or winery")
	flags.StringVar(&label, "label", "", "Wine name")
	flags.StringVar(&region, "region", "", "Region or appellation")
	flags.StringVar(&country, "country", "", "Country of origin")
	flags.StringVar(&drinkFrom, "drink-from", "", "Start of drinking window (YYYY-MM-DD)")
	flags.StringVar(&drinkTo, "drink-to", "", "End of drinking window (YYYY-MM-DD)")
	flags.StringVar(&criticData, "critic-data", "", "Critic scores and notes as JSON")
	flags.IntVar(&vintage, "vintage", 0, "Vintage year")
	flags.StringSliceVar(&clearFields, "clear", nil, "Fields to clear")
	return cmd
}

func newWineDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a wine and all of its bottles",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "wine")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.DeleteWine(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted wine %d and %d bottle(s)\n", resp.WineID, resp.BottlesRemoved)
				return nil
			})
		},
	}
}

func newWineEnrichCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enrich <id>",
		Short: "Look up the wine's barcode again and fill in details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "wine")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				update, err := client.EnrichWine(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, update)
				}
				out := cmd.OutOrStdout()
				if !update.Changed {
					fmt.Fprintln(out, "No new details found")
				}
				fmt.Fprintln(out, renderWine(update.Wine))
				return nil
			})
		},
	}
}
