package cmd

import (
	"fmt"
	"os"
	"wishwatch-backend/lib/scrapers/psnstore"
	"wishwatch-backend/services/wishlist/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <link-or-id>...",
	Short: "Resolves storefront links into catalog entries and prints their latest prices.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service, err := openService()
		if err != nil {
			fatal(err)
		}

		for _, raw := range args {
			id, err := psnstore.Normalize(raw)
			if err != nil {
				fatal(fmt.Errorf("%q: %w", raw, err))
			}

			entry, created, err := service.Resolve(cmd.Context(), id)
			if err != nil {
				fatal(fmt.Errorf("%q: %w", raw, err))
			}

			status := "known"
			if created {
				status = "new"
			}
			fmt.Printf("%s (%s)\n", entry.Name, status)

			snapshots, err := service.LatestPrices(cmd.Context(), entry)
			if err != nil {
				fatal(err)
			}
			renderSnapshots(entry, snapshots)
		}
	},
}

func renderSnapshots(entry db.CatalogEntry, snapshots []db.PriceSnapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Edition", "Price", "Sale", "Valid until", "Checked"})

	for _, s := range snapshots {
		sale := ""
		if s.SalePrice.Valid {
			sale = formatPrice(s.SalePrice.Float64, s.Currency)
		}
		t.AppendRow(table.Row{
			s.Edition,
			formatPrice(s.OriginalPrice, s.Currency),
			sale,
			s.ValidUntil.String,
			s.CheckDate,
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func formatPrice(value float64, currency string) string {
	return fmt.Sprintf("%.2f %s", value, currency)
}
