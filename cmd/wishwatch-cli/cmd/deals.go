package cmd

import (
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(dealsCmd)
}

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "Prints today's discounts on wishlisted titles.",
	Run: func(cmd *cobra.Command, args []string) {
		service, err := openService()
		if err != nil {
			fatal(err)
		}

		deals, err := service.Deals(cmd.Context())
		if err != nil {
			fatal(err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Edition", "Price", "Sale", "Wishers"})

		for _, deal := range deals {
			sale := ""
			if deal.Snapshot.SalePrice.Valid {
				sale = formatPrice(deal.Snapshot.SalePrice.Float64, deal.Snapshot.Currency)
			}
			t.AppendRow(table.Row{
				deal.Entry.Name,
				deal.Snapshot.Edition,
				formatPrice(deal.Snapshot.OriginalPrice, deal.Snapshot.Currency),
				sale,
				strings.Join(deal.Wishers, ", "),
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
