package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(wishlistCmd)
}

var wishlistCmd = &cobra.Command{
	Use:   "wishlist <user-id>",
	Short: "Prints the wishlist of the given user (a telegram chat id).",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service, err := openService()
		if err != nil {
			fatal(err)
		}

		entries, err := service.ListWishlist(cmd.Context(), args[0])
		if err != nil {
			fatal(err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Id", "Name", "Concept", "Product"})

		for _, entry := range entries {
			t.AppendRow(table.Row{
				entry.ID,
				entry.Name,
				entry.ConceptID.String,
				entry.ProductID.String,
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
