package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-fetches prices for every catalog entry without a snapshot for today.",
	Run: func(cmd *cobra.Command, args []string) {
		service, err := openService()
		if err != nil {
			fatal(err)
		}

		refreshed, err := service.RefreshStale(cmd.Context())
		if err != nil {
			fatal(err)
		}
		fmt.Printf("refreshed %d entries\n", refreshed)
	},
}
