package cmd

import (
	"fmt"
	"os"
	"wishwatch-backend/lib/chrono"
	"wishwatch-backend/lib/configutil"
	"wishwatch-backend/lib/scrapers/psnstore"
	"wishwatch-backend/lib/telemetry"
	"wishwatch-backend/services/wishlist"
	wishlistdb "wishwatch-backend/services/wishlist/db"

	"github.com/spf13/cobra"
)

type storefrontConfig struct {
	BaseUrl string `json:"base_url"`
	Locale  string `json:"locale"`
}

type config struct {
	Database   configutil.Database `json:"database"`
	Storefront storefrontConfig    `json:"storefront"`
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "wishwatch-cli",
	Short: "wishwatch-cli pokes the wishlist catalog and price history directly.",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// openService builds a wishlist service over the same config.json5 the
// daemon reads. Run it against a stopped daemon or a copy of its
// database file.
func openService() (wishlist.Service, error) {
	telemetry.InitSlog(verbose)

	cfg, err := configutil.ReadConfig[config]("config.json5")
	if err != nil {
		return wishlist.Service{}, fmt.Errorf("failed to read config: %w", err)
	}
	if cfg.Storefront.Locale == "" {
		cfg.Storefront.Locale = "ru-ru"
	}

	db, err := cfg.Database.Open(wishlistdb.Schema)
	if err != nil {
		return wishlist.Service{}, fmt.Errorf("failed to open database: %w", err)
	}

	clock, err := chrono.NewStandard()
	if err != nil {
		return wishlist.Service{}, err
	}

	store, err := psnstore.NewClient(psnstore.ClientOptions{
		BaseUrl: cfg.Storefront.BaseUrl,
		Locale:  cfg.Storefront.Locale,
	})
	if err != nil {
		return wishlist.Service{}, err
	}

	return wishlist.NewService(db, store, clock, cfg.Storefront.Locale), nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
