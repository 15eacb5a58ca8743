package main

import (
	"context"
	"flag"
	"log/slog"
	"wishwatch-backend/lib/chrono"
	"wishwatch-backend/lib/configutil"
	"wishwatch-backend/lib/scrapers/psnstore"
	"wishwatch-backend/lib/serviceutil"
	"wishwatch-backend/lib/telemetry"
	"wishwatch-backend/services/wishlist"
	wishlistdb "wishwatch-backend/services/wishlist/db"
)

type TelegramConfig struct {
	Token string `json:"token"`
}

type StorefrontConfig struct {
	BaseUrl string `json:"base_url"`
	Locale  string `json:"locale"`
}

type RefreshConfig struct {
	// cron expression, defaults to one sweep an hour
	Schedule string `json:"schedule"`
}

type Config struct {
	Database   configutil.Database `json:"database"`
	Telegram   TelegramConfig      `json:"telegram"`
	Storefront StorefrontConfig    `json:"storefront"`
	Refresh    RefreshConfig       `json:"refresh"`
}

func main() {
	verbose := flag.Bool("v", false, "enable verbose logging")
	flag.Parse()

	telemetry.InitSlog(*verbose)
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.Storefront.Locale == "" {
		config.Storefront.Locale = "ru-ru"
	}
	if config.Refresh.Schedule == "" {
		config.Refresh.Schedule = "@hourly"
	}

	db, err := config.Database.Open(wishlistdb.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	t, err := telemetry.SetupFromEnv(ctx, "wishwatchd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())

	clock, err := chrono.NewStandard()
	if err != nil {
		serviceutil.Fatal("failed to load storefront timezone", err)
	}

	store, err := psnstore.NewClient(psnstore.ClientOptions{
		BaseUrl: config.Storefront.BaseUrl,
		Locale:  config.Storefront.Locale,
	})
	if err != nil {
		serviceutil.Fatal("failed to create storefront client", err)
	}

	service := wishlist.NewService(db, store, clock, config.Storefront.Locale)

	bot, err := NewBot(config.Telegram.Token, service)
	if err != nil {
		serviceutil.Fatal("failed to create telegram bot", err)
	}

	cronner := chrono.NewStandardCron(clock)
	err = cronner.Cron(config.Refresh.Schedule, func() {
		refreshed, err := service.RefreshStale(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "price refresh sweep failed", "err", err)
			return
		}
		slog.InfoContext(ctx, "price refresh sweep done", "refreshed", refreshed)

		deals, err := service.Deals(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to query deals", "err", err)
			return
		}
		bot.NotifyDeals(ctx, deals)
	})
	if err != nil {
		serviceutil.Fatal("failed to schedule price refresh", err)
	}

	go func() {
		err := bot.Start(ctx)
		if err != nil && ctx.Err() == nil {
			serviceutil.Fatal("telegram bot stopped", err)
		}
	}()

	<-ctx.Done()
}
