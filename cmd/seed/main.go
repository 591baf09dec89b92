package main

import (
	"context"
	"fmt"
	"log"

	"btcTracker/config"
	"btcTracker/internal/adapters/binanceclient"
	"btcTracker/internal/adapters/kucoin"
	"btcTracker/internal/adapters/logger"
	"btcTracker/internal/adapters/mongo"
	"btcTracker/internal/app"
	"btcTracker/internal/indicators"
)

// Seeds the store with the configured look-back window of hourly
// candles, enriched with the full indicator schema.
func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)

	repo, err := mongo.NewRepository(ctx, mongo.Config{
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize MongoDB repository: %v", err)
	}
	defer func() {
		if err := repo.Close(ctx); err != nil {
			appLogger.Error(ctx, err, "Error closing MongoDB repository")
		}
	}()

	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:    cfg.BinanceAPIKey,
		SecretKey: cfg.BinanceAPISecret,
		Logger:    appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// Verify exchange reachability before fetching.
	if err := binanceClient.Ping(ctx); err != nil {
		appLogger.Error(ctx, err, "Binance is unreachable")
		log.Fatalf("FATAL: Binance is unreachable: %v", err)
	}

	kucoinClient, err := kucoin.New(kucoin.Config{
		BaseURL: cfg.KuCoinBaseURL,
		Logger:  appLogger,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize KuCoin client: %v", err)
	}

	calc, err := indicators.NewCalculator(appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize indicator calculator: %v", err)
	}

	tracker, err := app.NewTrackerService(cfg, appLogger, binanceClient, kucoinClient, repo, calc)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize tracker service: %v", err)
	}

	written, err := tracker.Seed(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "Historical seed failed")
		log.Fatalf("FATAL: Historical seed failed: %v", err)
	}

	fmt.Printf("Seeded %d hourly candles with indicators (newest first)\n", written)
}
