package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"btcTracker/config"
	"btcTracker/internal/adapters/binanceclient"
	"btcTracker/internal/adapters/kucoin"
	"btcTracker/internal/adapters/logger"
	"btcTracker/internal/adapters/mongo"
	"btcTracker/internal/app"
	"btcTracker/internal/indicators"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (MongoDB Adapter)
	repo, err := mongo.NewRepository(ctx, mongo.Config{
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize MongoDB repository")
		log.Fatalf("FATAL: Failed to initialize MongoDB repository: %v", err)
	}
	defer func() {
		if err := repo.Close(ctx); err != nil {
			appLogger.Error(ctx, err, "Error closing MongoDB repository")
		}
	}()

	// 4. Initialize Exchange Clients
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:    cfg.BinanceAPIKey,
		SecretKey: cfg.BinanceAPISecret,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	kucoinClient, err := kucoin.New(kucoin.Config{
		BaseURL: cfg.KuCoinBaseURL,
		Logger:  appLogger,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize KuCoin client")
		log.Fatalf("FATAL: Failed to initialize KuCoin client: %v", err)
	}

	// 5. Initialize Indicator Calculator
	calc, err := indicators.NewCalculator(appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize indicator calculator")
		log.Fatalf("FATAL: Failed to initialize indicator calculator: %v", err)
	}

	// 6. Initialize Application Service
	tracker, err := app.NewTrackerService(cfg, appLogger, binanceClient, kucoinClient, repo, calc)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize tracker service")
		log.Fatalf("FATAL: Failed to initialize tracker service: %v", err)
	}

	// 7. Run the hourly update to completion
	written, err := tracker.UpdateHourly(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "Hourly update failed")
		log.Fatalf("FATAL: Hourly update failed: %v", err)
	}

	fmt.Printf("Hourly update complete: %d rows written\n", written)
}
