package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"btcTracker/config"
	"btcTracker/internal/adapters/logger"
	"btcTracker/internal/adapters/mongo"
)

// Prints the newest stored candles, one line per hour, for a quick
// sanity check of the collection.
func main() {
	limit := flag.Int("limit", 10, "number of newest candles to print")
	flag.Parse()

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

	candles, err := repo.LoadRecent(ctx, *limit)
	if err != nil {
		log.Fatalf("FATAL: Query failed: %v", err)
	}

	fmt.Printf("%-25s %12s %12s %12s %12s %12s\n", "timestamp", "open", "high", "low", "close", "volume")
	for i := len(candles) - 1; i >= 0; i-- { // newest first
		c := candles[i]
		fmt.Printf("%-25s %12.2f %12.2f %12.2f %12.2f %12.4f\n",
			c.Timestamp.Format("2006-01-02T15:04:05Z"), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
}
