package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"btcTracker/config"
	"btcTracker/internal/adapters/binanceclient"
	"btcTracker/internal/adapters/kucoin"
	"btcTracker/internal/adapters/logger"
	"btcTracker/internal/adapters/mongo"
	"btcTracker/internal/app"
	"btcTracker/internal/indicators"
)

// Exposes the hourly update behind a single HTTP route so an external
// scheduler (cron hitting the service) can trigger a run-to-completion
// pipeline pass.
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

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		written, err := tracker.UpdateHourly(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			appLogger.Error(r.Context(), err, "Triggered update failed")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":  "error",
				"message": err.Error(),
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "success",
			"written": written,
		})
	})

	appLogger.Info(ctx, "Serving update trigger", map[string]interface{}{"addr": cfg.ServeAddr})
	if err := http.ListenAndServe(cfg.ServeAddr, mux); err != nil {
		log.Fatalf("FATAL: HTTP server exited: %v", err)
	}
}
