package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"tradesmart-bot-go/internal/api"
	"tradesmart-bot-go/internal/config"
	"tradesmart-bot-go/internal/database"
	"tradesmart-bot-go/internal/logger"
	"tradesmart-bot-go/internal/trader"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// The UI only reads stored data: no market data source and no call budget.
	runs := database.NewRunStore(db)
	engine := trader.NewEngine(log, &cfg, nil, database.NewTradeStore(db, nil), runs, nil, nil)
	handler := api.NewAPIHandler(engine, runs, log)

	if err := api.NewServer(cfg.Server.Port, handler, log).ListenAndServe(); err != nil {
		log.Fatal("Web server failed", zap.Error(err))
	}
}
