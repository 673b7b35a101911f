package main

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"rugs-trade-bot-go/internal/config"
	"rugs-trade-bot-go/internal/database"
	"rugs-trade-bot-go/internal/logger"
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

	// Connect to the audit database written by the trader
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting web server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, NewAPIHandler(log, db).Routes()); err != nil {
		log.Fatal("Web server failed", zap.Error(err))
	}
}
