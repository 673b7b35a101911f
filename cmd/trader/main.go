package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"rugs-trade-bot-go/internal/config"
	"rugs-trade-bot-go/internal/database"
	"rugs-trade-bot-go/internal/game"
	"rugs-trade-bot-go/internal/gateway"
	"rugs-trade-bot-go/internal/logger"
	"rugs-trade-bot-go/internal/strategy"
	"rugs-trade-bot-go/internal/telemetry"
	"rugs-trade-bot-go/internal/trader"
	"rugs-trade-bot-go/internal/tracing"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// The logger is not initialized yet.
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded",
		zap.String("strategy", cfg.Trading.Strategy),
		zap.Float64("max_position_size", cfg.Trading.MaxPositionSize),
		zap.Bool("dry_run", cfg.Trading.DryRun))

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	tracer, err := newTracer(cfg.Telemetry)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hub := telemetry.NewHub(log)
	store := telemetry.NewAsync(telemetry.NewStoreSink(db, log), cfg.Telemetry.BufferSize, log)
	stream := telemetry.NewAsync(hub, cfg.Telemetry.BufferSize, log)
	sink := telemetry.Multi{
		telemetry.NewLogSink(log),
		telemetry.NewMetrics(reg),
		store,
		stream,
	}

	executor, balance, err := newGateway(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize execution gateway", zap.Error(err))
	}

	strat, err := strategy.New(cfg.Trading.Strategy, cfg.Trading.MaxLossThreshold)
	if err != nil {
		log.Fatal("Failed to create strategy", zap.Error(err))
	}

	clock := game.NewClock(log, game.ParamsFromConfig(cfg.Game), nil)
	orch := trader.NewOrchestrator(log, trader.Components{
		Clock:    clock,
		Strategy: strat,
		Executor: executor,
		Balance:  balance,
		Sink:     sink,
		Tracer:   tracer,
	}, trader.OptionsFromConfig(cfg.Trading))
	api := trader.NewAPIServer(cfg.API.Port, orch, reg, hub, log)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	api.Start()
	if err := orch.Start(ctx); err != nil {
		log.Fatal("Failed to start orchestrator", zap.Error(err))
	}
	<-ctx.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := orch.Stop(shutdownCtx); err != nil {
		log.Error("Orchestrator did not stop cleanly", zap.Error(err))
	}
	if err := api.Stop(shutdownCtx); err != nil {
		log.Error("API server did not stop cleanly", zap.Error(err))
	}
	store.Close()
	stream.Close()
	hub.Close()
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}

	log.Info("Bot has been shut down.", zap.Any("stats", orch.Stats()))
}

// newGateway selects the execution boundary. Dry run settles against a paper wallet;
// otherwise orders go to the REST gateway and capital is read from the Solana wallet
// when one is configured.
func newGateway(cfg config.Config, log *zap.Logger) (gateway.Executor, gateway.BalanceSource, error) {
	if cfg.Trading.DryRun {
		paper := gateway.NewPaper(cfg.Trading.PaperBalance, log)
		return paper, paper, nil
	}

	rest := gateway.NewRestClient(cfg.Gateway, log)
	if cfg.Solana.WalletAddress == "" {
		return rest, rest, nil
	}
	wallet, err := gateway.NewSolanaBalance(cfg.Solana, log)
	if err != nil {
		return nil, nil, err
	}
	return rest, wallet, nil
}

func newTracer(cfg config.Telemetry) (*tracing.Tracer, error) {
	if !cfg.Tracing {
		return tracing.New(false, nil)
	}
	var w io.Writer = os.Stdout
	if cfg.TraceFile != "" {
		f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace file: %w", err)
		}
		w = f
	}
	return tracing.New(true, w)
}
