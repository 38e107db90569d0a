package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradesmart-bot-go/internal/bitflyer"
	"tradesmart-bot-go/internal/config"
	"tradesmart-bot-go/internal/database"
	"tradesmart-bot-go/internal/logger"
	"tradesmart-bot-go/internal/ratelimit"
	"tradesmart-bot-go/internal/trader"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Downloads exchange trade history and backtests strategies on it",
	Long: `trader keeps a local copy of an exchange's public trade history and replays
it through a trading strategy against a simulated account.

Commands:
  ingest    download the missing trade history once
  run       keep the trade history up to date until interrupted
  backtest  replay stored history through the configured strategy
  report    plot a recorded backtest as an HTML page`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs", "directory containing config.yml")
}

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds the components shared by the commands.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	client  *bitflyer.RestClient
	trades  *database.TradeStore
	runs    *database.RunStore
	limiter *ratelimit.Limiter
	engine  *trader.Engine
}

// newApp loads the configuration and wires the components together.
func newApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return nil, fmt.Errorf("could not create logger: %w", err)
	}
	log.Info("Configuration loaded", zap.String("exchange", cfg.Exchange.Name), zap.Strings("symbols", cfg.Exchange.Symbols))

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	log.Info("Database connection successful and schema migrated.")

	a := &app{
		cfg:     cfg,
		log:     log,
		client:  bitflyer.NewRestClient(&cfg.Exchange, log),
		trades:  database.NewTradeStore(db, nil),
		runs:    database.NewRunStore(db),
		limiter: ratelimit.New(cfg.Budget, nil, log),
	}
	source := bitflyer.NewPageSource(a.client, cfg.Exchange.PageSize)
	a.engine = trader.NewEngine(log, &a.cfg, source, a.trades, a.runs, a.limiter, nil)
	return a, nil
}

// checkHealth asks the exchange for the status of every configured symbol.
func (a *app) checkHealth(ctx context.Context) error {
	for _, symbol := range a.cfg.Exchange.Symbols {
		if err := a.limiter.Acquire(ctx); err != nil {
			return err
		}
		status, err := a.client.GetHealth(ctx, symbol)
		if err != nil {
			return fmt.Errorf("could not reach %s: %w", a.cfg.Exchange.Name, err)
		}
		a.log.Info("Exchange reachable", zap.String("symbol", symbol), zap.String("status", status))
	}
	return nil
}

func (a *app) close() {
	_ = a.log.Sync()
}
