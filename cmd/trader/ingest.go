package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradesmart-bot-go/internal/api"
	"tradesmart-bot-go/internal/ingest"
)

var ingestSymbol string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Download the missing trade history once",
	Long: `Download every configured symbol's trades back to ingest.since_days, or
back to the newest stored trade if that is later. All symbols share one call budget.

Example:
  trader ingest --symbol BTC_JPY`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

var serve bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Keep the trade history up to date until interrupted",
	Long: `Ingest every configured symbol now and again every ingest.interval.
With --serve the read API is served on server.port meanwhile.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(runCmd)

	ingestCmd.Flags().StringVarP(&ingestSymbol, "symbol", "s", "", "ingest only this configured symbol")
	runCmd.Flags().BoolVar(&serve, "serve", false, "also serve the read API")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	if err := a.checkHealth(ctx); err != nil {
		return err
	}

	results := map[string]ingest.Result{}
	if ingestSymbol != "" {
		if !slices.Contains(a.cfg.Exchange.Symbols, ingestSymbol) {
			return fmt.Errorf("symbol %s is not configured", ingestSymbol)
		}
		res, err := a.engine.IngestSymbol(ctx, ingestSymbol)
		results[ingestSymbol] = res
		if err != nil {
			return err
		}
	} else if results, err = a.engine.IngestAll(ctx); err != nil {
		return err
	}

	for symbol, res := range results {
		fmt.Printf("%-10s fetched %d, inserted %d, skipped %d in %d pages (%s)\n",
			symbol, res.Fetched, res.Inserted, res.Skipped, res.Pages, res.Took.Round(time.Millisecond))
	}
	return nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	if err := a.checkHealth(ctx); err != nil {
		return err
	}

	if serve {
		server := api.NewServer(a.cfg.Server.Port, api.NewAPIHandler(a.engine, a.runs, a.log), a.log)
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Stop(shutdownCtx); err != nil {
				a.log.Error("Failed to stop API server", zap.Error(err))
			}
		}()
	}

	a.engine.Run(ctx)
	a.log.Info("Bot has been shut down.")
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
