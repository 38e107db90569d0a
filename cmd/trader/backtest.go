package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tradesmart-bot-go/internal/backtest"
	"tradesmart-bot-go/internal/candles"
	"tradesmart-bot-go/internal/market"
	"tradesmart-bot-go/internal/models"
	"tradesmart-bot-go/internal/report"
)

var (
	backtestSymbol   string
	backtestStrategy string
	backtestReport   string
	reportOut        string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay stored history through the configured strategy",
	Long: `Replay the stored trades of the last backtest.lookback_days days through a
strategy against a simulated account. The run and its trade log are stored in the
database and the trade log is appended to <backtest.log_dir>/<exchange>_<symbol>.log.

Example:
  trader backtest --symbol BTC_JPY --strategy tech --report btc.html`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

var reportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Plot a recorded backtest as an HTML page",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(reportCmd)

	backtestCmd.Flags().StringVarP(&backtestSymbol, "symbol", "s", "", "symbol to replay (default: the first configured symbol)")
	backtestCmd.Flags().StringVar(&backtestStrategy, "strategy", "", "strategy name (default: backtest.strategy)")
	backtestCmd.Flags().StringVar(&backtestReport, "report", "", "write an HTML chart of the run to this file")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "backtest.html", "output HTML file")
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	symbol := backtestSymbol
	if symbol == "" {
		symbol = a.cfg.Exchange.Symbols[0]
	}
	if backtestStrategy != "" {
		a.cfg.Backtest.Strategy = backtestStrategy
	}

	run, res, err := a.engine.Backtest(ctx, symbol)
	if err != nil {
		return err
	}
	printRun(run, res)

	if backtestReport == "" {
		return nil
	}
	interval, err := candles.ParseInterval(run.BarInterval)
	if err != nil {
		return err
	}
	bars, err := a.engine.Candles(ctx, symbol, interval, a.cfg.Backtest.LookbackDays)
	if err != nil {
		return err
	}
	return writeReport(backtestReport, run, bars, res.Log)
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	run, err := a.runs.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	events, err := a.runs.ListEvents(ctx, run.ID)
	if err != nil {
		return err
	}
	interval, err := candles.ParseInterval(run.BarInterval)
	if err != nil {
		return err
	}

	// The run replayed lookback_days before it started; reach back that far from now.
	days := a.cfg.Backtest.LookbackDays + int(math.Ceil(time.Since(run.StartedAt).Hours()/24))
	bars, err := a.engine.Candles(ctx, run.Symbol, interval, days)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		bars = within(bars, events[0].At.Add(-time.Duration(run.LookbackBars)*interval.Duration()), events[len(events)-1].At)
	}
	return writeReport(reportOut, run, bars, entries(events))
}

// within keeps the bars, newest first, that open in [from, to].
func within(bars []market.CandleStick, from, to time.Time) []market.CandleStick {
	out := make([]market.CandleStick, 0, len(bars))
	for _, b := range bars {
		if !b.OpenTime.Before(from) && !b.OpenTime.After(to) {
			out = append(out, b)
		}
	}
	return out
}

func entries(events []models.BacktestEvent) []backtest.Entry {
	out := make([]backtest.Entry, len(events))
	for i, e := range events {
		out[i] = backtest.Entry{
			Seq:      e.Seq,
			At:       e.At,
			Action:   backtest.Action(e.Action),
			Price:    e.Price,
			Size:     e.Size,
			Cash:     e.Cash,
			Position: e.Position,
			State:    backtest.State(e.State),
			Reason:   backtest.HaltReason(e.Note),
		}
	}
	return out
}

func writeReport(path string, run *models.BacktestRun, bars []market.CandleStick, log []backtest.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create report: %w", err)
	}
	defer f.Close()

	title := fmt.Sprintf("%s %s %s %s", run.Exchange, run.Symbol, run.Strategy, run.BarInterval)
	if err := report.RenderBacktest(f, title, bars, log); err != nil {
		return err
	}
	fmt.Printf("report written to %s\n", path)
	return f.Close()
}

func printRun(run *models.BacktestRun, res backtest.Result) {
	fmt.Printf("run %s: %s %s with %s on %s bars\n", run.ID, run.Exchange, run.Symbol, run.Strategy, run.BarInterval)
	fmt.Printf("  %s (%s) after %d polls, %d skipped\n", res.State, res.Reason, res.Polls, res.SkippedPolls)
	for _, e := range res.Log {
		fmt.Printf("  #%-4d %s %-4s price %.4f size %.6f cash %.2f position %.6f\n",
			e.Seq, e.At.Format(time.RFC3339), e.Action, e.Price, e.Size, e.Cash, e.Position)
	}
	fmt.Printf("  final cash %.2f position %.6f equity %.2f (balance %.2f)\n",
		res.Final.Cash, res.Final.Position, res.Equity, run.Balance)
}
