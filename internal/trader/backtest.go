package trader

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradesmart-bot-go/internal/backtest"
	"tradesmart-bot-go/internal/candles"
	"tradesmart-bot-go/internal/logger"
	"tradesmart-bot-go/internal/models"
	"tradesmart-bot-go/internal/strategy"
)

const runFailed = "FAILED"

// eventSink persists trade log entries as events of one run.
type eventSink struct {
	store RunStore
	runID string
}

func (s *eventSink) Record(ctx context.Context, e backtest.Entry) error {
	return s.store.AppendEvent(ctx, &models.BacktestEvent{
		RunID:    s.runID,
		Seq:      e.Seq,
		At:       e.At,
		Action:   string(e.Action),
		Price:    e.Price,
		Size:     e.Size,
		Cash:     e.Cash,
		Position: e.Position,
		State:    string(e.State),
		Note:     string(e.Reason),
	})
}

func (e *Engine) invest() backtest.Invest {
	inv := backtest.Invest{Balance: e.cfg.Invest.Balance, InvestPerTrade: e.cfg.Invest.InvestPerTrade}
	if e.cfg.Invest.LossCut > 0 {
		lossCut := e.cfg.Invest.LossCut
		inv.LossCut = &lossCut
	}
	return inv
}

// Backtest replays the stored trades of the last LookbackDays days of symbol
// through the configured strategy. The run and its trade log are persisted and
// the log is also appended to the market's log file. A run that fails after it
// was created is still recorded, with state FAILED.
func (e *Engine) Backtest(ctx context.Context, symbol string) (*models.BacktestRun, backtest.Result, error) {
	bc := e.cfg.Backtest
	interval, err := candles.ParseInterval(bc.BarInterval)
	if err != nil {
		return nil, backtest.Result{}, err
	}
	strat, err := strategy.New(bc.Strategy)
	if err != nil {
		return nil, backtest.Result{}, err
	}
	inv := e.invest()
	if err := inv.Validate(); err != nil {
		return nil, backtest.Result{}, err
	}

	ex := e.cfg.Exchange.Name
	trades, err := e.trades.QuerySince(ctx, ex, symbol, bc.LookbackDays)
	if err != nil {
		return nil, backtest.Result{}, err
	}

	run := &models.BacktestRun{
		ID:             uuid.NewString(),
		Exchange:       ex,
		Symbol:         symbol,
		Strategy:       strat.Name(),
		BarInterval:    interval.String(),
		LookbackBars:   bc.LookbackBars,
		PollInterval:   bc.PollInterval,
		Balance:        inv.Balance,
		InvestPerTrade: inv.InvestPerTrade,
		LossCut:        inv.LossCut,
		State:          string(backtest.StateRunning),
		StartedAt:      e.clock.Now().UTC(),
	}
	if err := e.runs.CreateRun(ctx, run); err != nil {
		return nil, backtest.Result{}, err
	}
	log := e.logger.With(zap.String("run_id", run.ID), zap.String("symbol", symbol))
	log.Info("Starting backtest", zap.Int("trades", len(trades)), zap.String("strategy", run.Strategy))

	fileLog, err := logger.NewFileLogger(bc.LogDir, ex, symbol)
	if err != nil {
		return run, backtest.Result{}, e.finish(ctx, run, backtest.Result{}, err)
	}
	defer func() { _ = fileLog.Sync() }()

	sink := backtest.MultiSink{
		backtest.NewLogSink(fileLog.With(zap.String("run_id", run.ID))),
		&eventSink{store: e.runs, runID: run.ID},
	}
	params := backtest.Params{LookbackBars: bc.LookbackBars, BarInterval: interval, PollInterval: bc.PollInterval}
	res, err := backtest.NewSimulator(strat, inv, sink, log).Run(ctx, trades, params)
	return run, res, e.finish(ctx, run, res, err)
}

// finish stores the outcome of run and returns runErr, or the store error if
// the outcome could not be stored.
func (e *Engine) finish(ctx context.Context, run *models.BacktestRun, res backtest.Result, runErr error) error {
	finished := e.clock.Now().UTC()
	run.FinishedAt = &finished
	run.Polls = res.Polls
	run.FinalCash = res.Final.Cash
	run.FinalPosition = res.Final.Position
	run.FinalEquity = res.Equity
	if runErr != nil {
		run.State, run.Error = runFailed, runErr.Error()
	} else {
		run.State, run.Reason = string(res.State), string(res.Reason)
	}

	// The outcome is stored even when ctx was cancelled mid-run.
	if err := e.runs.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		if runErr != nil {
			return fmt.Errorf("%w (and %w)", runErr, err)
		}
		return err
	}
	if runErr != nil {
		e.logger.Error("Backtest failed", zap.String("run_id", run.ID), zap.Error(runErr))
	}
	return runErr
}
