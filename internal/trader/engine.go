package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tradesmart-bot-go/internal/candles"
	"tradesmart-bot-go/internal/config"
	"tradesmart-bot-go/internal/ingest"
	"tradesmart-bot-go/internal/market"
	"tradesmart-bot-go/internal/models"
	"tradesmart-bot-go/internal/ratelimit"
)

// TradeStore is the trade persistence the engine needs. *database.TradeStore implements it.
type TradeStore interface {
	ingest.Store
	QuerySince(ctx context.Context, exchange, symbol string, lookbackDays int) ([]market.Trade, error)
	QueryRange(ctx context.Context, exchange, symbol string, since time.Time, limit int) ([]market.Trade, error)
	OldestTradeTime(ctx context.Context, exchange, symbol string) (time.Time, bool, error)
	CountTrades(ctx context.Context, exchange, symbol string) (int64, error)
}

// RunStore records backtest runs. *database.RunStore implements it.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.BacktestRun) error
	FinishRun(ctx context.Context, run *models.BacktestRun) error
	AppendEvent(ctx context.Context, event *models.BacktestEvent) error
}

// Limiter is the call budget shared by every ingestion worker. *ratelimit.Limiter implements it.
type Limiter interface {
	ingest.Acquirer
	Stats() ratelimit.Stats
}

// Engine drives ingestion and backtests for the configured symbols.
type Engine struct {
	logger  *zap.Logger
	cfg     *config.Config
	source  ingest.Source
	trades  TradeStore
	runs    RunStore
	limiter Limiter
	clock   clock.Clock

	// newBackOff builds the retry policy of one ingestion pass.
	newBackOff func() backoff.BackOff
}

// NewEngine creates a new engine. source and limiter may be nil for an engine
// that only serves stored data. A nil clock means the wall clock.
func NewEngine(logger *zap.Logger, cfg *config.Config, source ingest.Source, trades TradeStore, runs RunStore, limiter Limiter, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		logger:     logger.Named("engine"),
		cfg:        cfg,
		source:     source,
		trades:     trades,
		runs:       runs,
		limiter:    limiter,
		clock:      clk,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Run ingests every symbol immediately and then once per ingest interval until
// ctx is cancelled. Failed passes are logged and picked up by the next tick.
func (e *Engine) Run(ctx context.Context) {
	interval := e.cfg.Ingest.Interval
	e.logger.Info("Starting ingestion loop",
		zap.Strings("symbols", e.cfg.Exchange.Symbols),
		zap.Duration("interval", interval))

	e.ingestPass(ctx)

	ticker := e.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping ingestion loop...")
			return
		case <-ticker.C:
			e.ingestPass(ctx)
		}
	}
}

func (e *Engine) ingestPass(ctx context.Context) {
	if _, err := e.IngestAll(ctx); err != nil && ctx.Err() == nil {
		e.logger.Error("Ingestion pass failed", zap.Error(err))
	}
}

// IngestAll runs one ingestion worker per configured symbol. The workers share
// the engine's limiter, so the call budget holds for the process as a whole.
// A failing symbol does not stop the others; the first error is returned once
// every worker has finished.
func (e *Engine) IngestAll(ctx context.Context) (map[string]ingest.Result, error) {
	results := make([]ingest.Result, len(e.cfg.Exchange.Symbols))

	var g errgroup.Group
	for i, symbol := range e.cfg.Exchange.Symbols {
		g.Go(func() error {
			res, err := e.IngestSymbol(ctx, symbol)
			results[i] = res
			return err
		})
	}
	err := g.Wait()

	bySymbol := make(map[string]ingest.Result, len(results))
	for i, symbol := range e.cfg.Exchange.Symbols {
		bySymbol[symbol] = results[i]
	}
	return bySymbol, err
}

// IngestSymbol downloads symbol's trades of the last SinceDays days that are
// not stored yet. A failed pass is retried with exponential backoff up to
// MaxRetries times; each retry resumes from the newest stored trade.
func (e *Engine) IngestSymbol(ctx context.Context, symbol string) (ingest.Result, error) {
	if e.source == nil || e.limiter == nil {
		return ingest.Result{}, errors.New("engine has no market data source")
	}
	log := e.logger.With(zap.String("symbol", symbol))
	loop := ingest.NewLoop(e.source, e.trades, e.limiter, e.clock, e.cfg.Exchange.Name, e.cfg.Ingest.FlushSize, e.logger)
	since := e.clock.Now().UTC().AddDate(0, 0, -e.cfg.Ingest.SinceDays)

	var res ingest.Result
	operation := func() error {
		var err error
		res, err = loop.Ingest(ctx, symbol, since)
		if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("Ingestion failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(e.newBackOff(), uint64(e.cfg.Ingest.MaxRetries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return res, fmt.Errorf("could not ingest %s: %w", symbol, err)
	}
	return res, nil
}

// MarketStatus describes the stored history of one symbol.
type MarketStatus struct {
	Symbol string     `json:"symbol"`
	Trades int64      `json:"trades"`
	Oldest *time.Time `json:"oldest,omitempty"`
	Latest *time.Time `json:"latest,omitempty"`
}

// Status is a snapshot of the engine and its stored data.
type Status struct {
	Exchange string           `json:"exchange"`
	Budget   *ratelimit.Stats `json:"budget,omitempty"`
	Markets  []MarketStatus   `json:"markets"`
}

// Status reports the call budget and the stored range of every configured symbol.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	ex := e.cfg.Exchange.Name
	status := Status{Exchange: ex, Markets: make([]MarketStatus, 0, len(e.cfg.Exchange.Symbols))}
	if e.limiter != nil {
		stats := e.limiter.Stats()
		status.Budget = &stats
	}

	for _, symbol := range e.cfg.Exchange.Symbols {
		ms := MarketStatus{Symbol: symbol}
		n, err := e.trades.CountTrades(ctx, ex, symbol)
		if err != nil {
			return status, err
		}
		ms.Trades = n
		if oldest, ok, err := e.trades.OldestTradeTime(ctx, ex, symbol); err != nil {
			return status, err
		} else if ok {
			ms.Oldest = &oldest
		}
		if latest, ok, err := e.trades.LatestTradeTime(ctx, ex, symbol); err != nil {
			return status, err
		} else if ok {
			ms.Latest = &latest
		}
		status.Markets = append(status.Markets, ms)
	}
	return status, nil
}

// Trades returns the newest stored trades of symbol.
func (e *Engine) Trades(ctx context.Context, symbol string, limit int) ([]market.Trade, error) {
	return e.trades.QueryRange(ctx, e.cfg.Exchange.Name, symbol, time.Time{}, limit)
}

// Candles aggregates the stored trades of the last days days into bars, newest first.
func (e *Engine) Candles(ctx context.Context, symbol string, interval candles.Interval, days int) ([]market.CandleStick, error) {
	if err := interval.Validate(); err != nil {
		return nil, err
	}
	trades, err := e.trades.QuerySince(ctx, e.cfg.Exchange.Name, symbol, days)
	if err != nil {
		return nil, err
	}
	return candles.Aggregate(trades, interval, nil)
}
