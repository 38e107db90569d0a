package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradesmart-bot-go/internal/candles"
	"tradesmart-bot-go/internal/indicator"
	"tradesmart-bot-go/internal/market"
	"tradesmart-bot-go/internal/strategy"
)

// ErrInsufficientHistory is returned when the trades never span one lookback window.
var ErrInsufficientHistory = indicator.ErrInsufficientHistory

// Params controls the replay cadence.
type Params struct {
	LookbackBars int
	BarInterval  candles.Interval
	PollInterval time.Duration
}

// Validate rejects params the simulator cannot run with.
func (p Params) Validate() error {
	if err := p.BarInterval.Validate(); err != nil {
		return err
	}
	if p.LookbackBars <= 0 {
		return fmt.Errorf("lookback bars must be positive, got %d", p.LookbackBars)
	}
	if p.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", p.PollInterval)
	}
	return nil
}

// window is the span of trades needed to build LookbackBars bars, plus two
// bars of slack for the partially filled buckets at either end.
func (p Params) window() time.Duration {
	return time.Duration(p.LookbackBars+2) * p.BarInterval.Duration()
}

// Result is the outcome of a run.
type Result struct {
	State        State      `json:"state"`
	Reason       HaltReason `json:"reason"`
	Log          []Entry    `json:"log"`
	Final        Snapshot   `json:"final"`
	LastClose    float64    `json:"last_close"`
	Equity       float64    `json:"equity"`
	Polls        int        `json:"polls"`
	SkippedPolls int        `json:"skipped_polls"`
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
}

// Simulator replays trades through a strategy against one Account.
type Simulator struct {
	strategy strategy.Strategy
	invest   Invest
	sink     Sink
	logger   *zap.Logger
}

// NewSimulator creates a Simulator. sink may be nil.
func NewSimulator(strat strategy.Strategy, invest Invest, sink Sink, logger *zap.Logger) *Simulator {
	return &Simulator{strategy: strat, invest: invest, sink: sink, logger: logger.Named("backtest")}
}

// run is the state of one Run call.
type run struct {
	*Simulator
	account *Account
	result  Result
}

func (r *run) append(ctx context.Context, e Entry) error {
	e.Seq = len(r.result.Log) + 1
	snap := r.account.Snapshot()
	e.Cash, e.Position, e.State = snap.Cash, snap.Position, r.result.State
	r.result.Log = append(r.result.Log, e)
	if r.sink == nil {
		return nil
	}
	if err := r.sink.Record(ctx, e); err != nil {
		return fmt.Errorf("could not record %s entry %d: %w", e.Action, e.Seq, err)
	}
	return nil
}

// Run replays trades, given in any order, oldest first. Every PollInterval of
// simulated time it rebuilds the latest bars of the lookback window, asks the
// strategy for a decision at the newest close and applies it. The run ends
// HALTED, either by the loss cut or when the trades are exhausted.
//
// A poll whose bars are too few for the indicators is skipped. If the trades
// never span one lookback window, or every poll was skipped, ErrInsufficientHistory
// is returned.
func (s *Simulator) Run(ctx context.Context, trades []market.Trade, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	account, err := NewAccount(s.invest)
	if err != nil {
		return Result{}, err
	}
	r := &run{Simulator: s, account: account, result: Result{State: StateRunning}}
	if len(trades) == 0 {
		return r.result, fmt.Errorf("%w: no trades", ErrInsufficientHistory)
	}

	desc := candles.OrderDesc(trades)
	chron := make([]market.Trade, len(desc))
	for i, t := range desc {
		chron[len(desc)-1-i] = t
	}
	span := p.window()
	r.result.Start = chron[0].ExecutionTime
	r.result.End = chron[len(chron)-1].ExecutionTime

	log := s.logger.With(zap.String("strategy", s.strategy.Name()), zap.Stringer("bar_interval", p.BarInterval))
	log.Info("Starting backtest",
		zap.Int("trades", len(chron)),
		zap.Time("start", r.result.Start),
		zap.Time("end", r.result.End))

	nextPoll := r.result.Start.Add(span)
	lo := 0 // window is chron[lo:i+1]
	var bars []market.CandleStick

	for i, t := range chron {
		if !t.ExecutionTime.After(nextPoll) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return r.result, err
		}
		r.result.Polls++

		bars, err = candles.AggregateAscending(chron[lo:i+1], p.BarInterval, bars)
		if err != nil {
			return r.result, err
		}
		if len(bars) > p.LookbackBars {
			bars = bars[:p.LookbackBars]
		}
		r.result.LastClose = bars[0].Close

		if err := r.poll(ctx, t.ExecutionTime, bars); err != nil {
			return r.result, err
		}
		if r.result.State == StateHalted {
			break
		}

		// Polls fire on a fixed grid, gaps in trading skip grid points.
		steps := t.ExecutionTime.Sub(nextPoll)/p.PollInterval + 1
		nextPoll = nextPoll.Add(steps * p.PollInterval)
		start := nextPoll.Add(-span)
		for lo < i && chron[lo].ExecutionTime.Before(start) {
			lo++
		}
	}

	if r.result.Polls == 0 {
		return r.result, fmt.Errorf("%w: trades span %s, one window needs %s",
			ErrInsufficientHistory, r.result.End.Sub(r.result.Start), span)
	}
	if r.result.Polls == r.result.SkippedPolls {
		return r.result, fmt.Errorf("%w: all %d polls had fewer than %d bars",
			ErrInsufficientHistory, r.result.SkippedPolls, indicator.MinBars)
	}
	if r.result.State == StateRunning {
		r.result.State, r.result.Reason = StateHalted, HaltReasonExhausted
		if err := r.append(ctx, Entry{At: r.result.End, Action: ActionHalt, Price: r.result.LastClose, Reason: HaltReasonExhausted}); err != nil {
			return r.result, err
		}
	}

	r.result.Final = account.Snapshot()
	r.result.Equity = account.Equity(r.result.LastClose)
	log.Info("Backtest finished",
		zap.String("reason", string(r.result.Reason)),
		zap.Int("polls", r.result.Polls),
		zap.Int("skipped_polls", r.result.SkippedPolls),
		zap.Int("entries", len(r.result.Log)),
		zap.Float64("cash", r.result.Final.Cash),
		zap.Float64("position", r.result.Final.Position),
		zap.Float64("equity", r.result.Equity))
	return r.result, nil
}

// poll consults the strategy on bars and applies its decision at the newest close.
func (r *run) poll(ctx context.Context, at time.Time, bars []market.CandleStick) error {
	inds, err := indicator.Compute(bars)
	if errors.Is(err, indicator.ErrInsufficientHistory) {
		r.result.SkippedPolls++
		return nil
	}
	if err != nil {
		return err
	}

	decision := r.strategy.Decide(bars, inds)
	price := bars[0].Close
	switch decision.Signal {
	case strategy.Buy:
		size, ok := r.account.ApplyBuy(price)
		if !ok {
			return nil
		}
		if err := r.append(ctx, Entry{At: at, Action: ActionBuy, Price: price, Size: size}); err != nil {
			return err
		}
	case strategy.Sell:
		size, ok := r.account.ApplySell(price, decision.Size)
		if !ok {
			return nil
		}
		if err := r.append(ctx, Entry{At: at, Action: ActionSell, Price: price, Size: size}); err != nil {
			return err
		}
	default:
		return nil
	}

	if r.account.LossCutBreached() {
		r.result.State, r.result.Reason = StateHalted, HaltReasonLossCut
		return r.append(ctx, Entry{At: at, Action: ActionHalt, Price: price, Reason: HaltReasonLossCut})
	}
	return nil
}
