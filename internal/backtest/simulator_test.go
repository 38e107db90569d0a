package backtest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tradesmart-bot-go/internal/candles"
	"tradesmart-bot-go/internal/indicator"
	"tradesmart-bot-go/internal/market"
	"tradesmart-bot-go/internal/strategy"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// scripted returns its decisions in order, then holds.
type scripted struct {
	decisions []strategy.Decision
	seen      [][]market.CandleStick
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Decide(bars []market.CandleStick, inds []indicator.Indicator) strategy.Decision {
	s.seen = append(s.seen, bars)
	if n := len(s.seen); n <= len(s.decisions) {
		return s.decisions[n-1]
	}
	return strategy.Decision{Signal: strategy.Hold}
}

type recordingSink struct {
	entries []Entry
	err     error
}

func (r *recordingSink) Record(_ context.Context, e Entry) error {
	r.entries = append(r.entries, e)
	return r.err
}

// tradesEvery returns trades every 30s over span, oldest first, priced by price.
func tradesEvery(span time.Duration, price func(time.Duration) float64) []market.Trade {
	var out []market.Trade
	for off := time.Duration(0); off <= span; off += 30 * time.Second {
		out = append(out, market.Trade{
			ID:            int64(len(out) + 1),
			Side:          market.SideBuy,
			Size:          0.01,
			Price:         price(off),
			ExecutionTime: start.Add(off),
		})
	}
	return out
}

func flat(p float64) func(time.Duration) float64 {
	return func(time.Duration) float64 { return p }
}

// params polls every minute over a 40 bar window: the first poll fires on the
// first trade after 42 minutes.
var params = Params{LookbackBars: 40, BarInterval: candles.Minutes(1), PollInterval: time.Minute}

func decisions(signals ...strategy.Signal) []strategy.Decision {
	out := make([]strategy.Decision, len(signals))
	for i, s := range signals {
		out[i] = strategy.Decision{Signal: s}
	}
	return out
}

func TestRun_BuyThenSellAtSamePrice(t *testing.T) {
	// Arrange
	strat := &scripted{decisions: decisions(strategy.Buy, strategy.Sell)}
	sink := &recordingSink{}
	sim := NewSimulator(strat, Invest{Balance: 1000, InvestPerTrade: 200}, sink, zap.NewNop())

	// Act
	res, err := sim.Run(context.Background(), tradesEvery(2*time.Hour, flat(100)), params)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StateHalted, res.State)
	assert.Equal(t, HaltReasonExhausted, res.Reason)
	require.Len(t, res.Log, 3)
	assert.Equal(t, ActionBuy, res.Log[0].Action)
	assert.Equal(t, 2.0, res.Log[0].Size)
	assert.Equal(t, 800.0, res.Log[0].Cash)
	assert.Equal(t, start.Add(42*time.Minute+30*time.Second), res.Log[0].At)
	assert.Equal(t, ActionSell, res.Log[1].Action)
	assert.Equal(t, start.Add(43*time.Minute+30*time.Second), res.Log[1].At)
	assert.Equal(t, ActionHalt, res.Log[2].Action)
	assert.Equal(t, Snapshot{Cash: 1000, Position: 0}, res.Final)
	assert.Equal(t, 1000.0, res.Equity)
	assert.Equal(t, res.Log, sink.entries)
	for i, e := range res.Log {
		assert.Equal(t, i+1, e.Seq)
	}
}

func TestRun_PollsOncePerInterval(t *testing.T) {
	strat := &scripted{}
	sim := NewSimulator(strat, Invest{Balance: 1000, InvestPerTrade: 200}, nil, zap.NewNop())

	res, err := sim.Run(context.Background(), tradesEvery(2*time.Hour, flat(100)), params)

	require.NoError(t, err)
	// polls at 42m30s, 43m30s, ... 119m30s
	assert.Equal(t, 78, res.Polls)
	assert.Equal(t, 0, res.SkippedPolls)
	assert.Len(t, strat.seen, 78)
	assert.Equal(t, 1000.0, res.Equity, "holding never changes equity")
}

func TestRun_BarsMatchRecompute(t *testing.T) {
	// Arrange
	price := func(off time.Duration) float64 { return 100 + float64(off/time.Minute%7) - float64(off/time.Second%3) }
	trades := tradesEvery(3*time.Hour, price)
	strat := &scripted{}
	sim := NewSimulator(strat, Invest{Balance: 1000, InvestPerTrade: 200}, nil, zap.NewNop())

	// Act
	_, err := sim.Run(context.Background(), trades, params)

	// Assert: the last poll fires at 179m30s. The poll before it trimmed the
	// window to start at 179m - 42m.
	require.NoError(t, err)
	last := strat.seen[len(strat.seen)-1]
	var window []market.Trade
	for _, tr := range trades {
		if !tr.ExecutionTime.Before(start.Add(137*time.Minute)) && !tr.ExecutionTime.After(start.Add(179*time.Minute+30*time.Second)) {
			window = append(window, tr)
		}
	}
	full, err := candles.Aggregate(window, params.BarInterval, nil)
	require.NoError(t, err)
	require.Len(t, last, params.LookbackBars)
	assert.Equal(t, full[:params.LookbackBars], last)
	for _, bars := range strat.seen {
		assert.LessOrEqual(t, len(bars), params.LookbackBars)
	}
}

func TestRun_LossCutHalts(t *testing.T) {
	// Arrange
	price := func(off time.Duration) float64 {
		if off < 43*time.Minute {
			return 100
		}
		return 90
	}
	strat := &scripted{decisions: decisions(strategy.Buy, strategy.Sell, strategy.Buy)}
	core, logs := observer.New(zap.InfoLevel)
	sink := MultiSink{NewLogSink(zap.New(core))}
	sim := NewSimulator(strat, Invest{Balance: 1000, InvestPerTrade: 500, LossCut: lossCut(990)}, sink, zap.NewNop())

	// Act
	res, err := sim.Run(context.Background(), tradesEvery(2*time.Hour, price), params)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StateHalted, res.State)
	assert.Equal(t, HaltReasonLossCut, res.Reason)
	assert.Equal(t, 2, res.Polls, "no poll after the loss cut")
	require.Len(t, res.Log, 3)
	assert.Equal(t, ActionHalt, res.Log[2].Action)
	assert.Equal(t, StateHalted, res.Log[2].State)
	assert.Equal(t, StateRunning, res.Log[1].State)
	assert.Equal(t, Snapshot{Cash: 950, Position: 0}, res.Final)
	assert.Equal(t, 1, logs.FilterMessage("LOSS CUT").Len())
	assert.Equal(t, 1, logs.FilterMessage("BUY").Len())
}

func TestRun_InsufficientHistory(t *testing.T) {
	sim := NewSimulator(&scripted{}, Invest{Balance: 1000, InvestPerTrade: 200}, nil, zap.NewNop())

	_, err := sim.Run(context.Background(), tradesEvery(30*time.Minute, flat(100)), params)
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = sim.Run(context.Background(), nil, params)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestRun_EveryPollSkippedIsInsufficientHistory(t *testing.T) {
	// Arrange: the window never holds enough bars for the indicators
	strat := &scripted{decisions: decisions(strategy.Buy)}
	sink := &recordingSink{}
	sim := NewSimulator(strat, Invest{Balance: 1000, InvestPerTrade: 200}, sink, zap.NewNop())
	p := params
	p.LookbackBars = indicator.MinBars - 1

	// Act
	res, err := sim.Run(context.Background(), tradesEvery(time.Hour, flat(100)), p)

	// Assert
	require.ErrorIs(t, err, ErrInsufficientHistory)
	assert.Contains(t, err.Error(), fmt.Sprintf("all %d polls", res.SkippedPolls))
	assert.Greater(t, res.Polls, 0)
	assert.Equal(t, res.Polls, res.SkippedPolls)
	assert.Empty(t, strat.seen)
	assert.Empty(t, res.Log, "no HALT is recorded for a run that never consulted the strategy")
	assert.Empty(t, sink.entries)
	assert.Equal(t, StateRunning, res.State)
}

func TestRun_InvalidParams(t *testing.T) {
	sim := NewSimulator(&scripted{}, Invest{Balance: 1000, InvestPerTrade: 200}, nil, zap.NewNop())
	p := params
	p.BarInterval = candles.Minutes(90)

	_, err := sim.Run(context.Background(), tradesEvery(time.Hour, flat(100)), p)
	assert.ErrorIs(t, err, candles.ErrInvalidInterval)

	bad := NewSimulator(&scripted{}, Invest{Balance: 100, InvestPerTrade: 200}, nil, zap.NewNop())
	_, err = bad.Run(context.Background(), tradesEvery(time.Hour, flat(100)), params)
	assert.Error(t, err)
}

func TestRun_SinkErrorStopsRun(t *testing.T) {
	boom := errors.New("disk full")
	sink := MultiSink{&recordingSink{}, &recordingSink{err: boom}}
	strat := &scripted{decisions: decisions(strategy.Buy)}
	sim := NewSimulator(strat, Invest{Balance: 1000, InvestPerTrade: 200}, sink, zap.NewNop())

	_, err := sim.Run(context.Background(), tradesEvery(2*time.Hour, flat(100)), params)

	assert.ErrorIs(t, err, boom)
	assert.Len(t, strat.seen, 1)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sim := NewSimulator(&scripted{}, Invest{Balance: 1000, InvestPerTrade: 200}, nil, zap.NewNop())

	_, err := sim.Run(ctx, tradesEvery(2*time.Hour, flat(100)), params)

	assert.ErrorIs(t, err, context.Canceled)
}
