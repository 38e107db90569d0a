package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesmart-bot-go/internal/backtest"
	"tradesmart-bot-go/internal/market"
)

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// barsDesc returns n one-minute bars, newest first.
func barsDesc(n int) []market.CandleStick {
	out := make([]market.CandleStick, n)
	for i := range out {
		open := base.Add(time.Duration(n-1-i) * time.Minute)
		p := 100 + float64(i)
		out[i] = market.NewCandleStick(p, p+1, p+2, p-1, 1.5, open)
	}
	return out
}

func TestRenderBacktest(t *testing.T) {
	// Arrange
	entries := []backtest.Entry{
		{Seq: 1, At: base.Add(time.Minute + 10*time.Second), Action: backtest.ActionBuy, Price: 101.5},
		{Seq: 2, At: base.Add(3*time.Minute + 5*time.Second), Action: backtest.ActionSell, Price: 104.25},
		{Seq: 3, At: base.Add(4 * time.Minute), Action: backtest.ActionHalt, Price: 104},
	}
	var buf bytes.Buffer

	// Act
	err := RenderBacktest(&buf, "bitflyer BTC_JPY simple", barsDesc(5), entries)

	// Assert
	require.NoError(t, err)
	html := buf.String()
	assert.Contains(t, html, "bitflyer BTC_JPY simple")
	assert.Contains(t, html, "01-01 10:00")
	assert.Contains(t, html, "101.5")
	assert.Contains(t, html, "104.25")
}

func TestRenderBacktest_NoBars(t *testing.T) {
	var buf bytes.Buffer

	err := RenderBacktest(&buf, "empty", nil, nil)

	assert.ErrorIs(t, err, ErrNoBars)
	assert.Zero(t, buf.Len())
}

func TestMarkers(t *testing.T) {
	// Arrange: bars oldest first at 10:00..10:04
	desc := barsDesc(5)
	bars := make([]market.CandleStick, len(desc))
	for i, b := range desc {
		bars[len(bars)-1-i] = b
	}
	entries := []backtest.Entry{
		{At: base.Add(-time.Minute), Action: backtest.ActionBuy, Price: 1},
		{At: base.Add(90 * time.Second), Action: backtest.ActionBuy, Price: 2},
		{At: base.Add(4*time.Minute + 59*time.Second), Action: backtest.ActionSell, Price: 3},
		{At: base.Add(2 * time.Minute), Action: backtest.ActionHalt, Price: 4},
	}

	// Act
	buys, sells := markers(bars, entries)

	// Assert
	require.Len(t, buys, 5)
	require.Len(t, sells, 5)
	assert.Nil(t, buys[0].Value, "entries before the first bar are dropped")
	assert.Equal(t, 2.0, buys[1].Value)
	assert.Equal(t, 3.0, sells[4].Value)
	assert.Nil(t, buys[2].Value, "HALT entries are not plotted")
	assert.Nil(t, sells[2].Value)
}
