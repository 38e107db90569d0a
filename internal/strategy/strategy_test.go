package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesmart-bot-go/internal/indicator"
	"tradesmart-bot-go/internal/market"
)

func closes(cs ...float64) []market.CandleStick {
	bars := make([]market.CandleStick, len(cs))
	for i, c := range cs {
		bars[i] = market.CandleStick{Open: c, Close: c, High: c, Low: c}
	}
	return bars
}

func TestNew(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
		wantErr  bool
	}{
		{name: "simple", expected: "simple"},
		{name: "tech", expected: "tech"},
		{name: "lstm", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.name)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, s.Name())
		})
	}
	assert.Equal(t, []string{"simple", "tech"}, Names())
}

func TestSignalString(t *testing.T) {
	assert.Equal(t, "BUY", Buy.String())
	assert.Equal(t, "SELL", Sell.String())
	assert.Equal(t, "HOLD", Hold.String())
}

func TestSimpleStrategy(t *testing.T) {
	band := indicator.Indicator{BBMinus2: 90, BBPlus2: 110, StochK: 50, StochD: 50}
	oversold := band
	oversold.StochK = 20
	overbought := band
	overbought.StochD = 80

	testCases := []struct {
		name     string
		bars     []market.CandleStick
		inds     []indicator.Indicator
		expected Signal
	}{
		{name: "buy on lower band rebound", bars: closes(91, 89), inds: []indicator.Indicator{band, oversold}, expected: Buy},
		{name: "no buy without oversold", bars: closes(91, 89), inds: []indicator.Indicator{band, band}, expected: Hold},
		{name: "no buy while still below band", bars: closes(88, 89), inds: []indicator.Indicator{band, oversold}, expected: Hold},
		{name: "sell on upper band rejection", bars: closes(109, 111), inds: []indicator.Indicator{band, overbought}, expected: Sell},
		{name: "too short", bars: closes(100), inds: []indicator.Indicator{band}, expected: Hold},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := SimpleStrategy{}.Decide(tc.bars, tc.inds)
			assert.Equal(t, tc.expected, d.Signal)
			assert.Zero(t, d.Size)
		})
	}
}

func TestTechStrategy(t *testing.T) {
	neutral := indicator.Indicator{SMA20: 100, RSI: 50, RSIMA: 50, StochK: 50, StochD: 50, BBMinus2: 90, BBPlus2: 110}
	with := func(f func(*indicator.Indicator)) indicator.Indicator {
		i := neutral
		f(&i)
		return i
	}
	up := func(cur indicator.Indicator) []indicator.Indicator {
		old := neutral
		old.SMA20 = cur.SMA20 - 1
		return []indicator.Indicator{cur, neutral, old}
	}
	down := func(cur indicator.Indicator) []indicator.Indicator {
		old := neutral
		old.SMA20 = cur.SMA20 + 1
		return []indicator.Indicator{cur, neutral, old}
	}

	testCases := []struct {
		name     string
		bars     []market.CandleStick
		inds     []indicator.Indicator
		expected Signal
	}{
		{name: "flat regime holds", bars: closes(100, 100, 100), inds: []indicator.Indicator{neutral, neutral, neutral}, expected: Hold},
		{name: "up trend buys on rsi cross", bars: closes(100, 100, 100), inds: up(with(func(i *indicator.Indicator) { i.RSI = 55 })), expected: Buy},
		{name: "up trend buys below band", bars: closes(85, 100, 100), inds: up(neutral), expected: Buy},
		{name: "up trend sells overbought", bars: closes(100, 100, 100), inds: up(with(func(i *indicator.Indicator) { i.RSI, i.RSIMA = 70, 75 })), expected: Sell},
		{name: "up trend ignores upper band", bars: closes(115, 100, 100), inds: up(neutral), expected: Hold},
		{name: "down trend sells on rsi cross", bars: closes(100, 100, 100), inds: down(with(func(i *indicator.Indicator) { i.RSI = 45 })), expected: Sell},
		{name: "down trend buys oversold stoch", bars: closes(100, 100, 100), inds: down(with(func(i *indicator.Indicator) { i.StochK = 10 })), expected: Buy},
		{name: "down trend ignores lower band", bars: closes(85, 100, 100), inds: down(neutral), expected: Hold},
		{name: "too short", bars: closes(100, 100), inds: []indicator.Indicator{neutral, neutral}, expected: Hold},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, TechStrategy{}.Decide(tc.bars, tc.inds).Signal)
		})
	}
}
