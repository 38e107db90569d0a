package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSide(t *testing.T) {
	testCases := []struct {
		input    string
		expected Side
	}{
		{input: "BUY", expected: SideBuy},
		{input: "sell", expected: SideSell},
		{input: "", expected: SideUnknown},
		{input: "HOLD", expected: SideUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseSide(tc.input))
		})
	}
	assert.Equal(t, "BUY", SideBuy.String())
	assert.Equal(t, "", SideUnknown.String())
}

func TestRawTradeToTrade(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	raw := RawTrade{ID: 7, Side: "SELL", Amount: 0.5, Price: 100, Datetime: time.Date(2024, 1, 1, 9, 0, 0, 0, tokyo)}

	tr, err := raw.ToTrade()

	assert.NoError(t, err)
	assert.Equal(t, SideSell, tr.Side)
	assert.Equal(t, time.UTC, tr.ExecutionTime.Location())
	assert.Equal(t, 0, tr.ExecutionTime.Hour())

	_, err = RawTrade{ID: 8, Amount: 0, Price: 1}.ToTrade()
	assert.Error(t, err)
}

func TestNewCandleStickRoundsVolume(t *testing.T) {
	c := NewCandleStick(1, 2, 3, 0.5, 1.23456, time.Time{})

	assert.Equal(t, 1.235, c.Volume)
	assert.Equal(t, 0.5, c.Low)
}
