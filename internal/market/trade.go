package market

import (
	"math"
	"strings"
	"time"
)

// Side is the taker side of an execution.
type Side int

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// ParseSide decodes the exchange's side string. Anything other than BUY or SELL,
// including the empty string reported for itayose executions, is SideUnknown.
func ParseSide(s string) Side {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SideBuy
	case "SELL":
		return SideSell
	default:
		return SideUnknown
	}
}

// String returns the persisted form of the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return ""
	}
}

// Trade is a single executed tick. Trades are never mutated after they are created.
type Trade struct {
	ID            int64
	Side          Side
	Size          float64
	Price         float64
	ExecutionTime time.Time
}

// CandleStick is an OHLCV bar covering [OpenTime, OpenTime+interval).
type CandleStick struct {
	Open     float64   `json:"open"`
	Close    float64   `json:"close"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Volume   float64   `json:"volume"`
	OpenTime time.Time `json:"opentime"`
}

// volumePrecision is the number of decimals kept in CandleStick.Volume.
const volumePrecision = 3

// NewCandleStick builds a bar and rounds its volume.
func NewCandleStick(open, close, high, low, volume float64, openTime time.Time) CandleStick {
	p := math.Pow(10, volumePrecision)
	return CandleStick{
		Open:     open,
		Close:    close,
		High:     high,
		Low:      low,
		Volume:   math.Round(volume*p) / p,
		OpenTime: openTime,
	}
}
