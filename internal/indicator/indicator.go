package indicator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"tradesmart-bot-go/internal/market"
)

// MinBars is the shortest history every indicator except SMA200 is warmed up on.
// MACD(12,26,9) has the longest lookback: 33 bars.
const MinBars = 34

const (
	stochFastK  = 14
	stochSlowK  = 3
	stochSlowD  = 3
	bbPeriod    = 20
	smaShort    = 20
	smaLong     = 200
	rsiPeriod   = 14
	rsiMAPeriod = 14
	macdFast    = 12
	macdSlow    = 26
	macdSignal  = 9
)

// ErrInsufficientHistory is returned when there are fewer than MinBars bars.
var ErrInsufficientHistory = errors.New("insufficient history")

// Indicator holds the indicator values of one bar. Values whose lookback is
// longer than the available history are zero.
type Indicator struct {
	BBPlus2    float64   `json:"bb_plus_2"`
	BBPlus3    float64   `json:"bb_plus_3"`
	BBMinus2   float64   `json:"bb_minus_2"`
	BBMinus3   float64   `json:"bb_minus_3"`
	StochK     float64   `json:"stoch_k"`
	StochD     float64   `json:"stoch_d"`
	SMA20      float64   `json:"sma_20"`
	SMA200     float64   `json:"sma_200"`
	RSI        float64   `json:"rsi"`
	RSIMA      float64   `json:"rsi_ma"`
	MACD       float64   `json:"macd"`
	MACDSignal float64   `json:"macd_signal"`
	MACDHist   float64   `json:"macd_hist"`
	OpenTime   time.Time `json:"opentime"`
}

// Compute derives indicators from bars ordered newest first. The result is
// aligned with bars: result[i] belongs to bars[i].
func Compute(bars []market.CandleStick) ([]Indicator, error) {
	n := len(bars)
	if n < MinBars {
		return nil, fmt.Errorf("%w: need %d bars, got %d", ErrInsufficientHistory, MinBars, n)
	}

	// talib wants the oldest value first.
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		j := n - 1 - i
		closes[j] = b.Close
		highs[j] = b.High
		lows[j] = b.Low
	}

	stochK, stochD := talib.Stoch(highs, lows, closes, stochFastK, stochSlowK, talib.SMA, stochSlowD, talib.SMA)
	bbUp2, _, bbDown2 := talib.BBands(closes, bbPeriod, 2, 2, talib.SMA)
	bbUp3, _, bbDown3 := talib.BBands(closes, bbPeriod, 3, 3, talib.SMA)
	sma20 := talib.Sma(closes, smaShort)
	sma200 := make([]float64, n)
	if n >= smaLong {
		sma200 = talib.Sma(closes, smaLong)
	}
	rsi := talib.Rsi(closes, rsiPeriod)
	rsiMA := movingAverage(rsi, rsiPeriod, rsiMAPeriod)
	macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)

	out := make([]Indicator, n)
	for i, b := range bars {
		j := n - 1 - i
		out[i] = Indicator{
			BBPlus2:    clean(bbUp2[j]),
			BBPlus3:    clean(bbUp3[j]),
			BBMinus2:   clean(bbDown2[j]),
			BBMinus3:   clean(bbDown3[j]),
			StochK:     clean(stochK[j]),
			StochD:     clean(stochD[j]),
			SMA20:      clean(sma20[j]),
			SMA200:     clean(sma200[j]),
			RSI:        clean(rsi[j]),
			RSIMA:      clean(rsiMA[j]),
			MACD:       clean(macd[j]),
			MACDSignal: clean(signal[j]),
			MACDHist:   clean(hist[j]),
			OpenTime:   b.OpenTime,
		}
	}
	return out, nil
}

// movingAverage is the SMA of series ignoring its first skip warm-up values.
func movingAverage(series []float64, skip, period int) []float64 {
	out := make([]float64, len(series))
	if len(series)-skip < period {
		return out
	}
	copy(out[skip:], talib.Sma(series[skip:], period))
	return out
}

func clean(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
