package strategy

import (
	"tradesmart-bot-go/internal/indicator"
	"tradesmart-bot-go/internal/market"
)

// TechStrategy reads the SMA20 slope over two bars as the market regime and
// combines RSI, stochastic and Bollinger readings: in an up trend it buys on any
// buy hint and sells only on overbought values, in a down trend the reverse.
type TechStrategy struct{}

func (TechStrategy) Name() string { return "tech" }

func (TechStrategy) Decide(bars []market.CandleStick, inds []indicator.Indicator) Decision {
	if len(bars) < 1 || len(inds) < 3 {
		return hold()
	}
	cur := inds[0]

	rising := cur.SMA20 > inds[2].SMA20
	falling := cur.SMA20 < inds[2].SMA20

	buyRSICross := cur.RSI > cur.RSIMA
	sellRSICross := cur.RSI < cur.RSIMA
	buyRSI := cur.RSI < 32
	sellRSI := cur.RSI > 68

	buyStoch := cur.StochK < 22 || cur.StochD < 22
	sellStoch := cur.StochK > 78 || cur.StochD > 78

	buyBB := bars[0].Close < cur.BBMinus2
	sellBB := bars[0].Close > cur.BBPlus2

	switch {
	case rising:
		if buyRSICross || buyRSI || buyStoch || buyBB {
			return Decision{Signal: Buy}
		}
		if sellRSI || sellStoch {
			return Decision{Signal: Sell}
		}
	case falling:
		if buyRSI || buyStoch {
			return Decision{Signal: Buy}
		}
		if sellRSICross || sellRSI || sellStoch || sellBB {
			return Decision{Signal: Sell}
		}
	}
	return hold()
}
