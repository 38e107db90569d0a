package strategy

import (
	"tradesmart-bot-go/internal/indicator"
	"tradesmart-bot-go/internal/market"
)

// SimpleStrategy buys when an oversold stochastic coincides with the close
// crossing back above the lower 2σ Bollinger band, and sells on the mirror image.
// It is meant for exercising the simulator, not for real trading.
type SimpleStrategy struct{}

func (SimpleStrategy) Name() string { return "simple" }

func (SimpleStrategy) Decide(bars []market.CandleStick, inds []indicator.Indicator) Decision {
	if len(bars) < 2 || len(inds) < 2 {
		return hold()
	}
	cur, prev := inds[0], inds[1]

	if prev.StochD < 25 || prev.StochK < 25 {
		if bars[1].Close <= prev.BBMinus2 && bars[0].Close >= cur.BBMinus2 {
			return Decision{Signal: Buy}
		}
	}
	if prev.StochD > 75 || prev.StochK > 75 {
		if bars[1].Close >= prev.BBPlus2 && bars[0].Close <= cur.BBPlus2 {
			return Decision{Signal: Sell}
		}
	}
	return hold()
}
