package candles

import (
	"sort"

	"tradesmart-bot-go/internal/market"
)

// IsDesc reports whether trades are non-increasing by execution time.
func IsDesc(trades []market.Trade) bool {
	for i := 1; i < len(trades); i++ {
		if trades[i].ExecutionTime.After(trades[i-1].ExecutionTime) {
			return false
		}
	}
	return true
}

// OrderDesc returns trades ordered newest first. Input that is already ordered,
// which is the common case for paginated data, is returned as-is. Otherwise a
// sorted copy is returned; trades with equal timestamps keep their input order.
func OrderDesc(trades []market.Trade) []market.Trade {
	if IsDesc(trades) {
		return trades
	}
	sorted := make([]market.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExecutionTime.After(sorted[j].ExecutionTime)
	})
	return sorted
}
