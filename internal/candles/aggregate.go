package candles

import (
	"time"

	"tradesmart-bot-go/internal/market"
)

// bucket accumulates the trades of one candlestick. Trades arrive newest first,
// so the first trade seen sets the close and the last one seen sets the open.
type bucket struct {
	openTime time.Time
	open     float64
	close    float64
	high     float64
	low      float64
	volume   float64
}

func newBucket(openTime time.Time, t market.Trade) *bucket {
	return &bucket{
		openTime: openTime,
		open:     t.Price,
		close:    t.Price,
		high:     t.Price,
		low:      t.Price,
		volume:   t.Size,
	}
}

func (b *bucket) add(t market.Trade) {
	b.open = t.Price
	if t.Price > b.high {
		b.high = t.Price
	}
	if t.Price < b.low {
		b.low = t.Price
	}
	b.volume += t.Size
}

func (b *bucket) candle() market.CandleStick {
	return market.NewCandleStick(b.open, b.close, b.high, b.low, b.volume, b.openTime)
}

// Aggregate orders trades newest first and converts them into candlesticks.
// See AggregateOrdered for the cache semantics.
func Aggregate(trades []market.Trade, interval Interval, cache []market.CandleStick) ([]market.CandleStick, error) {
	if err := interval.Validate(); err != nil {
		return nil, err
	}
	return AggregateOrdered(OrderDesc(trades), interval, cache)
}

// AggregateOrdered converts trades, which must already be ordered newest first,
// into candlesticks ordered newest first.
//
// cache is a previous result for the same interval. When a bucket being built
// opens exactly at cache[0].OpenTime, that bucket is finished from the trades
// and the rest of the cache is appended in place of scanning older trades.
// A cache whose head never lines up with a bucket is ignored.
func AggregateOrdered(trades []market.Trade, interval Interval, cache []market.CandleStick) ([]market.CandleStick, error) {
	return aggregate(len(trades), func(i int) market.Trade { return trades[i] }, interval, cache)
}

// AggregateAscending is AggregateOrdered for trades ordered oldest first. The
// slice is read from its end, so a cache hit only touches the newest buckets.
func AggregateAscending(trades []market.Trade, interval Interval, cache []market.CandleStick) ([]market.CandleStick, error) {
	n := len(trades)
	return aggregate(n, func(i int) market.Trade { return trades[n-1-i] }, interval, cache)
}

// aggregate scans n trades, newest first, through at.
func aggregate(n int, at func(int) market.Trade, interval Interval, cache []market.CandleStick) ([]market.CandleStick, error) {
	if err := interval.Validate(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	var out []market.CandleStick
	first := at(0)
	openTime := interval.Floor(first.ExecutionTime)
	splice := cacheStartsAt(cache, openTime)
	cur := newBucket(openTime, first)

	for i := 1; i < n; i++ {
		t := at(i)
		if !t.ExecutionTime.Before(cur.openTime) {
			cur.add(t)
			continue
		}
		out = append(out, cur.candle())
		if splice {
			return append(out, cache[1:]...), nil
		}
		// Gaps in trading leave gaps in the output, no empty bars are synthesised.
		openTime = interval.Floor(t.ExecutionTime)
		splice = cacheStartsAt(cache, openTime)
		cur = newBucket(openTime, t)
	}

	out = append(out, cur.candle())
	if splice {
		out = append(out, cache[1:]...)
	}
	return out, nil
}

func cacheStartsAt(cache []market.CandleStick, openTime time.Time) bool {
	return len(cache) > 0 && cache[0].OpenTime.Equal(openTime)
}
