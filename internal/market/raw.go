package market

import (
	"fmt"
	"time"
)

// RawTrade is an execution as reported by a market data source, before the
// side is decoded and the record validated.
type RawTrade struct {
	ID       int64
	Side     string
	Amount   float64
	Price    float64
	Datetime time.Time
}

// ToTrade validates r and converts it into a Trade.
func (r RawTrade) ToTrade() (Trade, error) {
	if r.Price <= 0 || r.Amount <= 0 {
		return Trade{}, fmt.Errorf("trade %d has non-positive price %v or size %v", r.ID, r.Price, r.Amount)
	}
	return Trade{
		ID:            r.ID,
		Side:          ParseSide(r.Side),
		Size:          r.Amount,
		Price:         r.Price,
		ExecutionTime: r.Datetime.UTC(),
	}, nil
}
