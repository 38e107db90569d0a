package models

import (
	"time"

	"tradesmart-bot-go/internal/market"
)

// Trade is a persisted execution. The primary key is (exchange, symbol, trade id),
// so inserting a trade twice is a no-op.
type Trade struct {
	Exchange      string    `gorm:"primaryKey;index:idx_trades_market_time,priority:1" json:"exchange"`
	Symbol        string    `gorm:"primaryKey;index:idx_trades_market_time,priority:2" json:"symbol"`
	TradeID       int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Side          string    `json:"side"` // "BUY", "SELL" or empty
	Size          float64   `gorm:"not null" json:"size"`
	Price         float64   `gorm:"not null" json:"price"`
	ExecutionTime time.Time `gorm:"not null;index:idx_trades_market_time,priority:3" json:"execution_time"`
}

// NewTrade converts a domain trade into its record.
func NewTrade(exchange, symbol string, t market.Trade) Trade {
	return Trade{
		Exchange:      exchange,
		Symbol:        symbol,
		TradeID:       t.ID,
		Side:          t.Side.String(),
		Size:          t.Size,
		Price:         t.Price,
		ExecutionTime: t.ExecutionTime.UTC(),
	}
}

// Market returns the domain trade stored in r.
func (r Trade) Market() market.Trade {
	return market.Trade{
		ID:            r.TradeID,
		Side:          market.ParseSide(r.Side),
		Size:          r.Size,
		Price:         r.Price,
		ExecutionTime: r.ExecutionTime.UTC(),
	}
}
