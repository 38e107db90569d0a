package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradesmart-bot-go/internal/market"
	"tradesmart-bot-go/internal/models"
)

const insertBatchSize = 500

// TradeStore persists trades per (exchange, symbol).
type TradeStore struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewTradeStore creates a TradeStore. A nil clock means the wall clock.
func NewTradeStore(db *gorm.DB, clk clock.Clock) *TradeStore {
	if clk == nil {
		clk = clock.New()
	}
	return &TradeStore{db: db, clock: clk}
}

func (s *TradeStore) market(ctx context.Context, exchange, symbol string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Trade{}).
		Where("exchange = ? AND symbol = ?", exchange, symbol)
}

// BulkInsert stores trades, silently skipping ids that are already stored.
// It returns the number of rows actually inserted.
func (s *TradeStore) BulkInsert(ctx context.Context, exchange, symbol string, trades []market.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	records := make([]models.Trade, len(trades))
	for i, t := range trades {
		records[i] = models.NewTrade(exchange, symbol, t)
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&records, insertBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("could not insert %d trades of %s %s: %w", len(trades), exchange, symbol, res.Error)
	}
	return res.RowsAffected, nil
}

// QuerySince returns the trades of the last lookbackDays days, newest first.
func (s *TradeStore) QuerySince(ctx context.Context, exchange, symbol string, lookbackDays int) ([]market.Trade, error) {
	since := s.clock.Now().UTC().AddDate(0, 0, -lookbackDays)
	return s.QueryRange(ctx, exchange, symbol, since, 0)
}

// QueryRange returns trades executed at or after since, newest first. A positive
// limit keeps only the newest limit trades.
func (s *TradeStore) QueryRange(ctx context.Context, exchange, symbol string, since time.Time, limit int) ([]market.Trade, error) {
	var records []models.Trade
	q := s.market(ctx, exchange, symbol).
		Where("execution_time >= ?", since.UTC()).
		Order("execution_time desc").Order("trade_id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("could not query trades of %s %s: %w", exchange, symbol, err)
	}

	trades := make([]market.Trade, len(records))
	for i, r := range records {
		trades[i] = r.Market()
	}
	return trades, nil
}

// LatestTradeTime returns the execution time of the newest stored trade.
// The bool is false when nothing is stored for the market.
func (s *TradeStore) LatestTradeTime(ctx context.Context, exchange, symbol string) (time.Time, bool, error) {
	return s.edgeTime(ctx, exchange, symbol, "execution_time desc")
}

// OldestTradeTime returns the execution time of the oldest stored trade.
func (s *TradeStore) OldestTradeTime(ctx context.Context, exchange, symbol string) (time.Time, bool, error) {
	return s.edgeTime(ctx, exchange, symbol, "execution_time asc")
}

func (s *TradeStore) edgeTime(ctx context.Context, exchange, symbol, order string) (time.Time, bool, error) {
	var record models.Trade
	err := s.market(ctx, exchange, symbol).Order(order).Limit(1).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("could not read trade time of %s %s: %w", exchange, symbol, err)
	}
	return record.ExecutionTime.UTC(), true, nil
}

// CountTrades returns the number of stored trades of the market.
func (s *TradeStore) CountTrades(ctx context.Context, exchange, symbol string) (int64, error) {
	var n int64
	if err := s.market(ctx, exchange, symbol).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("could not count trades of %s %s: %w", exchange, symbol, err)
	}
	return n, nil
}
