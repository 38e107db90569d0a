package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"tradesmart-bot-go/internal/market"
)

// DefaultFlushSize is the number of buffered trades that triggers a write to storage.
const DefaultFlushSize = 10000

// Source serves pages of executions, newest first. A beforeID of zero asks
// for the most recent page.
type Source interface {
	FetchPage(ctx context.Context, symbol string, beforeID int64) ([]market.RawTrade, error)
}

// Store persists trades. BulkInsert must ignore ids that are already stored.
type Store interface {
	BulkInsert(ctx context.Context, exchange, symbol string, trades []market.Trade) (int64, error)
	LatestTradeTime(ctx context.Context, exchange, symbol string) (time.Time, bool, error)
}

// Acquirer admits one upstream call. *ratelimit.Limiter implements it.
type Acquirer interface {
	Acquire(ctx context.Context) error
}

// Result summarises one Ingest call.
type Result struct {
	Fetched    int           `json:"fetched"`
	Skipped    int           `json:"skipped"`
	Inserted   int64         `json:"inserted"`
	Pages      int           `json:"pages"`
	Flushes    int           `json:"flushes"`
	LowerBound time.Time     `json:"lower_bound"`
	Oldest     time.Time     `json:"oldest"`
	Took       time.Duration `json:"took"`
}

// Loop downloads trade history page by page into a Store.
type Loop struct {
	source    Source
	store     Store
	limiter   Acquirer
	clock     clock.Clock
	exchange  string
	flushSize int
	logger    *zap.Logger
}

// NewLoop creates a Loop. A nil clock means the wall clock and a non-positive
// flushSize means DefaultFlushSize.
func NewLoop(source Source, store Store, limiter Acquirer, clk clock.Clock, exchange string, flushSize int, logger *zap.Logger) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	if flushSize <= 0 {
		flushSize = DefaultFlushSize
	}
	return &Loop{
		source:    source,
		store:     store,
		limiter:   limiter,
		clock:     clk,
		exchange:  exchange,
		flushSize: flushSize,
		logger:    logger.Named("ingest"),
	}
}

// Ingest fetches symbol's trades from the newest one back to the lower bound,
// which is since or the newest stored trade, whichever is later. Upstream
// errors are returned unretried. Trades buffered but not yet flushed when an
// error occurs are dropped.
func (l *Loop) Ingest(ctx context.Context, symbol string, since time.Time) (Result, error) {
	log := l.logger.With(zap.String("exchange", l.exchange), zap.String("symbol", symbol))
	started := l.clock.Now()
	res := Result{LowerBound: since.UTC()}

	latest, ok, err := l.store.LatestTradeTime(ctx, l.exchange, symbol)
	if err != nil {
		return res, fmt.Errorf("could not read latest trade time: %w", err)
	}
	if ok && latest.After(res.LowerBound) {
		res.LowerBound = latest.UTC()
	}
	log.Info("Starting ingestion", zap.Time("lower_bound", res.LowerBound))

	buf := make([]market.Trade, 0, l.flushSize)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		n, err := l.store.BulkInsert(ctx, l.exchange, symbol, buf)
		if err != nil {
			return fmt.Errorf("could not flush %d trades: %w", len(buf), err)
		}
		res.Inserted += n
		res.Flushes++
		log.Debug("Flushed trades", zap.Int("buffered", len(buf)), zap.Int64("inserted", n))
		buf = make([]market.Trade, 0, l.flushSize)
		return nil
	}

	var beforeID int64
	for {
		if err := l.limiter.Acquire(ctx); err != nil {
			return res, err
		}
		page, err := l.source.FetchPage(ctx, symbol, beforeID)
		if err != nil {
			return res, fmt.Errorf("fetch page before %d: %w", beforeID, err)
		}
		res.Pages++
		if len(page) == 0 {
			log.Info("Source history exhausted", zap.Int64("before_id", beforeID))
			break
		}

		cursor := beforeID
		for _, raw := range page {
			if cursor == 0 || raw.ID < cursor {
				cursor = raw.ID
			}
			t, err := raw.ToTrade()
			if err != nil {
				res.Skipped++
				log.Warn("Skipping invalid trade", zap.Error(err))
				continue
			}
			buf = append(buf, t)
			if res.Oldest.IsZero() || t.ExecutionTime.Before(res.Oldest) {
				res.Oldest = t.ExecutionTime
			}
		}
		res.Fetched += len(page)
		if beforeID != 0 && cursor >= beforeID {
			return res, fmt.Errorf("page before %d did not advance the cursor", beforeID)
		}
		beforeID = cursor

		if len(buf) >= l.flushSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
		if !res.Oldest.IsZero() && !res.Oldest.After(res.LowerBound) {
			break
		}
	}

	if err := flush(); err != nil {
		return res, err
	}
	res.Took = l.clock.Since(started)
	log.Info("Ingestion finished",
		zap.Int("fetched", res.Fetched),
		zap.Int64("inserted", res.Inserted),
		zap.Int("pages", res.Pages),
		zap.Duration("took", res.Took))
	return res, nil
}
