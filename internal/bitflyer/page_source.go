package bitflyer

import (
	"context"

	"tradesmart-bot-go/internal/market"
)

// PageSource serves executions one page at a time for the ingestion loop.
type PageSource struct {
	client   RestClientInterface
	pageSize int
}

// NewPageSource wraps client. A pageSize outside 1~MaxPageSize means MaxPageSize.
func NewPageSource(client RestClientInterface, pageSize int) *PageSource {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &PageSource{client: client, pageSize: pageSize}
}

// FetchPage returns the page of symbol executions older than beforeID, newest first.
func (s *PageSource) FetchPage(ctx context.Context, symbol string, beforeID int64) ([]market.RawTrade, error) {
	executions, err := s.client.FetchExecutions(ctx, symbol, beforeID, s.pageSize)
	if err != nil {
		return nil, err
	}

	page := make([]market.RawTrade, 0, len(executions))
	for _, e := range executions {
		at, err := e.ExecutionTime()
		if err != nil {
			return nil, err
		}
		page = append(page, market.RawTrade{
			ID:       e.ID,
			Side:     e.Side,
			Amount:   e.Size,
			Price:    e.Price,
			Datetime: at,
		})
	}
	return page, nil
}
