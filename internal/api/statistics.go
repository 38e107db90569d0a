package api

import (
	"time"

	"tradesmart-bot-go/internal/models"
)

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	TotalTrades      int64   `json:"total_trades"`
	ProfitableTrades int64   `json:"profitable_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalProfit      float64 `json:"total_profit"`
}

func (s *StatsDetail) add(profit float64) {
	s.TotalTrades++
	if profit > 0 {
		s.ProfitableTrades++
	}
	s.TotalProfit += profit
	s.WinRate = float64(s.ProfitableTrades) / float64(s.TotalTrades)
}

// StatisticsResponse is the structure for the /api/backtests/:id/statistics endpoint.
type StatisticsResponse struct {
	Last24h     StatsDetail `json:"last_24h"`
	AllTime     StatsDetail `json:"all_time"`
	Buys        int64       `json:"buys"`
	Balance     float64     `json:"balance"`
	FinalEquity float64     `json:"final_equity"`
	Return      float64     `json:"return"`
}

// ComputeStatistics scores every SELL of a trade log against the average cost
// of the position it reduced. Last24h covers the final 24 hours of simulated
// time, ending at the last event.
func ComputeStatistics(events []models.BacktestEvent) StatisticsResponse {
	var resp StatisticsResponse
	if len(events) == 0 {
		return resp
	}
	since24h := events[len(events)-1].At.Add(-24 * time.Hour)

	var position, cost float64
	for _, e := range events {
		switch e.Action {
		case "BUY":
			resp.Buys++
			position += e.Size
			cost += e.Size * e.Price
		case "SELL":
			if position <= 0 || e.Size <= 0 {
				continue
			}
			size := e.Size
			if size > position {
				size = position
			}
			basis := cost * size / position
			profit := size*e.Price - basis
			position -= size
			cost -= basis

			resp.AllTime.add(profit)
			if e.At.After(since24h) {
				resp.Last24h.add(profit)
			}
		}
	}
	return resp
}
