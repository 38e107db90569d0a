package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesmart-bot-go/internal/candles"
	"tradesmart-bot-go/internal/database"
	"tradesmart-bot-go/internal/market"
)

// TradeView is the JSON form of a stored trade.
type TradeView struct {
	ID            int64     `json:"id"`
	Side          string    `json:"side"`
	Size          float64   `json:"size"`
	Price         float64   `json:"price"`
	ExecutionTime time.Time `json:"execution_time"`
}

func newTradeView(t market.Trade) TradeView {
	return TradeView{ID: t.ID, Side: t.Side.String(), Size: t.Size, Price: t.Price, ExecutionTime: t.ExecutionTime}
}

// HealthCheck handles GET /api/health.
func (h *APIHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": h.clock().UTC().Format(time.RFC3339),
	})
}

// GetStatus handles GET /api/status.
func (h *APIHandler) GetStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	status, err := h.markets.Status(ctx)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Failed to get status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetTrades handles GET /api/trades/:symbol?limit=N, newest first.
func (h *APIHandler) GetTrades(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	limit, err := positiveQuery(c, "limit", DefaultTradeLimit)
	if err != nil {
		h.handleError(c, err, http.StatusBadRequest, err.Error())
		return
	}
	if limit > MaxTradeLimit {
		limit = MaxTradeLimit
	}

	trades, err := h.markets.Trades(ctx, c.Param("symbol"), limit)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Failed to get trades")
		return
	}
	views := make([]TradeView, len(trades))
	for i, t := range trades {
		views[i] = newTradeView(t)
	}
	c.JSON(http.StatusOK, views)
}

// GetCandles handles GET /api/candles/:symbol?interval=5m&days=1, newest first.
func (h *APIHandler) GetCandles(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	interval, err := candles.ParseInterval(c.DefaultQuery("interval", DefaultInterval))
	if err != nil {
		h.handleError(c, err, http.StatusBadRequest, err.Error())
		return
	}
	days, err := positiveQuery(c, "days", DefaultDays)
	if err != nil {
		h.handleError(c, err, http.StatusBadRequest, err.Error())
		return
	}

	bars, err := h.markets.Candles(ctx, c.Param("symbol"), interval, days)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Failed to get candles")
		return
	}
	c.JSON(http.StatusOK, bars)
}

// ListBacktests handles GET /api/backtests?symbol=&limit=.
func (h *APIHandler) ListBacktests(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	limit, err := positiveQuery(c, "limit", 50)
	if err != nil {
		h.handleError(c, err, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := h.runs.ListRuns(ctx, c.Query("symbol"), limit)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Failed to list backtests")
		return
	}
	c.JSON(http.StatusOK, runs)
}

// GetBacktest handles GET /api/backtests/:id.
func (h *APIHandler) GetBacktest(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	run, err := h.runs.GetRun(ctx, c.Param("id"))
	if err != nil {
		h.handleStoreError(c, err, "Failed to get backtest")
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetBacktestEvents handles GET /api/backtests/:id/events.
func (h *APIHandler) GetBacktestEvents(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	id := c.Param("id")
	if _, err := h.runs.GetRun(ctx, id); err != nil {
		h.handleStoreError(c, err, "Failed to get backtest")
		return
	}
	events, err := h.runs.ListEvents(ctx, id)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Failed to get backtest events")
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetBacktestStatistics handles GET /api/backtests/:id/statistics.
func (h *APIHandler) GetBacktestStatistics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	id := c.Param("id")
	run, err := h.runs.GetRun(ctx, id)
	if err != nil {
		h.handleStoreError(c, err, "Failed to get backtest")
		return
	}
	events, err := h.runs.ListEvents(ctx, id)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Failed to calculate statistics")
		return
	}
	stats := ComputeStatistics(events)
	stats.Balance = run.Balance
	stats.FinalEquity = run.FinalEquity
	if run.Balance > 0 {
		stats.Return = (run.FinalEquity - run.Balance) / run.Balance
	}
	c.JSON(http.StatusOK, stats)
}

// DeleteBacktest handles DELETE /api/backtests/:id.
func (h *APIHandler) DeleteBacktest(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	if err := h.runs.DeleteRun(ctx, c.Param("id")); err != nil {
		h.handleStoreError(c, err, "Failed to delete backtest")
		return
	}
	c.Status(http.StatusNoContent)
}

// positiveQuery reads an optional positive integer query parameter.
func positiveQuery(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return n, nil
}

func (h *APIHandler) handleStoreError(c *gin.Context, err error, userMessage string) {
	if errors.Is(err, database.ErrNotFound) {
		h.handleError(c, err, http.StatusNotFound, "Backtest not found")
		return
	}
	h.handleError(c, err, http.StatusInternalServerError, userMessage)
}

// handleError logs the error and sends the response.
func (h *APIHandler) handleError(c *gin.Context, err error, statusCode int, userMessage string) {
	requestID := c.GetString(RequestIDContextKey)
	h.logger.Error("API error",
		zap.String("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status_code", statusCode),
		zap.Error(err))

	c.JSON(statusCode, gin.H{
		"error":      userMessage,
		"request_id": requestID,
	})
}
