package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesmart-bot-go/internal/candles"
	"tradesmart-bot-go/internal/database"
	"tradesmart-bot-go/internal/market"
	"tradesmart-bot-go/internal/models"
	"tradesmart-bot-go/internal/trader"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultInterval     = "5m"
	DefaultDays         = 1
	DefaultTradeLimit   = 100
	MaxTradeLimit       = 1000
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"
)

// Markets serves stored market data. *trader.Engine implements it.
type Markets interface {
	Status(ctx context.Context) (trader.Status, error)
	Trades(ctx context.Context, symbol string, limit int) ([]market.Trade, error)
	Candles(ctx context.Context, symbol string, interval candles.Interval, days int) ([]market.CandleStick, error)
}

// Runs serves recorded backtests. *database.RunStore implements it.
type Runs interface {
	ListRuns(ctx context.Context, symbol string, limit int) ([]models.BacktestRun, error)
	GetRun(ctx context.Context, id string) (*models.BacktestRun, error)
	ListEvents(ctx context.Context, runID string) ([]models.BacktestEvent, error)
	DeleteRun(ctx context.Context, id string) error
}

var (
	_ Markets = (*trader.Engine)(nil)
	_ Runs    = (*database.RunStore)(nil)
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	markets Markets
	runs    Runs
	logger  *zap.Logger
	clock   func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(markets Markets, runs Runs, logger *zap.Logger) *APIHandler {
	return &APIHandler{markets: markets, runs: runs, logger: logger.Named("api"), clock: time.Now}
}

// SetupRoutes configures all API routes.
func (h *APIHandler) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(h.loggerMiddleware())
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.GET("/health", h.HealthCheck)
	api.GET("/status", h.GetStatus)
	api.GET("/trades/:symbol", h.GetTrades)
	api.GET("/candles/:symbol", h.GetCandles)
	api.GET("/backtests", h.ListBacktests)
	api.GET("/backtests/:id", h.GetBacktest)
	api.GET("/backtests/:id/events", h.GetBacktestEvents)
	api.GET("/backtests/:id/statistics", h.GetBacktestStatistics)
	api.DELETE("/backtests/:id", h.DeleteBacktest)
	return router
}

// Server runs the API over HTTP.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer creates a Server listening on port.
func NewServer(port int, handler *APIHandler, logger *zap.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler.SetupRoutes(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.Named("api-server"),
	}
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// ListenAndServe runs the HTTP server until it fails or is stopped.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}
