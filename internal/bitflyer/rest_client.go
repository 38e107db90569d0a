package bitflyer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tradesmart-bot-go/internal/config"
)

const (
	defaultBaseURL = "https://api.bitflyer.com"
	// MaxPageSize is the largest count the executions endpoint accepts.
	MaxPageSize = 500
)

// execDateLayout is the exec_date format the API uses without a zone suffix. Such times are UTC.
const execDateLayout = "2006-01-02T15:04:05.999999999"

// RestClientInterface defines the interface for the bitFlyer public REST API client.
type RestClientInterface interface {
	FetchExecutions(ctx context.Context, productCode string, beforeID int64, count int) ([]Execution, error)
	GetHealth(ctx context.Context, productCode string) (string, error)
}

// RestClient is a client for the bitFlyer public REST API.
// It implements the RestClientInterface.
type RestClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new bitFlyer REST API client.
func NewRestClient(cfg *config.Exchange, logger *zap.Logger) *RestClient {
	url := cfg.BaseURL
	if url == "" {
		url = defaultBaseURL
	}
	logger.Info("Using bitFlyer public API", zap.String("base_url", url))

	client := resty.New().SetBaseURL(url)

	// rate.Limit is requests per second. The call budget is enforced separately by ratelimit.Limiter.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:  client,
		logger:  logger,
		limiter: limiter,
	}
}

// Execution is one entry of the /v1/executions response.
type Execution struct {
	ID       int64   `json:"id"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Size     float64 `json:"size"`
	ExecDate string  `json:"exec_date"`
}

// ExecutionTime parses ExecDate. The API omits the zone, which means UTC.
func (e Execution) ExecutionTime() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, e.ExecDate); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(execDateLayout, strings.TrimSuffix(e.ExecDate, "Z"), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse exec_date %q of execution %d: %w", e.ExecDate, e.ID, err)
	}
	return t, nil
}

// FetchExecutions fetches up to count executions of productCode, newest first.
// A beforeID of zero requests the most recent page.
func (c *RestClient) FetchExecutions(ctx context.Context, productCode string, beforeID int64, count int) ([]Execution, error) {
	if count <= 0 || count > MaxPageSize {
		count = MaxPageSize
	}
	var executions []Execution

	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("product_code", productCode).
		SetQueryParam("count", strconv.Itoa(count)).
		SetResult(&executions)
	if beforeID > 0 {
		req.SetQueryParam("before", strconv.FormatInt(beforeID, 10))
	}

	if _, err := c.doRequest(ctx, "GET", "/v1/executions", req); err != nil {
		return nil, fmt.Errorf("failed to fetch executions: %w", err)
	}
	return executions, nil
}

// GetHealth returns the exchange status of productCode, e.g. NORMAL or BUSY.
// This is a good endpoint to test connectivity.
func (c *RestClient) GetHealth(ctx context.Context, productCode string) (string, error) {
	type healthResponse struct {
		Status string `json:"status"`
	}

	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("product_code", productCode).
		SetResult(&healthResponse{})

	resp, err := c.doRequest(ctx, "GET", "/v1/gethealth", req)
	if err != nil {
		c.logger.Error("Failed to get health", zap.Error(err))
		return "", fmt.Errorf("failed to get health: %w", err)
	}
	return resp.Result().(*healthResponse).Status, nil
}

// doRequest executes one request after the per-second limiter admits it. Failures
// are returned as-is: retrying is up to the caller.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
	}
	return resp, nil
}
