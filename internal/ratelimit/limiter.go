package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Budget is an upstream call allowance of Calls per Window. Margin calls are held
// back so that clock skew against the server never tips us over the real limit.
// It is decoded directly from the budget section of the configuration.
type Budget struct {
	Calls  int           `mapstructure:"calls"`
	Window time.Duration `mapstructure:"window"`
	Margin int           `mapstructure:"margin"`
}

// Threshold is the number of calls allowed in a window before callers are throttled.
func (b Budget) Threshold() int {
	t := b.Calls - b.Margin
	if t < 1 {
		return 1
	}
	return t
}

// Stats is a snapshot of the current window.
type Stats struct {
	WindowStart time.Time `json:"window_start"`
	Calls       int       `json:"calls"`
	Threshold   int       `json:"threshold"`
}

// Limiter enforces a Budget with a fixed window that opens on the first call
// after the previous window expired. It is safe for concurrent use but only
// coordinates callers inside one process: every process holding its own Limiter
// gets the full budget.
type Limiter struct {
	budget Budget
	clock  clock.Clock
	logger *zap.Logger

	// turn serialises Acquire so a throttled caller holds everyone else back
	// until the fresh window opens.
	turn chan struct{}

	mu          sync.Mutex
	windowStart time.Time
	calls       int
}

// New creates a Limiter. A nil clock means the wall clock.
func New(budget Budget, clk clock.Clock, logger *zap.Logger) *Limiter {
	if clk == nil {
		clk = clock.New()
	}
	return &Limiter{
		budget: budget,
		clock:  clk,
		logger: logger.Named("ratelimit"),
		turn:   make(chan struct{}, 1),
	}
}

// Acquire blocks until one more upstream call is allowed and records it. It must
// be called immediately before every request. The only error is ctx's.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.turn }()

	now := l.clock.Now()
	l.mu.Lock()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) > l.budget.Window {
		l.windowStart, l.calls = now, 0
	}
	used, elapsed := l.calls, now.Sub(l.windowStart)
	l.mu.Unlock()

	if used >= l.budget.Threshold() {
		if wait := l.budget.Window - elapsed; wait > 0 {
			l.logger.Warn("Call budget used up, throttling",
				zap.Int("calls", used),
				zap.Int("budget", l.budget.Calls),
				zap.Duration("wait", wait))
			timer := l.clock.Timer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
		l.mu.Lock()
		l.windowStart, l.calls = l.clock.Now(), 0
		l.mu.Unlock()
	}

	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return nil
}

// Stats returns the state of the current window.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{WindowStart: l.windowStart, Calls: l.calls, Threshold: l.budget.Threshold()}
}
