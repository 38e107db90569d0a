package backtest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// State is the simulator state.
type State string

const (
	StateRunning State = "RUNNING"
	StateHalted  State = "HALTED"
)

// HaltReason tells why a run reached StateHalted.
type HaltReason string

const (
	HaltReasonNone      HaltReason = ""
	HaltReasonLossCut   HaltReason = "loss_cut"
	HaltReasonExhausted HaltReason = "data_exhausted"
)

// Action is the kind of a trade log entry.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHalt Action = "HALT"
)

// Entry is one state transition of a run.
type Entry struct {
	Seq      int        `json:"seq"`
	At       time.Time  `json:"at"`
	Action   Action     `json:"action"`
	Price    float64    `json:"price"`
	Size     float64    `json:"size"`
	Cash     float64    `json:"cash"`
	Position float64    `json:"position"`
	State    State      `json:"state"`
	Reason   HaltReason `json:"reason,omitempty"`
}

// Sink receives every Entry as it is appended to the trade log.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// MultiSink fans entries out to several sinks and joins their errors.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes entries to a zap logger, typically the per-market file logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, e Entry) error {
	fields := []zap.Field{
		zap.Int("seq", e.Seq),
		zap.Time("at", e.At),
		zap.String("action", string(e.Action)),
		zap.Float64("price", e.Price),
		zap.Float64("size", e.Size),
		zap.Float64("position", e.Position),
		zap.Float64("cash", e.Cash),
		zap.String("state", string(e.State)),
	}
	if e.Reason == HaltReasonLossCut {
		s.logger.Warn("LOSS CUT", fields...)
		return nil
	}
	if e.Reason != HaltReasonNone {
		fields = append(fields, zap.String("reason", string(e.Reason)))
	}
	s.logger.Info(string(e.Action), fields...)
	return nil
}
