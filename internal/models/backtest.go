package models

import (
	"time"

	"gorm.io/gorm"
)

// BacktestRun is one simulator replay over a symbol's stored history.
type BacktestRun struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	Exchange       string         `gorm:"index:idx_runs_market" json:"exchange"`
	Symbol         string         `gorm:"index:idx_runs_market" json:"symbol"`
	Strategy       string         `json:"strategy"`
	BarInterval    string         `json:"bar_interval"`
	LookbackBars   int            `json:"lookback_bars"`
	PollInterval   time.Duration  `json:"poll_interval"`
	Balance        float64        `json:"balance"`
	InvestPerTrade float64        `json:"invest_per_trade"`
	LossCut        *float64       `json:"loss_cut,omitempty"`
	State          string         `json:"state"` // RUNNING, then HALTED, or FAILED when the run returned an error
	Reason         string         `json:"reason,omitempty"`
	Error          string         `json:"error,omitempty"`
	Polls          int            `json:"polls"`
	FinalCash      float64        `json:"final_cash"`
	FinalPosition  float64        `json:"final_position"`
	FinalEquity    float64        `json:"final_equity"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	CreatedAt      time.Time      `json:"-"`
	UpdatedAt      time.Time      `json:"-"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// BacktestEvent is one entry of a run's trade log.
type BacktestEvent struct {
	gorm.Model
	RunID    string    `gorm:"index:idx_events_run_seq,priority:1;size:36" json:"run_id"`
	Seq      int       `gorm:"index:idx_events_run_seq,priority:2" json:"seq"`
	At       time.Time `json:"at"`
	Action   string    `json:"action"` // "BUY", "SELL" or "HALT"
	Price    float64   `json:"price"`
	Size     float64   `json:"size"`
	Cash     float64   `json:"cash"`
	Position float64   `json:"position"`
	State    string    `json:"state"`
	Note     string    `json:"note,omitempty"`
}
