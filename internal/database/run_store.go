package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"tradesmart-bot-go/internal/models"
)

// RunStore persists backtest runs and their trade logs.
type RunStore struct {
	db *gorm.DB
}

// NewRunStore creates a RunStore.
func NewRunStore(db *gorm.DB) *RunStore {
	return &RunStore{db: db}
}

// CreateRun inserts a new run.
func (s *RunStore) CreateRun(ctx context.Context, run *models.BacktestRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("could not create backtest run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final state of run.
func (s *RunStore) FinishRun(ctx context.Context, run *models.BacktestRun) error {
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("could not finish backtest run %s: %w", run.ID, err)
	}
	return nil
}

// AppendEvent adds one entry to a run's trade log.
func (s *RunStore) AppendEvent(ctx context.Context, event *models.BacktestEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("could not append event to backtest run %s: %w", event.RunID, err)
	}
	return nil
}

// ListRuns returns runs newest first, optionally restricted to one symbol.
func (s *RunStore) ListRuns(ctx context.Context, symbol string, limit int) ([]models.BacktestRun, error) {
	var runs []models.BacktestRun
	q := s.db.WithContext(ctx).Order("started_at desc")
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("could not list backtest runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with the given id or ErrNotFound.
func (s *RunStore) GetRun(ctx context.Context, id string) (*models.BacktestRun, error) {
	var run models.BacktestRun
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&run).Error; err != nil {
		return nil, fmt.Errorf("could not get backtest run %s: %w", id, notFound(err))
	}
	return &run, nil
}

// ListEvents returns the trade log of a run in the order it was written.
func (s *RunStore) ListEvents(ctx context.Context, runID string) ([]models.BacktestEvent, error) {
	var events []models.BacktestEvent
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("seq asc").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("could not list events of backtest run %s: %w", runID, err)
	}
	return events, nil
}

// DeleteRun removes a run and its events.
func (s *RunStore) DeleteRun(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&models.BacktestEvent{}).Error; err != nil {
			return fmt.Errorf("could not delete events of backtest run %s: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&models.BacktestRun{})
		if res.Error != nil {
			return fmt.Errorf("could not delete backtest run %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("could not delete backtest run %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
