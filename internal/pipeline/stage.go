// Package pipeline wires the forecasting stages into a training run and an
// inference request.
package pipeline

import (
	"context"
	"sync"
	"time"

	"PriceForecaster/internal/model"
)

// Stage is the step a training run is currently executing.
type Stage string

const (
	StageIdle               Stage = "Idle"
	StageFetching           Stage = "Fetching"
	StageFeatureEngineering Stage = "FeatureEngineering"
	StageFittingNormalizer  Stage = "FittingNormalizer"
	StageSequencing         Stage = "Sequencing"
	StageTraining           Stage = "Training"
	StagePersisting         Stage = "Persisting"
)

// HistorySource supplies daily bars. *collector.Collector implements it.
type HistorySource interface {
	TrainingWindow(ctx context.Context, symbol string, lookback time.Duration) (*model.HistoryWindow, error)
	LatestWindow(ctx context.Context, symbol string, lookback time.Duration) (*model.HistoryWindow, error)
}

type stageTracker struct {
	mu    sync.RWMutex
	stage Stage
}

func (s *stageTracker) get() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stage == "" {
		return StageIdle
	}
	return s.stage
}

func (s *stageTracker) set(st Stage) {
	s.mu.Lock()
	s.stage = st
	s.mu.Unlock()
}
