package recorder

import "time"

// Run outcomes stored in training_runs.status.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// TrainingRun summarises one training cycle, successful or not.
type TrainingRun struct {
	RunID       string
	Symbol      string
	Status      string
	FailedStage string
	Rows        int
	Samples     int
	TrainLoss   float64
	ValLoss     float64
	StartedAt   time.Time
	Duration    time.Duration
	Error       string
}

// ForecastEvent records one inference result.
type ForecastEvent struct {
	Symbol       string
	ModelVersion string
	LastDate     string
	LastClose    float64
	ForecastDate string
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       int64
	Error        string
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordTrainingRun(run *TrainingRun) error
	RecordForecast(evt *ForecastEvent) error
	Close() error
}
