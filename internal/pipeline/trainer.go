package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PriceForecaster/internal/artifact"
	"PriceForecaster/internal/features"
	"PriceForecaster/internal/metrics"
	"PriceForecaster/internal/model"
	"PriceForecaster/internal/recorder"
	"PriceForecaster/internal/regressor"
	"PriceForecaster/internal/scaler"
	"PriceForecaster/internal/sequence"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("training run already in progress")

// TrainerConfig controls what a training run fetches and how it splits samples.
type TrainerConfig struct {
	Symbol          string
	Lookback        time.Duration
	WindowLength    int
	ValidationSplit float64
}

// RunSummary describes a completed training run.
type RunSummary struct {
	RunID        string
	Symbol       string
	Bars         int
	Rows         int
	Samples      int
	TrainSamples int
	ValSamples   int
	TrainLoss    float64
	ValLoss      float64
	FirstDate    time.Time
	LastDate     time.Time
	Degenerate   []string
	StartedAt    time.Time
	Duration     time.Duration
}

// Trainer runs fetch, feature engineering, scaling, sequencing, training and
// persistence for one symbol. Nothing is written unless every stage succeeds.
type Trainer struct {
	cfg      TrainerConfig
	source   HistorySource
	engineer features.Engineer
	model    regressor.Model
	store    artifact.Store

	Recorder recorder.Recorder
	Metrics  *metrics.Recorder

	log     zerolog.Logger
	stage   stageTracker
	running chan struct{}
	newID   func() string
}

func NewTrainer(cfg TrainerConfig, source HistorySource, engineer features.Engineer, m regressor.Model, store artifact.Store, log zerolog.Logger) *Trainer {
	if cfg.WindowLength <= 0 {
		cfg.WindowLength = sequence.DefaultLength
	}
	return &Trainer{
		cfg:      cfg,
		source:   source,
		engineer: engineer,
		model:    m,
		store:    store,
		Recorder: recorder.NewNoopRecorder(),
		log:      log.With().Str("component", "trainer").Str("symbol", cfg.Symbol).Logger(),
		running:  make(chan struct{}, 1),
		newID:    uuid.NewString,
	}
}

// Stage reports the step the current run is in, or StageIdle.
func (t *Trainer) Stage() Stage { return t.stage.get() }

func (t *Trainer) enter(st Stage) {
	t.stage.set(st)
	t.log.Info().Str("stage", string(st)).Msg("stage")
}

// Run executes one training cycle.
func (t *Trainer) Run(ctx context.Context) (*RunSummary, error) {
	select {
	case t.running <- struct{}{}:
	default:
		return nil, ErrRunInProgress
	}
	defer func() {
		t.stage.set(StageIdle)
		<-t.running
	}()

	sum := &RunSummary{RunID: t.newID(), Symbol: t.cfg.Symbol, StartedAt: time.Now()}
	if err := t.run(ctx, sum); err != nil {
		t.fail(sum, err)
		return nil, fmt.Errorf("%s: %w", t.Stage(), err)
	}
	sum.Duration = time.Since(sum.StartedAt)
	t.succeed(sum)
	return sum, nil
}

func (t *Trainer) run(ctx context.Context, sum *RunSummary) error {
	t.enter(StageFetching)
	window, err := t.source.TrainingWindow(ctx, t.cfg.Symbol, t.cfg.Lookback)
	if err != nil {
		return err
	}
	sum.Bars = window.Len()

	t.enter(StageFeatureEngineering)
	rows := t.engineer.Build(window)
	sum.Rows = len(rows)
	if need := t.cfg.WindowLength + 1; len(rows) < need {
		return &model.InsufficientHistoryError{Need: need, Got: len(rows)}
	}
	sum.FirstDate, sum.LastDate = rows[0].Date, rows[len(rows)-1].Date

	t.enter(StageFittingNormalizer)
	matrix := features.Matrix(rows)
	state, err := scaler.Fit(t.cfg.Symbol, sum.RunID, matrix)
	if err != nil {
		return err
	}
	state.ShortWindow, state.LongWindow = t.engineer.Short, t.engineer.Long
	var degenerate *model.ScaleDegenerateError
	if errors.As(state.DegenerateError(), &degenerate) {
		sum.Degenerate = degenerate.Features
		t.log.Warn().Strs("features", degenerate.Features).Msg("constant features scale to zero")
	}
	scaled, err := state.Transform(matrix)
	if err != nil {
		return err
	}

	t.enter(StageSequencing)
	samples := sequence.Build(scaled, t.cfg.WindowLength)
	if len(samples) == 0 {
		return &model.InsufficientHistoryError{Need: t.cfg.WindowLength + 1, Got: len(scaled)}
	}
	train, validation := sequence.Split(samples, t.cfg.ValidationSplit)
	sum.Samples, sum.TrainSamples, sum.ValSamples = len(samples), len(train), len(validation)

	t.enter(StageTraining)
	weights, report, err := t.model.Train(ctx, train, validation)
	if err != nil {
		return err
	}
	weights.Version = sum.RunID
	weights.Symbol = t.cfg.Symbol
	weights.TrainedAt = time.Now().UTC()
	final := report.Final()
	sum.TrainLoss, sum.ValLoss = final.TrainLoss, final.ValLoss

	t.enter(StagePersisting)
	return artifact.Publish(ctx, t.store, state, weights)
}

func (t *Trainer) succeed(sum *RunSummary) {
	t.log.Info().
		Str("run_id", sum.RunID).
		Int("bars", sum.Bars).
		Int("rows", sum.Rows).
		Int("samples", sum.Samples).
		Float64("train_loss", sum.TrainLoss).
		Float64("val_loss", sum.ValLoss).
		Dur("duration", sum.Duration).
		Msg("training completed")
	t.Metrics.TrainingSucceeded(sum.Symbol, sum.Duration, sum.TrainLoss, sum.ValLoss)
	t.record(&recorder.TrainingRun{
		RunID:     sum.RunID,
		Symbol:    sum.Symbol,
		Status:    recorder.StatusSuccess,
		Rows:      sum.Rows,
		Samples:   sum.Samples,
		TrainLoss: sum.TrainLoss,
		ValLoss:   sum.ValLoss,
		StartedAt: sum.StartedAt,
		Duration:  sum.Duration,
	})
}

func (t *Trainer) fail(sum *RunSummary, err error) {
	d := time.Since(sum.StartedAt)
	stage := t.Stage()
	t.log.Error().Err(err).Str("run_id", sum.RunID).Str("stage", string(stage)).Msg("training failed")
	t.Metrics.TrainingFailed(sum.Symbol, d)
	t.record(&recorder.TrainingRun{
		RunID:       sum.RunID,
		Symbol:      sum.Symbol,
		Status:      recorder.StatusFailed,
		FailedStage: string(stage),
		Rows:        sum.Rows,
		Samples:     sum.Samples,
		StartedAt:   sum.StartedAt,
		Duration:    d,
		Error:       err.Error(),
	})
}

func (t *Trainer) record(run *recorder.TrainingRun) {
	if err := t.Recorder.RecordTrainingRun(run); err != nil {
		t.log.Error().Err(err).Msg("record training run")
	}
}
