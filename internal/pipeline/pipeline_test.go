package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"PriceForecaster/internal/artifact"
	"PriceForecaster/internal/collector"
	"PriceForecaster/internal/features"
	"PriceForecaster/internal/model"
	"PriceForecaster/internal/recorder"
	"PriceForecaster/internal/regressor"
	"PriceForecaster/internal/sequence"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const symbol = "SBIN.NS"

// weekdayBars returns n consecutive weekday bars starting 2015-01-01.
func weekdayBars(n int) []model.Bar {
	from := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := collector.GenerateBars(600, from, from.AddDate(0, 0, n*2))
	return bars[:n]
}

type fakeSource struct {
	bars []model.Bar
	err  error
}

func (f *fakeSource) window() (*model.HistoryWindow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return model.NewHistoryWindow(symbol, f.bars)
}

func (f *fakeSource) TrainingWindow(context.Context, string, time.Duration) (*model.HistoryWindow, error) {
	return f.window()
}

func (f *fakeSource) LatestWindow(context.Context, string, time.Duration) (*model.HistoryWindow, error) {
	return f.window()
}

// persistenceModel forecasts tomorrow's row as today's row.
type persistenceModel struct {
	trainErr  error
	panics    bool
	block     chan struct{}
	trainedOn int
}

func (m *persistenceModel) Train(_ context.Context, train, _ []sequence.Sample) (*regressor.Weights, regressor.Report, error) {
	if m.block != nil {
		<-m.block
	}
	if m.trainErr != nil {
		return nil, regressor.Report{}, m.trainErr
	}
	m.trainedOn = len(train)
	w := &regressor.Weights{
		Architecture: "persistence",
		WindowLength: sequence.DefaultLength,
		Features:     model.FeatureCount,
		Hidden:       1,
		W1:           make([]float64, sequence.DefaultLength*model.FeatureCount),
		B1:           make([]float64, 1),
		W2:           make([]float64, model.FeatureCount),
		B2:           make([]float64, model.FeatureCount),
	}
	return w, regressor.Report{TrainSamples: len(train), Epochs: []regressor.EpochLoss{{Epoch: 1, TrainLoss: 0.5, ValLoss: 0.25}}}, nil
}

func (m *persistenceModel) Predict(_ *regressor.Weights, window [][]float64) ([]float64, error) {
	if m.panics {
		panic("boom")
	}
	return append([]float64(nil), window[len(window)-1]...), nil
}

type memRecorder struct {
	mu        sync.Mutex
	runs      []recorder.TrainingRun
	forecasts []recorder.ForecastEvent
}

func (r *memRecorder) RecordTrainingRun(run *recorder.TrainingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return nil
}

func (r *memRecorder) RecordForecast(evt *recorder.ForecastEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forecasts = append(r.forecasts, *evt)
	return nil
}

func (r *memRecorder) Close() error { return nil }

type fixture struct {
	store    artifact.Store
	rec      *memRecorder
	model    regressor.Model
	engineer features.Engineer
}

func newFixture(t *testing.T, m regressor.Model) *fixture {
	t.Helper()
	store, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return &fixture{store: store, rec: &memRecorder{}, model: m, engineer: features.NewEngineer(50, 200)}
}

func (f *fixture) trainer(src HistorySource) *Trainer {
	tr := NewTrainer(TrainerConfig{Symbol: symbol, WindowLength: 60, ValidationSplit: 0.1}, src, f.engineer, f.model, f.store, zerolog.Nop())
	tr.Recorder = f.rec
	return tr
}

func (f *fixture) predictor(src HistorySource) *Predictor {
	p := NewPredictor(PredictorConfig{WindowLength: 60, HistoryPoints: 100}, src, f.engineer, f.model, f.store, zerolog.Nop())
	p.Recorder = f.rec
	return p
}

func TestTrainer_PublishesArtifacts(t *testing.T) {
	m := &persistenceModel{}
	f := newFixture(t, m)
	tr := f.trainer(&fakeSource{bars: weekdayBars(500)})

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500, sum.Bars)
	assert.Equal(t, 301, sum.Rows)
	assert.Equal(t, 241, sum.Samples)
	assert.Equal(t, 217, sum.TrainSamples)
	assert.Equal(t, 24, sum.ValSamples)
	assert.Equal(t, 217, m.trainedOn)
	assert.Equal(t, 0.25, sum.ValLoss)
	assert.Equal(t, StageIdle, tr.Stage())

	b, err := artifact.Load(context.Background(), f.store, symbol)
	require.NoError(t, err)
	assert.Equal(t, sum.RunID, b.Version())
	assert.Equal(t, symbol, b.Weights.Symbol)
	assert.Equal(t, 301, b.Scaler.Rows)

	require.Len(t, f.rec.runs, 1)
	assert.Equal(t, recorder.StatusSuccess, f.rec.runs[0].Status)
}

func TestTrainer_InsufficientRowsWritesNothing(t *testing.T) {
	f := newFixture(t, &persistenceModel{})
	_, err := f.trainer(&fakeSource{bars: weekdayBars(259)}).Run(context.Background())

	var short *model.InsufficientHistoryError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 61, short.Need)
	assert.Equal(t, 60, short.Got)
	assert.ErrorIs(t, err, model.ErrDataInsufficient)

	_, err = artifact.Load(context.Background(), f.store, symbol)
	assert.ErrorIs(t, err, model.ErrStateNotFound)
	require.Len(t, f.rec.runs, 1)
	assert.Equal(t, recorder.StatusFailed, f.rec.runs[0].Status)
	assert.Equal(t, string(StageFeatureEngineering), f.rec.runs[0].FailedStage)
}

func TestTrainer_FetchFailure(t *testing.T) {
	f := newFixture(t, &persistenceModel{})
	upstream := &model.UpstreamFetchError{Source: "mock", Symbol: symbol, Err: errors.New("timeout")}
	_, err := f.trainer(&fakeSource{err: upstream}).Run(context.Background())

	var got *model.UpstreamFetchError
	require.ErrorAs(t, err, &got)
	assert.Contains(t, err.Error(), string(StageFetching))
}

func TestTrainer_ModelFailureWritesNothing(t *testing.T) {
	f := newFixture(t, &persistenceModel{trainErr: context.Canceled})
	_, err := f.trainer(&fakeSource{bars: weekdayBars(400)}).Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	_, err = artifact.Load(context.Background(), f.store, symbol)
	assert.ErrorIs(t, err, model.ErrStateNotFound)
}

func TestTrainer_RejectsConcurrentRun(t *testing.T) {
	m := &persistenceModel{block: make(chan struct{})}
	f := newFixture(t, m)
	tr := f.trainer(&fakeSource{bars: weekdayBars(300)})

	done := make(chan error, 1)
	go func() {
		_, err := tr.Run(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return tr.Stage() == StageTraining }, 5*time.Second, 5*time.Millisecond)

	_, err := tr.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(m.block)
	require.NoError(t, <-done)
	assert.Equal(t, StageIdle, tr.Stage())
}

func TestPredictor_MissingState(t *testing.T) {
	f := newFixture(t, &persistenceModel{})
	res := f.predictor(&fakeSource{bars: weekdayBars(400)}).Predict(context.Background(), symbol)

	assert.False(t, res.OK())
	assert.Contains(t, res.Error, model.ErrStateNotFound.Error())
	assert.Empty(t, res.Historical.Dates)
	assert.Nil(t, res.Predicted.Date)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"SBIN.NS","error":"`+res.Error+`","historical":{"dates":[],"prices":[]},"predicted":{"date":null,"price":null}}`, string(data))

	require.Len(t, f.rec.forecasts, 1)
	assert.Equal(t, res.Error, f.rec.forecasts[0].Error)
}

func TestPredictor_InsufficientHistory(t *testing.T) {
	f := newFixture(t, &persistenceModel{})
	_, err := f.trainer(&fakeSource{bars: weekdayBars(500)}).Run(context.Background())
	require.NoError(t, err)

	tests := []struct {
		bars int
		want string
	}{
		{199, "need 60, got 0"},
		{200, "need 60, got 1"},
		{258, "need 60, got 59"},
	}
	for _, tt := range tests {
		res := f.predictor(&fakeSource{bars: weekdayBars(tt.bars)}).Predict(context.Background(), symbol)
		assert.False(t, res.OK())
		assert.Contains(t, res.Error, tt.want, "bars=%d", tt.bars)
		assert.Empty(t, res.Historical.Prices)
	}

	res := f.predictor(&fakeSource{bars: weekdayBars(259)}).Predict(context.Background(), symbol)
	assert.True(t, res.OK(), res.Error)
	assert.Len(t, res.Historical.Dates, 60)
}

func TestPredictor_Forecast(t *testing.T) {
	f := newFixture(t, &persistenceModel{})
	sum, err := f.trainer(&fakeSource{bars: weekdayBars(500)}).Run(context.Background())
	require.NoError(t, err)

	bars := weekdayBars(520)
	res := f.predictor(&fakeSource{bars: bars}).Predict(context.Background(), symbol)
	require.True(t, res.OK(), res.Error)
	assert.Equal(t, sum.RunID, res.ModelVersion)

	require.Len(t, res.Historical.Dates, 100)
	require.Len(t, res.Historical.Prices, 100)
	for i := 1; i < len(res.Historical.Dates); i++ {
		assert.Less(t, res.Historical.Dates[i-1], res.Historical.Dates[i])
	}
	last := bars[len(bars)-1]
	assert.Equal(t, last.Date.Format(model.DateLayout), res.Historical.Dates[99])
	assert.InDelta(t, last.Close, res.Historical.Prices[99], 0.005)

	require.NotNil(t, res.Predicted.Date)
	assert.Equal(t, NextTradingDay(last.Date).Format(model.DateLayout), *res.Predicted.Date)
	assert.Equal(t, res.Predicted.Close, *res.Predicted.Price)
	assert.InDelta(t, last.Close, res.Predicted.Close, 0.01)
	assert.InDelta(t, last.Open, res.Predicted.Open, 0.01)
	assert.InDelta(t, last.Volume, float64(res.Predicted.Volume), 1)
	assert.Equal(t, last.Close, res.LastClose)
}

func TestPredictor_DeterministicWithMLP(t *testing.T) {
	mlp := regressor.NewMLP(regressor.Config{WindowLength: 60, Features: model.FeatureCount, Hidden: 4, Epochs: 2, BatchSize: 64, Seed: 3})
	f := newFixture(t, mlp)
	_, err := f.trainer(&fakeSource{bars: weekdayBars(320)}).Run(context.Background())
	require.NoError(t, err)

	p := f.predictor(&fakeSource{bars: weekdayBars(330)})
	a := p.Predict(context.Background(), symbol)
	b := p.Predict(context.Background(), symbol)
	require.True(t, a.OK(), a.Error)
	assert.Equal(t, a.Predicted, b.Predicted)
	assert.Equal(t, a.Historical, b.Historical)
}

func TestPredictor_ArtifactMismatch(t *testing.T) {
	f := newFixture(t, &persistenceModel{})
	_, err := f.trainer(&fakeSource{bars: weekdayBars(400)}).Run(context.Background())
	require.NoError(t, err)

	w, err := f.store.LoadWeights(context.Background(), symbol)
	require.NoError(t, err)
	w.Version = "stale"
	require.NoError(t, f.store.SaveWeights(context.Background(), symbol, w))

	res := f.predictor(&fakeSource{bars: weekdayBars(400)}).Predict(context.Background(), symbol)
	assert.False(t, res.OK())
	assert.Contains(t, res.Error, model.ErrArtifactMismatch.Error())
}

func TestPredictor_RecoversFromPanic(t *testing.T) {
	m := &persistenceModel{}
	f := newFixture(t, m)
	_, err := f.trainer(&fakeSource{bars: weekdayBars(400)}).Run(context.Background())
	require.NoError(t, err)

	m.panics = true
	res := f.predictor(&fakeSource{bars: weekdayBars(400)}).Predict(context.Background(), symbol)
	assert.False(t, res.OK())
	assert.Contains(t, res.Error, "internal error")
	assert.NotNil(t, res.Historical.Dates)
}

func TestPredictor_UpstreamFailure(t *testing.T) {
	f := newFixture(t, &persistenceModel{})
	src := &fakeSource{err: &model.UpstreamFetchError{Source: "yahoo", Symbol: symbol, Err: errors.New("no data returned")}}
	res := f.predictor(src).Predict(context.Background(), symbol)
	assert.Equal(t, "fetch SBIN.NS from yahoo: no data returned", res.Error)
}

func TestPredictor_RejectsOtherMovingAverageWindows(t *testing.T) {
	f := newFixture(t, &persistenceModel{})
	_, err := f.trainer(&fakeSource{bars: weekdayBars(400)}).Run(context.Background())
	require.NoError(t, err)

	state, err := f.store.LoadScaler(context.Background(), symbol)
	require.NoError(t, err)
	assert.Equal(t, 50, state.ShortWindow)
	assert.Equal(t, 200, state.LongWindow)

	f.engineer = features.NewEngineer(20, 100)
	res := f.predictor(&fakeSource{bars: weekdayBars(400)}).Predict(context.Background(), symbol)
	assert.False(t, res.OK())
	assert.Contains(t, res.Error, "moving average")
	assert.Contains(t, res.Error, "[50 200]")
	assert.Contains(t, res.Error, "[20 100]")
	assert.Nil(t, res.Predicted.Date)
}

func TestPredictor_RejectsOtherSequenceLength(t *testing.T) {
	f := newFixture(t, &persistenceModel{})
	_, err := f.trainer(&fakeSource{bars: weekdayBars(400)}).Run(context.Background())
	require.NoError(t, err)

	p := NewPredictor(PredictorConfig{WindowLength: 30, HistoryPoints: 100}, &fakeSource{bars: weekdayBars(400)}, f.engineer, f.model, f.store, zerolog.Nop())
	res := p.Predict(context.Background(), symbol)
	assert.False(t, res.OK())
	assert.Contains(t, res.Error, "sequence length")
}
