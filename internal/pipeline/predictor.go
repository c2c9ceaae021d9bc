package pipeline

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"PriceForecaster/internal/artifact"
	"PriceForecaster/internal/features"
	"PriceForecaster/internal/metrics"
	"PriceForecaster/internal/model"
	"PriceForecaster/internal/recorder"
	"PriceForecaster/internal/regressor"
	"PriceForecaster/internal/sequence"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultHistoryPoints is how many trailing closes a result carries.
const DefaultHistoryPoints = 100

// PredictorConfig controls the inference fetch and the result shape.
type PredictorConfig struct {
	Lookback      time.Duration
	WindowLength  int
	HistoryPoints int
}

// Predictor produces next-session forecasts from the last published artifacts.
// It never fits a scaler; inference without a training run is an error result.
type Predictor struct {
	cfg      PredictorConfig
	source   HistorySource
	engineer features.Engineer
	model    regressor.Model
	store    artifact.Store

	Recorder recorder.Recorder
	Metrics  *metrics.Recorder

	log zerolog.Logger
}

func NewPredictor(cfg PredictorConfig, source HistorySource, engineer features.Engineer, m regressor.Model, store artifact.Store, log zerolog.Logger) *Predictor {
	if cfg.WindowLength <= 0 {
		cfg.WindowLength = sequence.DefaultLength
	}
	if cfg.HistoryPoints <= 0 {
		cfg.HistoryPoints = DefaultHistoryPoints
	}
	return &Predictor{
		cfg:      cfg,
		source:   source,
		engineer: engineer,
		model:    m,
		store:    store,
		Recorder: recorder.NewNoopRecorder(),
		log:      log.With().Str("component", "predictor").Logger(),
	}
}

// Predict runs the inference pipeline for symbol. Every failure, including a panic
// inside the model, is returned as an error result.
func (p *Predictor) Predict(ctx context.Context, symbol string) (res model.ForecastResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = model.ErrorResult(symbol, fmt.Sprintf("internal error: %v", r))
		}
		p.finish(symbol, res, time.Since(start))
	}()

	rec, err := p.forecast(ctx, symbol)
	if err != nil {
		return model.ErrorResult(symbol, err.Error())
	}
	return rec
}

func (p *Predictor) forecast(ctx context.Context, symbol string) (model.ForecastResult, error) {
	window, err := p.source.LatestWindow(ctx, symbol, p.cfg.Lookback)
	if err != nil {
		return model.ForecastResult{}, err
	}

	rows := p.engineer.Build(window)
	if len(rows) < p.cfg.WindowLength {
		return model.ForecastResult{}, &model.InsufficientHistoryError{Need: p.cfg.WindowLength, Got: len(rows)}
	}

	bundle, err := artifact.Load(ctx, p.store, symbol)
	if err != nil {
		return model.ForecastResult{}, err
	}
	state, weights := bundle.Scaler, bundle.Weights
	if err := state.CheckWindows(p.engineer.Short, p.engineer.Long); err != nil {
		return model.ForecastResult{}, err
	}
	if weights.WindowLength != p.cfg.WindowLength {
		return model.ForecastResult{}, &model.WindowMismatchError{
			Kind:   "sequence length",
			Fitted: []int{weights.WindowLength},
			Want:   []int{p.cfg.WindowLength},
		}
	}

	scaled, err := state.Transform(features.Matrix(rows))
	if err != nil {
		return model.ForecastResult{}, err
	}
	input, err := sequence.Last(scaled, weights.WindowLength)
	if err != nil {
		return model.ForecastResult{}, err
	}
	if len(input) != weights.WindowLength {
		return model.ForecastResult{}, &model.SequenceLengthError{Want: weights.WindowLength, Got: len(input)}
	}

	out, err := p.model.Predict(weights, input)
	if err != nil {
		return model.ForecastResult{}, err
	}
	values, err := state.InverseRow(out)
	if err != nil {
		return model.ForecastResult{}, err
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.ForecastResult{}, fmt.Errorf("model produced a non-finite %s", model.FeatureNames[i])
		}
	}

	return p.assemble(symbol, bundle.Version(), rows, values), nil
}

func (p *Predictor) assemble(symbol, version string, rows []model.FeatureRow, values []float64) model.ForecastResult {
	tail := rows
	if len(tail) > p.cfg.HistoryPoints {
		tail = tail[len(tail)-p.cfg.HistoryPoints:]
	}
	hist := model.Historical{Dates: make([]string, len(tail)), Prices: make([]float64, len(tail))}
	for i, r := range tail {
		hist.Dates[i] = r.Date.Format(model.DateLayout)
		hist.Prices[i] = round2(r.Close)
	}

	last := rows[len(rows)-1]
	record := &model.ForecastRecord{
		Date:   NextTradingDay(last.Date),
		Open:   round2(values[model.FeatureOpen]),
		High:   round2(values[model.FeatureHigh]),
		Low:    round2(values[model.FeatureLow]),
		Close:  round2(values[model.FeatureClose]),
		Volume: values[model.FeatureVolume],
	}
	date := record.Date.Format(model.DateLayout)
	price := record.Close

	return model.ForecastResult{
		Symbol:     symbol,
		Historical: hist,
		Predicted: model.Predicted{
			Date:   &date,
			Price:  &price,
			Open:   record.Open,
			High:   record.High,
			Low:    record.Low,
			Close:  record.Close,
			Volume: decimal.NewFromFloat(record.Volume).IntPart(),
		},
		ModelVersion: version,
		Record:       record,
		LastClose:    last.Close,
		LastDate:     last.Date,
	}
}

func (p *Predictor) finish(symbol string, res model.ForecastResult, d time.Duration) {
	p.Metrics.Prediction(symbol, res.OK(), d)

	evt := &recorder.ForecastEvent{Symbol: symbol, ModelVersion: res.ModelVersion, Error: res.Error}
	if res.OK() {
		p.log.Info().
			Str("symbol", symbol).
			Str("model_version", res.ModelVersion).
			Str("date", *res.Predicted.Date).
			Float64("close", res.Predicted.Close).
			Dur("latency", d).
			Msg("forecast produced")
		evt.LastDate = res.LastDate.Format(model.DateLayout)
		evt.LastClose = res.LastClose
		evt.ForecastDate = *res.Predicted.Date
		evt.Open, evt.High, evt.Low, evt.Close = res.Predicted.Open, res.Predicted.High, res.Predicted.Low, res.Predicted.Close
		evt.Volume = res.Predicted.Volume
	} else {
		p.log.Warn().Str("symbol", symbol).Str("error", res.Error).Msg("forecast failed")
	}
	if err := p.Recorder.RecordForecast(evt); err != nil {
		p.log.Error().Err(err).Msg("record forecast")
	}
}

// round2 rounds the exact binary value of v half to even at two decimals:
// 2.675 is stored as 2.67499... and becomes 2.67, while 0.125 is a true tie and becomes 0.12.
func round2(v float64) float64 {
	exact := decimal.RequireFromString(strconv.FormatFloat(v, 'f', 40, 64))
	return exact.RoundBank(2).InexactFloat64()
}
