// Package metrics exposes training and inference counters on a dedicated Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder holds the forecaster metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry         *prometheus.Registry
	trainingRuns     *prometheus.CounterVec
	trainingDuration *prometheus.HistogramVec
	lastLoss         *prometheus.GaugeVec
	lastTrained      *prometheus.GaugeVec
	predictions      *prometheus.CounterVec
	predictLatency   *prometheus.HistogramVec
}

// New creates a Recorder with its own registry, including Go runtime collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		trainingRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_training_runs_total",
				Help: "Training runs by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		trainingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecaster_training_duration_seconds",
				Help:    "Wall time of a training run",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"symbol"},
		),
		lastLoss: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forecaster_last_loss",
				Help: "Final epoch loss of the last successful training run",
			},
			[]string{"symbol", "split"},
		),
		lastTrained: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forecaster_last_trained_timestamp_seconds",
				Help: "Unix time of the last successful training run",
			},
			[]string{"symbol"},
		),
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_predictions_total",
				Help: "Inference requests by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		predictLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecaster_prediction_duration_seconds",
				Help:    "Latency of the inference pipeline",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// TrainingSucceeded records a completed run and its final losses.
func (r *Recorder) TrainingSucceeded(symbol string, d time.Duration, trainLoss, valLoss float64) {
	if r == nil {
		return
	}
	r.trainingRuns.WithLabelValues(symbol, OutcomeSuccess).Inc()
	r.trainingDuration.WithLabelValues(symbol).Observe(d.Seconds())
	r.lastLoss.WithLabelValues(symbol, "train").Set(trainLoss)
	r.lastLoss.WithLabelValues(symbol, "validation").Set(valLoss)
	r.lastTrained.WithLabelValues(symbol).SetToCurrentTime()
}

// TrainingFailed records an aborted run.
func (r *Recorder) TrainingFailed(symbol string, d time.Duration) {
	if r == nil {
		return
	}
	r.trainingRuns.WithLabelValues(symbol, OutcomeFailure).Inc()
	r.trainingDuration.WithLabelValues(symbol).Observe(d.Seconds())
}

// Prediction records one inference outcome.
func (r *Recorder) Prediction(symbol string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	r.predictions.WithLabelValues(symbol, outcome).Inc()
	r.predictLatency.WithLabelValues(symbol).Observe(d.Seconds())
}
