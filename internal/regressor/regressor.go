// Package regressor holds the trainable multi-output sequence regressor. The pipeline
// only depends on the Model interface; the MLP here is one implementation of it.
package regressor

import (
	"context"
	"fmt"
	"time"

	"PriceForecaster/internal/model"
	"PriceForecaster/internal/sequence"
)

// Model trains weights from windows and evaluates a window with given weights.
type Model interface {
	Train(ctx context.Context, train, validation []sequence.Sample) (*Weights, Report, error)
	Predict(w *Weights, window [][]float64) ([]float64, error)
}

// Weights is the persisted parameter set of a trained model.
type Weights struct {
	Version      string    `json:"version"`
	Symbol       string    `json:"symbol"`
	Architecture string    `json:"architecture"`
	TrainedAt    time.Time `json:"trained_at"`
	WindowLength int       `json:"window_length"`
	Features     int       `json:"features"`
	Hidden       int       `json:"hidden"`

	// Row-major matrices: W1 is (WindowLength*Features) x Hidden, W2 is Hidden x Features.
	W1 []float64 `json:"w1"`
	B1 []float64 `json:"b1"`
	W2 []float64 `json:"w2"`
	B2 []float64 `json:"b2"`
}

// Inputs is the flattened input width.
func (w *Weights) Inputs() int { return w.WindowLength * w.Features }

// Validate checks that every parameter slice matches the declared shape.
func (w *Weights) Validate() error {
	if w == nil {
		return fmt.Errorf("weights: nil")
	}
	if w.WindowLength <= 0 || w.Features <= 0 || w.Hidden <= 0 {
		return fmt.Errorf("weights: invalid shape window=%d features=%d hidden=%d", w.WindowLength, w.Features, w.Hidden)
	}
	checks := []struct {
		name string
		got  int
		want int
	}{
		{"w1", len(w.W1), w.Inputs() * w.Hidden},
		{"b1", len(w.B1), w.Hidden},
		{"w2", len(w.W2), w.Hidden * w.Features},
		{"b2", len(w.B2), w.Features},
	}
	for _, c := range checks {
		if c.got != c.want {
			return fmt.Errorf("weights: %s has %d values, want %d", c.name, c.got, c.want)
		}
	}
	return nil
}

// EpochLoss records the mean squared error after one pass over the training set.
type EpochLoss struct {
	Epoch     int     `json:"epoch"`
	TrainLoss float64 `json:"train_loss"`
	ValLoss   float64 `json:"val_loss"` // zero without validation samples
}

// Report summarizes a training run.
type Report struct {
	TrainSamples int         `json:"train_samples"`
	ValSamples   int         `json:"val_samples"`
	Epochs       []EpochLoss `json:"epochs"`
	Duration     time.Duration
}

// Final returns the last epoch's losses.
func (r Report) Final() EpochLoss {
	if len(r.Epochs) == 0 {
		return EpochLoss{}
	}
	return r.Epochs[len(r.Epochs)-1]
}

// checkWindow verifies the shape of an inference or training window.
func checkWindow(window [][]float64, length, features int) error {
	if len(window) != length {
		return &model.SequenceLengthError{Want: length, Got: len(window)}
	}
	for i, row := range window {
		if len(row) != features {
			return fmt.Errorf("window row %d has %d features, want %d", i, len(row), features)
		}
	}
	return nil
}
