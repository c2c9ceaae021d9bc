// Package scaler implements per-feature min-max normalization whose fitted state is
// persisted at training time and reused verbatim at inference time.
package scaler

import (
	"fmt"
	"slices"
	"time"

	"PriceForecaster/internal/model"

	"gonum.org/v1/gonum/floats"
)

// State is a fitted, frozen min-max scale. It is passed by value; nothing in this
// package mutates a State after Fit returns it.
type State struct {
	Version  string    `json:"version"`
	Symbol   string    `json:"symbol"`
	FittedAt time.Time `json:"fitted_at"`
	Rows     int       `json:"rows"`
	Features []string  `json:"features"`
	Min      []float64 `json:"min"`
	Max      []float64 `json:"max"`

	// Moving-average windows the features were computed with. Set by the trainer.
	ShortWindow int `json:"short_window"`
	LongWindow  int `json:"long_window"`
}

// Fit computes per-column minima and maxima over every row of matrix.
func Fit(symbol, version string, matrix [][]float64) (State, error) {
	if len(matrix) == 0 {
		return State{}, fmt.Errorf("fit scaler: %w: empty feature matrix", model.ErrDataInsufficient)
	}
	width := len(matrix[0])
	if width != model.FeatureCount {
		return State{}, fmt.Errorf("fit scaler: expected %d features, got %d", model.FeatureCount, width)
	}

	s := State{
		Version:  version,
		Symbol:   symbol,
		FittedAt: time.Now().UTC(),
		Rows:     len(matrix),
		Features: slices.Clone(model.FeatureNames),
		Min:      make([]float64, width),
		Max:      make([]float64, width),
	}
	col := make([]float64, len(matrix))
	for j := 0; j < width; j++ {
		for i, row := range matrix {
			if len(row) != width {
				return State{}, fmt.Errorf("fit scaler: row %d has %d features, want %d", i, len(row), width)
			}
			col[i] = row[j]
		}
		s.Min[j] = floats.Min(col)
		s.Max[j] = floats.Max(col)
	}
	return s, nil
}

// Validate checks that the state matches the current feature layout.
func (s State) Validate() error {
	if len(s.Min) != model.FeatureCount || len(s.Max) != model.FeatureCount {
		return fmt.Errorf("scaler state has %d/%d bounds, want %d", len(s.Min), len(s.Max), model.FeatureCount)
	}
	if !slices.Equal(s.Features, model.FeatureNames) {
		return fmt.Errorf("scaler feature order %v does not match %v", s.Features, model.FeatureNames)
	}
	for j := range s.Min {
		if s.Min[j] > s.Max[j] {
			return fmt.Errorf("scaler feature %s has min %g > max %g", s.Features[j], s.Min[j], s.Max[j])
		}
	}
	return nil
}

// CheckWindows rejects a state whose features were built with other moving-average
// windows than short and long. A state without recorded windows is rejected too.
func (s State) CheckWindows(short, long int) error {
	if s.ShortWindow == short && s.LongWindow == long {
		return nil
	}
	return &model.WindowMismatchError{
		Kind:   "moving average",
		Fitted: []int{s.ShortWindow, s.LongWindow},
		Want:   []int{short, long},
	}
}

// Degenerate returns the indices of features whose min equals max.
func (s State) Degenerate() []int {
	var idx []int
	for j := range s.Min {
		if s.Min[j] == s.Max[j] {
			idx = append(idx, j)
		}
	}
	return idx
}

// DegenerateError wraps Degenerate as a ScaleDegenerateError, or nil.
func (s State) DegenerateError() error {
	idx := s.Degenerate()
	if len(idx) == 0 {
		return nil
	}
	names := make([]string, len(idx))
	for i, j := range idx {
		names[i] = s.Features[j]
	}
	return &model.ScaleDegenerateError{Features: names}
}

// TransformRow maps each value to (x - min) / (max - min). A degenerate feature maps to 0.
func (s State) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.Min) {
		return nil, fmt.Errorf("transform: row has %d features, want %d", len(row), len(s.Min))
	}
	out := make([]float64, len(row))
	for j, x := range row {
		span := s.Max[j] - s.Min[j]
		if span == 0 {
			continue
		}
		out[j] = (x - s.Min[j]) / span
	}
	return out, nil
}

// InverseRow undoes TransformRow column by column. A degenerate feature inverts to its min.
func (s State) InverseRow(row []float64) ([]float64, error) {
	if len(row) != len(s.Min) {
		return nil, fmt.Errorf("inverse: row has %d features, want %d", len(row), len(s.Min))
	}
	out := make([]float64, len(row))
	for j, x := range row {
		out[j] = x*(s.Max[j]-s.Min[j]) + s.Min[j]
	}
	return out, nil
}

// Transform applies TransformRow to every row.
func (s State) Transform(matrix [][]float64) ([][]float64, error) {
	return s.apply(matrix, s.TransformRow)
}

// Inverse applies InverseRow to every row.
func (s State) Inverse(matrix [][]float64) ([][]float64, error) {
	return s.apply(matrix, s.InverseRow)
}

func (s State) apply(matrix [][]float64, fn func([]float64) ([]float64, error)) ([][]float64, error) {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		r, err := fn(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}
