// Package features derives the model's technical features from daily bars.
package features

import (
	"math"

	"PriceForecaster/internal/calculator"
	"PriceForecaster/internal/model"
)

const (
	DefaultShortWindow = 50
	DefaultLongWindow  = 200
)

// Engineer computes moving averages and returns over a HistoryWindow.
type Engineer struct {
	Short int
	Long  int
}

// NewEngineer returns an Engineer with the given windows, falling back to 50/200.
func NewEngineer(short, long int) Engineer {
	if short <= 0 {
		short = DefaultShortWindow
	}
	if long <= 0 {
		long = DefaultLongWindow
	}
	return Engineer{Short: short, Long: long}
}

// Warmup is the number of leading bars that can never produce a complete row.
func (e Engineer) Warmup() int {
	w := max(e.Short, e.Long) - 1
	return max(w, 1)
}

// Build returns one FeatureRow per bar whose features are all defined.
// The result is shorter than the input by Warmup() rows, or empty.
func (e Engineer) Build(w *model.HistoryWindow) []model.FeatureRow {
	if w == nil || w.Len() == 0 {
		return nil
	}
	closes := w.Closes()
	maShort := calculator.RollingMean(closes, e.Short)
	maLong := calculator.RollingMean(closes, e.Long)
	returns := calculator.PctChange(closes)

	rows := make([]model.FeatureRow, 0, max(0, w.Len()-e.Warmup()))
	for i, bar := range w.Bars {
		if math.IsNaN(maShort[i]) || math.IsNaN(maLong[i]) || math.IsNaN(returns[i]) {
			continue
		}
		rows = append(rows, model.FeatureRow{
			Bar:     bar,
			MAShort: maShort[i],
			MALong:  maLong[i],
			Return:  returns[i],
		})
	}
	return rows
}

// Matrix flattens rows into feature vectors.
func Matrix(rows []model.FeatureRow) [][]float64 {
	m := make([][]float64, len(rows))
	for i, r := range rows {
		m[i] = r.Vector()
	}
	return m
}
