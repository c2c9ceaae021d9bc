// Package sequence slices scaled feature matrices into fixed-length model windows.
package sequence

import "PriceForecaster/internal/model"

// DefaultLength is the number of trading days the model looks back over.
const DefaultLength = 60

// Sample is one supervised training pair: a window of rows and the row that follows it.
type Sample struct {
	Window [][]float64
	Target []float64
}

// Build returns max(0, len(matrix)-length) samples. Window i covers rows [i, i+length)
// and its target is row i+length. Rows are shared with matrix, not copied.
func Build(matrix [][]float64, length int) []Sample {
	if length <= 0 || len(matrix) <= length {
		return nil
	}
	samples := make([]Sample, 0, len(matrix)-length)
	for i := 0; i+length < len(matrix); i++ {
		samples = append(samples, Sample{
			Window: matrix[i : i+length],
			Target: matrix[i+length],
		})
	}
	return samples
}

// Last returns the trailing length rows of matrix as a single inference window.
func Last(matrix [][]float64, length int) ([][]float64, error) {
	if length <= 0 || len(matrix) < length {
		return nil, &model.InsufficientHistoryError{Need: length, Got: len(matrix)}
	}
	return matrix[len(matrix)-length:], nil
}

// Split holds out the most recent fraction of samples for validation.
// The held-out count is floor(len(samples) * fraction).
func Split(samples []Sample, fraction float64) (train, validation []Sample) {
	if fraction <= 0 || len(samples) == 0 {
		return samples, nil
	}
	if fraction >= 1 {
		fraction = 0.5
	}
	n := int(float64(len(samples)) * fraction)
	cut := len(samples) - n
	return samples[:cut], samples[cut:]
}
