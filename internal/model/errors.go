package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDataInsufficient means too few rows survived feature engineering or windowing.
	ErrDataInsufficient = errors.New("insufficient data")
	// ErrStateNotFound means inference ran before any successful training run.
	ErrStateNotFound = errors.New("persisted model state not found")
	// ErrArtifactMismatch means the persisted scaler and weights come from different runs.
	ErrArtifactMismatch = errors.New("scaler and model weights belong to different training runs")
)

// InsufficientHistoryError reports how many rows were needed and how many were available.
type InsufficientHistoryError struct {
	Need int
	Got  int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient data after feature engineering: need %d, got %d", e.Need, e.Got)
}

func (e *InsufficientHistoryError) Is(target error) bool { return target == ErrDataInsufficient }

// SequenceLengthError reports a window whose shape differs from what the model expects.
type SequenceLengthError struct {
	Want int
	Got  int
}

func (e *SequenceLengthError) Error() string {
	return fmt.Sprintf("not enough sequence length for prediction: expected %d, got %d", e.Want, e.Got)
}

// ScaleDegenerateError lists features whose fitted min equals max. It is a warning:
// such features scale to zero and invert to their constant value.
type ScaleDegenerateError struct {
	Features []string
}

func (e *ScaleDegenerateError) Error() string {
	return fmt.Sprintf("degenerate scale (min == max) for features: %s", strings.Join(e.Features, ", "))
}

// UpstreamFetchError wraps a failure of the market data source, including empty responses.
type UpstreamFetchError struct {
	Source string
	Symbol string
	Err    error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Symbol, e.Source, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// WindowMismatchError reports artifacts trained with different moving-average or
// sequence windows than the running pipeline uses.
type WindowMismatchError struct {
	Kind   string
	Fitted []int
	Want   []int
}

func (e *WindowMismatchError) Error() string {
	return fmt.Sprintf("artifact %s mismatch: fitted with %v, pipeline uses %v", e.Kind, e.Fitted, e.Want)
}

func (e *WindowMismatchError) Is(target error) bool { return target == ErrArtifactMismatch }
