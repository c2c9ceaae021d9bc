// Package artifact persists the two artifacts a training run produces per symbol:
// the fitted scaler state and the model weights. Writers replace artifacts atomically,
// so a concurrent reader sees either the previous or the new version, never a torn one.
package artifact

import (
	"context"
	"fmt"
	"strings"

	"PriceForecaster/internal/model"
	"PriceForecaster/internal/regressor"
	"PriceForecaster/internal/scaler"
)

// Store is the durable key-value store for training artifacts.
// Load methods wrap model.ErrStateNotFound when nothing has been published yet.
type Store interface {
	SaveScaler(ctx context.Context, state scaler.State) error
	LoadScaler(ctx context.Context, symbol string) (scaler.State, error)
	SaveWeights(ctx context.Context, symbol string, w *regressor.Weights) error
	LoadWeights(ctx context.Context, symbol string) (*regressor.Weights, error)
	Close() error
}

// Publisher is implemented by stores that can replace both artifacts in one step.
type Publisher interface {
	Publish(ctx context.Context, state scaler.State, w *regressor.Weights) error
}

// BundleLoader is implemented by stores that can read both artifacts from one
// consistent snapshot.
type BundleLoader interface {
	LoadBundle(ctx context.Context, symbol string) (scaler.State, *regressor.Weights, error)
}

// Publish stores the artifacts of one completed training run. Stores without a
// Publisher get the weights written before the scaler, and a reader racing the
// two writes can observe model.ErrArtifactMismatch.
func Publish(ctx context.Context, s Store, state scaler.State, w *regressor.Weights) error {
	if w == nil {
		return fmt.Errorf("publish: nil weights")
	}
	if state.Version == "" || state.Version != w.Version {
		return fmt.Errorf("publish: scaler version %q does not match weights version %q", state.Version, w.Version)
	}
	if p, ok := s.(Publisher); ok {
		return p.Publish(ctx, state, w)
	}
	if err := s.SaveWeights(ctx, state.Symbol, w); err != nil {
		return fmt.Errorf("publish weights: %w", err)
	}
	if err := s.SaveScaler(ctx, state); err != nil {
		return fmt.Errorf("publish scaler: %w", err)
	}
	return nil
}

// Bundle is a matched pair of artifacts loaded for inference.
type Bundle struct {
	Scaler  scaler.State
	Weights *regressor.Weights
}

// Version returns the training run both artifacts belong to.
func (b Bundle) Version() string { return b.Scaler.Version }

// Load reads and validates both artifacts for symbol. A scaler and weights from
// different runs yield model.ErrArtifactMismatch.
func Load(ctx context.Context, s Store, symbol string) (Bundle, error) {
	state, w, err := loadPair(ctx, s, symbol)
	if err != nil {
		return Bundle{}, err
	}
	if err := state.Validate(); err != nil {
		return Bundle{}, fmt.Errorf("load scaler: %w", err)
	}
	if err := w.Validate(); err != nil {
		return Bundle{}, fmt.Errorf("load weights: %w", err)
	}
	if w.Version != state.Version {
		return Bundle{}, fmt.Errorf("%w: scaler %s, weights %s", model.ErrArtifactMismatch, state.Version, w.Version)
	}
	return Bundle{Scaler: state, Weights: w}, nil
}

func loadPair(ctx context.Context, s Store, symbol string) (scaler.State, *regressor.Weights, error) {
	if bl, ok := s.(BundleLoader); ok {
		return bl.LoadBundle(ctx, symbol)
	}
	state, err := s.LoadScaler(ctx, symbol)
	if err != nil {
		return scaler.State{}, nil, err
	}
	w, err := s.LoadWeights(ctx, symbol)
	if err != nil {
		return scaler.State{}, nil, err
	}
	return state, w, nil
}

func notFound(kind, symbol string) error {
	return fmt.Errorf("%w: no %s for %s, run training first", model.ErrStateNotFound, kind, symbol)
}

// symbolKey makes a symbol safe for use as a path segment or key component.
func symbolKey(symbol string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_', r == '^', r == '=':
			return r
		}
		return '_'
	}, symbol)
}
