package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"PriceForecaster/internal/regressor"
	"PriceForecaster/internal/scaler"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps artifacts in an embedded Badger database. Publish writes both
// artifacts in a single transaction.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a persistent database under dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create badger dir: %w", err)
	}
	return openBadger(badger.DefaultOptions(dir).WithSyncWrites(true))
}

// NewInMemoryBadgerStore opens a database that lives only as long as the process.
func NewInMemoryBadgerStore() (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true))
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func scalerKey(symbol string) []byte { return []byte("scaler/" + symbolKey(symbol)) }
func modelKey(symbol string) []byte  { return []byte("model/" + symbolKey(symbol)) }

func (s *BadgerStore) SaveScaler(_ context.Context, state scaler.State) error {
	return s.put(map[string]any{string(scalerKey(state.Symbol)): state})
}

func (s *BadgerStore) LoadScaler(_ context.Context, symbol string) (scaler.State, error) {
	var state scaler.State
	if err := s.get(scalerKey(symbol), &state); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return scaler.State{}, notFound("scaler", symbol)
		}
		return scaler.State{}, fmt.Errorf("load scaler: %w", err)
	}
	return state, nil
}

func (s *BadgerStore) SaveWeights(_ context.Context, symbol string, w *regressor.Weights) error {
	return s.put(map[string]any{string(modelKey(symbol)): w})
}

func (s *BadgerStore) LoadWeights(_ context.Context, symbol string) (*regressor.Weights, error) {
	var w regressor.Weights
	if err := s.get(modelKey(symbol), &w); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, notFound("model weights", symbol)
		}
		return nil, fmt.Errorf("load weights: %w", err)
	}
	return &w, nil
}

// Publish replaces the scaler and weights of state.Symbol in one transaction.
func (s *BadgerStore) Publish(_ context.Context, state scaler.State, w *regressor.Weights) error {
	return s.put(map[string]any{
		string(modelKey(state.Symbol)):  w,
		string(scalerKey(state.Symbol)): state,
	})
}

// LoadBundle reads the scaler and weights of symbol from one snapshot.
func (s *BadgerStore) LoadBundle(_ context.Context, symbol string) (scaler.State, *regressor.Weights, error) {
	var (
		state scaler.State
		w     regressor.Weights
	)
	err := s.db.View(func(txn *badger.Txn) error {
		if err := decode(txn, scalerKey(symbol), &state); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound("scaler", symbol)
			}
			return fmt.Errorf("load scaler: %w", err)
		}
		if err := decode(txn, modelKey(symbol), &w); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound("model weights", symbol)
			}
			return fmt.Errorf("load weights: %w", err)
		}
		return nil
	})
	if err != nil {
		return scaler.State{}, nil, err
	}
	return state, &w, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) put(values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", k, err)
		}
		encoded[k] = data
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for k, data := range encoded {
			if err := txn.Set([]byte(k), data); err != nil {
				return fmt.Errorf("set %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *BadgerStore) get(key []byte, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		return decode(txn, key, v)
	})
}

func decode(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}
