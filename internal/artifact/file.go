package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"PriceForecaster/internal/model"
	"PriceForecaster/internal/regressor"
	"PriceForecaster/internal/scaler"
)

const (
	scalerFile  = "scaler.json"
	modelFile   = "model.json"
	pointerFile = "current.json"
)

// pointer names the version directory each artifact is read from.
type pointer struct {
	Scaler  string `json:"scaler"`
	Weights string `json:"weights"`
}

// FileStore keeps artifacts as JSON files under <dir>/<symbol>/<version>/. The
// current.json pointer next to the version directories selects the live pair and
// is replaced with a single rename, so Publish switches both artifacts at once.
type FileStore struct {
	dir string
	// mu serializes pointer updates and keeps pruning away from in-process readers.
	mu sync.RWMutex
}

// NewFileStore creates the base directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) symbolDir(symbol string) string {
	return filepath.Join(s.dir, symbolKey(symbol))
}

func (s *FileStore) path(symbol, version, name string) string {
	return filepath.Join(s.symbolDir(symbol), versionKey(version), name)
}

// versionKey maps a run ID to its directory name.
func versionKey(version string) string {
	if version == "" {
		return "_"
	}
	return symbolKey(version)
}

func (s *FileStore) SaveScaler(_ context.Context, state scaler.State) error {
	if err := writeJSONAtomic(s.path(state.Symbol, state.Version, scalerFile), state); err != nil {
		return err
	}
	return s.point(state.Symbol, func(p *pointer) { p.Scaler = state.Version })
}

func (s *FileStore) LoadScaler(_ context.Context, symbol string) (scaler.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.readPointer(symbol)
	if err != nil {
		return scaler.State{}, err
	}
	return s.readScaler(symbol, p.Scaler)
}

func (s *FileStore) SaveWeights(_ context.Context, symbol string, w *regressor.Weights) error {
	if err := writeJSONAtomic(s.path(symbol, w.Version, modelFile), w); err != nil {
		return err
	}
	return s.point(symbol, func(p *pointer) { p.Weights = w.Version })
}

func (s *FileStore) LoadWeights(_ context.Context, symbol string) (*regressor.Weights, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.readPointer(symbol)
	if err != nil {
		return nil, err
	}
	return s.readWeights(symbol, p.Weights)
}

// Publish writes both artifacts into a fresh version directory, then swaps the
// pointer to it in one rename and prunes versions no pointer refers to any more.
func (s *FileStore) Publish(_ context.Context, state scaler.State, w *regressor.Weights) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeJSONAtomic(s.path(state.Symbol, state.Version, modelFile), w); err != nil {
		return err
	}
	if err := writeJSONAtomic(s.path(state.Symbol, state.Version, scalerFile), state); err != nil {
		return err
	}

	prev, _ := s.readPointer(state.Symbol)
	next := pointer{Scaler: state.Version, Weights: state.Version}
	if err := writeJSONAtomic(filepath.Join(s.symbolDir(state.Symbol), pointerFile), next); err != nil {
		return err
	}
	s.prune(state.Symbol, next, prev)
	return nil
}

// LoadBundle reads the pointer once and both artifacts it names.
func (s *FileStore) LoadBundle(_ context.Context, symbol string) (scaler.State, *regressor.Weights, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		state scaler.State
		w     *regressor.Weights
		err   error
	)
	// Another process may prune the version between the pointer read and the file
	// reads; a changed pointer means a newer pair is live, so read again.
	for attempt := 0; attempt < 3; attempt++ {
		var p pointer
		if p, err = s.readPointer(symbol); err != nil {
			return scaler.State{}, nil, err
		}
		if state, err = s.readScaler(symbol, p.Scaler); err == nil {
			if w, err = s.readWeights(symbol, p.Weights); err == nil {
				return state, w, nil
			}
		}
		if again, perr := s.readPointer(symbol); perr != nil || again == p {
			break
		}
	}
	return scaler.State{}, nil, err
}

func (s *FileStore) Close() error { return nil }

// point applies fn to the symbol's pointer and replaces it atomically.
func (s *FileStore) point(symbol string, fn func(*pointer)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.readPointer(symbol)
	if err != nil && !errors.Is(err, model.ErrStateNotFound) {
		return err
	}
	fn(&p)
	return writeJSONAtomic(filepath.Join(s.symbolDir(symbol), pointerFile), p)
}

func (s *FileStore) readPointer(symbol string) (pointer, error) {
	var p pointer
	if err := readJSON(filepath.Join(s.symbolDir(symbol), pointerFile), &p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return pointer{}, notFound("artifacts", symbol)
		}
		return pointer{}, fmt.Errorf("load artifact pointer: %w", err)
	}
	return p, nil
}

func (s *FileStore) readScaler(symbol, version string) (scaler.State, error) {
	if version == "" {
		return scaler.State{}, notFound("scaler", symbol)
	}
	var state scaler.State
	if err := readJSON(s.path(symbol, version, scalerFile), &state); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return scaler.State{}, notFound("scaler", symbol)
		}
		return scaler.State{}, fmt.Errorf("load scaler: %w", err)
	}
	return state, nil
}

func (s *FileStore) readWeights(symbol, version string) (*regressor.Weights, error) {
	if version == "" {
		return nil, notFound("model weights", symbol)
	}
	var w regressor.Weights
	if err := readJSON(s.path(symbol, version, modelFile), &w); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound("model weights", symbol)
		}
		return nil, fmt.Errorf("load weights: %w", err)
	}
	return &w, nil
}

// prune removes version directories referenced by neither the live nor the
// previous pointer. Failures are left for the next publish.
func (s *FileStore) prune(symbol string, live, prev pointer) {
	keep := map[string]bool{
		versionKey(live.Scaler): true, versionKey(live.Weights): true,
		versionKey(prev.Scaler): true, versionKey(prev.Weights): true,
	}
	entries, err := os.ReadDir(s.symbolDir(symbol))
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() && !keep[e.Name()] {
			_ = os.RemoveAll(filepath.Join(s.symbolDir(symbol), e.Name()))
		}
	}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSONAtomic writes v next to path, syncs it, then renames it over path.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
