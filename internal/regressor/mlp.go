package regressor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"PriceForecaster/internal/model"
	"PriceForecaster/internal/sequence"

	"gonum.org/v1/gonum/mat"
)

const architectureMLP = "mlp-tanh-v1"

// Config controls the MLP and its fixed training schedule.
type Config struct {
	WindowLength int
	Features     int
	Hidden       int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         uint64
}

// DefaultConfig is the forecaster's standard training schedule.
func DefaultConfig() Config {
	return Config{
		WindowLength: sequence.DefaultLength,
		Features:     model.FeatureCount,
		Hidden:       64,
		Epochs:       50,
		BatchSize:    32,
		LearningRate: 1e-3,
		Seed:         42,
	}
}

// MLP flattens a window and regresses every next-day feature through one tanh layer.
// Training is deterministic for a given Config and sample order.
type MLP struct {
	cfg Config
	// OnEpoch, when set, is called after each epoch.
	OnEpoch func(EpochLoss)
}

// NewMLP returns an MLP for cfg, filling zero fields from DefaultConfig.
func NewMLP(cfg Config) *MLP {
	def := DefaultConfig()
	if cfg.WindowLength <= 0 {
		cfg.WindowLength = def.WindowLength
	}
	if cfg.Features <= 0 {
		cfg.Features = def.Features
	}
	if cfg.Hidden <= 0 {
		cfg.Hidden = def.Hidden
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	return &MLP{cfg: cfg}
}

// Config returns the effective configuration.
func (m *MLP) Config() Config { return m.cfg }

// params groups the trainable matrices so Adam can walk them uniformly.
type params struct {
	w1, w2 *mat.Dense
	b1, b2 []float64
}

func (p *params) slices() [][]float64 {
	return [][]float64{p.w1.RawMatrix().Data, p.b1, p.w2.RawMatrix().Data, p.b2}
}

// Train fits weights on train and reports validation loss after every epoch.
// It returns ctx.Err() if cancelled between batches.
func (m *MLP) Train(ctx context.Context, train, validation []sequence.Sample) (*Weights, Report, error) {
	start := time.Now()
	report := Report{TrainSamples: len(train), ValSamples: len(validation)}
	if len(train) == 0 {
		return nil, report, errors.New("train: no training samples")
	}
	for i, s := range train {
		if err := m.checkSample(s); err != nil {
			return nil, report, fmt.Errorf("train sample %d: %w", i, err)
		}
	}
	for i, s := range validation {
		if err := m.checkSample(s); err != nil {
			return nil, report, fmt.Errorf("validation sample %d: %w", i, err)
		}
	}

	rng := rand.New(rand.NewPCG(m.cfg.Seed, m.cfg.Seed^0x9e3779b97f4a7c15))
	p := m.initParams(rng)
	opt := newAdam(m.cfg.LearningRate, p.slices())

	order := make([]int, len(train))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= m.cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var lossSum float64
		for lo := 0; lo < len(order); lo += m.cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, report, err
			}
			hi := min(lo+m.cfg.BatchSize, len(order))
			batch := make([]sequence.Sample, 0, hi-lo)
			for _, idx := range order[lo:hi] {
				batch = append(batch, train[idx])
			}
			loss, grads := m.backward(p, batch)
			opt.step(p.slices(), grads.slices())
			lossSum += loss * float64(len(batch))
		}

		el := EpochLoss{Epoch: epoch, TrainLoss: lossSum / float64(len(train))}
		if len(validation) > 0 {
			el.ValLoss = m.loss(p, validation)
		}
		report.Epochs = append(report.Epochs, el)
		if m.OnEpoch != nil {
			m.OnEpoch(el)
		}
	}
	report.Duration = time.Since(start)

	w := &Weights{
		Architecture: architectureMLP,
		TrainedAt:    time.Now().UTC(),
		WindowLength: m.cfg.WindowLength,
		Features:     m.cfg.Features,
		Hidden:       m.cfg.Hidden,
		W1:           append([]float64(nil), p.w1.RawMatrix().Data...),
		B1:           append([]float64(nil), p.b1...),
		W2:           append([]float64(nil), p.w2.RawMatrix().Data...),
		B2:           append([]float64(nil), p.b2...),
	}
	return w, report, nil
}

// Predict runs a single forward pass over window.
func (m *MLP) Predict(w *Weights, window [][]float64) ([]float64, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if w.Architecture != architectureMLP {
		return nil, fmt.Errorf("predict: unsupported architecture %q", w.Architecture)
	}
	if err := checkWindow(window, w.WindowLength, w.Features); err != nil {
		return nil, err
	}
	p := &params{
		w1: mat.NewDense(w.Inputs(), w.Hidden, append([]float64(nil), w.W1...)),
		b1: w.B1,
		w2: mat.NewDense(w.Hidden, w.Features, append([]float64(nil), w.W2...)),
		b2: w.B2,
	}
	x := flatten([]sequence.Sample{{Window: window}}, w.Inputs())
	_, y := forward(p, x)
	return mat.Row(nil, 0, y), nil
}

func (m *MLP) checkSample(s sequence.Sample) error {
	if err := checkWindow(s.Window, m.cfg.WindowLength, m.cfg.Features); err != nil {
		return err
	}
	if len(s.Target) != m.cfg.Features {
		return fmt.Errorf("target has %d features, want %d", len(s.Target), m.cfg.Features)
	}
	return nil
}

// initParams draws Glorot-uniform weights and zero biases.
func (m *MLP) initParams(rng *rand.Rand) *params {
	in := m.cfg.WindowLength * m.cfg.Features
	glorot := func(r, c int) *mat.Dense {
		limit := math.Sqrt(6 / float64(r+c))
		data := make([]float64, r*c)
		for i := range data {
			data[i] = (rng.Float64()*2 - 1) * limit
		}
		return mat.NewDense(r, c, data)
	}
	return &params{
		w1: glorot(in, m.cfg.Hidden),
		b1: make([]float64, m.cfg.Hidden),
		w2: glorot(m.cfg.Hidden, m.cfg.Features),
		b2: make([]float64, m.cfg.Features),
	}
}

// flatten stacks each sample window into one row of the returned matrix.
func flatten(samples []sequence.Sample, inputs int) *mat.Dense {
	data := make([]float64, 0, len(samples)*inputs)
	for _, s := range samples {
		for _, row := range s.Window {
			data = append(data, row...)
		}
	}
	return mat.NewDense(len(samples), inputs, data)
}

func targets(samples []sequence.Sample, features int) *mat.Dense {
	data := make([]float64, 0, len(samples)*features)
	for _, s := range samples {
		data = append(data, s.Target...)
	}
	return mat.NewDense(len(samples), features, data)
}

// forward returns the hidden activations and the outputs for x.
func forward(p *params, x *mat.Dense) (*mat.Dense, *mat.Dense) {
	var h mat.Dense
	h.Mul(x, p.w1)
	h.Apply(func(_, j int, v float64) float64 { return math.Tanh(v + p.b1[j]) }, &h)

	var y mat.Dense
	y.Mul(&h, p.w2)
	y.Apply(func(_, j int, v float64) float64 { return v + p.b2[j] }, &y)
	return &h, &y
}

// loss is the mean squared error over every output of every sample.
func (m *MLP) loss(p *params, samples []sequence.Sample) float64 {
	x := flatten(samples, m.cfg.WindowLength*m.cfg.Features)
	t := targets(samples, m.cfg.Features)
	_, y := forward(p, x)
	var diff mat.Dense
	diff.Sub(y, t)
	return meanSquare(&diff)
}

// backward returns the batch loss and the gradients of every parameter.
func (m *MLP) backward(p *params, batch []sequence.Sample) (float64, *params) {
	x := flatten(batch, m.cfg.WindowLength*m.cfg.Features)
	t := targets(batch, m.cfg.Features)
	h, y := forward(p, x)

	var dy mat.Dense
	dy.Sub(y, t)
	loss := meanSquare(&dy)
	r, c := dy.Dims()
	dy.Scale(2/float64(r*c), &dy)

	var dw2 mat.Dense
	dw2.Mul(h.T(), &dy)
	db2 := colSums(&dy)

	var dh mat.Dense
	dh.Mul(&dy, p.w2.T())
	dh.Apply(func(i, j int, v float64) float64 {
		a := h.At(i, j)
		return v * (1 - a*a)
	}, &dh)

	var dw1 mat.Dense
	dw1.Mul(x.T(), &dh)
	db1 := colSums(&dh)

	return loss, &params{w1: &dw1, b1: db1, w2: &dw2, b2: db2}
}

func meanSquare(d *mat.Dense) float64 {
	r, c := d.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := d.At(i, j)
			sum += v * v
		}
	}
	return sum / float64(r*c)
}

func colSums(d *mat.Dense) []float64 {
	r, c := d.Dims()
	out := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out[j] += d.At(i, j)
		}
	}
	return out
}

// adam is the Adam optimizer over a fixed list of flat parameter slices.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  [][]float64
}

func newAdam(lr float64, shapes [][]float64) *adam {
	a := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}
	for _, s := range shapes {
		a.m = append(a.m, make([]float64, len(s)))
		a.v = append(a.v, make([]float64, len(s)))
	}
	return a
}

func (a *adam) step(params, grads [][]float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for k, p := range params {
		g := grads[k]
		m, v := a.m[k], a.v[k]
		for i := range p {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			p[i] -= a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + a.eps)
		}
	}
}
