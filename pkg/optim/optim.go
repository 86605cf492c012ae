// Package optim holds the optimiser, learning rate schedule and gradient
// clipping used for fine-tuning.
package optim

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Parameter is a trainable tensor: its values and the matching gradients.
type Parameter interface {
	Values() []float64
	Gradients() []float64
}

// AdamWConfig holds AdamW hyper parameters.
type AdamWConfig struct {
	LearningRate float64 `mapstructure:"learning_rate" validate:"gt=0"`
	Beta1        float64 `mapstructure:"beta1" validate:"gte=0,lt=1"`
	Beta2        float64 `mapstructure:"beta2" validate:"gte=0,lt=1"`
	Epsilon      float64 `mapstructure:"epsilon" validate:"gt=0"`
	WeightDecay  float64 `mapstructure:"weight_decay" validate:"gte=0"`
}

// DefaultAdamWConfig returns the fine-tuning defaults.
func DefaultAdamWConfig() AdamWConfig {
	return AdamWConfig{
		LearningRate: 2e-5,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0,
	}
}

// AdamW is Adam with decoupled weight decay and bias correction.
type AdamW struct {
	config AdamWConfig
	params []Parameter
	m, v   [][]float64
	step   int
}

func NewAdamW[P Parameter](params []P, config AdamWConfig) *AdamW {
	opt := &AdamW{
		config: config,
		params: make([]Parameter, len(params)),
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for i, p := range params {
		opt.params[i] = p
		opt.m[i] = make([]float64, len(p.Values()))
		opt.v[i] = make([]float64, len(p.Values()))
	}
	return opt
}

// Step applies one update with learning rate lr.
func (o *AdamW) Step(lr float64) {
	o.step++
	c := o.config
	bc1 := 1 - math.Pow(c.Beta1, float64(o.step))
	bc2 := 1 - math.Pow(c.Beta2, float64(o.step))
	stepSize := lr / bc1
	sqrtBC2 := math.Sqrt(bc2)

	for i, p := range o.params {
		w, g := p.Values(), p.Gradients()
		if g == nil {
			continue
		}
		m, v := o.m[i], o.v[i]
		for j := range w {
			if c.WeightDecay != 0 {
				w[j] -= lr * c.WeightDecay * w[j]
			}
			m[j] = c.Beta1*m[j] + (1-c.Beta1)*g[j]
			v[j] = c.Beta2*v[j] + (1-c.Beta2)*g[j]*g[j]
			w[j] -= stepSize * m[j] / (math.Sqrt(v[j])/sqrtBC2 + c.Epsilon)
		}
	}
}

// Steps is the number of updates applied so far.
func (o *AdamW) Steps() int { return o.step }

// LinearSchedule warms up linearly from 0 to the base rate over warmup
// steps and then decays linearly to 0 at total steps.
type LinearSchedule struct {
	Base   float64
	Warmup int
	Total  int
}

// At returns the learning rate used for the update following step updates.
func (s LinearSchedule) At(step int) float64 {
	if step < s.Warmup {
		return s.Base * float64(step) / math.Max(1, float64(s.Warmup))
	}
	remaining := float64(s.Total - step)
	span := math.Max(1, float64(s.Total-s.Warmup))
	return s.Base * math.Max(0, remaining/span)
}

// ClipGradNorm scales all gradients so that their global L2 norm is at most
// maxNorm and returns the norm before clipping.
func ClipGradNorm[P Parameter](params []P, maxNorm float64) float64 {
	total := 0.0
	for _, p := range params {
		g := p.Gradients()
		total += floats.Dot(g, g)
	}
	norm := math.Sqrt(total)

	coef := maxNorm / (norm + 1e-6)
	if coef >= 1 {
		return norm
	}
	for _, p := range params {
		floats.Scale(coef, p.Gradients())
	}
	return norm
}
