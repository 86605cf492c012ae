package gpt2

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a named parameter stored row-major. Grad is nil until gradients
// are enabled on the owning model.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float64
	Grad  []float64
}

func newTensor(name string, shape ...int) *Tensor {
	return &Tensor{Name: name, Shape: shape, Data: make([]float64, numel(shape))}
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Values implements optim.Parameter.
func (t *Tensor) Values() []float64 { return t.Data }

// Gradients implements optim.Parameter.
func (t *Tensor) Gradients() []float64 { return t.Grad }

func (t *Tensor) rowsCols() (int, int) {
	if len(t.Shape) == 1 {
		return 1, t.Shape[0]
	}
	return t.Shape[0], numel(t.Shape[1:])
}

// mat views share the backing slices.
func (t *Tensor) mat() *mat.Dense {
	r, c := t.rowsCols()
	return mat.NewDense(r, c, t.Data)
}

func (t *Tensor) gradMat() *mat.Dense {
	r, c := t.rowsCols()
	return mat.NewDense(r, c, t.Grad)
}

func (t *Tensor) row(i int) []float64 {
	_, c := t.rowsCols()
	return t.Data[i*c : (i+1)*c]
}

func (t *Tensor) gradRow(i int) []float64 {
	_, c := t.rowsCols()
	return t.Grad[i*c : (i+1)*c]
}

func (t *Tensor) sameShape(shape []int) bool {
	if len(shape) != len(t.Shape) {
		return false
	}
	for i := range shape {
		if shape[i] != t.Shape[i] {
			return false
		}
	}
	return true
}

type layerNorm struct {
	weight, bias *Tensor
}

// linear follows the Conv1D layout of GPT-2: y = x·W + b with W [in, out].
type linear struct {
	weight, bias *Tensor
}

type block struct {
	ln1      layerNorm
	attn     linear
	attnProj linear
	ln2      layerNorm
	fc       linear
	mlpProj  linear
}

// params holds every model weight. The score head is a bias free [labels, embd]
// matrix applied as h·Wᵀ.
type params struct {
	wte    *Tensor
	wpe    *Tensor
	blocks []block
	lnF    layerNorm
	score  *Tensor

	all []*Tensor
}

func newParams(c Config) *params {
	p := &params{}
	add := func(name string, shape ...int) *Tensor {
		t := newTensor(name, shape...)
		p.all = append(p.all, t)
		return t
	}
	ln := func(prefix string) layerNorm {
		return layerNorm{weight: add(prefix+".weight", c.NEmbd), bias: add(prefix+".bias", c.NEmbd)}
	}
	lin := func(prefix string, in, out int) linear {
		return linear{weight: add(prefix+".weight", in, out), bias: add(prefix+".bias", out)}
	}

	d, inner := c.NEmbd, c.Inner()
	p.wte = add("transformer.wte.weight", c.VocabSize, d)
	p.wpe = add("transformer.wpe.weight", c.NPositions, d)
	p.blocks = make([]block, c.NLayer)
	for i := range p.blocks {
		prefix := fmt.Sprintf("transformer.h.%d", i)
		p.blocks[i] = block{
			ln1:      ln(prefix + ".ln_1"),
			attn:     lin(prefix+".attn.c_attn", d, 3*d),
			attnProj: lin(prefix+".attn.c_proj", d, d),
			ln2:      ln(prefix + ".ln_2"),
			fc:       lin(prefix+".mlp.c_fc", d, inner),
			mlpProj:  lin(prefix+".mlp.c_proj", inner, d),
		}
	}
	p.lnF = ln("transformer.ln_f")
	p.score = add("score.weight", c.NumLabels(), d)
	return p
}

func (p *params) byName() map[string]*Tensor {
	m := make(map[string]*Tensor, len(p.all))
	for _, t := range p.all {
		m[t.Name] = t
	}
	return m
}
