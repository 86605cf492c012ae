package gpt2

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const geluCoeff = 0.044715

var sqrt2OverPi = math.Sqrt(2 / math.Pi)

type lnCache struct {
	xhat *mat.Dense
	rstd []float64
}

type layerCache struct {
	x     *mat.Dense
	ln1   lnCache
	a     *mat.Dense
	qkv   *mat.Dense
	probs []*mat.Dense
	o     *mat.Dense
	h1    *mat.Dense
	ln2   lnCache
	m     *mat.Dense
	f     *mat.Dense
	g     *mat.Dense
}

// seqCache keeps the activations of one sequence for the backward pass.
type seqCache struct {
	ids    []int
	layers []layerCache
	lnF    lnCache
	last   []float64
}

// validTokens drops padded positions. Position ids count real tokens only,
// so a left padded row produces the same logits as the unpadded one.
func (m *Model) validTokens(ids, mask []int) ([]int, error) {
	out := make([]int, 0, len(ids))
	for i, id := range ids {
		if mask != nil && mask[i] == 0 {
			continue
		}
		if id < 0 || id >= m.Config.VocabSize {
			return nil, fmt.Errorf("token id %d outside vocabulary of %d", id, m.Config.VocabSize)
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		// an all padding row attends to a single pad token
		out = append(out, m.Config.Pad())
	}
	if len(out) > m.Config.NPositions {
		return nil, fmt.Errorf("sequence of %d tokens exceeds n_positions %d", len(out), m.Config.NPositions)
	}
	return out, nil
}

// Logits classifies every row of a padded batch. mask may be nil when rows
// carry no padding.
func (m *Model) Logits(ctx context.Context, ids, mask [][]int) ([][]float64, error) {
	out := make([][]float64, len(ids))
	for i := range ids {
		var rowMask []int
		if mask != nil {
			rowMask = mask[i]
		}
		tokens, err := m.validTokens(ids[i], rowMask)
		if err != nil {
			return nil, err
		}
		logits, _, err := m.forward(ctx, tokens, false)
		if err != nil {
			return nil, err
		}
		out[i] = logits
	}
	return out, nil
}

// Predict returns the arg-max class of one token sequence and its logits.
func (m *Model) Predict(ctx context.Context, ids []int) (int, []float64, error) {
	logits, err := m.Logits(ctx, [][]int{ids}, nil)
	if err != nil {
		return 0, nil, err
	}
	return floats.MaxIdx(logits[0]), logits[0], nil
}

func (m *Model) forward(ctx context.Context, ids []int, keep bool) ([]float64, *seqCache, error) {
	c := m.Config
	n, d := len(ids), c.NEmbd

	h := mat.NewDense(n, d, nil)
	for i, id := range ids {
		row := h.RawRowView(i)
		floats.Add(row, m.p.wte.row(id))
		floats.Add(row, m.p.wpe.row(i))
	}

	var cache *seqCache
	if keep {
		cache = &seqCache{ids: ids, layers: make([]layerCache, len(m.p.blocks))}
	}

	for l, b := range m.p.blocks {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		lc := layerCache{x: h}
		lc.a, lc.ln1 = layerNormForward(h, b.ln1, c.LayerNormEpsilon)
		lc.qkv = linearForward(lc.a, b.attn)
		lc.o, lc.probs = m.attentionForward(lc.qkv)

		h1 := linearForward(lc.o, b.attnProj)
		h1.Add(h1, h)
		lc.h1 = h1

		lc.m, lc.ln2 = layerNormForward(h1, b.ln2, c.LayerNormEpsilon)
		lc.f = linearForward(lc.m, b.fc)
		lc.g = mat.NewDense(n, c.Inner(), nil)
		lc.g.Apply(func(_, _ int, v float64) float64 { return gelu(v) }, lc.f)

		h = linearForward(lc.g, b.mlpProj)
		h.Add(h, h1)

		if keep {
			cache.layers[l] = lc
		}
	}

	hf, lnF := layerNormForward(h, m.p.lnF, c.LayerNormEpsilon)
	last := hf.RawRowView(n - 1)

	labels := c.NumLabels()
	logits := make([]float64, labels)
	for k := 0; k < labels; k++ {
		logits[k] = floats.Dot(last, m.p.score.row(k))
	}

	if keep {
		cache.lnF = lnF
		cache.last = last
	}
	return logits, cache, nil
}

func linearForward(x *mat.Dense, l linear) *mat.Dense {
	r, _ := x.Dims()
	_, out := l.weight.rowsCols()
	y := mat.NewDense(r, out, nil)
	y.Mul(x, l.weight.mat())
	for i := 0; i < r; i++ {
		floats.Add(y.RawRowView(i), l.bias.Data)
	}
	return y
}

func layerNormForward(x *mat.Dense, ln layerNorm, eps float64) (*mat.Dense, lnCache) {
	r, cols := x.Dims()
	y := mat.NewDense(r, cols, nil)
	cache := lnCache{xhat: mat.NewDense(r, cols, nil), rstd: make([]float64, r)}

	for i := 0; i < r; i++ {
		row := x.RawRowView(i)
		mean := floats.Sum(row) / float64(cols)
		variance := 0.0
		for _, v := range row {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(cols)
		rstd := 1 / math.Sqrt(variance+eps)
		cache.rstd[i] = rstd

		xhat := cache.xhat.RawRowView(i)
		out := y.RawRowView(i)
		for j, v := range row {
			xhat[j] = (v - mean) * rstd
			out[j] = xhat[j]*ln.weight.Data[j] + ln.bias.Data[j]
		}
	}
	return y, cache
}

// attentionForward runs causal multi-head self attention over the fused
// q|k|v projection and returns the concatenated head outputs.
func (m *Model) attentionForward(qkv *mat.Dense) (*mat.Dense, []*mat.Dense) {
	n, _ := qkv.Dims()
	d, heads := m.Config.NEmbd, m.Config.NHead
	hd := d / heads
	scale := 1 / math.Sqrt(float64(hd))

	o := mat.NewDense(n, d, nil)
	probs := make([]*mat.Dense, heads)
	for h := 0; h < heads; h++ {
		q := qkv.Slice(0, n, h*hd, (h+1)*hd)
		k := qkv.Slice(0, n, d+h*hd, d+(h+1)*hd)
		v := qkv.Slice(0, n, 2*d+h*hd, 2*d+(h+1)*hd)

		p := mat.NewDense(n, n, nil)
		p.Mul(q, k.T())
		for i := 0; i < n; i++ {
			row := p.RawRowView(i)
			floats.Scale(scale, row[:i+1])
			softmaxInPlace(row[:i+1])
			for j := i + 1; j < n; j++ {
				row[j] = 0
			}
		}
		probs[h] = p

		o.Slice(0, n, h*hd, (h+1)*hd).(*mat.Dense).Mul(p, v)
	}
	return o, probs
}

func softmaxInPlace(x []float64) {
	maxV := floats.Max(x)
	sum := 0.0
	for i, v := range x {
		x[i] = math.Exp(v - maxV)
		sum += x[i]
	}
	floats.Scale(1/sum, x)
}

func gelu(x float64) float64 {
	return 0.5 * x * (1 + math.Tanh(sqrt2OverPi*(x+geluCoeff*x*x*x)))
}

func geluGrad(x float64) float64 {
	u := sqrt2OverPi * (x + geluCoeff*x*x*x)
	t := math.Tanh(u)
	return 0.5*(1+t) + 0.5*x*(1-t*t)*sqrt2OverPi*(1+3*geluCoeff*x*x)
}
