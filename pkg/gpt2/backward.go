package gpt2

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ForwardBackward runs a training step over a padded batch: it returns the
// weighted cross entropy loss and the logits, and accumulates parameter
// gradients. EnableGrad must have been called.
func (m *Model) ForwardBackward(ctx context.Context, ids, mask [][]int, labels []int, weights []float64) (float64, [][]float64, error) {
	if len(ids) != len(labels) {
		return 0, nil, fmt.Errorf("batch has %d rows but %d labels", len(ids), len(labels))
	}
	if m.p.wte.Grad == nil {
		return 0, nil, errors.New("gradients are not enabled")
	}

	logits := make([][]float64, len(ids))
	caches := make([]*seqCache, len(ids))
	for i := range ids {
		var rowMask []int
		if mask != nil {
			rowMask = mask[i]
		}
		tokens, err := m.validTokens(ids[i], rowMask)
		if err != nil {
			return 0, nil, err
		}
		logits[i], caches[i], err = m.forward(ctx, tokens, true)
		if err != nil {
			return 0, nil, err
		}
	}

	loss, dlogits, err := WeightedCrossEntropy(logits, labels, weights)
	if err != nil {
		return 0, nil, err
	}

	for i, cache := range caches {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		m.backward(cache, dlogits[i])
	}
	return loss, logits, nil
}

func (m *Model) backward(cache *seqCache, dlogits []float64) {
	c := m.Config
	n, d := len(cache.ids), c.NEmbd

	// score head: logits = last·scoreᵀ
	dlast := make([]float64, d)
	for k, g := range dlogits {
		floats.AddScaled(m.p.score.gradRow(k), g, cache.last)
		floats.AddScaled(dlast, g, m.p.score.row(k))
	}

	dhf := mat.NewDense(n, d, nil)
	copy(dhf.RawRowView(n-1), dlast)
	dh := layerNormBackward(dhf, cache.lnF, m.p.lnF)

	for l := len(m.p.blocks) - 1; l >= 0; l-- {
		b, lc := m.p.blocks[l], cache.layers[l]

		// h = h1 + mlpProj(gelu(fc(ln2(h1))))
		dg := linearBackward(lc.g, dh, b.mlpProj)
		df := mat.NewDense(n, c.Inner(), nil)
		df.Apply(func(i, j int, v float64) float64 { return v * geluGrad(lc.f.At(i, j)) }, dg)
		dm := linearBackward(lc.m, df, b.fc)
		dh1 := layerNormBackward(dm, lc.ln2, b.ln2)
		dh1.Add(dh1, dh)

		// h1 = x + attnProj(attention(attn(ln1(x))))
		do := linearBackward(lc.o, dh1, b.attnProj)
		dqkv := m.attentionBackward(lc.qkv, lc.probs, do)
		da := linearBackward(lc.a, dqkv, b.attn)
		dx := layerNormBackward(da, lc.ln1, b.ln1)
		dx.Add(dx, dh1)

		dh = dx
	}

	for i, id := range cache.ids {
		row := dh.RawRowView(i)
		floats.Add(m.p.wte.gradRow(id), row)
		floats.Add(m.p.wpe.gradRow(i), row)
	}
}

// linearBackward accumulates dW = xᵀ·dy, db = Σ dy and returns dx = dy·Wᵀ.
func linearBackward(x, dy *mat.Dense, l linear) *mat.Dense {
	rows, in := x.Dims()

	var dw mat.Dense
	dw.Mul(x.T(), dy)
	gw := l.weight.gradMat()
	gw.Add(gw, &dw)

	for i := 0; i < rows; i++ {
		floats.Add(l.bias.Grad, dy.RawRowView(i))
	}

	dx := mat.NewDense(rows, in, nil)
	dx.Mul(dy, l.weight.mat().T())
	return dx
}

func layerNormBackward(dy *mat.Dense, cache lnCache, ln layerNorm) *mat.Dense {
	rows, cols := dy.Dims()
	dx := mat.NewDense(rows, cols, nil)
	dxhat := make([]float64, cols)

	for i := 0; i < rows; i++ {
		dyRow := dy.RawRowView(i)
		xhat := cache.xhat.RawRowView(i)

		meanDxhat, meanDxhatXhat := 0.0, 0.0
		for j := range dyRow {
			ln.weight.Grad[j] += dyRow[j] * xhat[j]
			ln.bias.Grad[j] += dyRow[j]
			dxhat[j] = dyRow[j] * ln.weight.Data[j]
			meanDxhat += dxhat[j]
			meanDxhatXhat += dxhat[j] * xhat[j]
		}
		meanDxhat /= float64(cols)
		meanDxhatXhat /= float64(cols)

		out := dx.RawRowView(i)
		rstd := cache.rstd[i]
		for j := range out {
			out[j] = rstd * (dxhat[j] - meanDxhat - xhat[j]*meanDxhatXhat)
		}
	}
	return dx
}

func (m *Model) attentionBackward(qkv *mat.Dense, probs []*mat.Dense, do *mat.Dense) *mat.Dense {
	n, _ := qkv.Dims()
	d, heads := m.Config.NEmbd, m.Config.NHead
	hd := d / heads
	scale := 1 / math.Sqrt(float64(hd))

	dqkv := mat.NewDense(n, 3*d, nil)
	for h := 0; h < heads; h++ {
		q := qkv.Slice(0, n, h*hd, (h+1)*hd)
		k := qkv.Slice(0, n, d+h*hd, d+(h+1)*hd)
		v := qkv.Slice(0, n, 2*d+h*hd, 2*d+(h+1)*hd)
		doh := do.Slice(0, n, h*hd, (h+1)*hd)
		p := probs[h]

		dqkv.Slice(0, n, 2*d+h*hd, 2*d+(h+1)*hd).(*mat.Dense).Mul(p.T(), doh)

		ds := mat.NewDense(n, n, nil)
		ds.Mul(doh, v.T())
		for i := 0; i < n; i++ {
			pRow, dRow := p.RawRowView(i), ds.RawRowView(i)
			dot := floats.Dot(pRow[:i+1], dRow[:i+1])
			for j := 0; j <= i; j++ {
				dRow[j] = pRow[j] * (dRow[j] - dot) * scale
			}
			for j := i + 1; j < n; j++ {
				dRow[j] = 0
			}
		}

		dqkv.Slice(0, n, h*hd, (h+1)*hd).(*mat.Dense).Mul(ds, k)
		dqkv.Slice(0, n, d+h*hd, d+(h+1)*hd).(*mat.Dense).Mul(ds.T(), q)
	}
	return dqkv
}
