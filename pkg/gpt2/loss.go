package gpt2

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// WeightedCrossEntropy computes Σ w_y·(−log softmax(z)_y) / Σ w_y over the
// batch and its gradient with respect to the logits. A nil weights slice
// weighs every class 1.
func WeightedCrossEntropy(logits [][]float64, labels []int, weights []float64) (float64, [][]float64, error) {
	if len(logits) != len(labels) {
		return 0, nil, fmt.Errorf("%d logit rows for %d labels", len(logits), len(labels))
	}

	weightOf := func(label int) float64 {
		if weights == nil {
			return 1
		}
		return weights[label]
	}

	total := 0.0
	for i, label := range labels {
		if label < 0 || label >= len(logits[i]) || (weights != nil && label >= len(weights)) {
			return 0, nil, fmt.Errorf("label %d out of range", label)
		}
		total += weightOf(label)
	}
	if total == 0 {
		return 0, nil, errors.New("total class weight of the batch is zero")
	}

	loss := 0.0
	grads := make([][]float64, len(logits))
	for i, z := range logits {
		p := make([]float64, len(z))
		copy(p, z)
		logSumExp := floats.LogSumExp(p)
		for k := range p {
			p[k] = math.Exp(z[k] - logSumExp)
		}

		w := weightOf(labels[i])
		loss += w * (logSumExp - z[labels[i]])

		p[labels[i]]--
		floats.Scale(w/total, p)
		grads[i] = p
	}
	return loss / total, grads, nil
}

// Accuracy is the share of rows whose arg-max logit matches the label.
func Accuracy(logits [][]float64, labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	correct := 0
	for i, z := range logits {
		if floats.MaxIdx(z) == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels))
}
