package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Split is a train/test partition. Neither slice is modified after
// StratifiedSplit returns.
type Split struct {
	Train []Example
	Test  []Example
}

// StratifiedSplit sends round(n_c·testSize), clamped to [1, n_c-1], examples
// of every class c to the test side. The result depends only on the input
// order and seed.
func StratifiedSplit(examples []Example, testSize float64, seed int64) (Split, error) {
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("test size %v must be in (0, 1)", testSize)
	}

	byClass := map[int][]Example{}
	for _, e := range examples {
		byClass[e.Label] = append(byClass[e.Label], e)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	var split Split
	for _, c := range classes {
		group := byClass[c]
		n := len(group)
		if n < 2 {
			return Split{}, fmt.Errorf("%w: label %d has %d example(s), at least 2 are needed", ErrTooFewExamples, c, n)
		}
		rng.Shuffle(n, func(i, j int) { group[i], group[j] = group[j], group[i] })

		nTest := int(math.Round(float64(n) * testSize))
		nTest = max(1, min(nTest, n-1))
		split.Test = append(split.Test, group[:nTest]...)
		split.Train = append(split.Train, group[nTest:]...)
	}

	rng.Shuffle(len(split.Train), func(i, j int) { split.Train[i], split.Train[j] = split.Train[j], split.Train[i] })
	rng.Shuffle(len(split.Test), func(i, j int) { split.Test[i], split.Test[j] = split.Test[j], split.Test[i] })
	return split, nil
}
