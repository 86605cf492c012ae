package dataset

import (
	"math/rand"

	"github.com/garr-ai/garr/pkg/tokenizer"
)

// Batch is the numeric form of a group of examples. Rows are left padded to
// the longest row of the batch.
type Batch struct {
	InputIDs      [][]int
	AttentionMask [][]int
	Labels        []int
}

// Len is the number of rows.
func (b Batch) Len() int { return len(b.Labels) }

// Collator tokenizes, truncates to MaxLen and left pads examples.
type Collator struct {
	Tokenizer tokenizer.Tokenizer
	MaxLen    int
}

func (c Collator) Collate(examples []Example) Batch {
	texts := make([]string, len(examples))
	labels := make([]int, len(examples))
	for i, e := range examples {
		texts[i] = e.Text
		labels[i] = e.Label
	}
	padded := tokenizer.EncodeBatch(c.Tokenizer, texts, c.MaxLen)
	return Batch{InputIDs: padded.InputIDs, AttentionMask: padded.AttentionMask, Labels: labels}
}

// Loader yields collated batches of a split. Shuffling loaders draw a new
// order on every Batches call; others keep the split order.
type Loader struct {
	examples  []Example
	batchSize int
	collator  Collator
	rng       *rand.Rand
}

func NewLoader(examples []Example, batchSize int, collator Collator, rng *rand.Rand) *Loader {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Loader{examples: examples, batchSize: batchSize, collator: collator, rng: rng}
}

// Len is the number of batches per pass, the last one may be short.
func (l *Loader) Len() int {
	return (len(l.examples) + l.batchSize - 1) / l.batchSize
}

// Batches returns one pass over the split.
func (l *Loader) Batches() []Batch {
	order := make([]int, len(l.examples))
	for i := range order {
		order[i] = i
	}
	if l.rng != nil {
		l.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	batches := make([]Batch, 0, l.Len())
	for start := 0; start < len(order); start += l.batchSize {
		end := min(start+l.batchSize, len(order))
		group := make([]Example, 0, end-start)
		for _, idx := range order[start:end] {
			group = append(group, l.examples[idx])
		}
		batches = append(batches, l.collator.Collate(group))
	}
	return batches
}
