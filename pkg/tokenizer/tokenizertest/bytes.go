// Package tokenizertest provides a tokenizer for tests that need no vocab
// files.
package tokenizertest

import "github.com/garr-ai/garr/pkg/tokenizer"

// Bytes encodes every byte as its own id modulo Vocab-1 and reserves
// Vocab-1 for padding.
type Bytes struct {
	Vocab int
}

var _ tokenizer.Tokenizer = Bytes{}

func (b Bytes) Encode(text string) []int {
	ids := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int(text[i]) % (b.Vocab - 1)
	}
	return ids
}

func (b Bytes) Decode(ids []int) string {
	out := make([]byte, 0, len(ids))
	for _, id := range ids {
		if id >= 0 && id < b.Vocab-1 {
			out = append(out, byte(id))
		}
	}
	return string(out)
}

func (b Bytes) PadTokenID() int { return b.Vocab - 1 }

func (b Bytes) VocabSize() int { return b.Vocab }
