package tokenizer

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/constants"
)

const (
	gpt2Encoding = "r50k_base"
	endOfText    = "<|endoftext|>"
)

// tiktoken keeps one process wide loader and caches encodings by name.
var loaderMu sync.Mutex

// vocabLoader serves the r50k ranks from a Hugging Face vocab.json.
type vocabLoader struct {
	fs   afero.Fs
	path string
}

func (l vocabLoader) LoadTiktokenBpe(string) (map[string]int, error) {
	return readVocab(l.fs, l.path)
}

func readVocab(fs afero.Fs, path string) (map[string]int, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "reading vocab")
	}

	vocab := map[string]int{}
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	ranks := make(map[string]int, len(vocab))
	for token, id := range vocab {
		if token == endOfText {
			continue
		}
		raw, ok := unicodeToBytes(token)
		if !ok {
			return nil, errors.Errorf("vocab token %q is not byte-level encoded", token)
		}
		ranks[string(raw)] = id
	}
	return ranks, nil
}

// GPT2 is the byte-level BPE tokenizer of GPT-2. The end-of-text token
// doubles as pad token.
type GPT2 struct {
	enc       *tiktoken.Tiktoken
	vocabSize int
	padID     int
}

var _ Tokenizer = (*GPT2)(nil)

// LoadGPT2 builds the tokenizer from dir/vocab.json. All GPT-2 checkpoints
// share one vocabulary, so the first loaded vocab serves the whole process.
func LoadGPT2(fs afero.Fs, dir string) (*GPT2, error) {
	path := filepath.Join(dir, constants.VocabFile)
	if ok, err := afero.Exists(fs, path); err != nil || !ok {
		return nil, fmt.Errorf("tokenizer vocab %s not found", path)
	}

	loaderMu.Lock()
	tiktoken.SetBpeLoader(vocabLoader{fs: fs, path: path})
	enc, err := tiktoken.GetEncoding(gpt2Encoding)
	loaderMu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "building gpt2 encoding")
	}

	return &GPT2{
		enc:       enc,
		vocabSize: constants.GPT2EndOfText + 1,
		padID:     constants.GPT2EndOfText,
	}, nil
}

func (t *GPT2) Encode(text string) []int {
	return t.enc.EncodeOrdinary(text)
}

func (t *GPT2) Decode(ids []int) string {
	known := make([]int, 0, len(ids))
	for _, id := range ids {
		if id >= 0 && id < t.vocabSize {
			known = append(known, id)
		}
	}
	return t.enc.Decode(known)
}

func (t *GPT2) PadTokenID() int { return t.padID }

func (t *GPT2) VocabSize() int { return t.vocabSize }
