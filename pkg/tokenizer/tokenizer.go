// Package tokenizer turns text into GPT-2 token ids and assembles
// left-padded batches for sequence classification.
package tokenizer

import "unicode/utf8"

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	// Encode returns the ids of text without special tokens.
	Encode(text string) []int
	// Decode returns the text of ids. Unknown ids are skipped.
	Decode(ids []int) string
	// PadTokenID is the id used for padding.
	PadTokenID() int
	// VocabSize is the number of ids the tokenizer can produce.
	VocabSize() int
}

// Truncate keeps the first maxLen ids. A non-positive maxLen disables
// truncation. Truncate(Truncate(x, n), n) == Truncate(x, n).
func Truncate(ids []int, maxLen int) []int {
	if maxLen <= 0 || len(ids) <= maxLen {
		return ids
	}
	return ids[:maxLen]
}

// EncodeTruncated encodes text and keeps at most maxLen ids. Trailing ids
// holding only part of a UTF-8 sequence are dropped as well, so decoding
// and re-encoding the result yields the same ids.
func EncodeTruncated(tok Tokenizer, text string, maxLen int) []int {
	full := tok.Encode(text)
	ids := Truncate(full, maxLen)
	if len(ids) == len(full) {
		return ids
	}
	for n := len(ids); n > 0 && len(ids)-n < utf8.UTFMax; n-- {
		if utf8.ValidString(tok.Decode(ids[:n])) {
			return ids[:n]
		}
	}
	return ids
}

// Padded is a rectangular batch of token ids.
type Padded struct {
	InputIDs      [][]int
	AttentionMask [][]int
}

// LeftPad pads every row on the left with padID up to the longest row.
// The mask is 1 for real tokens and 0 for padding.
func LeftPad(rows [][]int, padID int) Padded {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	out := Padded{
		InputIDs:      make([][]int, len(rows)),
		AttentionMask: make([][]int, len(rows)),
	}
	for i, row := range rows {
		ids := make([]int, width)
		mask := make([]int, width)
		offset := width - len(row)
		for j := 0; j < offset; j++ {
			ids[j] = padID
		}
		copy(ids[offset:], row)
		for j := offset; j < width; j++ {
			mask[j] = 1
		}
		out.InputIDs[i] = ids
		out.AttentionMask[i] = mask
	}
	return out
}

// EncodeBatch encodes, truncates and left-pads texts in one go.
func EncodeBatch(tok Tokenizer, texts []string, maxLen int) Padded {
	rows := make([][]int, len(texts))
	for i, text := range texts {
		rows[i] = EncodeTruncated(tok, text, maxLen)
	}
	return LeftPad(rows, tok.PadTokenID())
}
