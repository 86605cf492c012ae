package dataset

import (
	"regexp"
	"strings"
)

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Preprocess lowercases s and strips every rune that is not a letter, digit,
// underscore or whitespace.
func Preprocess(s string) string {
	return punctuation.ReplaceAllString(strings.ToLower(s), "")
}

// Prepare turns raw records into examples: the timestamp is dropped, text
// fields are cleaned, exact duplicates over the retained columns are
// removed keeping the first occurrence, and labels are encoded.
func Prepare(records []Record, labels LabelSet) ([]Example, error) {
	seen := make(map[[3]string]struct{}, len(records))
	examples := make([]Example, 0, len(records))

	for _, r := range records {
		title, paragraph, label := Preprocess(r.Title), Preprocess(r.Paragraph), Preprocess(r.NewsList)

		key := [3]string{title, paragraph, label}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		id, err := labels.ID(label)
		if err != nil {
			return nil, err
		}
		examples = append(examples, Example{Text: title + " " + paragraph, Label: id})
	}
	return examples, nil
}

// ClassCounts counts examples per label id.
func ClassCounts(examples []Example, numLabels int) []int {
	counts := make([]int, numLabels)
	for _, e := range examples {
		counts[e.Label]++
	}
	return counts
}

// BalancedClassWeights returns n / (k · count_c) for every class present in
// examples, where k is the number of present classes. Absent classes get 0.
func BalancedClassWeights(examples []Example, numLabels int) []float64 {
	counts := ClassCounts(examples, numLabels)
	present := 0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}

	weights := make([]float64, numLabels)
	for i, c := range counts {
		if c > 0 {
			weights[i] = float64(len(examples)) / (float64(present) * float64(c))
		}
	}
	return weights
}
