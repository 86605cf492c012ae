package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownLabel is returned for a record whose label is not part of
	// the configured label set.
	ErrUnknownLabel = errors.New("unknown label")

	// ErrTooFewExamples is returned when a class cannot be split.
	ErrTooFewExamples = errors.New("too few examples")
)

// LabelSet maps label names to contiguous ids in a fixed order.
type LabelSet struct {
	names []string
	ids   map[string]int
}

// NewLabelSet builds a label set. Names are matched after Preprocess, so
// "Financial Health!" and "financial health" are the same label.
func NewLabelSet(names []string) (LabelSet, error) {
	if len(names) == 0 {
		return LabelSet{}, errors.New("label set is empty")
	}
	ls := LabelSet{names: make([]string, len(names)), ids: make(map[string]int, len(names))}
	for i, name := range names {
		key := Preprocess(name)
		if _, ok := ls.ids[key]; ok {
			return LabelSet{}, fmt.Errorf("duplicate label %q", name)
		}
		ls.names[i] = name
		ls.ids[key] = i
	}
	return ls, nil
}

// ID returns the id of a label name.
func (ls LabelSet) ID(name string) (int, error) {
	id, ok := ls.ids[Preprocess(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
	}
	return id, nil
}

// Name returns the label name of id.
func (ls LabelSet) Name(id int) string {
	if id < 0 || id >= len(ls.names) {
		return fmt.Sprintf("LABEL_%d", id)
	}
	return ls.names[id]
}

// Names returns the label names ordered by id.
func (ls LabelSet) Names() []string {
	return append([]string(nil), ls.names...)
}

func (ls LabelSet) Len() int { return len(ls.names) }
