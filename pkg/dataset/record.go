// Package dataset prepares the labeled news dataset for fine-tuning: CSV
// loading, text cleanup, de-duplication, label encoding, stratified split,
// class weights and batch assembly.
package dataset

import (
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/garr-ai/garr/pkg/afero"
)

// Record is one row of the dataset file.
type Record struct {
	Title          string `csv:"title"`
	Paragraph      string `csv:"paragraph"`
	NewsList       string `csv:"news_list"`
	EventTimestamp string `csv:"event_timestamp"`
}

// Example is a cleaned (text, label) pair.
type Example struct {
	Text  string
	Label int
}

// ReadCSV loads every record of path.
func ReadCSV(fs afero.Fs, path string) ([]Record, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening dataset")
	}
	defer func() { _ = f.Close() }()

	var records []Record
	if err := gocsv.Unmarshal(f, &records); err != nil {
		return nil, errors.Wrapf(err, "parsing dataset %s", path)
	}
	return records, nil
}
