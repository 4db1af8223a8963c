package store

import (
	"encoding/csv"
	"os"

	"github.com/use-agent/prospect/models"
)

// Header is the fixed column set of the record store. The prooflink column
// carries the target URL on the way in and is echoed back on the way out.
var Header = []string{"first_name", "last_name", "geo", "prooflink", "IP change"}

// LoadTargets reads the input CSV into targets, in file order.
func LoadTargets(path string) ([]*models.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "open input file", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows; missing cells read as empty
	records, err := r.ReadAll()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "read input file", err)
	}
	if len(records) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "input file has no header row", nil)
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	targets := make([]*models.Target, 0, len(records)-1)
	for _, row := range records[1:] {
		targets = append(targets, &models.Target{
			FirstName:    cell(row, "first_name"),
			LastName:     cell(row, "last_name"),
			Geo:          cell(row, "geo"),
			ProofLink:    cell(row, "prooflink"),
			EgressChange: cell(row, "IP change"),
		})
	}
	return targets, nil
}

// Writer rewrites the record store: header first, then one row per processed
// target. Matches the read-all-then-rewrite flow of the input file.
type Writer struct {
	f *os.File
	w *csv.Writer
}

// NewWriter truncates the file at path and writes the header.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "create output file", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		f.Close()
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "write header", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "write header", err)
	}

	return &Writer{f: f, w: w}, nil
}

// WriteResult appends one row for the target. Abandoned targets come through
// with their fields blank; they are written all the same.
func (w *Writer) WriteResult(t *models.Target) error {
	row := []string{t.FirstName, t.LastName, t.Geo, t.ProofLink, t.EgressChange}
	if err := w.w.Write(row); err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "write result row", err)
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "flush result row", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
