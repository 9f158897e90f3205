package storage

import (
	"fmt"

	"github.com/slava225678/parsing-count/internal/models"
)

// Schema fixes the header and column order of an output file.
type Schema struct {
	Name    string
	Headers []string
	row     func(models.OutputRow) []any
}

// DirectSchema is the four-column layout of the HTTP pipeline.
var DirectSchema = Schema{
	Name:    "direct",
	Headers: []string{HeaderQueryShort, HeaderRequestCountShort, HeaderProducts, HeaderAvgPrice},
	row: func(r models.OutputRow) []any {
		return []any{r.Query, r.RequestCount, r.Total, r.AvgPrice}
	},
}

// BrowserSchema adds the prior-period metrics carried over from the input.
var BrowserSchema = Schema{
	Name: "browser",
	Headers: []string{
		HeaderQuery, HeaderRequestCount, HeaderProducts, HeaderAvgPrice,
		HeaderPrevCount, HeaderAvgPerDay, HeaderAvgPerDayPrev,
	},
	row: func(r models.OutputRow) []any {
		return []any{
			r.Query, r.RequestCount, r.Total, r.AvgPrice,
			r.PrevPeriodCount, r.AvgPerDay, r.AvgPerDayPrev,
		}
	},
}

// SchemaByName resolves "direct" or "browser".
func SchemaByName(name string) (Schema, error) {
	switch name {
	case DirectSchema.Name:
		return DirectSchema, nil
	case BrowserSchema.Name:
		return BrowserSchema, nil
	}
	return Schema{}, fmt.Errorf("unknown output schema %q", name)
}

// Table renders the header plus one line per row.
func (s Schema) Table(rows []models.OutputRow) [][]any {
	table := make([][]any, 0, len(rows)+1)

	header := make([]any, len(s.Headers))
	for i, h := range s.Headers {
		header[i] = h
	}
	table = append(table, header)

	for _, r := range rows {
		table = append(table, s.row(r))
	}
	return table
}

// WriteResults overwrites path with the assembled rows.
func WriteResults(path string, schema Schema, rows []models.OutputRow) error {
	if err := WriteTable(path, schema.Table(rows)); err != nil {
		return fmt.Errorf("failed to write results to %s: %w", path, err)
	}
	return nil
}
