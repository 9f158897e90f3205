package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sort"

	"github.com/slava225678/parsing-count/internal/models"
	"github.com/slava225678/parsing-count/internal/storage"
)

// Store persists the results accumulated so far so an interrupted run can resume.
type Store interface {
	Load(ctx context.Context) (models.Results, error)
	Save(ctx context.Context, results models.Results) error
}

var header = []any{"query", "total", "avg_price"}

// DefaultPath is the checkpoint file kept next to an output file.
func DefaultPath(output string) string {
	return output + ".partial.xlsx"
}

// FileStore keeps the checkpoint as a spreadsheet, one row per processed query.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if _, err := storage.FormatOf(path); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// Load returns an empty map when no checkpoint has been written yet.
func (s *FileStore) Load(ctx context.Context) (models.Results, error) {
	rows, err := storage.ReadTable(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Results{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", s.path, err)
	}

	out := make(models.Results, len(rows))
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == header[0] {
			continue
		}
		if len(row) == 0 || row[0] == "" {
			continue
		}
		q := row[0]
		out[q] = models.Result{
			Query:    q,
			Total:    intCell(row, 1),
			AvgPrice: floatCell(row, 2),
		}
	}
	return out, nil
}

// Save replaces the checkpoint file with the full result set.
func (s *FileStore) Save(ctx context.Context, results models.Results) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	queries := make([]string, 0, len(results))
	for q := range results {
		queries = append(queries, q)
	}
	sort.Strings(queries)

	rows := make([][]any, 0, len(queries)+1)
	rows = append(rows, header)
	for _, q := range queries {
		r := results[q]
		rows = append(rows, []any{q, r.Total, r.AvgPrice})
	}

	if err := storage.WriteTable(s.path, rows); err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", s.path, err)
	}
	return nil
}

func intCell(row []string, i int) *int {
	if i >= len(row) {
		return nil
	}
	v, ok := storage.ParseNumber(row[i])
	if !ok || v > math.MaxInt32 || v < math.MinInt32 {
		return nil
	}
	n := int(v)
	return &n
}

func floatCell(row []string, i int) *float64 {
	if i >= len(row) {
		return nil
	}
	v, ok := storage.ParseNumber(row[i])
	if !ok {
		return nil
	}
	return &v
}
