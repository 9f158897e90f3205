package storage

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/slava225678/parsing-count/internal/models"
)

// Column headers used by the marketplace analytics exports.
const (
	HeaderQuery         = "Поисковый запрос"
	HeaderRequestCount  = "Количество запросов"
	HeaderPrevCount     = "Количество запросов (предыдущий период)"
	HeaderAvgPerDay     = "Запросов в среднем за день"
	HeaderAvgPerDayPrev = "Запросов в среднем за день (предыдущий период)"
	HeaderProducts      = "Кол-во товаров"
	HeaderAvgPrice      = "Средняя цена (₽)"

	// Short headers of the plain two-column export.
	HeaderQueryShort        = "Запрос"
	HeaderRequestCountShort = "Кол-во запросов"
)

var ErrMissingColumn = errors.New("required column not found")

// ReadQueries loads the whole input list. An xlsx file must carry a header row
// and columns are found by name; a csv file is read as header-less
// "query,count" rows (a header row, if present, is skipped).
func ReadQueries(path string) ([]models.Query, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	rows, err := ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input %s: %w", path, err)
	}

	if format == FormatCSV {
		return queriesFromPlainRows(rows), nil
	}
	return queriesFromHeaderRows(rows)
}

func queriesFromPlainRows(rows [][]string) []models.Query {
	if len(rows) > 0 && isQueryHeader(cellAt(rows[0], 0)) {
		rows = rows[1:]
	}

	out := make([]models.Query, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Query{
			Text:         cellAt(row, 0),
			RequestCount: parseCount(cellAt(row, 1)),
		})
	}
	return out
}

func queriesFromHeaderRows(rows [][]string) ([]models.Query, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		index[strings.TrimSpace(h)] = i
	}

	queryCol, ok := lookup(index, HeaderQuery, HeaderQueryShort)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, HeaderQuery)
	}
	countCol, ok := lookup(index, HeaderRequestCount, HeaderRequestCountShort)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, HeaderRequestCount)
	}
	prevCol, hasPrev := index[HeaderPrevCount]
	perDayCol, hasPerDay := index[HeaderAvgPerDay]
	perDayPrevCol, hasPerDayPrev := index[HeaderAvgPerDayPrev]

	out := make([]models.Query, 0, len(rows)-1)
	for _, row := range rows[1:] {
		q := models.Query{
			Text:         cellAt(row, queryCol),
			RequestCount: parseCount(cellAt(row, countCol)),
		}
		if hasPrev {
			q.PrevPeriodCount = optionalNumber(cellAt(row, prevCol))
		}
		if hasPerDay {
			q.AvgPerDay = optionalNumber(cellAt(row, perDayCol))
		}
		if hasPerDayPrev {
			q.AvgPerDayPrev = optionalNumber(cellAt(row, perDayPrevCol))
		}
		out = append(out, q)
	}
	return out, nil
}

func lookup(index map[string]int, names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := index[n]; ok {
			return i, true
		}
	}
	return 0, false
}

func isQueryHeader(cell string) bool {
	switch strings.TrimSpace(cell) {
	case HeaderQuery, HeaderQueryShort, "query":
		return true
	}
	return false
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseCount returns 0 for cells that are not numbers, which the validity
// filter then rejects.
func parseCount(cell string) int64 {
	v, ok := ParseNumber(cell)
	if !ok || v > math.MaxInt64 || v < math.MinInt64 {
		return 0
	}
	return int64(v)
}

func optionalNumber(cell string) *float64 {
	v, ok := ParseNumber(cell)
	if !ok {
		return nil
	}
	return &v
}
