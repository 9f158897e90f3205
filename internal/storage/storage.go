package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported table format (want .xlsx or .csv)")

const defaultSheet = "Sheet1"

type Format int

const (
	FormatXLSX Format = iota
	FormatCSV
)

// FormatOf picks the table format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ReadTable returns every row of the first sheet (xlsx) or of the file (csv) as text.
// Rows may be ragged; trailing empty cells are not guaranteed to be present.
func ReadTable(path string) ([][]string, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return readCSV(path)
	default:
		return readXLSX(path)
	}
}

// WriteTable replaces path with the given rows. Nil cells are written empty.
// The file is written to a temp file first and renamed into place.
func WriteTable(path string, rows [][]any) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	return writeAtomic(path, func(w io.Writer) error {
		if format == FormatCSV {
			return writeCSV(w, rows)
		}
		return writeXLSX(w, rows)
	})
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv %s: %w", path, err)
	}

	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheets[0], path, err)
	}
	return rows, nil
}

func writeCSV(w io.Writer, rows [][]any) error {
	writer := csv.NewWriter(w)

	for _, row := range rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeXLSX(w io.Writer, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = derefCell(v)
		}
		if err := f.SetSheetRow(defaultSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// derefCell unwraps optional values so absent ones become empty cells.
func derefCell(v any) any {
	switch c := v.(type) {
	case *int:
		if c == nil {
			return nil
		}
		return *c
	case *float64:
		if c == nil {
			return nil
		}
		return *c
	default:
		return v
	}
}

func formatCell(v any) string {
	switch c := derefCell(v).(type) {
	case nil:
		return ""
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return fmt.Sprint(c)
	}
}

func writeAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ParseNumber reads a spreadsheet number cell. Spaces (including non-breaking
// ones used as thousand separators) are ignored and a comma is accepted as the
// decimal mark. Empty cells report ok=false.
func ParseNumber(cell string) (float64, bool) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		case ',':
			return '.'
		}
		return r
	}, cell)
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
