// Package sales reads raw sales tables and derives the per-product daily
// demand series the forecaster trains on.
package sales

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a raw sales sheet: a header row and string cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of name in the header, or -1.
func (t Table) Column(name string) int {
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// ReadFile reads a CSV or XLSX file chosen by extension.
func ReadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Read(filepath.Base(path), f)
}

// Read parses r as CSV or XLSX based on the extension of name.
func Read(name string, r io.Reader) (Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", "":
		return ReadCSV(r)
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	default:
		return Table{}, fmt.Errorf("unsupported file type %q", filepath.Ext(name))
	}
}

func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, fmt.Errorf("empty csv")
	}
	if err != nil {
		return Table{}, fmt.Errorf("failed to read csv header: %w", err)
	}
	// strip a UTF-8 BOM left by spreadsheet exports
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("failed to read csv row: %w", err)
		}
		if blank(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("xlsx has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var t Table
	for rows.Next() {
		rec, err := rows.Columns()
		if err != nil {
			return Table{}, fmt.Errorf("failed to read row from sheet %s: %w", sheet, err)
		}
		if t.Header == nil {
			t.Header = rec
			continue
		}
		if blank(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	if err := rows.Error(); err != nil {
		return Table{}, fmt.Errorf("error iterating rows in sheet %s: %w", sheet, err)
	}
	if t.Header == nil {
		return Table{}, fmt.Errorf("sheet %s is empty", sheet)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
