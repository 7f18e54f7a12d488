// Package export writes tables as CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"pulse/internal/core"
	"pulse/internal/recipes"
)

var ErrUnknownFormat = errors.New("unknown export format")

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(s, "."))); f {
	case CSV, XLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns base with the format's extension, dropping any .csv
// suffix already on base.
func Filename(base string, f Format) string {
	base = strings.TrimSuffix(base, ".csv")
	if base == "" {
		base = "export"
	}
	return base + "." + string(f)
}

// Table writes every row of t.
func Table(w io.Writer, f Format, t core.Table) error {
	return Write(w, f, strings.TrimSuffix(t.Name(), ".csv"), t.Columns(), t.Rows())
}

// Result writes the derived table of a view.
func Result(w io.Writer, f Format, res recipes.Result) error {
	return Write(w, f, string(res.View), res.Columns, res.Rows)
}

// Write encodes a header and rows in format f. sheet names the XLSX worksheet.
func Write(w io.Writer, f Format, sheet string, columns []string, rows [][]string) error {
	switch f {
	case CSV:
		return writeCSV(w, columns, rows)
	case XLSX:
		return writeXLSX(w, sheet, columns, rows)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

func writeCSV(w io.Writer, columns []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, sheet string, columns []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	name := SheetName(sheet)
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	if len(columns) > 0 {
		if err := sw.SetColWidth(1, len(columns), 18); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: bold}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = cellValue(v)
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// cellValue stores numeric text as a number so spreadsheets can sum it.
func cellValue(v string) interface{} {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return v
	}
	if n := core.ParseNumber(trimmed); !math.IsNaN(n) && !math.IsInf(n, 0) {
		return n
	}
	return v
}

// SheetName makes s a valid worksheet name.
func SheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return "Sheet1"
	}
	if r := []rune(s); len(r) > 31 {
		s = string(r[:31])
	}
	return s
}
