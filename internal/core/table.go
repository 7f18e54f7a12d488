package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Table is an immutable, named tabular extract. Cells are kept exactly as they
// appear in the source; numeric columns are parsed on demand.
type Table struct {
	name string
	df   dataframe.DataFrame
}

var ErrNoColumns = errors.New("table has no columns")

// loadOptions keep every column as a verbatim string column.
func loadOptions() []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	}
}

// ReadCSV parses a CSV stream with a header row into a Table. A header
// without data rows is a valid zero-row table.
func ReadCSV(name string, r io.Reader) (Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("load %s: %w", name, err)
	}
	return FromRecords(name, records)
}

// FromRecords builds a Table from a header row followed by data rows.
func FromRecords(name string, records [][]string) (Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return Table{}, fmt.Errorf("load %s: %w", name, ErrNoColumns)
	}
	width := len(records[0])
	normalized := make([][]string, len(records))
	for i, row := range records {
		// Sheets and hand-written fixtures may drop trailing empty cells.
		out := make([]string, width)
		copy(out, row)
		normalized[i] = out
	}
	if len(normalized) == 1 {
		return NewTable(name, emptyFrame(normalized[0]))
	}
	df := dataframe.LoadRecords(normalized, loadOptions()...)
	return NewTable(name, df)
}

// emptyFrame builds a zero-row frame of string columns; LoadRecords rejects
// a header without data.
func emptyFrame(header []string) dataframe.DataFrame {
	columns := make([]series.Series, len(header))
	for i, name := range header {
		columns[i] = series.New([]string{}, series.String, name)
	}
	return dataframe.New(columns...)
}

// NewTable wraps an already loaded dataframe.
func NewTable(name string, df dataframe.DataFrame) (Table, error) {
	if df.Err != nil {
		return Table{}, fmt.Errorf("load %s: %w", name, df.Err)
	}
	if df.Ncol() == 0 {
		return Table{}, fmt.Errorf("load %s: %w", name, ErrNoColumns)
	}
	return Table{name: name, df: df}, nil
}

// Name returns the table name (usually the source file name).
func (t Table) Name() string { return t.name }

// Columns returns the column names in source order.
func (t Table) Columns() []string { return t.df.Names() }

// Len returns the number of data rows.
func (t Table) Len() int { return t.df.Nrow() }

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool { return t.df.Nrow() == 0 }

// DataFrame exposes the underlying dataframe.
func (t Table) DataFrame() dataframe.DataFrame { return t.df }

// Has reports whether the table has the named column.
func (t Table) Has(col string) bool {
	for _, name := range t.df.Names() {
		if name == col {
			return true
		}
	}
	return false
}

// Require returns a *SchemaError listing every column in cols the table lacks.
func (t Table) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Table: t.name, Missing: missing}
	}
	return nil
}

// Strings returns the raw cells of a column, or nil if the column is absent.
func (t Table) Strings(col string) []string {
	if !t.Has(col) {
		return nil
	}
	return t.df.Col(col).Records()
}

// Numbers parses a column as float64. Empty or unparsable cells become NaN.
func (t Table) Numbers(col string) []float64 {
	cells := t.Strings(col)
	if cells == nil {
		return nil
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		out[i] = ParseNumber(c)
	}
	return out
}

// ParseNumber parses a numeric cell, tolerating surrounding spaces and
// thousands separators. It returns NaN when the cell is not a number.
func ParseNumber(cell string) float64 {
	cell = strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	if cell == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// Unique returns the distinct values of a column in first-seen order.
func (t Table) Unique(col string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range t.Strings(col) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Records returns the header followed by every data row.
func (t Table) Records() [][]string {
	return t.df.Records()
}

// Rows returns the data rows without the header.
func (t Table) Rows() [][]string {
	records := t.df.Records()
	if len(records) <= 1 {
		return [][]string{}
	}
	return records[1:]
}

// Head returns the first n rows. n <= 0 returns the table unchanged.
func (t Table) Head(n int) Table {
	if n <= 0 || n >= t.Len() {
		return t
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return Table{name: t.name, df: t.df.Subset(idx)}
}

// WriteCSV writes the table, header included.
func (t Table) WriteCSV(w io.Writer) error {
	return t.df.WriteCSV(w)
}
