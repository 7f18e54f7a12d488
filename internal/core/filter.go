package core

import (
	"errors"
	"fmt"
	"strings"
)

// Constraint keeps rows whose Column value is one of Values.
type Constraint struct {
	Column string
	Values []string
}

var ErrInvalidConstraint = errors.New("invalid constraint")

// Filter returns the rows of t satisfying every constraint: constraints are
// ANDed, the values of a single constraint are ORed. Constraints without values
// are ignored, so an empty list returns t unchanged. An empty result is not an
// error; callers check Table.Empty.
func Filter(t Table, constraints []Constraint) (Table, error) {
	active := make([]Constraint, 0, len(constraints))
	var missing []string
	for _, c := range constraints {
		if len(c.Values) == 0 {
			continue
		}
		if !t.Has(c.Column) {
			missing = append(missing, c.Column)
			continue
		}
		active = append(active, c)
	}
	if len(missing) > 0 {
		return Table{}, &SchemaError{Table: t.name, Missing: missing}
	}
	if len(active) == 0 {
		return t, nil
	}

	// Cells are compared as raw strings: gota marks a literal "NaN" cell as
	// missing, and a missing element never matches series.In.
	type column struct {
		cells   []string
		allowed map[string]struct{}
	}
	cols := make([]column, len(active))
	for i, c := range active {
		allowed := make(map[string]struct{}, len(c.Values))
		for _, v := range c.Values {
			allowed[v] = struct{}{}
		}
		cols[i] = column{cells: t.Strings(c.Column), allowed: allowed}
	}

	keep := make([]int, 0, t.Len())
rows:
	for row := 0; row < t.Len(); row++ {
		for _, c := range cols {
			if _, ok := c.allowed[c.cells[row]]; !ok {
				continue rows
			}
		}
		keep = append(keep, row)
	}

	df := t.df.Subset(keep)
	if df.Err != nil {
		return Table{}, fmt.Errorf("filter %s: %w", t.name, df.Err)
	}
	return Table{name: t.name, df: df}, nil
}

// ParseConstraint parses "Column=v1,v2" into a Constraint. "Column=" yields
// an explicit empty selection. The column name is trimmed, values are not,
// and a value cannot contain a comma.
func ParseConstraint(s string) (Constraint, error) {
	col, vals, ok := strings.Cut(s, "=")
	col = strings.TrimSpace(col)
	if !ok || col == "" {
		return Constraint{}, fmt.Errorf("%w: %q (want Column=value[,value...])", ErrInvalidConstraint, s)
	}
	c := Constraint{Column: col, Values: []string{}}
	for _, v := range strings.Split(vals, ",") {
		if v != "" {
			c.Values = append(c.Values, v)
		}
	}
	return c, nil
}
