package services

import (
	"context"

	"pulse/internal/core"
)

// Exploration is one Dataset Explorer answer.
type Exploration struct {
	Dataset     core.Dataset
	Table       core.Table
	Filtered    core.Table
	Preview     core.Table
	Matched     bool
	Constraints []core.Constraint
	Columns     []string
	// Distinct holds, for every constrained column, the values available
	// after the constraints listed before it were applied.
	Distinct map[string][]string
}

// Truncated reports whether the preview shows fewer rows than matched.
func (e Exploration) Truncated() bool {
	return e.Preview.Len() < e.Filtered.Len()
}

// Selected reports whether value is chosen for column.
func (e Exploration) Selected(column, value string) bool {
	for _, c := range e.Constraints {
		if c.Column != column {
			continue
		}
		for _, v := range c.Values {
			if v == value {
				return true
			}
		}
	}
	return false
}

// ExplorerService filters a raw dataset by column/value constraints.
type ExplorerService struct {
	datasets *DatasetService
}

func NewExplorerService(datasets *DatasetService) *ExplorerService {
	return &ExplorerService{datasets: datasets}
}

// Preselect is how many distinct values a newly chosen column starts with.
const Preselect = 3

// Explore loads a dataset and keeps the rows matching every constraint.
// A constraint with nil Values is a column chosen without a selection yet: it
// starts with its first Preselect distinct values. A non-nil empty selection
// is ignored by the filter. A non-positive limit keeps the whole filtered
// table in the preview.
func (s *ExplorerService) Explore(ctx context.Context, dataset string, constraints []core.Constraint, limit int) (Exploration, error) {
	d, t, err := s.datasets.LoadDataset(ctx, dataset)
	if err != nil {
		return Exploration{}, err
	}

	ex := Exploration{
		Dataset:  d,
		Table:    t,
		Columns:  t.Columns(),
		Distinct: make(map[string][]string, len(constraints)),
	}

	if err := t.Require(constrainedColumns(constraints)...); err != nil {
		return Exploration{}, err
	}

	cur := t
	for _, c := range constraints {
		distinct := cur.Unique(c.Column)
		ex.Distinct[c.Column] = distinct
		if c.Values == nil {
			c.Values = append([]string{}, distinct[:min(Preselect, len(distinct))]...)
		}
		ex.Constraints = append(ex.Constraints, c)
		if len(c.Values) == 0 {
			continue
		}
		if cur, err = core.Filter(cur, []core.Constraint{c}); err != nil {
			return Exploration{}, err
		}
	}

	ex.Filtered = cur
	ex.Matched = !cur.Empty()
	ex.Preview = cur.Head(limit)
	return ex, nil
}

// Export returns the complete filtered table of a dataset, with the same
// selection rules as Explore.
func (s *ExplorerService) Export(ctx context.Context, dataset string, constraints []core.Constraint) (core.Dataset, core.Table, error) {
	ex, err := s.Explore(ctx, dataset, constraints, 0)
	if err != nil {
		return core.Dataset{}, core.Table{}, err
	}
	return ex.Dataset, ex.Filtered, nil
}

func constrainedColumns(cs []core.Constraint) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Column)
	}
	return out
}
