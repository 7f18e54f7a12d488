package recipes

import (
	"errors"
	"fmt"
	"strings"

	"pulse/internal/core"
)

// ViewID identifies one of the fixed chart views.
type ViewID string

const (
	ViewUsersByState       ViewID = "users-by-state"
	ViewTopBrands          ViewID = "top-brands"
	ViewStatesByAmount     ViewID = "states-by-amount"
	ViewYearQuarter        ViewID = "year-quarter"
	ViewAppOpens           ViewID = "app-opens"
	ViewEfficientDistricts ViewID = "efficient-districts"
	ViewInsuranceDistricts ViewID = "insurance-districts"
)

// ChartKind is the chart a view renders.
type ChartKind string

const (
	ChartPie      ChartKind = "pie"
	ChartHeatmap  ChartKind = "heatmap"
	ChartDualAxis ChartKind = "dual-axis"
	ChartSunburst ChartKind = "sunburst"
	ChartBar      ChartKind = "bar"
)

var ErrViewNotFound = errors.New("view not found")

// Result is the derived table of a view. Rows is the exact table the chart
// is drawn from; Data carries the typed payload (e.g. []StateUsers, BrandGrid).
type Result struct {
	View    ViewID
	Title   string
	Chart   ChartKind
	Columns []string
	Rows    [][]string
	Data    any
}

// Empty reports whether the recipe produced no rows.
func (r Result) Empty() bool { return len(r.Rows) == 0 }

// Recipe binds a view to its source dataset and aggregation.
type Recipe struct {
	ID       ViewID
	Title    string
	Dataset  string
	Chart    ChartKind
	Required []string
	run      func(core.Table) (Result, error)
}

// Run applies the recipe to t.
func (r Recipe) Run(t core.Table) (Result, error) {
	res, err := r.run(t)
	if err != nil {
		return Result{}, fmt.Errorf("view %s: %w", r.ID, err)
	}
	res.View, res.Title, res.Chart = r.ID, r.Title, r.Chart
	return res, nil
}

// Registry maps view identifiers to recipes, keeping display order.
type Registry struct {
	order   []ViewID
	recipes map[ViewID]Recipe
}

func NewRegistry(recipes ...Recipe) *Registry {
	r := &Registry{recipes: make(map[ViewID]Recipe, len(recipes))}
	for _, rc := range recipes {
		if _, dup := r.recipes[rc.ID]; !dup {
			r.order = append(r.order, rc.ID)
		}
		r.recipes[rc.ID] = rc
	}
	return r
}

// Lookup resolves a view by id or title (case-insensitive).
func (r *Registry) Lookup(key string) (Recipe, error) {
	key = strings.TrimSpace(key)
	if rc, ok := r.recipes[ViewID(key)]; ok {
		return rc, nil
	}
	for _, id := range r.order {
		rc := r.recipes[id]
		if strings.EqualFold(string(rc.ID), key) || strings.EqualFold(rc.Title, key) {
			return rc, nil
		}
	}
	return Recipe{}, fmt.Errorf("%w: %q", ErrViewNotFound, key)
}

// All returns the recipes in display order.
func (r *Registry) All() []Recipe {
	out := make([]Recipe, len(r.order))
	for i, id := range r.order {
		out[i] = r.recipes[id]
	}
	return out
}

// Default returns the registry of the seven dashboard views.
func Default() *Registry {
	return NewRegistry(
		Recipe{
			ID: ViewUsersByState, Title: "Total Users by State", Dataset: "agg_user.csv", Chart: ChartPie,
			Required: []string{ColState, ColUserCount},
			run: func(t core.Table) (Result, error) {
				data, err := TotalUsersByState(t)
				if err != nil {
					return Result{}, err
				}
				rows := make([][]string, len(data))
				for i, d := range data {
					rows[i] = []string{d.State, formatFloat(d.UserCount)}
				}
				return Result{Columns: []string{ColState, ColUserCount}, Rows: rows, Data: data}, nil
			},
		},
		Recipe{
			ID: ViewTopBrands, Title: "Top Brand Names per State per Quarter", Dataset: "agg_user.csv", Chart: ChartHeatmap,
			Required: []string{ColState, ColQuarter, ColBrand, ColUserCount},
			run: func(t core.Table) (Result, error) {
				grid, err := TopBrandByStateQuarter(t)
				if err != nil {
					return Result{}, err
				}
				var rows [][]string
				for i, s := range grid.States {
					for j, q := range grid.Quarters {
						if c := grid.Cells[i][j]; c.Defined {
							rows = append(rows, []string{s, q, c.Brand, formatFloat(c.UserCount)})
						}
					}
				}
				return Result{Columns: []string{ColState, ColQuarter, ColBrand, ColUserCount}, Rows: rows, Data: grid}, nil
			},
		},
		Recipe{
			ID: ViewStatesByAmount, Title: "Top 25 States by Transaction Amount and Count", Dataset: "agg_trans.csv", Chart: ChartDualAxis,
			Required: []string{ColState, ColTxnCount, ColTxnAmount},
			run: func(t core.Table) (Result, error) {
				data, err := TopStatesByAmount(t)
				if err != nil {
					return Result{}, err
				}
				rows := make([][]string, len(data))
				for i, d := range data {
					rows[i] = []string{d.State, formatFloat(d.Count), formatFloat(d.Amount)}
				}
				return Result{Columns: []string{ColState, ColTxnCount, ColTxnAmount}, Rows: rows, Data: data}, nil
			},
		},
		Recipe{
			ID: ViewYearQuarter, Title: "Transactions by Year and Quarter", Dataset: "agg_trans.csv", Chart: ChartSunburst,
			Required: []string{ColYear, ColQuarter, ColTxnCount, ColTxnAmount},
			run: func(t core.Table) (Result, error) {
				sb, err := TransactionsByYearQuarter(t)
				if err != nil {
					return Result{}, err
				}
				var rows [][]string
				for _, y := range sb.Years {
					for _, q := range y.Quarters {
						rows = append(rows, []string{y.Year, q.Quarter, formatFloat(q.Count), formatFloat(q.Amount)})
					}
				}
				return Result{
					Columns: []string{ColYear, ColQuarter, "Total_Transaction_Count", "Total_Transaction_Amount"},
					Rows:    rows,
					Data:    sb,
				}, nil
			},
		},
		Recipe{
			ID: ViewAppOpens, Title: "State-wise App Opens vs Registered Users", Dataset: "map_user.csv", Chart: ChartDualAxis,
			Required: []string{ColState, ColRegisteredUsers, ColAppOpens},
			run: func(t core.Table) (Result, error) {
				data, err := AppOpensByState(t)
				if err != nil {
					return Result{}, err
				}
				rows := make([][]string, len(data))
				for i, d := range data {
					rows[i] = []string{d.State, formatFloat(d.RegisteredUsers), formatFloat(d.AppOpens)}
				}
				return Result{Columns: []string{ColState, ColRegisteredUsers, ColAppOpens}, Rows: rows, Data: data}, nil
			},
		},
		Recipe{
			ID: ViewEfficientDistricts, Title: "Most Efficient Districts", Dataset: "top_trans_dist.csv", Chart: ChartBar,
			Required: []string{ColDistrict, ColTxnAmount, ColTxnCount},
			run: func(t core.Table) (Result, error) {
				data, err := MostEfficientDistricts(t)
				if err != nil {
					return Result{}, err
				}
				rows := make([][]string, len(data))
				for i, d := range data {
					rows[i] = []string{d.District, formatFloat(d.Amount), formatFloat(d.Count), formatFloat(d.Average)}
				}
				return Result{Columns: []string{ColDistrict, ColTxnAmount, ColTxnCount, ColAvgTxnValue}, Rows: rows, Data: data}, nil
			},
		},
		Recipe{
			ID: ViewInsuranceDistricts, Title: "Top 10 Districts by Avg Insurance Txn Value", Dataset: "map_insurance.csv", Chart: ChartBar,
			Required: []string{ColDistrict, ColTxnAmount, ColTxnCount},
			run: func(t core.Table) (Result, error) {
				data, err := TopInsuranceDistricts(t)
				if err != nil {
					return Result{}, err
				}
				rows := make([][]string, len(data))
				for i, d := range data {
					rows[i] = []string{d.District, formatFloat(d.Average)}
				}
				return Result{Columns: []string{ColDistrict, ColAvgTxnValue}, Rows: rows, Data: data}, nil
			},
		},
	)
}
