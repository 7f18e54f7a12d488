package recipes

import (
	"sort"

	"pulse/internal/core"
)

type (
	StateUsers struct {
		State     string
		UserCount float64
	}

	// BrandCell is the winning brand of one State x Quarter cell.
	BrandCell struct {
		Brand     string
		UserCount float64
		Defined   bool
	}

	// BrandGrid is a State x Quarter pivot of winning brands. Cells[i][j]
	// belongs to States[i] and Quarters[j].
	BrandGrid struct {
		States   []string
		Quarters []string
		Cells    [][]BrandCell
	}

	StateUsage struct {
		State           string
		RegisteredUsers float64
		AppOpens        float64
	}
)

// Cell returns the cell for a state and quarter.
func (g BrandGrid) Cell(state, quarter string) BrandCell {
	for i, s := range g.States {
		if s != state {
			continue
		}
		for j, q := range g.Quarters {
			if q == quarter {
				return g.Cells[i][j]
			}
		}
	}
	return BrandCell{}
}

// Max returns the largest defined user count in the grid.
func (g BrandGrid) Max() float64 {
	var top float64
	for _, row := range g.Cells {
		for _, c := range row {
			if c.Defined && c.UserCount > top {
				top = c.UserCount
			}
		}
	}
	return top
}

// TotalUsersByState sums UserCount per state and keeps the ten largest.
func TotalUsersByState(t core.Table) ([]StateUsers, error) {
	if err := t.Require(ColState, ColUserCount); err != nil {
		return nil, err
	}
	groups := groupSum(t, []string{ColState}, []string{ColUserCount}, nil)
	out := make([]StateUsers, len(groups))
	for i, g := range groups {
		out[i] = StateUsers{State: g.key[0], UserCount: g.sums[0]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UserCount > out[j].UserCount })
	return topN(out, 10), nil
}

// TopBrandByStateQuarter picks, for every State and Quarter, the brand with
// the most users. On equal sums the brand seen first in the source wins.
func TopBrandByStateQuarter(t core.Table) (BrandGrid, error) {
	if err := t.Require(ColState, ColQuarter, ColBrand, ColUserCount); err != nil {
		return BrandGrid{}, err
	}
	groups := groupSum(t, []string{ColState, ColQuarter, ColBrand}, []string{ColUserCount}, nil)

	type cellKey struct{ state, quarter string }
	winners := map[cellKey]*group{}
	var states, quarters []string
	seenState := map[string]bool{}
	seenQuarter := map[string]bool{}
	for _, g := range groups {
		k := cellKey{g.key[0], g.key[1]}
		if !seenState[k.state] {
			seenState[k.state] = true
			states = append(states, k.state)
		}
		if !seenQuarter[k.quarter] {
			seenQuarter[k.quarter] = true
			quarters = append(quarters, k.quarter)
		}
		best, ok := winners[k]
		if !ok || g.sums[0] > best.sums[0] || (g.sums[0] == best.sums[0] && g.first < best.first) {
			winners[k] = g
		}
	}
	sort.SliceStable(states, func(i, j int) bool { return compareCell(states[i], states[j]) < 0 })
	sort.SliceStable(quarters, func(i, j int) bool { return compareCell(quarters[i], quarters[j]) < 0 })

	grid := BrandGrid{States: states, Quarters: quarters, Cells: make([][]BrandCell, len(states))}
	for i, s := range states {
		grid.Cells[i] = make([]BrandCell, len(quarters))
		for j, q := range quarters {
			if w, ok := winners[cellKey{s, q}]; ok {
				grid.Cells[i][j] = BrandCell{Brand: w.key[2], UserCount: w.sums[0], Defined: true}
			}
		}
	}
	return grid, nil
}

// AppOpensByState sums registered users and app opens per state, ordered by
// app opens.
func AppOpensByState(t core.Table) ([]StateUsage, error) {
	if err := t.Require(ColState, ColRegisteredUsers, ColAppOpens); err != nil {
		return nil, err
	}
	groups := groupSum(t, []string{ColState}, []string{ColRegisteredUsers, ColAppOpens}, nil)
	out := make([]StateUsage, len(groups))
	for i, g := range groups {
		out[i] = StateUsage{State: g.key[0], RegisteredUsers: g.sums[0], AppOpens: g.sums[1]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AppOpens > out[j].AppOpens })
	return out, nil
}
