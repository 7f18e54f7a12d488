package recipes

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"pulse/internal/core"
)

// Source column names.
const (
	ColState           = "State"
	ColYear            = "Year"
	ColQuarter         = "Quarter"
	ColBrand           = "Brand"
	ColDistrict        = "District"
	ColUserCount       = "UserCount"
	ColRegisteredUsers = "Registered_users"
	ColAppOpens        = "App_opens"
	ColTxnCount        = "Transaction_count"
	ColTxnAmount       = "Transaction_amount"
	ColAvgTxnValue     = "Avg_Transaction_Value"
)

// group is one group-by bucket: its key cells, the index of the first source
// row that fell into it and the per-value sums.
type group struct {
	key   []string
	first int
	sums  []float64
	rows  int
}

// groupSum groups t by the key columns and sums the value columns. NaN cells
// contribute nothing to a sum. keep, when non-nil, decides which rows take
// part. Groups come back in ascending key order.
func groupSum(t core.Table, keys, values []string, keep func(row int) bool) []*group {
	keyCols := make([][]string, len(keys))
	for i, k := range keys {
		keyCols[i] = t.Strings(k)
	}
	valCols := make([][]float64, len(values))
	for i, v := range values {
		valCols[i] = t.Numbers(v)
	}

	index := map[string]*group{}
	var groups []*group
	for row := 0; row < t.Len(); row++ {
		if keep != nil && !keep(row) {
			continue
		}
		key := make([]string, len(keys))
		for i := range keys {
			key[i] = keyCols[i][row]
		}
		id := strings.Join(key, "\x1f")
		g, ok := index[id]
		if !ok {
			g = &group{key: key, first: row, sums: make([]float64, len(values))}
			index[id] = g
			groups = append(groups, g)
		}
		g.rows++
		for i := range values {
			if v := valCols[i][row]; !math.IsNaN(v) {
				g.sums[i] += v
			}
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return compareKeys(groups[i].key, groups[j].key) < 0
	})
	return groups
}

func compareKeys(a, b []string) int {
	for i := range a {
		if c := compareCell(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// compareCell orders numerically when both cells are numbers, lexically otherwise.
func compareCell(a, b string) int {
	fa, fb := core.ParseNumber(a), core.ParseNumber(b)
	if !math.IsNaN(fa) && !math.IsNaN(fb) && fa != fb {
		if fa < fb {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func topN[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
