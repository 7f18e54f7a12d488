package recipes

import (
	"math"
	"sort"

	"pulse/internal/core"
)

// DistrictAverage is a district's average transaction value. Amount and Count
// are the totals of the rows that contributed to Average.
type DistrictAverage struct {
	District string
	Amount   float64
	Count    float64
	Average  float64
}

// MostEfficientDistricts computes amount / count over each district's summed
// totals (ratio of sums). Rows with a zero or unparsable count are dropped
// before grouping. The ten highest averages are returned in ascending order.
func MostEfficientDistricts(t core.Table) ([]DistrictAverage, error) {
	if err := t.Require(ColDistrict, ColTxnAmount, ColTxnCount); err != nil {
		return nil, err
	}
	counts := t.Numbers(ColTxnCount)
	keep := func(row int) bool {
		return !math.IsNaN(counts[row]) && counts[row] != 0
	}
	groups := groupSum(t, []string{ColDistrict}, []string{ColTxnAmount, ColTxnCount}, keep)

	out := make([]DistrictAverage, 0, len(groups))
	for _, g := range groups {
		amount, count := g.sums[0], g.sums[1]
		if count <= 0 {
			continue
		}
		out = append(out, DistrictAverage{District: g.key[0], Amount: amount, Count: count, Average: amount / count})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Average > out[j].Average })
	out = topN(out, 10)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Average < out[j].Average })
	return out, nil
}

// TopInsuranceDistricts averages the per-row amount / count ratio of each
// district (mean of ratios). A row with a zero or unparsable count has no
// ratio and is left out of the mean; districts without any ratio are dropped.
func TopInsuranceDistricts(t core.Table) ([]DistrictAverage, error) {
	if err := t.Require(ColDistrict, ColTxnAmount, ColTxnCount); err != nil {
		return nil, err
	}
	amounts := t.Numbers(ColTxnAmount)
	counts := t.Numbers(ColTxnCount)
	defined := func(row int) bool {
		return !math.IsNaN(amounts[row]) && !math.IsNaN(counts[row]) && counts[row] != 0
	}
	groups := groupSum(t, []string{ColDistrict}, []string{ColTxnAmount, ColTxnCount}, defined)

	districts := t.Strings(ColDistrict)
	ratioSum := map[string]float64{}
	for row := 0; row < t.Len(); row++ {
		if defined(row) {
			ratioSum[districts[row]] += amounts[row] / counts[row]
		}
	}

	out := make([]DistrictAverage, 0, len(groups))
	for _, g := range groups {
		d := g.key[0]
		out = append(out, DistrictAverage{
			District: d,
			Amount:   g.sums[0],
			Count:    g.sums[1],
			Average:  ratioSum[d] / float64(g.rows),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Average > out[j].Average })
	return topN(out, 10), nil
}
