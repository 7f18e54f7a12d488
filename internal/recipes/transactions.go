package recipes

import (
	"sort"

	"pulse/internal/core"
)

type (
	StateTransactions struct {
		State  string
		Count  float64
		Amount float64
	}

	SunburstLeaf struct {
		Quarter string
		Amount  float64
		Count   float64
	}

	// SunburstYear is an outer ring segment; its totals are the sums of its
	// quarters.
	SunburstYear struct {
		Year     string
		Amount   float64
		Count    float64
		Quarters []SunburstLeaf
	}

	Sunburst struct {
		Years []SunburstYear
	}
)

// Total returns the summed amount and count across every year.
func (s Sunburst) Total() (amount, count float64) {
	for _, y := range s.Years {
		amount += y.Amount
		count += y.Count
	}
	return amount, count
}

// TopStatesByAmount sums transaction count and amount per state and keeps
// the 25 states with the largest amount.
func TopStatesByAmount(t core.Table) ([]StateTransactions, error) {
	if err := t.Require(ColState, ColTxnCount, ColTxnAmount); err != nil {
		return nil, err
	}
	groups := groupSum(t, []string{ColState}, []string{ColTxnCount, ColTxnAmount}, nil)
	out := make([]StateTransactions, len(groups))
	for i, g := range groups {
		out[i] = StateTransactions{State: g.key[0], Count: g.sums[0], Amount: g.sums[1]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return topN(out, 25), nil
}

// TransactionsByYearQuarter builds the Year -> Quarter hierarchy of summed
// transaction count and amount.
func TransactionsByYearQuarter(t core.Table) (Sunburst, error) {
	if err := t.Require(ColYear, ColQuarter, ColTxnCount, ColTxnAmount); err != nil {
		return Sunburst{}, err
	}
	groups := groupSum(t, []string{ColYear, ColQuarter}, []string{ColTxnCount, ColTxnAmount}, nil)

	var sb Sunburst
	for _, g := range groups {
		year, quarter := g.key[0], g.key[1]
		if n := len(sb.Years); n == 0 || sb.Years[n-1].Year != year {
			sb.Years = append(sb.Years, SunburstYear{Year: year})
		}
		y := &sb.Years[len(sb.Years)-1]
		y.Quarters = append(y.Quarters, SunburstLeaf{Quarter: quarter, Count: g.sums[0], Amount: g.sums[1]})
		y.Count += g.sums[0]
		y.Amount += g.sums[1]
	}
	return sb, nil
}
