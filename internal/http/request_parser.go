// Package http provides HTTP server and handler implementations.
//
// This file parses Dataset Explorer requests. A filter is expressed either
// as repeated "col" parameters with one "f.<column>" parameter per chosen
// value, or as "filter=Column=v1,v2" (the API and CLI form). Values are kept
// verbatim, surrounding spaces included; only the "f.<column>" form can carry
// a value containing a comma.

package http

import (
	"net/url"
	"strconv"
	"strings"

	"pulse/internal/core"
)

const (
	paramDataset = "dataset"
	paramColumn  = "col"
	paramFilter  = "filter"
	paramLimit   = "limit"
	paramFrom    = "from"
	valuePrefix  = "f."

	maxLimit = 10000
)

// ExplorerQuery is a parsed Dataset Explorer request.
type ExplorerQuery struct {
	Dataset     string
	Constraints []core.Constraint
	Limit       int
}

// ParseExplorerQuery extracts dataset, constraints and preview limit from
// query parameters. A column chosen through "col" without any "f.<column>"
// key gets nil Values, meaning "not selected yet"; a present but empty key
// is an explicit empty selection. When "from" names a dataset other than the
// requested one the constraints belong to the previous dataset and are
// dropped. Invalid limits fall back to defaultLimit.
func ParseExplorerQuery(q url.Values, defaultLimit int) (ExplorerQuery, error) {
	eq := ExplorerQuery{
		Dataset: sanitizeInput(q.Get(paramDataset)),
		Limit:   defaultLimit,
	}
	if eq.Dataset == "" {
		eq.Dataset = core.Datasets()[0].ID
	}
	if v := strings.TrimSpace(q.Get(paramLimit)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			eq.Limit = min(n, maxLimit)
		}
	}

	if from := sanitizeInput(q.Get(paramFrom)); from != "" && !sameDataset(from, eq.Dataset) {
		return eq, nil
	}

	index := map[string]int{}
	add := func(c core.Constraint) {
		if i, ok := index[c.Column]; ok {
			eq.Constraints[i].Values = mergeValues(eq.Constraints[i].Values, c.Values)
			return
		}
		index[c.Column] = len(eq.Constraints)
		eq.Constraints = append(eq.Constraints, c)
	}

	for _, col := range q[paramColumn] {
		col = sanitizeInput(col)
		if col == "" {
			continue
		}
		c := core.Constraint{Column: col}
		if raw, ok := q[valuePrefix+col]; ok {
			c.Values = []string{}
			for _, v := range raw {
				if v = sanitizeValue(v); v != "" {
					c.Values = append(c.Values, v)
				}
			}
		}
		add(c)
	}

	for _, f := range q[paramFilter] {
		c, err := core.ParseConstraint(sanitizeValue(f))
		if err != nil {
			return ExplorerQuery{}, err
		}
		add(c)
	}
	return eq, nil
}

// Values encodes the query back into parameters, the inverse of
// ParseExplorerQuery for the "col" form.
func (eq ExplorerQuery) Values() url.Values {
	v := url.Values{}
	v.Set(paramDataset, eq.Dataset)
	for _, c := range eq.Constraints {
		v.Add(paramColumn, c.Column)
		if c.Values == nil {
			continue
		}
		v.Add(valuePrefix+c.Column, "")
		for _, val := range c.Values {
			v.Add(valuePrefix+c.Column, val)
		}
	}
	return v
}

// mergeValues unions b into a. A nil side defers to the other.
func mergeValues(a, b []string) []string {
	if a == nil {
		return b
	}
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			a = append(a, v)
		}
	}
	return a
}

func sameDataset(a, b string) bool {
	da, errA := core.LookupDataset(a)
	db, errB := core.LookupDataset(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return da.ID == db.ID
}
