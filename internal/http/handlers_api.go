package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"pulse/internal/charts"
	"pulse/internal/core"
	"pulse/internal/recipes"
)

type datasetJSON struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	File   string `json:"file"`
	Kind   string `json:"kind"`
	Cached bool   `json:"cached"`
}

type constraintJSON struct {
	Column string   `json:"column"`
	Values []string `json:"values"`
}

type explorationJSON struct {
	Dataset     datasetJSON         `json:"dataset"`
	Columns     []string            `json:"columns"`
	TotalRows   int                 `json:"total_rows"`
	MatchedRows int                 `json:"matched_rows"`
	Matched     bool                `json:"matched"`
	Truncated   bool                `json:"truncated"`
	Constraints []constraintJSON    `json:"constraints"`
	Distinct    map[string][]string `json:"distinct,omitempty"`
	Rows        [][]string          `json:"rows"`
}

type viewJSON struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Dataset  string   `json:"dataset"`
	Chart    string   `json:"chart"`
	Required []string `json:"required"`
}

type viewResultJSON struct {
	viewJSON
	Columns []string            `json:"columns"`
	Rows    [][]string          `json:"rows"`
	Heatmap *charts.HeatmapView `json:"heatmap,omitempty"`
	Rings   []charts.Ring       `json:"rings,omitempty"`
}

func toViewJSON(rc recipes.Recipe) viewJSON {
	return viewJSON{
		ID:       string(rc.ID),
		Title:    rc.Title,
		Dataset:  rc.Dataset,
		Chart:    string(rc.Chart),
		Required: rc.Required,
	}
}

func (s *Server) handleAPIDatasets(w http.ResponseWriter, r *http.Request) {
	cached := map[string]bool{}
	for _, f := range s.datasets.Cached() {
		cached[f] = true
	}
	out := make([]datasetJSON, 0, len(core.Datasets()))
	for _, d := range core.Datasets() {
		out = append(out, datasetJSON{ID: d.ID, Label: d.Label, File: d.File, Kind: string(d.Kind), Cached: cached[d.File]})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAPIDataset returns the (filtered) rows of a dataset. No matching
// rows is a 200 with "matched": false.
func (s *Server) handleAPIDataset(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	query.Set(paramDataset, mux.Vars(r)["id"])
	query.Del(paramFrom)
	q, err := ParseExplorerQuery(query, s.previewLimit)
	if err != nil {
		writeJSONError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ex, err := s.explorer.Explore(ctx, q.Dataset, q.Constraints, q.Limit)
	if err != nil {
		s.logRequestError(r, "API dataset failed", err)
		writeJSONError(w, err)
		return
	}

	out := explorationJSON{
		Dataset:     datasetJSON{ID: ex.Dataset.ID, Label: ex.Dataset.Label, File: ex.Dataset.File, Kind: string(ex.Dataset.Kind), Cached: true},
		Columns:     ex.Columns,
		TotalRows:   ex.Table.Len(),
		MatchedRows: ex.Filtered.Len(),
		Matched:     ex.Matched,
		Truncated:   ex.Truncated(),
		Constraints: make([]constraintJSON, 0, len(ex.Constraints)),
		Distinct:    ex.Distinct,
		Rows:        ex.Preview.Rows(),
	}
	for _, c := range ex.Constraints {
		out.Constraints = append(out.Constraints, constraintJSON{Column: c.Column, Values: c.Values})
	}
	if out.Rows == nil {
		out.Rows = [][]string{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIViews(w http.ResponseWriter, r *http.Request) {
	all := s.views.Views()
	out := make([]viewJSON, 0, len(all))
	for _, rc := range all {
		out = append(out, toViewJSON(rc))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["view"]
	rc, err := s.views.Lookup(key)
	if err != nil {
		writeJSONError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := s.views.Render(ctx, string(rc.ID))
	if err != nil {
		s.logRequestError(r, "API view failed", err)
		writeJSONError(w, err)
		return
	}

	out := viewResultJSON{viewJSON: toViewJSON(rc), Columns: res.Columns, Rows: res.Rows}
	if out.Rows == nil {
		out.Rows = [][]string{}
	}
	switch data := res.Data.(type) {
	case recipes.BrandGrid:
		if hv, err := charts.Heatmap(data); err == nil {
			out.Heatmap = &hv
		}
	case recipes.Sunburst:
		if rings, err := charts.SunburstRings(data); err == nil {
			out.Rings = rings
		}
	}
	writeJSON(w, http.StatusOK, out)
}
