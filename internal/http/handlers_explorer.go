package http

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"pulse/internal/core"
	"pulse/internal/export"
	"pulse/internal/log"
)

type columnOption struct {
	Name   string
	Chosen bool
}

type valueOption struct {
	Value    string
	Selected bool
}

// filterControl is the value picker of one chosen column.
type filterControl struct {
	Column  string
	Options []valueOption
}

type explorerBody struct {
	Datasets []core.Dataset
	Dataset  core.Dataset
	Columns  []columnOption
	Filters  []filterControl

	Headers   []string
	Rows      [][]string
	Total     int
	Matched   int
	Shown     int
	NoMatch   bool
	Truncated bool

	ExportCSV  string
	ExportXLSX string
	Error      *errorPanel
}

// explore runs the explorer for q and lays out the panel. The returned
// error is the one that produced body.Error.
func (s *Server) explore(r *http.Request, q ExplorerQuery) (explorerBody, error) {
	body := explorerBody{Datasets: core.Datasets()}
	if d, err := core.LookupDataset(q.Dataset); err == nil {
		body.Dataset = d
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ex, err := s.explorer.Explore(ctx, q.Dataset, q.Constraints, q.Limit)
	if err != nil {
		s.sl.LogError(ctx, "Explore failed", err, log.ComponentExplorer, log.OpFilter,
			log.NewFields().WithDataset(q.Dataset, 0))
		body.Error = newErrorPanel(err)
		return body, err
	}

	body.Dataset = ex.Dataset
	chosen := make(map[string]bool, len(ex.Constraints))
	for _, c := range ex.Constraints {
		chosen[c.Column] = true
	}
	for _, col := range ex.Columns {
		body.Columns = append(body.Columns, columnOption{Name: col, Chosen: chosen[col]})
	}
	for _, c := range ex.Constraints {
		fc := filterControl{Column: c.Column}
		for _, v := range ex.Distinct[c.Column] {
			fc.Options = append(fc.Options, valueOption{Value: v, Selected: ex.Selected(c.Column, v)})
		}
		body.Filters = append(body.Filters, fc)
	}

	body.Headers = ex.Preview.Columns()
	body.Rows = ex.Preview.Rows()
	body.Total = ex.Table.Len()
	body.Matched = ex.Filtered.Len()
	body.Shown = ex.Preview.Len()
	body.NoMatch = !ex.Matched
	body.Truncated = ex.Truncated()

	resolved := ExplorerQuery{Dataset: ex.Dataset.ID, Constraints: ex.Constraints}.Values().Encode()
	body.ExportCSV = "/explorer/export.csv?" + resolved
	body.ExportXLSX = "/explorer/export.xlsx?" + resolved

	log.FromContext(ctx).DebugContext(ctx, "Dataset explored",
		log.FieldDataset, ex.Dataset.File,
		log.FieldConstraints, len(ex.Constraints),
		log.FieldRows, body.Matched)
	return body, nil
}

func (s *Server) handleExplorerPage(w http.ResponseWriter, r *http.Request) {
	page := pageData{Title: "Dataset Explorer", Active: "explorer"}
	q, err := ParseExplorerQuery(r.URL.Query(), s.previewLimit)
	if err != nil {
		page.Body = explorerBody{Datasets: core.Datasets(), Error: newErrorPanel(err)}
		s.renderPage(w, r, http.StatusBadRequest, "explorer_page", page)
		return
	}
	body, err := s.explore(r, q)
	page.Body = body
	s.renderPage(w, r, statusFor(err), "explorer_page", page)
}

// handleExplorerPartial answers htmx filter changes. Failures render an
// inline panel with status 200 so htmx swaps it in.
func (s *Server) handleExplorerPartial(w http.ResponseWriter, r *http.Request) {
	q, err := ParseExplorerQuery(r.URL.Query(), s.previewLimit)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	body, err := s.explore(r, q)

	b := NewHTMXResponse()
	if tErr := b.BodyTemplate(s.templates, "explorer_panel", body); tErr != nil {
		s.logger.ErrorContext(r.Context(), "Explorer partial failed", log.FieldError, tErr, log.FieldComponent, log.ComponentTemplate)
		InternalServerError("Unable to render the explorer").Write(w)
		return
	}
	switch {
	case err != nil:
		b.TriggerErrorNotification(body.Error.Title + ": " + body.Error.Message)
	case body.NoMatch:
		b.TriggerWarningNotification("No rows match the selected filters")
	default:
		b.TriggerExplorerUpdated(body.Dataset.ID, body.Matched)
	}
	b.Write(w)
}

// handleExplorerExport downloads the complete filtered dataset.
func (s *Server) handleExplorerExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q, err := ParseExplorerQuery(r.URL.Query(), 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	d, tbl, err := s.explorer.Export(ctx, q.Dataset, q.Constraints)
	if err != nil {
		s.logRequestError(r, "Explorer export failed", err, log.FieldDataset, q.Dataset)
		p := newErrorPanel(err)
		http.Error(w, strings.TrimSpace(p.Title+": "+p.Message), p.Status)
		return
	}

	var buf bytes.Buffer
	if err := export.Table(&buf, format, tbl); err != nil {
		s.logRequestError(r, "Explorer export encoding failed", err, log.FieldDataset, d.File, log.FieldFormat, string(format))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	s.appMetrics.exports.Add(1)
	log.FromContext(ctx).InfoContext(ctx, "Dataset exported",
		log.FieldOperation, log.OpExport,
		log.FieldDataset, d.File,
		log.FieldFormat, string(format),
		log.FieldRows, tbl.Len())
	writeDownload(w, format.ContentType(), export.Filename(d.File, format), &buf)
}
