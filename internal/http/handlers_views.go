package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"pulse/internal/charts"
	"pulse/internal/export"
	"pulse/internal/log"
	"pulse/internal/recipes"
)

// viewPanel is one rendered view: its derived table plus whatever chart
// form suits it.
type viewPanel struct {
	Recipe  recipes.Recipe
	Result  recipes.Result
	Empty   bool
	Heatmap *charts.HeatmapView
	Rings   []charts.Ring

	ImageURL   string
	PNGURL     string
	ExportCSV  string
	ExportXLSX string
	Error      *errorPanel
}

type viewsBody struct {
	Views    []recipes.Recipe
	Selected recipes.ViewID
	Panel    viewPanel
}

// buildViewPanel renders a view. Its error stays inside the panel; the rest
// of the page is unaffected.
func (s *Server) buildViewPanel(r *http.Request, key string) (viewPanel, error) {
	var panel viewPanel
	rc, err := s.views.Lookup(key)
	if err != nil {
		panel.Error = newErrorPanel(err)
		return panel, err
	}
	panel.Recipe = rc
	id := url.PathEscape(string(rc.ID))
	panel.ImageURL = "/charts/" + id + ".svg"
	panel.PNGURL = "/charts/" + id + ".png"
	panel.ExportCSV = "/views/" + id + "/export.csv"
	panel.ExportXLSX = "/views/" + id + "/export.xlsx"

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := s.views.Render(ctx, string(rc.ID))
	if err != nil {
		panel.Error = newErrorPanel(err)
		return panel, err
	}
	panel.Result = res
	panel.Empty = res.Empty()

	switch data := res.Data.(type) {
	case recipes.BrandGrid:
		if hv, err := charts.Heatmap(data); err == nil {
			panel.Heatmap = &hv
		}
	case recipes.Sunburst:
		if rings, err := charts.SunburstRings(data); err == nil {
			panel.Rings = rings
		}
	}
	return panel, nil
}

func (s *Server) renderViewsPage(w http.ResponseWriter, r *http.Request, key string) {
	panel, err := s.buildViewPanel(r, key)
	body := viewsBody{Views: s.views.Views(), Selected: panel.Recipe.ID, Panel: panel}
	title := "Views"
	if panel.Recipe.Title != "" {
		title = panel.Recipe.Title
	}
	s.renderPage(w, r, statusFor(err), "views_page", pageData{Title: title, Active: "views", Body: body})
}

// handleViewsPage shows the view selector with the chosen view, the first
// one by default.
func (s *Server) handleViewsPage(w http.ResponseWriter, r *http.Request) {
	key := sanitizeInput(r.URL.Query().Get("view"))
	if key != "" {
		if rc, err := s.views.Lookup(key); err == nil {
			http.Redirect(w, r, "/views/"+url.PathEscape(string(rc.ID)), http.StatusSeeOther)
			return
		}
	}
	if key == "" {
		if all := s.views.Views(); len(all) > 0 {
			key = string(all[0].ID)
		}
	}
	s.renderViewsPage(w, r, key)
}

func (s *Server) handleViewPage(w http.ResponseWriter, r *http.Request) {
	s.renderViewsPage(w, r, mux.Vars(r)["view"])
}

// handleViewPartial answers htmx view switches with the panel only.
func (s *Server) handleViewPartial(w http.ResponseWriter, r *http.Request) {
	panel, err := s.buildViewPanel(r, mux.Vars(r)["view"])

	b := NewHTMXResponse()
	if tErr := b.BodyTemplate(s.templates, "view_panel", panel); tErr != nil {
		s.logger.ErrorContext(r.Context(), "View partial failed", log.FieldError, tErr, log.FieldComponent, log.ComponentTemplate)
		InternalServerError("Unable to render the view").Write(w)
		return
	}
	if err != nil {
		b.TriggerErrorNotification(panel.Error.Title + ": " + panel.Error.Message)
	} else {
		b.TriggerViewRendered(string(panel.Recipe.ID), len(panel.Result.Rows))
	}
	b.Write(w)
}

// handleChart renders a view as PNG or SVG. An empty view has nothing to
// draw and answers 204.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	format, err := charts.ParseFormat(vars["format"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := s.views.Render(ctx, vars["view"])
	if err != nil {
		s.logRequestError(r, "Chart data failed", err, log.FieldView, vars["view"])
		p := newErrorPanel(err)
		http.Error(w, p.Title+": "+p.Message, p.Status)
		return
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, res, format); err != nil {
		if errors.Is(err, charts.ErrNothingToRender) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.logRequestError(r, "Chart rendering failed", err, log.FieldView, string(res.View), log.FieldFormat, string(format))
		http.Error(w, "chart rendering failed", http.StatusInternalServerError)
		return
	}
	s.appMetrics.chartsRendered.Add(1)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleViewExport downloads the derived table of a view.
func (s *Server) handleViewExport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	format, err := export.ParseFormat(vars["format"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := s.views.Render(ctx, vars["view"])
	if err != nil {
		s.logRequestError(r, "View export failed", err, log.FieldView, vars["view"])
		p := newErrorPanel(err)
		http.Error(w, p.Title+": "+p.Message, p.Status)
		return
	}

	var buf bytes.Buffer
	if err := export.Result(&buf, format, res); err != nil {
		s.logRequestError(r, "View export encoding failed", err, log.FieldView, string(res.View), log.FieldFormat, string(format))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	s.appMetrics.exports.Add(1)
	writeDownload(w, format.ContentType(), export.Filename(string(res.View), format), &buf)
}
