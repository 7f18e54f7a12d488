package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pulse/internal/core"
	"pulse/internal/log"
	"pulse/internal/recipes"
)

// pageData is the envelope every full page template receives.
type pageData struct {
	Title  string
	Active string
	Body   any
}

type datasetItem struct {
	core.Dataset
	Cached bool
}

type homeBody struct {
	Datasets []datasetItem
	Views    []recipes.Recipe
}

// renderPage executes a full page template. The page is buffered so a
// template failure still produces a clean 500.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate,
			"error_type", log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Page template execution failed",
			log.FieldError, err,
			"template", name,
			log.FieldComponent, log.ComponentTemplate)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	cached := map[string]bool{}
	for _, f := range s.datasets.Cached() {
		cached[f] = true
	}
	body := homeBody{Views: s.views.Views()}
	for _, d := range core.Datasets() {
		body.Datasets = append(body.Datasets, datasetItem{Dataset: d, Cached: cached[d.File]})
	}
	s.renderPage(w, r, http.StatusOK, "home_page", pageData{Title: "Overview", Active: "home", Body: body})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	msg := "page not found: " + r.URL.Path
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/"):
		writeJSON(w, http.StatusNotFound, apiError{Error: msg})
	case isHTMX(r):
		NotFoundError(msg).Write(w)
	default:
		body := &errorPanel{Status: http.StatusNotFound, Title: "Not found", Message: msg}
		s.renderPage(w, r, http.StatusNotFound, "error_page", pageData{Title: "Not found", Body: body})
	}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady checks templates and the data source.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.datasets.Ping(ctx); err != nil {
		checks["source"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["source"] = "ok"
	}

	checks["cache"] = map[string]interface{}{
		"entries":      len(s.datasets.Cached()),
		"source_reads": s.datasets.SourceReads(),
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("dataset_source_reads_total", "counter", "Tables read from the data source", s.datasets.SourceReads())
	metric("dataset_cache_entries", "gauge", "Tables currently cached", len(s.datasets.Cached()))
	metric("charts_rendered_total", "counter", "Chart images rendered", s.appMetrics.chartsRendered.Load())
	metric("exports_total", "counter", "CSV and XLSX downloads served", s.appMetrics.exports.Load())
	metric("rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.Rejected)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}
