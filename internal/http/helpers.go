package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pulse/internal/charts"
	"pulse/internal/core"
	"pulse/internal/export"
	"pulse/internal/log"
	"pulse/internal/recipes"
	"pulse/internal/services"
	"pulse/internal/sources"
)

// errorPanel is the inline error shown in place of a failed view or
// explorer result.
type errorPanel struct {
	Status  int
	Title   string
	Message string
	Missing []string
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, recipes.ErrViewNotFound), services.IsNotFound(err):
		return http.StatusNotFound
	case core.IsSchemaError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidConstraint),
		errors.Is(err, charts.ErrUnknownFormat),
		errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest
	case sources.IsSourceError(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func newErrorPanel(err error) *errorPanel {
	p := &errorPanel{Status: statusFor(err), Message: err.Error()}
	var se *core.SchemaError
	switch {
	case errors.As(err, &se):
		p.Title = "Schema mismatch"
		p.Missing = se.Missing
	case p.Status == http.StatusNotFound:
		p.Title = "Not found"
	case p.Status == http.StatusBadRequest:
		p.Title = "Invalid request"
	case p.Status == http.StatusBadGateway:
		p.Title = "Source unavailable"
	case p.Status == http.StatusGatewayTimeout:
		p.Title = "Source timed out"
	default:
		p.Title = "Something went wrong"
		p.Message = "internal error"
	}
	return p
}

// logRequestError records a failed request at a level matching its status.
func (s *Server) logRequestError(r *http.Request, msg string, err error, args ...any) {
	logger := log.FromContext(r.Context())
	args = append(args, log.FieldError, err, log.FieldPath, r.URL.Path)
	if statusFor(err) >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), msg, args...)
		return
	}
	logger.WarnContext(r.Context(), msg, args...)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

type apiError struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// writeJSONError writes err with its mapped status.
func writeJSONError(w http.ResponseWriter, err error) {
	p := newErrorPanel(err)
	writeJSON(w, p.Status, apiError{Error: p.Message, Missing: p.Missing})
}

// writeDownload sends body as an attachment.
func writeDownload(w http.ResponseWriter, contentType, filename string, body *bytes.Buffer) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = body.WriteTo(w)
}

// sanitizeInput trims s and drops control characters.
func sanitizeInput(s string) string {
	return sanitizeValue(strings.TrimSpace(s))
}

// sanitizeValue drops control characters but keeps surrounding spaces, which
// can be part of a cell value.
func sanitizeValue(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
