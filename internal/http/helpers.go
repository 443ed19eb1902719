package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/estimate"
	"finanzas/internal/log"
	"finanzas/internal/rubros"
	"finanzas/internal/services"
)

// validationErrors answer 422: the request was well-formed but its content
// breaks a domain rule.
var validationErrors = []error{
	core.ErrInvalidMonth,
	core.ErrInvalidAmount,
	core.ErrEmptyRubroID,
	core.ErrEmptyProjectID,
	core.ErrEmptyDescription,
	core.ErrInvalidGroupMode,
	core.ErrInvalidCostType,
	rubros.ErrUnknownRubro,
}

// errorResponse maps a handler error to its HTTP response.
func errorResponse(err error) *JSONResponseBuilder {
	var re *estimate.ResolutionError
	if errors.As(err, &re) {
		body := ErrorBody{Error: re.Error(), Input: re.Input}
		if re.Index >= 0 {
			idx := re.Index
			body.Index = &idx
		}
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(body)
	}
	if errors.Is(err, errBadRequest) {
		return BadRequestError(err.Error())
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return UnprocessableEntityError(err.Error())
		}
	}
	if errors.Is(err, services.ErrNoPublisher) {
		return ServiceUnavailableError("asynchronous ingestion is not configured")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ServiceUnavailableError("request cancelled")
	}
	return InternalServerError("internal error")
}

// writeError logs 5xx failures with the request logger and writes the
// mapped response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorResponse(err)
	if resp.statusCode >= http.StatusInternalServerError {
		s.events.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")))
	}
	resp.Write(w)
}

// sanitizeInput drops control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
