package http

import (
	"fmt"
	"net/http"

	"finanzas/internal/core"
	"finanzas/internal/estimate"
	"finanzas/internal/log"
)

type normalizeResponse struct {
	Mode       string                    `json:"mode"`
	Items      []core.NormalizedLineItem `json:"items"`
	Unresolved int                       `json:"unresolved"`
}

// handleNormalizeEstimates projects estimate rows onto the taxonomy.
// Strict mode answers 422 naming the first unresolved row.
func (s *Server) handleNormalizeEstimates(w http.ResponseWriter, r *http.Request) {
	mode, err := estimate.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.writeError(w, r, log.OpNormalize, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	var raws []core.RawLineItem
	if err := DecodeJSON(w, r, &raws); err != nil {
		s.writeError(w, r, log.OpNormalize, err)
		return
	}

	items, err := estimate.NormalizeAll(raws, s.deps.Registry, mode)
	if err != nil {
		s.writeError(w, r, log.OpNormalize, err)
		return
	}

	unresolved := 0
	for _, it := range items {
		if !it.Resolved {
			unresolved++
		}
	}
	if unresolved > 0 {
		log.FromContextOr(r.Context(), s.logger).InfoContext(r.Context(), "Estimates normalized with unresolved rows",
			log.FieldOperation, log.OpNormalize,
			"unresolved", unresolved,
			"rows", len(items))
	}
	NewJSONResponse().Body(normalizeResponse{
		Mode:       mode.String(),
		Items:      items,
		Unresolved: unresolved,
	}).Write(w)
}
