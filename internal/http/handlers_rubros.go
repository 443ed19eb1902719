package http

import (
	"net/http"
	"strings"

	"finanzas/internal/core"
)

type rubrosResponse struct {
	Count   int                  `json:"count"`
	Aliases int                  `json:"aliases"`
	Entries []core.TaxonomyEntry `json:"entries"`
}

type resolveResponse struct {
	Input       string              `json:"input"`
	CanonicalID *string             `json:"canonicalId"`
	Entry       *core.TaxonomyEntry `json:"entry"`
}

// handleListRubros lists the taxonomy. ?type=labor|non-labor narrows it.
func (s *Server) handleListRubros(w http.ResponseWriter, r *http.Request) {
	costType, err := core.ParseCostType(r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, r, "list_rubros", err)
		return
	}

	entries := s.deps.Registry.Entries()
	if costType != "" {
		filtered := entries[:0:0]
		for _, e := range entries {
			if e.CostType() == costType {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	NewJSONResponse().Body(rubrosResponse{
		Count:   len(entries),
		Aliases: s.deps.Registry.AliasCount(),
		Entries: entries,
	}).Write(w)
}

func (s *Server) handleResolveRubro(w http.ResponseWriter, r *http.Request) {
	q := sanitizeInput(r.URL.Query().Get("q"))
	if strings.TrimSpace(q) == "" {
		BadRequestError("query parameter q is required").Write(w)
		return
	}

	resp := resolveResponse{Input: q}
	if id, ok := s.deps.Registry.Resolve(q); ok {
		resp.CanonicalID = &id
		if entry, found := s.deps.Registry.FindByCanonicalID(id); found {
			resp.Entry = &entry
		}
	}
	NewJSONResponse().Body(resp).Write(w)
}
