package http

import (
	"net/http"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/reconcile"
)

const maxUnmatchedList = 500

type matchRequest struct {
	Invoice core.InvoiceRecord `json:"invoice"`
	Cell    core.ForecastCell  `json:"cell"`
}

type matchResponse struct {
	Match  bool             `json:"match"`
	Reason reconcile.Reason `json:"reason,omitempty"`
}

type submitResponse struct {
	Accepted []string `json:"accepted"`
}

func (s *Server) handleMatchInvoice(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpReconcile, err)
		return
	}
	reason := reconcile.Explain(req.Invoice, req.Cell, s.deps.Registry)
	resp := matchResponse{Match: reason.Matched()}
	if resp.Match {
		resp.Reason = reason
	}
	NewJSONResponse().Body(resp).Write(w)
}

// handleIngestInvoices attributes invoices synchronously, or hands them to
// the worker with ?async=true.
func (s *Server) handleIngestInvoices(w http.ResponseWriter, r *http.Request) {
	async, err := ParseBool(r.URL.Query().Get("async"))
	if err != nil {
		s.writeError(w, r, log.OpReconcile, err)
		return
	}
	var invoices []core.InvoiceRecord
	if err := DecodeJSON(w, r, &invoices); err != nil {
		s.writeError(w, r, log.OpReconcile, err)
		return
	}
	userID := sanitizeInput(r.Header.Get(trace.UserIDHeader))

	if async {
		ids, err := s.deps.Invoices.Submit(r.Context(), invoices, userID)
		if err != nil {
			s.writeError(w, r, log.OpPublish, err)
			return
		}
		NewJSONResponse().Status(http.StatusAccepted).Body(submitResponse{Accepted: ids}).Write(w)
		return
	}

	res, err := s.deps.Invoices.Ingest(r.Context(), invoices, userID)
	if err != nil {
		s.writeError(w, r, log.OpReconcile, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleListUnmatched(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimit(r.URL.Query().Get("limit"), maxUnmatchedList)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	items, err := s.deps.Invoices.ListUnmatched(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	if items == nil {
		items = []core.UnmatchedInvoice{}
	}
	NewJSONResponse().Body(map[string]any{"count": len(items), "items": items}).Write(w)
}
