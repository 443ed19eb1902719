package http

import (
	"net/http"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

type budgetRequest struct {
	Amount *float64 `json:"amount"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	req, err := ParseSnapshotRequest(r.URL.Query())
	if err != nil {
		s.writeError(w, r, log.OpSnapshot, err)
		return
	}
	res, err := s.deps.Snapshots.Snapshot(r.Context(), req)
	if err != nil {
		s.writeError(w, r, log.OpSnapshot, err)
		return
	}
	if res.Rows == nil {
		res.Rows = []core.SnapshotRow{}
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r)
	if err != nil {
		s.writeError(w, r, log.OpSave, err)
		return
	}
	var req budgetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpSave, err)
		return
	}
	if req.Amount == nil {
		UnprocessableEntityError("amount is required").Write(w)
		return
	}
	if err := s.deps.Snapshots.SetMonthBudget(r.Context(), month, *req.Amount); err != nil {
		s.writeError(w, r, log.OpSave, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"month": month, "amount": *req.Amount}).Write(w)
}

func (s *Server) handleSaveCells(w http.ResponseWriter, r *http.Request) {
	var cells []core.ForecastCell
	if err := DecodeJSON(w, r, &cells); err != nil {
		s.writeError(w, r, log.OpSave, err)
		return
	}
	saved, err := s.deps.Snapshots.SaveBaseline(r.Context(), cells)
	if err != nil {
		s.writeError(w, r, log.OpSave, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"count": len(saved), "cells": saved}).Write(w)
}
