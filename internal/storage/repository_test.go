package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"finanzas/internal/core"
	"finanzas/internal/sheets"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "finanzas.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositoryCells(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	cells := []core.ForecastCell{
		{ProjectID: "P1", CanonicalID: "MOD-SDM", Month: 3, Planned: 900, Forecast: 1000, Description: "SDM"},
		{ProjectID: "P2", RubroCode: "legacy-code", Month: 3, Forecast: 2000},
		{ProjectID: "P1", CanonicalID: "MOD-SDM", Month: 4, Forecast: 1000},
	}
	if err := repo.SaveCells(ctx, cells); err != nil {
		t.Fatalf("save cells: %v", err)
	}

	got, err := repo.ListCells(ctx, 3)
	if err != nil {
		t.Fatalf("list cells: %v", err)
	}
	if len(got) != 2 || got[0].CanonicalID != "MOD-SDM" || got[1].RubroCode != "legacy-code" {
		t.Fatalf("unexpected cells: %+v", got)
	}

	all, err := repo.ListCells(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 cells in total, got %d (%v)", len(all), err)
	}

	if err := repo.SaveCells(ctx, []core.ForecastCell{{ProjectID: "P1", Month: 0, CanonicalID: "X"}}); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected invalid month error, got %v", err)
	}
}

func TestRepositoryBudgets(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	b, err := repo.MonthBudget(ctx, 5)
	if err != nil || b != nil {
		t.Fatalf("expected no budget, got %v, %v", b, err)
	}
	if err := repo.SetMonthBudget(ctx, 5, 1200); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	if err := repo.SetMonthBudget(ctx, 5, 1500); err != nil {
		t.Fatalf("overwrite budget: %v", err)
	}
	b, err = repo.MonthBudget(ctx, 5)
	if err != nil || b == nil || *b != 1500 {
		t.Fatalf("expected 1500, got %v, %v", b, err)
	}
	if err := repo.SetMonthBudget(ctx, 0, 1); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected invalid month, got %v", err)
	}
}

func TestRepositoryApplyInvoiceOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	cell := core.ForecastCell{ProjectID: "P1", CanonicalID: "MOD-SDM", Month: 3, Forecast: 1000, Actual: 100}
	if err := repo.SaveCells(ctx, []core.ForecastCell{cell}); err != nil {
		t.Fatalf("save cells: %v", err)
	}

	inv := core.InvoiceRecord{ID: "f-1", ProjectID: "P1", RubroID: "SDM", Month: 3, Amount: core.NewAmount(250.5)}
	applied, err := repo.ApplyInvoice(ctx, inv, cell)
	if err != nil || !applied {
		t.Fatalf("first apply: %v %v", applied, err)
	}
	applied, err = repo.ApplyInvoice(ctx, inv, cell)
	if err != nil || applied {
		t.Fatalf("second apply must be a no-op: %v %v", applied, err)
	}

	got, _ := repo.ListCells(ctx, 3)
	if len(got) != 1 || got[0].Actual != 350.5 {
		t.Fatalf("expected actual 350.5, got %+v", got)
	}

	// A baseline refresh keeps actuals.
	cell.Forecast = 1200
	if err := repo.SaveCells(ctx, []core.ForecastCell{cell}); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, _ = repo.ListCells(ctx, 3)
	if got[0].Actual != 350.5 || got[0].Forecast != 1200 {
		t.Fatalf("upsert must keep actual: %+v", got[0])
	}

	if _, err := repo.ApplyInvoice(ctx, core.InvoiceRecord{}, cell); err == nil {
		t.Fatalf("expected error for invoice without id")
	}
}

func TestRepositoryUnmatchedQueue(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	inv := core.InvoiceRecord{ID: "f-9", LineaCodigo: "INF-CLOUD", Amount: core.NewAmount(10), Month: 2}
	item, err := repo.EnqueueUnmatched(ctx, inv)
	if err != nil || item.ID == "" {
		t.Fatalf("enqueue: %+v %v", item, err)
	}

	if err := repo.TouchUnmatched(ctx, item.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}
	list, err := repo.ListUnmatched(ctx, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
	if list[0].Attempts != 1 || list[0].Invoice.LineaCodigo != "INF-CLOUD" || list[0].Invoice.Amount.Float64() != 10 {
		t.Fatalf("unexpected queued item: %+v", list[0])
	}

	if err := repo.RemoveUnmatched(ctx, item.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := repo.RemoveUnmatched(ctx, item.ID); !errors.Is(err, sheets.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.TouchUnmatched(ctx, "missing"); !errors.Is(err, sheets.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
