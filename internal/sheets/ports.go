package sheets

import (
	"context"
	"errors"

	"finanzas/internal/core"
)

// ErrNotFound is returned when a queued item does not exist.
var ErrNotFound = errors.New("not found")

// Ports for outbound adapters.
type (
	// TaxonomyReader loads the rubro registry source: entries plus extra
	// alias definitions.
	TaxonomyReader interface {
		ReadTaxonomy(ctx context.Context) ([]core.TaxonomyEntry, []core.AliasDefinition, error)
	}

	// CellStore keeps forecast cells and month budgets.
	CellStore interface {
		// SaveCells upserts cells by project, rubro and month. Stored
		// actuals are kept; only planned, forecast and labels change.
		SaveCells(ctx context.Context, cells []core.ForecastCell) error
		// ListCells returns the cells of a month, or all cells for month 0.
		ListCells(ctx context.Context, month int) ([]core.ForecastCell, error)
		SetMonthBudget(ctx context.Context, month int, amount float64) error
		// MonthBudget returns nil when no budget is configured.
		MonthBudget(ctx context.Context, month int) (*float64, error)
	}

	// InvoiceStore records attributed invoices and the unmatched queue.
	InvoiceStore interface {
		// ApplyInvoice records inv against cell and adds its amount to the
		// cell's actual. It returns false without changes when the invoice
		// id was already applied.
		ApplyInvoice(ctx context.Context, inv core.InvoiceRecord, cell core.ForecastCell) (bool, error)
		EnqueueUnmatched(ctx context.Context, inv core.InvoiceRecord) (core.UnmatchedInvoice, error)
		ListUnmatched(ctx context.Context, limit int) ([]core.UnmatchedInvoice, error)
		// TouchUnmatched counts one more failed retry.
		TouchUnmatched(ctx context.Context, id string) error
		RemoveUnmatched(ctx context.Context, id string) error
	}
)
