package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finanzas/internal/core"
	"finanzas/internal/sheets"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var (
	_ sheets.CellStore    = (*SQLiteRepository)(nil)
	_ sheets.InvoiceStore = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Attribution is a read-modify-write on a cell; one writer keeps it serial.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

func cellRubroID(c core.ForecastCell) string {
	if id := strings.TrimSpace(c.CanonicalID); id != "" {
		return id
	}
	return strings.TrimSpace(c.RubroCode)
}

// SaveCells implements sheets.CellStore
func (r *SQLiteRepository) SaveCells(ctx context.Context, cells []core.ForecastCell) error {
	for _, c := range cells {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("cell %s: %w", c.Key(), err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	now := r.stamp()
	for _, c := range cells {
		err := q.UpsertCell(ctx, UpsertCellParams{
			ProjectID:   strings.TrimSpace(c.ProjectID),
			RubroID:     cellRubroID(c),
			Month:       int64(c.Month),
			LineItemID:  c.LineItemID,
			CanonicalID: c.CanonicalID,
			RubroCode:   c.RubroCode,
			ProjectName: c.ProjectName,
			Description: c.Description,
			Category:    c.Category,
			Planned:     c.Planned,
			Forecast:    c.Forecast,
			Actual:      c.Actual,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("upsert cell %s: %w", c.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cells: %w", err)
	}

	slog.InfoContext(ctx, "Forecast cells saved to SQLite", "count", len(cells))
	return nil
}

// ListCells implements sheets.CellStore
func (r *SQLiteRepository) ListCells(ctx context.Context, month int) ([]core.ForecastCell, error) {
	var (
		rows []ForecastCellRow
		err  error
	)
	if month == 0 {
		rows, err = r.queries.ListAllCells(ctx)
	} else {
		rows, err = r.queries.ListCellsByMonth(ctx, int64(month))
	}
	if err != nil {
		return nil, fmt.Errorf("list cells for month %d: %w", month, err)
	}

	cells := make([]core.ForecastCell, len(rows))
	for i, row := range rows {
		cells[i] = core.ForecastCell{
			LineItemID:  row.LineItemID,
			CanonicalID: row.CanonicalID,
			RubroCode:   row.RubroCode,
			ProjectID:   row.ProjectID,
			ProjectName: row.ProjectName,
			Month:       int(row.Month),
			Planned:     row.Planned,
			Forecast:    row.Forecast,
			Actual:      row.Actual,
			Description: row.Description,
			Category:    row.Category,
		}
	}
	return cells, nil
}

// SetMonthBudget implements sheets.CellStore
func (r *SQLiteRepository) SetMonthBudget(ctx context.Context, month int, amount float64) error {
	if month < 1 {
		return fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	if err := r.queries.UpsertMonthBudget(ctx, int64(month), amount, r.stamp()); err != nil {
		return fmt.Errorf("set budget for month %d: %w", month, err)
	}
	slog.InfoContext(ctx, "Month budget saved", "month", month, "amount", amount)
	return nil
}

// MonthBudget implements sheets.CellStore
func (r *SQLiteRepository) MonthBudget(ctx context.Context, month int) (*float64, error) {
	amount, err := r.queries.GetMonthBudget(ctx, int64(month))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget for month %d: %w", month, err)
	}
	return &amount, nil
}

// ApplyInvoice implements sheets.InvoiceStore
func (r *SQLiteRepository) ApplyInvoice(ctx context.Context, inv core.InvoiceRecord, cell core.ForecastCell) (bool, error) {
	if strings.TrimSpace(inv.ID) == "" {
		return false, errors.New("invoice id is required")
	}
	payload, err := json.Marshal(inv)
	if err != nil {
		return false, fmt.Errorf("encode invoice: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	now := r.stamp()
	projectID, rubroID := strings.TrimSpace(cell.ProjectID), cellRubroID(cell)

	inserted, err := q.InsertInvoice(ctx, InsertInvoiceParams{
		ID:        inv.ID,
		ProjectID: projectID,
		RubroID:   rubroID,
		Month:     int64(cell.Month),
		Amount:    inv.Amount.Decimal.String(),
		Payload:   string(payload),
		AppliedAt: now,
	})
	if err != nil {
		return false, fmt.Errorf("insert invoice %s: %w", inv.ID, err)
	}
	if inserted == 0 {
		slog.InfoContext(ctx, "Invoice already applied", "invoice_id", inv.ID)
		return false, nil
	}

	current, err := q.GetCellActual(ctx, projectID, rubroID, int64(cell.Month))
	if err != nil {
		return false, fmt.Errorf("read actual for %s: %w", cell.Key(), err)
	}
	actual := decimal.NewFromFloat(current).Add(inv.Amount.Decimal).InexactFloat64()
	if _, err := q.SetCellActual(ctx, SetCellActualParams{
		Actual:    actual,
		UpdatedAt: now,
		ProjectID: projectID,
		RubroID:   rubroID,
		Month:     int64(cell.Month),
	}); err != nil {
		return false, fmt.Errorf("update actual for %s: %w", cell.Key(), err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit invoice: %w", err)
	}

	slog.InfoContext(ctx, "Invoice applied",
		"invoice_id", inv.ID,
		"project_id", projectID,
		"rubro_id", rubroID,
		"month", cell.Month,
		"actual", actual)
	return true, nil
}

// EnqueueUnmatched implements sheets.InvoiceStore
func (r *SQLiteRepository) EnqueueUnmatched(ctx context.Context, inv core.InvoiceRecord) (core.UnmatchedInvoice, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return core.UnmatchedInvoice{}, fmt.Errorf("encode invoice: %w", err)
	}
	now := r.now().UTC()
	item := core.UnmatchedInvoice{
		ID:        uuid.NewString(),
		Invoice:   inv,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = r.queries.InsertUnmatched(ctx, UnmatchedInvoiceRow{
		ID:        item.ID,
		InvoiceID: inv.ID,
		Payload:   string(payload),
		CreatedAt: now.Format(time.RFC3339Nano),
		UpdatedAt: now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return core.UnmatchedInvoice{}, fmt.Errorf("enqueue unmatched invoice: %w", err)
	}

	slog.WarnContext(ctx, "Invoice queued as unmatched", "queue_id", item.ID, "invoice_id", inv.ID)
	return item, nil
}

// ListUnmatched implements sheets.InvoiceStore
func (r *SQLiteRepository) ListUnmatched(ctx context.Context, limit int) ([]core.UnmatchedInvoice, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.queries.ListUnmatched(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list unmatched invoices: %w", err)
	}

	items := make([]core.UnmatchedInvoice, 0, len(rows))
	for _, row := range rows {
		var inv core.InvoiceRecord
		if err := json.Unmarshal([]byte(row.Payload), &inv); err != nil {
			slog.WarnContext(ctx, "Skipping unreadable unmatched invoice", "queue_id", row.ID, "error", err)
			continue
		}
		created, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
		updated, _ := time.Parse(time.RFC3339Nano, row.UpdatedAt)
		items = append(items, core.UnmatchedInvoice{
			ID:        row.ID,
			Invoice:   inv,
			Attempts:  int(row.Attempts),
			CreatedAt: created,
			UpdatedAt: updated,
		})
	}
	return items, nil
}

// TouchUnmatched implements sheets.InvoiceStore
func (r *SQLiteRepository) TouchUnmatched(ctx context.Context, id string) error {
	n, err := r.queries.IncrementUnmatchedAttempts(ctx, id, r.stamp())
	if err != nil {
		return fmt.Errorf("touch unmatched invoice %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("unmatched invoice %s: %w", id, sheets.ErrNotFound)
	}
	return nil
}

// RemoveUnmatched implements sheets.InvoiceStore
func (r *SQLiteRepository) RemoveUnmatched(ctx context.Context, id string) error {
	n, err := r.queries.DeleteUnmatched(ctx, id)
	if err != nil {
		return fmt.Errorf("remove unmatched invoice %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("unmatched invoice %s: %w", id, sheets.ErrNotFound)
	}
	slog.InfoContext(ctx, "Unmatched invoice removed from queue", "queue_id", id)
	return nil
}
