package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type ForecastCellRow struct {
	ProjectID   string
	RubroID     string
	Month       int64
	LineItemID  string
	CanonicalID string
	RubroCode   string
	ProjectName string
	Description string
	Category    string
	Planned     float64
	Forecast    float64
	Actual      float64
	UpdatedAt   string
}

const upsertCell = `
INSERT INTO forecast_cells (
    project_id, rubro_id, month, line_item_id, canonical_id, rubro_code,
    project_name, description, category, planned, forecast, actual, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (project_id, rubro_id, month) DO UPDATE SET
    line_item_id = excluded.line_item_id,
    canonical_id = excluded.canonical_id,
    rubro_code   = excluded.rubro_code,
    project_name = excluded.project_name,
    description  = excluded.description,
    category     = excluded.category,
    planned      = excluded.planned,
    forecast     = excluded.forecast,
    updated_at   = excluded.updated_at
`

type UpsertCellParams = ForecastCellRow

func (q *Queries) UpsertCell(ctx context.Context, arg UpsertCellParams) error {
	_, err := q.db.ExecContext(ctx, upsertCell,
		arg.ProjectID,
		arg.RubroID,
		arg.Month,
		arg.LineItemID,
		arg.CanonicalID,
		arg.RubroCode,
		arg.ProjectName,
		arg.Description,
		arg.Category,
		arg.Planned,
		arg.Forecast,
		arg.Actual,
		arg.UpdatedAt,
	)
	return err
}

const cellColumns = `project_id, rubro_id, month, line_item_id, canonical_id, rubro_code,
    project_name, description, category, planned, forecast, actual, updated_at`

const listCellsByMonth = `SELECT ` + cellColumns + `
FROM forecast_cells WHERE month = ?
ORDER BY project_id, rubro_id`

func (q *Queries) ListCellsByMonth(ctx context.Context, month int64) ([]ForecastCellRow, error) {
	return q.queryCells(ctx, listCellsByMonth, month)
}

const listAllCells = `SELECT ` + cellColumns + `
FROM forecast_cells
ORDER BY month, project_id, rubro_id`

func (q *Queries) ListAllCells(ctx context.Context) ([]ForecastCellRow, error) {
	return q.queryCells(ctx, listAllCells)
}

func (q *Queries) queryCells(ctx context.Context, query string, args ...interface{}) ([]ForecastCellRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ForecastCellRow
	for rows.Next() {
		var i ForecastCellRow
		if err := rows.Scan(
			&i.ProjectID,
			&i.RubroID,
			&i.Month,
			&i.LineItemID,
			&i.CanonicalID,
			&i.RubroCode,
			&i.ProjectName,
			&i.Description,
			&i.Category,
			&i.Planned,
			&i.Forecast,
			&i.Actual,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCellActual = `SELECT actual FROM forecast_cells
WHERE project_id = ? AND rubro_id = ? AND month = ?`

func (q *Queries) GetCellActual(ctx context.Context, projectID, rubroID string, month int64) (float64, error) {
	row := q.db.QueryRowContext(ctx, getCellActual, projectID, rubroID, month)
	var actual float64
	err := row.Scan(&actual)
	return actual, err
}

const setCellActual = `UPDATE forecast_cells SET actual = ?, updated_at = ?
WHERE project_id = ? AND rubro_id = ? AND month = ?`

type SetCellActualParams struct {
	Actual    float64
	UpdatedAt string
	ProjectID string
	RubroID   string
	Month     int64
}

func (q *Queries) SetCellActual(ctx context.Context, arg SetCellActualParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, setCellActual,
		arg.Actual,
		arg.UpdatedAt,
		arg.ProjectID,
		arg.RubroID,
		arg.Month,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const upsertMonthBudget = `
INSERT INTO month_budgets (month, amount, updated_at) VALUES (?, ?, ?)
ON CONFLICT (month) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at
`

func (q *Queries) UpsertMonthBudget(ctx context.Context, month int64, amount float64, updatedAt string) error {
	_, err := q.db.ExecContext(ctx, upsertMonthBudget, month, amount, updatedAt)
	return err
}

const getMonthBudget = `SELECT amount FROM month_budgets WHERE month = ?`

func (q *Queries) GetMonthBudget(ctx context.Context, month int64) (float64, error) {
	row := q.db.QueryRowContext(ctx, getMonthBudget, month)
	var amount float64
	err := row.Scan(&amount)
	return amount, err
}

const insertInvoice = `
INSERT INTO invoices (id, project_id, rubro_id, month, amount, payload, applied_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING
`

type InsertInvoiceParams struct {
	ID        string
	ProjectID string
	RubroID   string
	Month     int64
	Amount    string
	Payload   string
	AppliedAt string
}

// InsertInvoice returns the number of inserted rows: 0 for a known id.
func (q *Queries) InsertInvoice(ctx context.Context, arg InsertInvoiceParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertInvoice,
		arg.ID,
		arg.ProjectID,
		arg.RubroID,
		arg.Month,
		arg.Amount,
		arg.Payload,
		arg.AppliedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type UnmatchedInvoiceRow struct {
	ID        string
	InvoiceID string
	Payload   string
	Attempts  int64
	CreatedAt string
	UpdatedAt string
}

const insertUnmatched = `
INSERT INTO unmatched_invoices (id, invoice_id, payload, attempts, created_at, updated_at)
VALUES (?, ?, ?, 0, ?, ?)
`

func (q *Queries) InsertUnmatched(ctx context.Context, arg UnmatchedInvoiceRow) error {
	_, err := q.db.ExecContext(ctx, insertUnmatched,
		arg.ID,
		arg.InvoiceID,
		arg.Payload,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const listUnmatched = `
SELECT id, invoice_id, payload, attempts, created_at, updated_at
FROM unmatched_invoices
ORDER BY created_at, id
LIMIT ?
`

func (q *Queries) ListUnmatched(ctx context.Context, limit int64) ([]UnmatchedInvoiceRow, error) {
	rows, err := q.db.QueryContext(ctx, listUnmatched, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UnmatchedInvoiceRow
	for rows.Next() {
		var i UnmatchedInvoiceRow
		if err := rows.Scan(
			&i.ID,
			&i.InvoiceID,
			&i.Payload,
			&i.Attempts,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const incrementUnmatchedAttempts = `
UPDATE unmatched_invoices SET attempts = attempts + 1, updated_at = ? WHERE id = ?
`

func (q *Queries) IncrementUnmatchedAttempts(ctx context.Context, id, updatedAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx, incrementUnmatchedAttempts, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteUnmatched = `DELETE FROM unmatched_invoices WHERE id = ?`

func (q *Queries) DeleteUnmatched(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteUnmatched, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
