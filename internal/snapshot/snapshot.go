// Package snapshot aggregates forecast cells into the monthly report tree:
// grouping, budget allocation, variance and status, then filtering and
// ordering. Build is a pure function; it never fails and never performs I/O.
package snapshot

import "finanzas/internal/core"

// Options parameterize one aggregation.
type Options struct {
	Month   int
	GroupBy core.GroupMode
	// Budget is the month's total budget. Nil disables allocation and every
	// row reports BudgetSet false.
	Budget *float64
	// Categories maps a canonical id to its category label and feeds
	// cost-type inference for cells without an explicit category.
	Categories map[string]string
	Filters    Filters
}

// Build runs the four stages over cells and returns the top-level rows.
// An invalid grouping mode falls back to grouping by project.
//
// Only top-level rows receive a share of the budget. Filters decide which
// rows are visible; they do not change the figures of a kept parent.
func Build(cells []core.ForecastCell, opts Options) []core.SnapshotRow {
	mode := opts.GroupBy
	if !mode.IsValid() {
		mode = core.GroupByProject
	}

	rows := build(cells, opts.Month, mode, opts.Categories)
	allocate(rows, opts.Budget)
	for i := range rows {
		derive(&rows[i])
	}
	rows = opts.Filters.apply(rows)
	sortByDeviation(rows)
	return rows
}

// Budget returns a pointer suitable for Options.Budget.
func Budget(v float64) *float64 {
	return &v
}

// Totals summarizes top-level rows into one row for headline figures. Its
// variances and status are derived the same way as any other row.
func Totals(rows []core.SnapshotRow) core.SnapshotRow {
	t := core.SnapshotRow{Key: "total", Name: "Total", CostType: core.NonLabor}
	for i, r := range rows {
		t.Planned += r.Planned
		t.Budget += r.Budget
		t.Forecast += r.Forecast
		t.Actual += r.Actual
		t.BudgetSet = t.BudgetSet || r.BudgetSet
		switch {
		case i == 0:
			t.CostType = r.CostType
		case t.CostType != r.CostType:
			t.CostType = core.Mixed
		}
	}
	derive(&t)
	return t
}
