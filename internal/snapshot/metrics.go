package snapshot

import (
	"math"

	"finanzas/internal/core"
)

const (
	atRiskPercent = 90.0
	overPercent   = 100.0
)

// allocate distributes budget over the top-level rows: proportionally to
// forecast when there is any forecast, equally otherwise. A nil budget
// leaves every row unset.
func allocate(rows []core.SnapshotRow, budget *float64) {
	if budget == nil || len(rows) == 0 {
		return
	}
	total := 0.0
	for _, r := range rows {
		total += r.Forecast
	}
	for i := range rows {
		rows[i].BudgetSet = true
		if total > 0 {
			rows[i].Budget = rows[i].Forecast / total * *budget
		} else {
			rows[i].Budget = *budget / float64(len(rows))
		}
	}
}

// derive fills variances and status on a row and its children.
func derive(row *core.SnapshotRow) {
	row.VarianceBudget = row.Forecast - row.Budget
	row.VarianceBudgetPercent = percent(row.VarianceBudget, row.Budget)
	row.VarianceForecast = row.Actual - row.Forecast
	row.VarianceForecastPercent = percent(row.VarianceForecast, row.Forecast)
	row.Status = Classify(row.Budget, row.Forecast, row.Actual)
	for i := range row.Children {
		derive(&row.Children[i])
	}
}

// percent returns num/den*100, or nil when den is zero.
func percent(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den * 100
	return &v
}

// Classify returns the budget status of a row. A zero budget is treated as
// unset. Consumption above 90% is at risk, except a row that lands exactly
// on its budget, which has met its target.
func Classify(budget, forecast, actual float64) core.Status {
	if budget == 0 {
		if forecast == 0 && actual == 0 {
			return core.StatusNoData
		}
		return core.StatusNoBudget
	}
	consumed := actual / budget * 100
	switch {
	case forecast-budget > varianceEpsilon || consumed > overPercent+varianceEpsilon:
		return core.StatusOverBudget
	case math.Abs(consumed-overPercent) <= varianceEpsilon:
		return core.StatusOnTrack
	case consumed > atRiskPercent:
		return core.StatusAtRisk
	default:
		return core.StatusOnTrack
	}
}
