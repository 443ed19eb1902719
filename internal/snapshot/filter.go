package snapshot

import (
	"math"
	"sort"
	"strings"

	"finanzas/internal/core"
)

// varianceEpsilon absorbs float noise from proportional allocation.
const varianceEpsilon = 1e-9

// Filters narrow the visible rows. Zero values disable each filter.
type Filters struct {
	CostType     core.CostType
	Search       string
	OnlyVariance bool
}

func (f Filters) apply(rows []core.SnapshotRow) []core.SnapshotRow {
	if f.CostType != "" {
		rows = keep(rows, func(r core.SnapshotRow) bool { return r.CostType == f.CostType }, false)
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		rows = keep(rows, func(r core.SnapshotRow) bool {
			return strings.Contains(strings.ToLower(r.Name), q) ||
				strings.Contains(strings.ToLower(r.Code), q)
		}, true)
	}
	if f.OnlyVariance {
		rows = keep(rows, hasVariance, false)
	}
	return rows
}

// keep retains a parent that matches itself or has a matching child.
// Non-matching children are pruned, unless the parent matched and
// parentKeepsAll is set.
func keep(rows []core.SnapshotRow, match func(core.SnapshotRow) bool, parentKeepsAll bool) []core.SnapshotRow {
	out := rows[:0:0]
	for _, r := range rows {
		self := match(r)
		if self && parentKeepsAll {
			out = append(out, r)
			continue
		}
		var children []core.SnapshotRow
		for _, ch := range r.Children {
			if match(ch) {
				children = append(children, ch)
			}
		}
		if !self && len(children) == 0 {
			continue
		}
		r.Children = children
		out = append(out, r)
	}
	return out
}

func hasVariance(r core.SnapshotRow) bool {
	return math.Abs(r.VarianceBudget) > varianceEpsilon ||
		math.Abs(r.VarianceForecast) > varianceEpsilon
}

// sortByDeviation orders top-level rows by absolute budget variance,
// largest first. Ties keep their key order.
func sortByDeviation(rows []core.SnapshotRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return math.Abs(rows[i].VarianceBudget) > math.Abs(rows[j].VarianceBudget)
	})
}
