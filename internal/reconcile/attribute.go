package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
	"finanzas/internal/rubros"
)

// Attribution records one invoice applied to one cell.
type Attribution struct {
	InvoiceID string          `json:"invoiceId"`
	CellIndex int             `json:"-"`
	CellKey   string          `json:"cellKey"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    Reason          `json:"reason"`
}

// Result is the outcome of attributing a batch of invoices.
type Result struct {
	// Cells is a copy of the input with actuals increased.
	Cells      []core.ForecastCell
	Matched    []Attribution
	Unmatched  []core.InvoiceRecord
	Duplicates []string
}

func rank(r Reason) int {
	switch r {
	case ByLineItemID:
		return 3
	case ByCanonicalID:
		return 2
	case ByDescription:
		return 1
	}
	return 0
}

// Attribute applies each invoice to its best matching cell. An invoice with
// a month only considers cells of that month. When several cells match, the
// strongest check wins (line-item id, then canonical id, then description)
// and ties go to the earliest cell. Each invoice adds its amount exactly once;
// a repeated invoice id in the batch is reported in Duplicates and skipped.
// Invoices with no matching cell are returned in Unmatched, untouched.
func Attribute(cells []core.ForecastCell, invoices []core.InvoiceRecord, r rubros.Resolver) Result {
	res := Result{Cells: append([]core.ForecastCell(nil), cells...)}
	seen := make(map[string]bool, len(invoices))

	for _, inv := range invoices {
		id := strings.TrimSpace(inv.ID)
		if id != "" {
			if seen[id] {
				res.Duplicates = append(res.Duplicates, id)
				continue
			}
			seen[id] = true
		}

		best, bestReason := -1, NoMatch
		for i, cell := range res.Cells {
			if inv.Month > 0 && cell.Month != inv.Month {
				continue
			}
			reason := Explain(inv, cell, r)
			if rank(reason) > rank(bestReason) {
				best, bestReason = i, reason
				if reason == ByLineItemID {
					break
				}
			}
		}
		if best < 0 {
			res.Unmatched = append(res.Unmatched, inv)
			continue
		}

		cell := &res.Cells[best]
		cell.Actual = decimal.NewFromFloat(cell.Actual).Add(inv.Amount.Decimal).InexactFloat64()
		res.Matched = append(res.Matched, Attribution{
			InvoiceID: id,
			CellIndex: best,
			CellKey:   cell.Key(),
			Amount:    inv.Amount.Decimal,
			Reason:    bestReason,
		})
	}
	return res
}

// MatchedTotal sums the amounts of all matched invoices.
func (r Result) MatchedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Matched {
		total = total.Add(a.Amount)
	}
	return total
}
