// Package reconcile matches externally reported invoices against forecast
// cells and attributes their amounts as actual cost.
package reconcile

import (
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/rubros"
)

// Reason records which check decided a match.
type Reason string

const (
	NoMatch       Reason = ""
	ProjectVeto   Reason = "project_veto"
	ByLineItemID  Reason = "line_item_id"
	ByCanonicalID Reason = "canonical_id"
	ByDescription Reason = "description"
)

// Matched reports whether the reason is a positive match.
func (r Reason) Matched() bool {
	return r == ByLineItemID || r == ByCanonicalID || r == ByDescription
}

// Resolution order for the loosely-named invoice fields. The first present,
// non-empty value wins.
var (
	invoiceCodeFields = []func(core.InvoiceRecord) string{
		func(i core.InvoiceRecord) string { return i.RubroID },
		func(i core.InvoiceRecord) string { return i.RubroIDAlt },
		func(i core.InvoiceRecord) string { return i.LineaCodigo },
		func(i core.InvoiceRecord) string { return i.CodigoRubro },
	}
	invoiceDescriptionFields = []func(core.InvoiceRecord) string{
		func(i core.InvoiceRecord) string { return i.Description },
		func(i core.InvoiceRecord) string { return i.Descripcion },
	}
	cellCodeFields = []func(core.ForecastCell) string{
		func(c core.ForecastCell) string { return c.CanonicalID },
		func(c core.ForecastCell) string { return c.RubroCode },
	}
)

func first[T any](rec T, fields []func(T) string) string {
	for _, get := range fields {
		if v := strings.TrimSpace(get(rec)); v != "" {
			return v
		}
	}
	return ""
}

// InvoiceCode returns the invoice's candidate rubro identifier.
func InvoiceCode(inv core.InvoiceRecord) string {
	return first(inv, invoiceCodeFields)
}

// InvoiceDescription returns the invoice's description in either language.
func InvoiceDescription(inv core.InvoiceRecord) string {
	return first(inv, invoiceDescriptionFields)
}

// CellCode returns the cell's candidate rubro identifier.
func CellCode(cell core.ForecastCell) string {
	return first(cell, cellCodeFields)
}

// Matches reports whether invoice belongs to cell.
func Matches(inv core.InvoiceRecord, cell core.ForecastCell, r rubros.Resolver) bool {
	return Explain(inv, cell, r).Matched()
}

// Explain runs the match checks in order and returns the first decisive one:
//
//  1. both carry a project id and they differ after trimming (case
//     included): veto, never a match
//  2. both carry a raw line-item id and they are equal
//  3. both identifiers resolve to the same canonical rubro
//  4. both descriptions normalize to the same key
//
// There is no fuzzy matching beyond case, accent, punctuation and whitespace
// folding.
func Explain(inv core.InvoiceRecord, cell core.ForecastCell, r rubros.Resolver) Reason {
	invProject := strings.TrimSpace(inv.ProjectID)
	cellProject := strings.TrimSpace(cell.ProjectID)
	if invProject != "" && cellProject != "" && invProject != cellProject {
		return ProjectVeto
	}

	invLine := strings.TrimSpace(inv.LineItemID)
	cellLine := strings.TrimSpace(cell.LineItemID)
	if invLine != "" && invLine == cellLine {
		return ByLineItemID
	}

	if r != nil {
		invCode, cellCode := InvoiceCode(inv), CellCode(cell)
		if invCode != "" && cellCode != "" {
			invCanon, okInv := r.Resolve(invCode)
			cellCanon, okCell := r.Resolve(cellCode)
			if okInv && okCell && invCanon == cellCanon {
				return ByCanonicalID
			}
		}
	}

	invDesc := rubros.NormalizeKey(InvoiceDescription(inv))
	cellDesc := rubros.NormalizeKey(cell.Description)
	if invDesc != "" && invDesc == cellDesc {
		return ByDescription
	}
	return NoMatch
}
