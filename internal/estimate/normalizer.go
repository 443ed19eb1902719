// Package estimate projects user-entered estimate rows onto the canonical
// cost taxonomy before they leave the engine.
package estimate

import (
	"errors"
	"fmt"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/rubros"
)

// Mode selects how unresolved rubros are handled.
type Mode int

const (
	// Strict rejects any row whose rubro cannot be resolved. Used for
	// pre-submission validation.
	Strict Mode = iota
	// BestEffort keeps the original identifier of unresolved rows. Used for
	// historical data that must not be rejected retroactively.
	BestEffort
)

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case BestEffort:
		return "best-effort"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "strict" and "best-effort"; empty defaults to Strict.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "best-effort", "besteffort", "lenient":
		return BestEffort, nil
	}
	return Strict, fmt.Errorf("invalid normalization mode %q", s)
}

// ResolutionError names the raw value that could not be mapped to a rubro.
type ResolutionError struct {
	Input string
	Index int // position in a batch, -1 for a single row
}

func (e *ResolutionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("row %d: unrecognized rubro %q", e.Index, e.Input)
	}
	return fmt.Sprintf("unrecognized rubro %q", e.Input)
}

// Unwrap lets callers test with errors.Is(err, rubros.ErrUnknownRubro).
func (e *ResolutionError) Unwrap() error {
	return rubros.ErrUnknownRubro
}

// Normalize projects one raw row. In Strict mode an unresolved rubro returns
// a *ResolutionError; BestEffort never fails.
//
// When resolution succeeds description and category always come from the
// taxonomy entry. User-entered text is only a fallback for unresolved rows.
func Normalize(raw core.RawLineItem, r rubros.Resolver, mode Mode) (core.NormalizedLineItem, error) {
	raw = fillDefaults(raw)
	input := candidate(raw)

	out := core.NormalizedLineItem{
		RubroID:    input,
		Kind:       raw.Kind,
		ProjectID:  raw.ProjectID,
		Quantity:   raw.Quantity,
		UnitCost:   raw.UnitCost,
		Amount:     raw.Amount,
		Currency:   raw.Currency,
		StartMonth: raw.StartMonth,
		EndMonth:   raw.EndMonth,
	}

	if id, ok := r.Resolve(input); ok {
		if entry, found := r.FindByCanonicalID(id); found {
			id := entry.ID
			out.CanonicalID = &id
			out.Resolved = true
			out.RubroID = entry.ID
			out.Description = entry.Description
			out.Category = entry.Category
			out.Kind = entry.CostType()
			return out, nil
		}
	}

	if mode == Strict {
		return core.NormalizedLineItem{}, &ResolutionError{Input: input, Index: -1}
	}

	out.Description = firstNonEmpty(raw.Description, raw.Role, raw.Category, input)
	out.Category = raw.Category
	return out, nil
}

// NormalizeAll projects a batch through a single memoizing view of the
// registry. In Strict mode it stops at the first unresolved row and the
// returned *ResolutionError carries that row's index.
func NormalizeAll(raws []core.RawLineItem, reg *rubros.Registry, mode Mode) ([]core.NormalizedLineItem, error) {
	batch := reg.NewBatch()
	out := make([]core.NormalizedLineItem, 0, len(raws))
	for i, raw := range raws {
		item, err := Normalize(raw, batch, mode)
		if err != nil {
			var re *ResolutionError
			if errors.As(err, &re) {
				re.Index = i
			}
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// candidate picks the value to resolve: the assigned rubro id, then the
// free-text role. Category is a grouping label and never identifies a rubro.
func candidate(raw core.RawLineItem) string {
	return firstNonEmpty(raw.RubroID, raw.Role)
}

// fillDefaults is the single place optional fields get their defaults, so
// every consumer downstream sees a fully populated row.
func fillDefaults(raw core.RawLineItem) core.RawLineItem {
	raw.RubroID = strings.TrimSpace(raw.RubroID)
	raw.Role = strings.TrimSpace(raw.Role)
	raw.Category = strings.TrimSpace(raw.Category)
	raw.Description = strings.TrimSpace(raw.Description)
	raw.ProjectID = strings.TrimSpace(raw.ProjectID)
	raw.Currency = strings.ToUpper(strings.TrimSpace(raw.Currency))

	if raw.StartMonth < 1 {
		raw.StartMonth = 1
	}
	if raw.EndMonth < raw.StartMonth {
		raw.EndMonth = raw.StartMonth
	}
	if raw.Quantity == 0 {
		raw.Quantity = 1
	}
	if raw.Amount == 0 {
		raw.Amount = raw.Quantity * raw.UnitCost
	}
	if !raw.Kind.IsValid() {
		if raw.Role != "" {
			raw.Kind = core.Labor
		} else {
			raw.Kind = core.NonLabor
		}
	}
	return raw
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
