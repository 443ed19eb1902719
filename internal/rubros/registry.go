package rubros

import (
	"errors"
	"fmt"
	"strings"

	"finanzas/internal/core"
)

var (
	ErrUnknownRubro   = errors.New("unknown rubro")
	ErrDuplicateRubro = errors.New("duplicate rubro id")
	ErrAmbiguousAlias = errors.New("ambiguous alias")
)

// Resolver is the read-only lookup surface shared by the estimate
// normalizer and the invoice matcher.
type Resolver interface {
	Resolve(input string) (string, bool)
	FindByCanonicalID(id string) (core.TaxonomyEntry, bool)
}

// Registry is the in-memory taxonomy index. It is built once by New and
// never mutated afterwards, so concurrent readers need no locking.
type Registry struct {
	entries    map[string]core.TaxonomyEntry
	order      []string
	longLabels map[string]string // NormalizeKey(expenseLineText) -> id
	aliases    map[string]string // NormalizeKey(alias) -> id
}

var _ Resolver = (*Registry)(nil)

// New builds a registry from taxonomy entries and extra alias definitions.
//
// Every authoring problem is collected and returned together: invalid or
// duplicate entries, aliases or long labels whose key points at two
// different ids, and aliases that reference an unknown id. Entry
// descriptions are indexed as implicit aliases only where no explicit
// alias claims the key and no other description competes for it.
func New(entries []core.TaxonomyEntry, extra []core.AliasDefinition) (*Registry, error) {
	r := &Registry{
		entries:    make(map[string]core.TaxonomyEntry, len(entries)),
		order:      make([]string, 0, len(entries)),
		longLabels: make(map[string]string),
		aliases:    make(map[string]string),
	}
	var errs []error

	for _, e := range entries {
		e.ID = strings.TrimSpace(e.ID)
		if err := e.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.entries[e.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateRubro, e.ID))
			continue
		}
		r.entries[e.ID] = e
		r.order = append(r.order, e.ID)
	}

	for _, id := range r.order {
		e := r.entries[id]
		if e.ExpenseLineText == "" {
			continue
		}
		if err := claim(r.longLabels, e.ExpenseLineText, id); err != nil {
			errs = append(errs, fmt.Errorf("expense line text: %w", err))
		}
	}

	for _, id := range r.order {
		if err := claim(r.aliases, id, id); err != nil {
			errs = append(errs, fmt.Errorf("rubro id: %w", err))
		}
	}
	for _, id := range r.order {
		for _, alias := range r.entries[id].Aliases {
			if err := claim(r.aliases, alias, id); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, def := range extra {
		id := strings.TrimSpace(def.ID)
		if _, ok := r.entries[id]; !ok {
			errs = append(errs, fmt.Errorf("alias %q: %w: %s", def.Alias, ErrUnknownRubro, def.ID))
			continue
		}
		if err := claim(r.aliases, def.Alias, id); err != nil {
			errs = append(errs, err)
		}
	}

	descriptions := make(map[string]string)
	contested := make(map[string]bool)
	for _, id := range r.order {
		key := NormalizeKey(r.entries[id].Description)
		if key == "" || contested[key] {
			continue
		}
		if prev, ok := descriptions[key]; ok && prev != id {
			delete(descriptions, key)
			contested[key] = true
			continue
		}
		descriptions[key] = id
	}
	for key, id := range descriptions {
		if _, taken := r.aliases[key]; !taken {
			r.aliases[key] = id
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("build taxonomy registry: %w", errors.Join(errs...))
	}
	return r, nil
}

// claim registers raw under its normalized key. Re-registering the same id
// is a no-op; a different id is an ambiguity.
func claim(index map[string]string, raw, id string) error {
	key := NormalizeKey(raw)
	if key == "" {
		return nil
	}
	if prev, ok := index[key]; ok && prev != id {
		return fmt.Errorf("%w: %q maps to both %s and %s", ErrAmbiguousAlias, raw, prev, id)
	}
	index[key] = id
	return nil
}

// Resolve returns the canonical id for input. Resolution order: an exact
// taxonomy id, then an exact long-label (expense line text) match, then the
// alias table. The long label wins over an alias because it is the less
// ambiguous of the two.
func (r *Registry) Resolve(input string) (string, bool) {
	if input == "" {
		return "", false
	}
	if _, ok := r.entries[input]; ok {
		return input, true
	}
	if trimmed := strings.TrimSpace(input); trimmed != input {
		if _, ok := r.entries[trimmed]; ok {
			return trimmed, true
		}
	}
	key := NormalizeKey(input)
	if key == "" {
		return "", false
	}
	if id, ok := r.longLabels[key]; ok {
		return id, true
	}
	if id, ok := r.aliases[key]; ok {
		return id, true
	}
	return "", false
}

// FindByCanonicalID looks up an entry by its exact id.
func (r *Registry) FindByCanonicalID(id string) (core.TaxonomyEntry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Entries returns the taxonomy in load order.
func (r *Registry) Entries() []core.TaxonomyEntry {
	out := make([]core.TaxonomyEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// Categories returns an id -> category map for cost-type inference.
func (r *Registry) Categories() map[string]string {
	out := make(map[string]string, len(r.entries))
	for id, e := range r.entries {
		out[id] = e.Category
	}
	return out
}

// Len returns the number of rubros.
func (r *Registry) Len() int {
	return len(r.order)
}

// AliasCount returns the number of distinct alias keys, implicit ones included.
func (r *Registry) AliasCount() int {
	return len(r.aliases)
}
