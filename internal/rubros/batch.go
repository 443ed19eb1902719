package rubros

import "finanzas/internal/core"

type resolution struct {
	id string
	ok bool
}

// Batch memoizes lookups for the duration of one request or import so the
// same raw value is normalized only once. It is not safe for concurrent use;
// create one per call with Registry.NewBatch.
type Batch struct {
	reg      *Registry
	resolved map[string]resolution
	found    map[string]*core.TaxonomyEntry
}

var _ Resolver = (*Batch)(nil)

// NewBatch returns an empty memoizing view over the registry.
func (r *Registry) NewBatch() *Batch {
	return &Batch{
		reg:      r,
		resolved: make(map[string]resolution),
		found:    make(map[string]*core.TaxonomyEntry),
	}
}

// Resolve is Registry.Resolve, cached by the original input string.
func (b *Batch) Resolve(input string) (string, bool) {
	if res, ok := b.resolved[input]; ok {
		return res.id, res.ok
	}
	id, ok := b.reg.Resolve(input)
	b.resolved[input] = resolution{id: id, ok: ok}
	return id, ok
}

// FindByCanonicalID returns the entry for input, cached by the original
// input string. Input that is not an exact id is resolved first, so aliases
// and long labels find their entry too.
func (b *Batch) FindByCanonicalID(input string) (core.TaxonomyEntry, bool) {
	if e, ok := b.found[input]; ok {
		if e == nil {
			return core.TaxonomyEntry{}, false
		}
		return *e, true
	}
	e, ok := b.reg.FindByCanonicalID(input)
	if !ok {
		if id, resolved := b.Resolve(input); resolved {
			e, ok = b.reg.FindByCanonicalID(id)
		}
	}
	if !ok {
		b.found[input] = nil
		return core.TaxonomyEntry{}, false
	}
	b.found[input] = &e
	return e, true
}

// Size returns the number of distinct inputs seen so far.
func (b *Batch) Size() int {
	return len(b.resolved)
}
