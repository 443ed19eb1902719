package adapters

import (
	"context"
	"fmt"
	"os"

	"finanzas/internal/core"
	"finanzas/internal/rubros"
	"finanzas/internal/sheets"
)

// TaxonomyFile adapts a YAML registry file to sheets.TaxonomyReader so any
// backend can take its taxonomy from TAXONOMY_FILE. The file is read on
// every call, so a restart picks up edits without a rebuild.
type TaxonomyFile struct {
	path string
}

var _ sheets.TaxonomyReader = (*TaxonomyFile)(nil)

func NewTaxonomyFile(path string) *TaxonomyFile {
	return &TaxonomyFile{path: path}
}

// ReadTaxonomy implements sheets.TaxonomyReader
func (a *TaxonomyFile) ReadTaxonomy(_ context.Context) ([]core.TaxonomyEntry, []core.AliasDefinition, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	f, err := rubros.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", a.path, err)
	}
	return f.Rubros, f.Aliases, nil
}

// BuiltinTaxonomy serves the embedded default catalog.
type BuiltinTaxonomy struct{}

var _ sheets.TaxonomyReader = BuiltinTaxonomy{}

// ReadTaxonomy implements sheets.TaxonomyReader
func (BuiltinTaxonomy) ReadTaxonomy(_ context.Context) ([]core.TaxonomyEntry, []core.AliasDefinition, error) {
	f, err := rubros.DefaultCatalog()
	if err != nil {
		return nil, nil, err
	}
	return f.Rubros, f.Aliases, nil
}

// LoadRegistry reads r and builds the registry. Authoring errors in the
// source are returned together.
func LoadRegistry(ctx context.Context, r sheets.TaxonomyReader) (*rubros.Registry, error) {
	entries, aliases, err := r.ReadTaxonomy(ctx)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	return rubros.New(entries, aliases)
}
