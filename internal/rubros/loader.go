package rubros

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"finanzas/internal/core"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// File is the on-disk layout of a taxonomy registry.
type File struct {
	Rubros  []core.TaxonomyEntry   `yaml:"rubros"`
	Aliases []core.AliasDefinition `yaml:"aliases"`
}

// Parse decodes a YAML registry. Unknown keys are rejected so typos in the
// source configuration surface at startup.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("decode taxonomy yaml: %w", err)
	}
	return f, nil
}

// Build parses a YAML registry and indexes it.
func Build(data []byte) (*Registry, error) {
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return New(f.Rubros, f.Aliases)
}

// LoadFile reads and builds the registry at path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	return Build(data)
}

// DefaultCatalog returns the raw built-in taxonomy.
func DefaultCatalog() (File, error) {
	return Parse(defaultCatalog)
}

// Default builds the registry from the built-in catalog.
func Default() (*Registry, error) {
	return Build(defaultCatalog)
}
