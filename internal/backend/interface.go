package backend

import (
	"context"

	"finanzas/internal/sheets"
)

// Store is the persistence a backend provides for cells and invoices.
type Store interface {
	sheets.CellStore
	sheets.InvoiceStore
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the taxonomy source, the store and an optional
// cleanup function.
type BackendResult struct {
	Taxonomy sheets.TaxonomyReader
	Store    Store
	Cleanup  CleanupFunc
}

// Close runs Cleanup when set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// TaxonomyFile overrides the taxonomy of the memory and sqlite
	// backends. Empty means the built-in catalog (or DataDirectory for
	// memory).
	TaxonomyFile string

	// SQLite specific; also the store of the sheets backend
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID   string
	GoogleTaxonomySheet   string
	GoogleAliasSheet      string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
