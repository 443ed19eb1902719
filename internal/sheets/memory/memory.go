package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"finanzas/internal/core"
	"finanzas/internal/rubros"
	"finanzas/internal/sheets"
)

// Store keeps cells, budgets and invoices in process memory. It also serves
// the taxonomy, either from the built-in catalog or from a YAML file.
type Store struct {
	mu        sync.Mutex
	taxonomy  rubros.File
	cells     map[string]core.ForecastCell
	budgets   map[int]float64
	applied   map[string]string // invoice id -> cell key
	unmatched []core.UnmatchedInvoice
	now       func() time.Time
}

var (
	_ sheets.TaxonomyReader = (*Store)(nil)
	_ sheets.CellStore      = (*Store)(nil)
	_ sheets.InvoiceStore   = (*Store)(nil)
)

// New returns a store serving taxonomy f.
func New(f rubros.File) *Store {
	return &Store{
		taxonomy: f,
		cells:    make(map[string]core.ForecastCell),
		budgets:  make(map[int]float64),
		applied:  make(map[string]string),
		now:      time.Now,
	}
}

// Seed is the layout of the optional seed file.
type Seed struct {
	Cells   []core.ForecastCell `yaml:"cells"`
	Budgets map[int]float64     `yaml:"budgets"`
}

// NewFromFiles builds a store from base. base/taxonomy.yaml replaces the
// built-in catalog and base/seed.yaml preloads cells and budgets; both are
// optional.
func NewFromFiles(base string) (*Store, error) {
	tax, err := rubros.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if data, err := os.ReadFile(filepath.Join(base, "taxonomy.yaml")); err == nil {
		if tax, err = rubros.Parse(data); err != nil {
			return nil, err
		}
	}
	s := New(tax)

	data, err := os.ReadFile(filepath.Join(base, "seed.yaml"))
	if err != nil {
		return s, nil
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := s.SaveCells(context.Background(), seed.Cells); err != nil {
		return nil, fmt.Errorf("seed cells: %w", err)
	}
	for month, amount := range seed.Budgets {
		if err := s.SetMonthBudget(context.Background(), month, amount); err != nil {
			return nil, fmt.Errorf("seed budgets: %w", err)
		}
	}
	return s, nil
}

// ReadTaxonomy implements sheets.TaxonomyReader
func (s *Store) ReadTaxonomy(_ context.Context) ([]core.TaxonomyEntry, []core.AliasDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.TaxonomyEntry(nil), s.taxonomy.Rubros...),
		append([]core.AliasDefinition(nil), s.taxonomy.Aliases...), nil
}

// SaveCells implements sheets.CellStore
func (s *Store) SaveCells(_ context.Context, cells []core.ForecastCell) error {
	for _, c := range cells {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("cell %s: %w", c.Key(), err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cells {
		key := c.Key()
		if prev, ok := s.cells[key]; ok {
			c.Actual = prev.Actual
		}
		s.cells[key] = c
	}
	return nil
}

// ListCells implements sheets.CellStore
func (s *Store) ListCells(_ context.Context, month int) ([]core.ForecastCell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ForecastCell, 0, len(s.cells))
	for _, c := range s.cells {
		if month == 0 || c.Month == month {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].Key() < out[j].Key()
	})
	return out, nil
}

// SetMonthBudget implements sheets.CellStore
func (s *Store) SetMonthBudget(_ context.Context, month int, amount float64) error {
	if month < 1 {
		return fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[month] = amount
	return nil
}

// MonthBudget implements sheets.CellStore
func (s *Store) MonthBudget(_ context.Context, month int) (*float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[month]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// ApplyInvoice implements sheets.InvoiceStore
func (s *Store) ApplyInvoice(_ context.Context, inv core.InvoiceRecord, cell core.ForecastCell) (bool, error) {
	id := strings.TrimSpace(inv.ID)
	if id == "" {
		return false, fmt.Errorf("invoice id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.applied[id]; done {
		return false, nil
	}
	key := cell.Key()
	stored, ok := s.cells[key]
	if !ok {
		return false, fmt.Errorf("cell %s: %w", key, sheets.ErrNotFound)
	}
	stored.Actual = decimal.NewFromFloat(stored.Actual).Add(inv.Amount.Decimal).InexactFloat64()
	s.cells[key] = stored
	s.applied[id] = key
	return true, nil
}

// EnqueueUnmatched implements sheets.InvoiceStore
func (s *Store) EnqueueUnmatched(_ context.Context, inv core.InvoiceRecord) (core.UnmatchedInvoice, error) {
	now := s.now().UTC()
	item := core.UnmatchedInvoice{ID: uuid.NewString(), Invoice: inv, CreatedAt: now, UpdatedAt: now}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmatched = append(s.unmatched, item)
	return item, nil
}

// ListUnmatched implements sheets.InvoiceStore
func (s *Store) ListUnmatched(_ context.Context, limit int) ([]core.UnmatchedInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.unmatched)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]core.UnmatchedInvoice(nil), s.unmatched[:n]...), nil
}

// TouchUnmatched implements sheets.InvoiceStore
func (s *Store) TouchUnmatched(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.unmatched {
		if s.unmatched[i].ID == id {
			s.unmatched[i].Attempts++
			s.unmatched[i].UpdatedAt = s.now().UTC()
			return nil
		}
	}
	return fmt.Errorf("unmatched invoice %s: %w", id, sheets.ErrNotFound)
}

// RemoveUnmatched implements sheets.InvoiceStore
func (s *Store) RemoveUnmatched(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.unmatched {
		if s.unmatched[i].ID == id {
			s.unmatched = append(s.unmatched[:i], s.unmatched[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("unmatched invoice %s: %w", id, sheets.ErrNotFound)
}
