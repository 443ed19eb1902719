package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"finanzas/internal/cache"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/rubros"
	"finanzas/internal/sheets"
	"finanzas/internal/snapshot"
)

// SnapshotRequest selects one monthly report.
type SnapshotRequest struct {
	Month   int
	GroupBy core.GroupMode
	Filters snapshot.Filters
}

func (r SnapshotRequest) key() string {
	return fmt.Sprintf("%d|%s|%s|%s|%t",
		r.Month, r.GroupBy, r.Filters.CostType, strings.ToLower(strings.TrimSpace(r.Filters.Search)), r.Filters.OnlyVariance)
}

// SnapshotResult is the report tree plus its totals row.
type SnapshotResult struct {
	Month   int                `json:"month"`
	GroupBy core.GroupMode     `json:"groupBy"`
	Budget  *float64           `json:"budget"`
	Rows    []core.SnapshotRow `json:"rows"`
	Totals  core.SnapshotRow   `json:"totals"`
}

// SnapshotService builds monthly reports from the stored cells and keeps
// recent results in a cache that every write invalidates.
type SnapshotService struct {
	store      sheets.CellStore
	categories map[string]string
	registry   *rubros.Registry
	cache      cache.Cache[SnapshotResult]
	generation atomic.Uint64
	logger     *log.Logger
}

// NewSnapshotService wires the service. c may be nil to disable caching.
func NewSnapshotService(store sheets.CellStore, registry *rubros.Registry, c cache.Cache[SnapshotResult], logger *log.Logger) *SnapshotService {
	if logger == nil {
		logger = log.Discard()
	}
	return &SnapshotService{
		store:      store,
		categories: registry.Categories(),
		registry:   registry,
		cache:      c,
		logger:     logger.WithComponent(log.ComponentSnapshot),
	}
}

// Invalidate drops every cached report.
func (s *SnapshotService) Invalidate() {
	s.generation.Add(1)
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Snapshot returns the report for req, from cache when possible.
func (s *SnapshotService) Snapshot(ctx context.Context, req SnapshotRequest) (SnapshotResult, error) {
	if req.Month < 1 {
		return SnapshotResult{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, req.Month)
	}
	if !req.GroupBy.IsValid() {
		req.GroupBy = core.GroupByProject
	}

	key := req.key()
	if s.cache != nil {
		if res, ok := s.cache.Get(key); ok {
			return res, nil
		}
	}
	gen := s.generation.Load()

	var (
		cells  []core.ForecastCell
		budget *float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if cells, err = s.store.ListCells(gctx, req.Month); err != nil {
			return fmt.Errorf("list cells: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if budget, err = s.store.MonthBudget(gctx, req.Month); err != nil {
			return fmt.Errorf("month budget: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return SnapshotResult{}, err
	}

	rows := snapshot.Build(cells, snapshot.Options{
		Month:      req.Month,
		GroupBy:    req.GroupBy,
		Budget:     budget,
		Categories: s.categories,
		Filters:    req.Filters,
	})
	res := SnapshotResult{
		Month:   req.Month,
		GroupBy: req.GroupBy,
		Budget:  budget,
		Rows:    rows,
		Totals:  snapshot.Totals(rows),
	}

	// A write during the build makes this result stale; do not cache it.
	if s.cache != nil && s.generation.Load() == gen {
		s.cache.Set(key, res)
	}
	s.logger.DebugContext(ctx, "Snapshot built",
		log.FieldOperation, log.OpSnapshot,
		log.FieldMonth, req.Month,
		log.FieldGroupBy, string(req.GroupBy),
		log.FieldRows, len(rows))
	return res, nil
}

// SetMonthBudget stores the total budget of a month.
func (s *SnapshotService) SetMonthBudget(ctx context.Context, month int, amount float64) error {
	if month < 1 {
		return fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	if amount < 0 {
		return fmt.Errorf("%w: budget must not be negative", core.ErrInvalidAmount)
	}
	if err := s.store.SetMonthBudget(ctx, month, amount); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// SaveBaseline validates cells, canonicalizes their rubro through the
// registry and stores them. Description and category come from the
// taxonomy when the rubro resolves and the cell left them empty.
func (s *SnapshotService) SaveBaseline(ctx context.Context, cells []core.ForecastCell) ([]core.ForecastCell, error) {
	batch := s.registry.NewBatch()
	out := make([]core.ForecastCell, len(cells))
	for i, c := range cells {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		raw := c.CanonicalID
		if raw == "" {
			raw = c.RubroCode
		}
		if entry, ok := batch.FindByCanonicalID(raw); ok {
			if c.RubroCode == "" && raw != entry.ID {
				c.RubroCode = raw
			}
			c.CanonicalID = entry.ID
			if c.Description == "" {
				c.Description = entry.Description
			}
			if c.Category == "" {
				c.Category = entry.Category
			}
		}
		out[i] = c
	}

	if err := s.store.SaveCells(ctx, out); err != nil {
		return nil, fmt.Errorf("save cells: %w", err)
	}
	s.Invalidate()
	s.logger.InfoContext(ctx, "Baseline saved",
		log.FieldOperation, log.OpSave,
		"cells", len(out))
	return out, nil
}
