package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/reconcile"
	"finanzas/internal/rubros"
	"finanzas/internal/sheets"
)

// ErrNoPublisher is returned by Submit when no broker is configured.
var ErrNoPublisher = errors.New("no publisher configured")

// Publisher emits invoice events. *amqp.Client implements it.
type Publisher interface {
	PublishInvoiceReceived(ctx context.Context, inv core.InvoiceRecord, userID string) error
	PublishInvoiceUnmatched(ctx context.Context, item core.UnmatchedInvoice) error
}

// IngestResult reports what happened to each invoice of a batch.
type IngestResult struct {
	Applied    []reconcile.Attribution `json:"applied"`
	Skipped    []string                `json:"skipped"`
	Unmatched  []core.UnmatchedInvoice `json:"unmatched"`
	Duplicates []string                `json:"duplicates"`
}

// RetryResult summarizes one pass over the unmatched queue.
type RetryResult struct {
	Resolved int `json:"resolved"`
	Pending  int `json:"pending"`
}

// InvoiceService attributes incoming invoices to forecast cells. Matched
// invoices are applied once by id; the rest are parked in the unmatched
// queue and announced on the publisher.
type InvoiceService struct {
	cells     sheets.CellStore
	invoices  sheets.InvoiceStore
	registry  *rubros.Registry
	publisher Publisher
	logger    *log.Logger
	events    *log.StructuredLogger
	onChange  func()
}

// NewInvoiceService wires the service. publisher may be nil.
func NewInvoiceService(cells sheets.CellStore, invoices sheets.InvoiceStore, registry *rubros.Registry, publisher Publisher, logger *log.Logger) *InvoiceService {
	if logger == nil {
		logger = log.Discard()
	}
	return &InvoiceService{
		cells:     cells,
		invoices:  invoices,
		registry:  registry,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentInvoice),
		events:    log.NewStructuredLogger(logger),
	}
}

// OnChange registers fn to run after actuals change.
func (s *InvoiceService) OnChange(fn func()) {
	s.onChange = fn
}

func (s *InvoiceService) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Submit hands invoices to the worker through the publisher. Invoices
// without an id get one first so redeliveries stay idempotent.
func (s *InvoiceService) Submit(ctx context.Context, invoices []core.InvoiceRecord, userID string) ([]string, error) {
	if s.publisher == nil {
		return nil, fmt.Errorf("submit invoices: %w", ErrNoPublisher)
	}
	invoices = withIDs(invoices)
	ids := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		if err := s.publisher.PublishInvoiceReceived(ctx, inv, userID); err != nil {
			return ids, fmt.Errorf("publish invoice %s: %w", inv.ID, err)
		}
		ids = append(ids, inv.ID)
	}
	return ids, nil
}

// Ingest matches invoices against the stored cells, applies the matches and
// queues the rest.
func (s *InvoiceService) Ingest(ctx context.Context, invoices []core.InvoiceRecord, userID string) (IngestResult, error) {
	invoices = withIDs(invoices)
	result := IngestResult{}
	if len(invoices) == 0 {
		return result, nil
	}

	cells, err := s.loadCells(ctx, invoices)
	if err != nil {
		return result, err
	}

	attributed := reconcile.Attribute(cells, invoices, s.registry.NewBatch())
	result.Duplicates = attributed.Duplicates

	byID := make(map[string]core.InvoiceRecord, len(invoices))
	for _, inv := range invoices {
		if _, ok := byID[inv.ID]; !ok {
			byID[inv.ID] = inv
		}
	}

	// Unmatched invoices are parked first so a failed apply cannot drop them.
	for _, inv := range attributed.Unmatched {
		item, err := s.park(ctx, inv)
		if err != nil {
			return result, err
		}
		result.Unmatched = append(result.Unmatched, item)
	}

	changed := false
	for _, a := range attributed.Matched {
		cell := cells[a.CellIndex]
		applied, err := s.invoices.ApplyInvoice(ctx, byID[a.InvoiceID], cell)
		if err != nil {
			if changed {
				s.changed()
			}
			return result, fmt.Errorf("apply invoice %s: %w", a.InvoiceID, err)
		}
		if !applied {
			result.Skipped = append(result.Skipped, a.InvoiceID)
			continue
		}
		changed = true
		result.Applied = append(result.Applied, a)
		s.events.LogInvoiceApplied(ctx, a.InvoiceID, cell.ProjectID, reconcile.CellCode(cell), cell.Month, string(a.Reason))
	}
	if changed {
		s.changed()
	}

	s.logger.InfoContext(ctx, "Invoices ingested",
		log.FieldOperation, log.OpReconcile,
		log.FieldUserID, userID,
		"applied", len(result.Applied),
		"skipped", len(result.Skipped),
		"unmatched", len(result.Unmatched),
		"duplicates", len(result.Duplicates))
	return result, nil
}

func (s *InvoiceService) park(ctx context.Context, inv core.InvoiceRecord) (core.UnmatchedInvoice, error) {
	item, err := s.invoices.EnqueueUnmatched(ctx, inv)
	if err != nil {
		return item, fmt.Errorf("queue unmatched invoice %s: %w", inv.ID, err)
	}
	s.events.LogInvoiceUnmatched(ctx, inv.ID, inv.ProjectID, inv.Month)

	if s.publisher == nil {
		return item, nil
	}
	// The queue row is the source of truth; a lost notification is only logged.
	if err := s.publisher.PublishInvoiceUnmatched(ctx, item); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish unmatched invoice",
			log.FieldInvoiceID, inv.ID,
			log.FieldError, err)
	}
	return item, nil
}

// RetryUnmatched re-runs matching for up to limit queued invoices. Matched
// ones are applied and removed; the others get their attempt count bumped.
func (s *InvoiceService) RetryUnmatched(ctx context.Context, limit int) (RetryResult, error) {
	var res RetryResult
	queued, err := s.invoices.ListUnmatched(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("list unmatched: %w", err)
	}
	if len(queued) == 0 {
		return res, nil
	}

	invs := make([]core.InvoiceRecord, len(queued))
	for i, q := range queued {
		invs[i] = q.Invoice
	}
	cells, err := s.loadCells(ctx, invs)
	if err != nil {
		return res, err
	}

	batch := s.registry.NewBatch()
	for _, q := range queued {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		attributed := reconcile.Attribute(cells, []core.InvoiceRecord{q.Invoice}, batch)
		if len(attributed.Matched) == 0 {
			if err := s.invoices.TouchUnmatched(ctx, q.ID); err != nil {
				return res, fmt.Errorf("touch unmatched %s: %w", q.ID, err)
			}
			res.Pending++
			continue
		}

		a := attributed.Matched[0]
		cell := cells[a.CellIndex]
		applied, err := s.invoices.ApplyInvoice(ctx, q.Invoice, cell)
		if err != nil {
			return res, fmt.Errorf("apply invoice %s: %w", q.Invoice.ID, err)
		}
		if err := s.invoices.RemoveUnmatched(ctx, q.ID); err != nil {
			return res, fmt.Errorf("remove unmatched %s: %w", q.ID, err)
		}
		res.Resolved++
		if applied {
			s.events.LogInvoiceApplied(ctx, q.Invoice.ID, cell.ProjectID, reconcile.CellCode(cell), cell.Month, string(a.Reason))
		}
	}
	if res.Resolved > 0 {
		s.changed()
	}

	s.logger.InfoContext(ctx, "Unmatched queue retried",
		log.FieldOperation, log.OpRetry,
		"resolved", res.Resolved,
		"pending", res.Pending)
	return res, nil
}

// ListUnmatched returns the parked invoices, oldest first.
func (s *InvoiceService) ListUnmatched(ctx context.Context, limit int) ([]core.UnmatchedInvoice, error) {
	return s.invoices.ListUnmatched(ctx, limit)
}

// loadCells fetches the months the invoices name, concurrently. Any invoice
// without a month needs every cell.
func (s *InvoiceService) loadCells(ctx context.Context, invoices []core.InvoiceRecord) ([]core.ForecastCell, error) {
	months := make(map[int]bool)
	for _, inv := range invoices {
		if inv.Month <= 0 {
			cells, err := s.cells.ListCells(ctx, 0)
			if err != nil {
				return nil, fmt.Errorf("list cells: %w", err)
			}
			return cells, nil
		}
		months[inv.Month] = true
	}

	ordered := make([]int, 0, len(months))
	for m := range months {
		ordered = append(ordered, m)
	}
	sort.Ints(ordered)

	perMonth := make([][]core.ForecastCell, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range ordered {
		g.Go(func() error {
			cells, err := s.cells.ListCells(gctx, m)
			if err != nil {
				return fmt.Errorf("list cells for month %d: %w", m, err)
			}
			perMonth[i] = cells
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []core.ForecastCell
	for _, cells := range perMonth {
		all = append(all, cells...)
	}
	return all, nil
}

// withIDs trims every invoice id and assigns one where it is missing, so the
// same id reaches attribution and the stores.
func withIDs(invoices []core.InvoiceRecord) []core.InvoiceRecord {
	out := make([]core.InvoiceRecord, len(invoices))
	for i, inv := range invoices {
		inv.ID = strings.TrimSpace(inv.ID)
		if inv.ID == "" {
			inv.ID = uuid.NewString()
		}
		out[i] = inv
	}
	return out
}
