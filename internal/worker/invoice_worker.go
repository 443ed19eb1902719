package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

// Consumer delivers invoice messages. *amqp.Client implements it.
type Consumer interface {
	ConsumeInvoices(ctx context.Context, handler func(context.Context, *amqp.InvoiceReceivedMessage) error) error
}

// Config holds the retry schedule of the unmatched queue.
type Config struct {
	// RetrySchedule is a standard cron spec or descriptor such as "@every 15m".
	RetrySchedule string
	BatchSize     int
	Location      *time.Location
}

// InvoiceWorker applies invoices arriving on the queue and periodically
// retries the unmatched queue, so invoices that arrived before their
// baseline get attributed once the cells exist.
type InvoiceWorker struct {
	consumer Consumer
	invoices *services.InvoiceService
	config   Config
	logger   *log.Logger

	retryMu sync.Mutex
}

// NewInvoiceWorker wires the worker. consumer may be nil to run only the
// scheduled retries.
func NewInvoiceWorker(consumer Consumer, invoices *services.InvoiceService, config Config, logger *log.Logger) *InvoiceWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &InvoiceWorker{
		consumer: consumer,
		invoices: invoices,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleInvoiceMessage attributes the invoice of one message. Errors make
// the consumer requeue the message; attribution is idempotent by invoice id.
func (w *InvoiceWorker) HandleInvoiceMessage(ctx context.Context, msg *amqp.InvoiceReceivedMessage) error {
	w.logger.InfoContext(ctx, "Processing invoice message",
		log.FieldInvoiceID, msg.Invoice.ID,
		log.FieldUserID, msg.UserID)

	if _, err := w.invoices.Ingest(ctx, []core.InvoiceRecord{msg.Invoice}, msg.UserID); err != nil {
		return fmt.Errorf("ingest invoice %s: %w", msg.Invoice.ID, err)
	}
	return nil
}

// RetryUnmatched runs one pass over the unmatched queue. Overlapping runs
// are skipped.
func (w *InvoiceWorker) RetryUnmatched(ctx context.Context) (services.RetryResult, error) {
	if !w.retryMu.TryLock() {
		w.logger.DebugContext(ctx, "Retry already running, skipping")
		return services.RetryResult{}, nil
	}
	defer w.retryMu.Unlock()
	return w.invoices.RetryUnmatched(ctx, w.config.BatchSize)
}

// Run schedules the retries, performs one immediately and consumes
// messages until ctx is done.
func (w *InvoiceWorker) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(w.config.Location))
	_, err := c.AddFunc(w.config.RetrySchedule, func() {
		if _, err := w.RetryUnmatched(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Scheduled retry failed",
				log.FieldOperation, log.OpRetry,
				log.FieldError, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule unmatched retry %q: %w", w.config.RetrySchedule, err)
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()
	w.logger.InfoContext(ctx, "Unmatched retry scheduled",
		"schedule", w.config.RetrySchedule,
		"batch_size", w.config.BatchSize)

	if res, err := w.RetryUnmatched(ctx); err != nil {
		w.logger.WarnContext(ctx, "Startup retry failed", log.FieldError, err)
	} else if res.Resolved > 0 {
		w.logger.InfoContext(ctx, "Startup retry resolved invoices", "resolved", res.Resolved)
	}

	if w.consumer == nil {
		w.logger.InfoContext(ctx, "No AMQP consumer configured, running scheduled retries only")
		<-ctx.Done()
		return ctx.Err()
	}
	return w.consumer.ConsumeInvoices(ctx, w.HandleInvoiceMessage)
}
