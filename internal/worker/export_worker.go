package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"meurenda/internal/amqp"
	"meurenda/internal/log"
	"meurenda/internal/metrics"
	"meurenda/internal/ports"
	"meurenda/internal/sheets"
)

// ExportWorker mirrors records from the store into the spreadsheet. It is
// driven by broker change events and by a periodic sweep of pending
// exports that recovers from lost messages.
type ExportWorker struct {
	queue     ports.ExportQueue
	exporter  sheets.RecordExporter
	batchSize int
	logger    *log.Logger
	sl        *log.StructuredLogger

	// mu serializes event handling and sweeps so one record is never
	// appended twice by concurrent paths.
	mu sync.Mutex
}

func NewExportWorker(queue ports.ExportQueue, exporter sheets.RecordExporter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	w := &ExportWorker{
		queue:     queue,
		exporter:  exporter,
		batchSize: batchSize,
	}
	return w.WithLogger(log.Default())
}

// WithLogger replaces the logger, which defaults to slog's default.
func (w *ExportWorker) WithLogger(logger *log.Logger) *ExportWorker {
	w.logger = logger.WithComponent(log.ComponentWorker)
	w.sl = log.NewStructuredLogger(w.logger)
	return w
}

// HandleEvent processes one change event from AMQP. A returned error
// requeues the message.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.ChangeEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch ev.Type {
	case amqp.RecordCreated:
		return w.exportOne(ctx, ev.EntityID)

	case amqp.RecordDeleted:
		if err := w.exporter.DeleteRecord(ctx, ev.EntityID); err != nil {
			metrics.ExportOps.WithLabelValues("delete", "error").Inc()
			return fmt.Errorf("delete record %s from sheet: %w", ev.EntityID, err)
		}
		metrics.ExportOps.WithLabelValues("delete", "ok").Inc()
		w.logger.InfoContext(ctx, "Removed record from sheet", log.FieldRecordID, ev.EntityID)
		return nil

	case amqp.DataReset:
		if err := w.exporter.DeleteOwner(ctx, ev.OwnerID); err != nil {
			metrics.ExportOps.WithLabelValues("reset", "error").Inc()
			return fmt.Errorf("delete rows of user %s: %w", ev.OwnerID, err)
		}
		metrics.ExportOps.WithLabelValues("reset", "ok").Inc()
		w.logger.InfoContext(ctx, "Removed all rows of user from sheet", log.FieldUserID, ev.OwnerID)
		return nil

	case amqp.GoalChanged:
		// Goals are not exported.
		return nil
	}

	return fmt.Errorf("unhandled event type %q", ev.Type)
}

// exportOne appends a still-pending record. Records already exported or
// deleted since the event was published are skipped. w.mu must be held.
func (w *ExportWorker) exportOne(ctx context.Context, id string) error {
	pending, err := w.queue.ExportPending(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		w.logger.InfoContext(ctx, "Record gone before export, skipping", log.FieldRecordID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("check export status: %w", err)
	}
	if !pending {
		return nil
	}

	rec, err := w.queue.RecordByID(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}

	ref, err := w.exporter.AppendRecord(ctx, rec)
	if err != nil {
		metrics.ExportOps.WithLabelValues("append", "error").Inc()
		if markErr := w.queue.MarkExportFailed(ctx, id); markErr != nil {
			w.sl.LogError(ctx, "Failed to mark export error", markErr, log.ComponentStorage, log.OpSync,
				log.NewFields().WithRecord(id, string(rec.Kind), rec.Amount.Cents, rec.Category))
		}
		return fmt.Errorf("append to sheets: %w", err)
	}
	metrics.ExportOps.WithLabelValues("append", "ok").Inc()

	if err := w.queue.MarkExported(ctx, id, ref); err != nil {
		// The row exists; only the bookkeeping failed.
		w.sl.LogError(ctx, "Failed to mark as exported", err, log.ComponentStorage, log.OpSync,
			log.NewFields().WithRecord(id, string(rec.Kind), rec.Amount.Cents, rec.Category))
	}

	w.sl.LogSheetsAppended(ctx, rec.OwnerID, id, string(rec.Kind), rec.Amount.Cents, ref)
	return nil
}

// ProcessPending exports up to one batch of pending records and reports how
// many succeeded. Individual failures are logged and left marked failed.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processBatch(ctx, w.batchSize)
}

func (w *ExportWorker) processBatch(ctx context.Context, limit int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending, err := w.queue.PendingExports(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending exports: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending exports", log.FieldCount, len(pending))

	synced := 0
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.exportOne(ctx, rec.ID); err != nil {
			w.sl.LogError(ctx, "Failed to export record", err, log.ComponentWorker, log.OpAppend,
				log.NewFields().WithRecord(rec.ID, string(rec.Kind), rec.Amount.Cents, rec.Category).WithUser(rec.OwnerID))
			continue
		}
		synced++
	}
	return synced, nil
}

// StartupCheck retries exports that failed in a previous run and drains a
// larger batch of pending records.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	requeued, err := w.queue.RequeueFailedExports(ctx)
	if err != nil {
		return fmt.Errorf("requeue failed exports: %w", err)
	}

	synced, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup export check: %w", err)
	}

	w.logger.InfoContext(ctx, "Startup export check completed",
		"requeued", requeued,
		"synced", synced)
	return nil
}

// Run sweeps pending exports every interval until ctx is done.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				w.sl.LogError(ctx, "Periodic export sweep failed", err, log.ComponentWorker, log.OpSync, nil)
			}
		}
	}
}
