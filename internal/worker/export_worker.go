// Package worker mirrors the ledger into a spreadsheet whenever the server
// announces a replace.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budget/internal/amqp"
	"budget/internal/log"
	"budget/internal/ports"
	"budget/internal/sheets"
)

// ExportWorker rewrites the whole sheet from the store on every event.
//
// An event is published after its write commits, so an export triggered by
// an event stamped T has read every write announced before T. Later events
// stamped before T are skipped. Only event timestamps are compared, so the
// worker's clock never decides what is stale.
type ExportWorker struct {
	entries  ports.EntryRepository
	exporter sheets.LedgerExporter
	logger   *log.Logger

	mu sync.Mutex
	// covered is the newest event timestamp whose export succeeded.
	covered time.Time
}

func NewExportWorker(entries ports.EntryRepository, exporter sheets.LedgerExporter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		entries:  entries,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEntriesReplaced is the amqp.Handler for ledger events. A returned
// error makes the consumer requeue the message once.
func (w *ExportWorker) HandleEntriesReplaced(ctx context.Context, msg *amqp.EntriesReplacedMessage) error {
	w.mu.Lock()
	covered := w.covered
	w.mu.Unlock()

	if msg.Timestamp.Before(covered) {
		w.logger.DebugContext(ctx, "Skipping event already covered by a later export",
			"event_timestamp", msg.Timestamp, "covered_until", covered)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing entries replaced event",
		log.NewFields().WithEntriesCount(msg.Count).WithUser("", msg.ReplacedBy).WithOperation(log.OpConsume).ToSlice()...)
	if err := w.ExportNow(ctx); err != nil {
		return err
	}

	w.mu.Lock()
	if msg.Timestamp.After(w.covered) {
		w.covered = msg.Timestamp
	}
	w.mu.Unlock()
	return nil
}

// ExportNow loads the current ledger and writes it out.
func (w *ExportWorker) ExportNow(ctx context.Context) error {
	entries, err := w.entries.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	if err := w.exporter.ExportLedger(ctx, entries); err != nil {
		w.logger.ErrorContext(ctx, "Ledger export failed",
			log.NewFields().WithOperation(log.OpExport).WithError(err, log.ErrorTypeUpstream).ToSlice()...)
		return fmt.Errorf("export ledger: %w", err)
	}

	w.logger.InfoContext(ctx, "Ledger exported",
		log.NewFields().WithOperation(log.OpExport).WithEntriesCount(len(entries)).ToSlice()...)
	return nil
}
