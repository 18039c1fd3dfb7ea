// Package memory is an in-process LedgerExporter. It keeps the rows of the
// last export, which is what tests and dry runs want to inspect.
package memory

import (
	"context"
	"sync"

	"budget/internal/core"
	"budget/internal/sheets"
)

var _ sheets.LedgerExporter = (*Exporter)(nil)

type Exporter struct {
	mu      sync.Mutex
	rows    [][]any
	exports int
	err     error
}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ExportLedger(_ context.Context, entries []core.Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.rows = sheets.LedgerRows(entries)
	e.exports++
	return nil
}

// Rows returns a copy of the last exported rows.
func (e *Exporter) Rows() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]any, len(e.rows))
	copy(out, e.rows)
	return out
}

// Exports counts successful exports.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}

// SetErr makes subsequent exports fail with err, or succeed again when nil.
func (e *Exporter) SetErr(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}
