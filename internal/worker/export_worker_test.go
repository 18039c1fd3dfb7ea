package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	sheetsmem "budget/internal/sheets/memory"
	storemem "budget/internal/storage/memory"
)

func seededStore(t *testing.T) *storemem.Store {
	t.Helper()
	store := storemem.New()
	require.NoError(t, store.ReplaceEntries(context.Background(), []core.Entry{
		{Type: core.Income, Amount: decimal.NewFromInt(100), Date: core.NewDate(2025, 1, 5), Description: "Salary"},
		{Type: core.Expense, Amount: decimal.NewFromInt(40), Date: core.NewDate(2025, 1, 7), Description: "Groceries"},
	}))
	return store
}

func TestHandleEntriesReplaced_ExportsCurrentLedger(t *testing.T) {
	exporter := sheetsmem.New()
	w := NewExportWorker(seededStore(t), exporter, log.Discard())

	err := w.HandleEntriesReplaced(context.Background(), amqp.NewEntriesReplacedMessage(2, "alice"))
	require.NoError(t, err)

	assert.Equal(t, 1, exporter.Exports())
	rows := exporter.Rows()
	// header, two entries, blank, three totals
	require.Len(t, rows, 7)
	assert.Equal(t, []any{"", "", "", "Balance", "60.00"}, rows[6])
}

func TestHandleEntriesReplaced_SkipsStaleEvents(t *testing.T) {
	exporter := sheetsmem.New()
	w := NewExportWorker(seededStore(t), exporter, nil)
	stamp := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, w.HandleEntriesReplaced(context.Background(), &amqp.EntriesReplacedMessage{Count: 2, Timestamp: stamp}))
	assert.Equal(t, 1, exporter.Exports())

	stale := &amqp.EntriesReplacedMessage{Count: 2, Timestamp: stamp.Add(-time.Minute)}
	require.NoError(t, w.HandleEntriesReplaced(context.Background(), stale))
	assert.Equal(t, 1, exporter.Exports())

	same := &amqp.EntriesReplacedMessage{Count: 2, Timestamp: stamp}
	require.NoError(t, w.HandleEntriesReplaced(context.Background(), same))
	assert.Equal(t, 2, exporter.Exports())

	fresh := &amqp.EntriesReplacedMessage{Count: 2, Timestamp: stamp.Add(time.Minute)}
	require.NoError(t, w.HandleEntriesReplaced(context.Background(), fresh))
	assert.Equal(t, 3, exporter.Exports())
}

func TestHandleEntriesReplaced_IgnoresWorkerClock(t *testing.T) {
	exporter := sheetsmem.New()
	w := NewExportWorker(seededStore(t), exporter, nil)

	// startup export, then an event from a server whose clock lags far behind
	require.NoError(t, w.ExportNow(context.Background()))
	behind := &amqp.EntriesReplacedMessage{Count: 2, Timestamp: time.Now().Add(-24 * time.Hour)}
	require.NoError(t, w.HandleEntriesReplaced(context.Background(), behind))
	assert.Equal(t, 2, exporter.Exports())

	next := &amqp.EntriesReplacedMessage{Count: 2, Timestamp: behind.Timestamp.Add(time.Second)}
	require.NoError(t, w.HandleEntriesReplaced(context.Background(), next))
	assert.Equal(t, 3, exporter.Exports())
}

func TestHandleEntriesReplaced_ReturnsExportErrors(t *testing.T) {
	exporter := sheetsmem.New()
	exporter.SetErr(errors.New("quota exceeded"))
	w := NewExportWorker(seededStore(t), exporter, nil)

	err := w.HandleEntriesReplaced(context.Background(), amqp.NewEntriesReplacedMessage(2, "alice"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 0, exporter.Exports())

	// a failed export does not mark later events as covered
	exporter.SetErr(nil)
	require.NoError(t, w.HandleEntriesReplaced(context.Background(), amqp.NewEntriesReplacedMessage(2, "alice")))
	assert.Equal(t, 1, exporter.Exports())
}
