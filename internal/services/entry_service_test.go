package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/amqp"
	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/storage/memory"
)

type recordingPublisher struct {
	msgs []*amqp.EntriesReplacedMessage
	err  error
}

func (p *recordingPublisher) PublishEntriesReplaced(_ context.Context, msg *amqp.EntriesReplacedMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

type countingRepo struct {
	*memory.Store
	lists      int
	replaceErr error
	// afterList runs once, after the read and before the result is returned.
	afterList func()
}

func (r *countingRepo) ListEntries(ctx context.Context) ([]core.Entry, error) {
	r.lists++
	entries, err := r.Store.ListEntries(ctx)
	if hook := r.afterList; hook != nil {
		r.afterList = nil
		hook()
	}
	return entries, err
}

func (r *countingRepo) ReplaceEntries(ctx context.Context, entries []core.Entry) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	return r.Store.ReplaceEntries(ctx, entries)
}

func newService(t *testing.T) (*EntryService, *countingRepo, *recordingPublisher) {
	t.Helper()
	repo := &countingRepo{Store: memory.New()}
	pub := &recordingPublisher{}
	svc := NewEntryService(repo, cache.NewLRUCache[[]core.Entry](4, time.Minute), pub, nil)
	return svc, repo, pub
}

var everything = core.Query{Type: core.FilterAll, Sort: core.SortDateDesc}

func ledger() []core.Entry {
	return []core.Entry{
		{Type: core.Income, Amount: decimal.NewFromInt(100), Date: core.NewDate(2025, 1, 15), Description: "pay"},
		{Type: core.Expense, Amount: decimal.NewFromInt(40), Date: core.NewDate(2025, 1, 20), Description: "food"},
	}
}

func TestEntryService_ReplaceThenList(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newService(t)

	require.NoError(t, svc.Replace(ctx, "alice", ledger()))

	all, err := svc.List(ctx, everything)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "food", all[0].Description, "newest first")

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, 2, pub.msgs[0].Count)
	assert.Equal(t, "alice", pub.msgs[0].ReplacedBy)
}

func TestEntryService_ReplaceWithEmptyList(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	require.NoError(t, svc.Replace(ctx, "alice", ledger()))

	require.NoError(t, svc.Replace(ctx, "alice", []core.Entry{}))
	all, err := svc.List(ctx, everything)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestEntryService_ListUsesCacheUntilReplace(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	_, err := svc.List(ctx, everything)
	require.NoError(t, err)
	_, err = svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists)

	require.NoError(t, svc.Replace(ctx, "alice", ledger()))
	all, err := svc.List(ctx, everything)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 2, repo.lists)
}

func TestEntryService_ReadRacingReplaceDoesNotCacheOldLedger(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	repo.afterList = func() {
		require.NoError(t, svc.Replace(ctx, "bob", ledger()))
	}
	stale, err := svc.List(ctx, everything)
	require.NoError(t, err)
	assert.Empty(t, stale)

	all, err := svc.List(ctx, everything)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 2, repo.lists)

	_, err = svc.List(ctx, everything)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lists, "fresh read is cached")
}

func TestEntryService_InvalidEntriesRejectedBeforeWrite(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newService(t)
	require.NoError(t, svc.Replace(ctx, "alice", ledger()))

	bad := append(ledger(), core.Entry{Type: core.Expense, Amount: decimal.NewFromInt(-1), Date: core.NewDate(2025, 1, 1)})
	err := svc.Replace(ctx, "alice", bad)
	assert.ErrorIs(t, err, core.ErrInvalidEntry)

	all, err := svc.List(ctx, everything)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Len(t, pub.msgs, 1)
}

func TestEntryService_StoreFailure(t *testing.T) {
	ctx := context.Background()
	svc, repo, pub := newService(t)
	repo.replaceErr = errors.New("disk full")

	err := svc.Replace(ctx, "alice", ledger())
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrInvalidEntry)
	assert.Empty(t, pub.msgs)
}

func TestEntryService_PublishFailureDoesNotFailReplace(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newService(t)
	pub.err = amqp.ErrCircuitOpen

	require.NoError(t, svc.Replace(ctx, "alice", ledger()))
}

func TestEntryService_ListAndSummary(t *testing.T) {
	ctx := context.Background()
	svc := NewEntryService(memory.New(), nil, nil, nil)
	require.NoError(t, svc.Replace(ctx, "alice", ledger()))

	incomes, err := svc.List(ctx, core.Query{Type: core.FilterIncome, Sort: core.SortAmountAsc})
	require.NoError(t, err)
	require.Len(t, incomes, 1)
	assert.Equal(t, "pay", incomes[0].Description)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "60.00", summary.Balance.StringFixed(2))
	require.Len(t, summary.Monthly, 1)
	assert.Equal(t, "2025-01", summary.Monthly[0].Month)
}
