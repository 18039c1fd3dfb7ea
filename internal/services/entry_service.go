package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"budget/internal/amqp"
	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/ports"
)

// entriesCacheKey holds the full ledger; views are derived from it.
const entriesCacheKey = "entries:all"

// EventPublisher announces ledger rewrites. *amqp.Client implements it.
type EventPublisher interface {
	PublishEntriesReplaced(ctx context.Context, msg *amqp.EntriesReplacedMessage) error
}

// EntryService lists and replaces the shared ledger, keeping the cache
// coherent and publishing an event after every successful replace.
//
// Coherence holds within one process: a read that started before a replace
// never stores its result. With the LRU cache each instance keeps its own
// copy, so run a single instance or use the Redis cache.
type EntryService struct {
	repo      ports.EntryRepository
	cache     cache.Cache[[]core.Entry]
	publisher EventPublisher
	logger    *log.Logger

	// mu guards gen, which invalidate bumps; a reader only fills the
	// cache when gen is unchanged since it began.
	mu  sync.Mutex
	gen uint64
}

// NewEntryService wires the service. cache and publisher may be nil.
func NewEntryService(repo ports.EntryRepository, c cache.Cache[[]core.Entry], publisher EventPublisher, logger *log.Logger) *EntryService {
	if logger == nil {
		logger = log.Discard()
	}
	return &EntryService{
		repo:      repo,
		cache:     c,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentEntries),
	}
}

// List returns the ledger view described by q.
func (s *EntryService) List(ctx context.Context, q core.Query) ([]core.Entry, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	return q.Apply(all), nil
}

// Summary aggregates the whole ledger.
func (s *EntryService) Summary(ctx context.Context) (core.Summary, error) {
	all, err := s.all(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	return core.BuildSummary(all), nil
}

// Replace validates entries and swaps them in for the whole ledger.
// replacedBy is the username recorded on the published event.
func (s *EntryService) Replace(ctx context.Context, replacedBy string, entries []core.Entry) error {
	prepared, err := core.PrepareEntries(entries)
	if err != nil {
		return err
	}

	// drop the cached list first so a failed write never leaves it stale
	s.invalidate(ctx)
	if err := s.repo.ReplaceEntries(ctx, prepared); err != nil {
		return fmt.Errorf("replace entries: %w", err)
	}
	s.invalidate(ctx)

	s.logger.InfoContext(ctx, "Entries replaced",
		log.NewFields().WithEntriesCount(len(prepared)).WithUser("", replacedBy).WithOperation(log.OpReplace).ToSlice()...)

	s.publish(ctx, len(prepared), replacedBy)
	return nil
}

func (s *EntryService) all(ctx context.Context) ([]core.Entry, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, entriesCacheKey); ok {
			return cached, nil
		}
	}
	gen := s.generation()
	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if entries == nil {
		entries = []core.Entry{}
	}
	if s.cache != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.cache.Set(ctx, entriesCacheKey, entries)
		}
		s.mu.Unlock()
	}
	return entries, nil
}

func (s *EntryService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *EntryService) invalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cache != nil {
		s.cache.Delete(ctx, entriesCacheKey)
	}
}

// publish never fails the request: the ledger is already written.
func (s *EntryService) publish(ctx context.Context, count int, replacedBy string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishEntriesReplaced(ctx, amqp.NewEntriesReplacedMessage(count, replacedBy))
	if err == nil {
		return
	}
	level := s.logger.ErrorContext
	if errors.Is(err, amqp.ErrCircuitOpen) {
		level = s.logger.WarnContext
	}
	level(ctx, "Failed to publish entries replaced message",
		log.NewFields().WithError(err, log.ErrorTypeNetwork).WithOperation(log.OpPublish).ToSlice()...)
}
