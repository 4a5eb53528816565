// Package memory is an in-process implementation of store.Store. Writers are
// serialised and work on a copy of the committed state that replaces it on
// commit, so snapshot readers never observe a partial transaction.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
)

// Option configures a Store.
type Option func(*Store)

// WithNotifier publishes touched streams after each commit.
func WithNotifier(n store.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for notifier failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Store keeps all documents in memory.
type Store struct {
	writer chan struct{}

	mu        sync.RWMutex
	committed *state
	events    map[models.EntityType][]models.ChangeEvent
	cursors   map[string]int64

	notifier store.Notifier
	now      func() time.Time
	logger   *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New constructs an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		writer:    make(chan struct{}, 1),
		committed: newState(),
		events:    map[models.EntityType][]models.ChangeEvent{},
		cursors:   map[string]int64{},
		now:       func() time.Time { return time.Now().UTC() },
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTransaction runs fn against a private copy and commits it when fn
// returns nil and ctx is still live.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.writer }()

	s.mu.RLock()
	working := s.committed.clone()
	s.mu.RUnlock()

	t := &tx{view: view{st: working}}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	touched := s.commit(working, t.events, store.ActorFromContext(ctx))
	s.publish(ctx, touched)
	return nil
}

func (s *Store) commit(working *state, pending []pendingEvent, actor string) []models.EntityType {
	s.mu.Lock()
	defer s.mu.Unlock()

	committedAt := s.now()
	touched := map[models.EntityType]struct{}{}
	for _, ev := range pending {
		stream := s.events[ev.entity]
		seq := int64(len(stream)) + 1
		if ev.operation == models.OperationInsert {
			working.insertSeqs[insertKey(ev.entity, ev.documentID)] = seq
		}
		s.events[ev.entity] = append(stream, models.ChangeEvent{
			Seq:         seq,
			EntityType:  ev.entity,
			Operation:   ev.operation,
			DocumentID:  ev.documentID,
			Delta:       ev.delta,
			Actor:       actor,
			CommittedAt: committedAt,
		})
		touched[ev.entity] = struct{}{}
	}
	s.committed = working

	out := make([]models.EntityType, 0, len(touched))
	for entity := range touched {
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Store) publish(ctx context.Context, touched []models.EntityType) {
	if s.notifier == nil {
		return
	}
	for _, entity := range touched {
		if err := s.notifier.Publish(context.WithoutCancel(ctx), string(entity)); err != nil {
			s.logger.Warn("publish change signal", zap.String("entity", string(entity)), zap.Error(err))
		}
	}
}

// View reads the committed state as of the call.
func (s *Store) View(ctx context.Context, fn func(r store.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.committed
	s.mu.RUnlock()
	return fn(view{st: snapshot})
}

// ChangesSince returns up to limit events of a stream with seq > afterSeq.
func (s *Store) ChangesSince(_ context.Context, entity models.EntityType, afterSeq int64, limit int) ([]models.ChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.events[entity]
	if afterSeq < 0 {
		afterSeq = 0
	}
	if afterSeq >= int64(len(stream)) {
		return []models.ChangeEvent{}, nil
	}
	rest := stream[afterSeq:]
	if limit > 0 && limit < len(rest) {
		rest = rest[:limit]
	}
	return append([]models.ChangeEvent(nil), rest...), nil
}

// LoadCursor returns the last processed seq of a consumer, 0 when unknown.
func (s *Store) LoadCursor(_ context.Context, consumer string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[consumer], nil
}

// SaveCursor records the last processed seq of a consumer.
func (s *Store) SaveCursor(_ context.Context, consumer string, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[consumer] = seq
	return nil
}
