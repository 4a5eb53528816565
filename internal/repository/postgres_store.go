package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
)

// PostgreSQL error codes that mean "lost a race, retry the transaction".
var conflictCodes = map[pq.ErrorCode]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"23505": {}, // unique_violation
	"55P03": {}, // lock_not_available
}

// PostgresStore implements store.Store over PostgreSQL. Change events are
// written to change_events inside the writing transaction.
type PostgresStore struct {
	db       *sqlx.DB
	notifier store.Notifier
	logger   *zap.Logger
}

var _ store.Store = (*PostgresStore)(nil)

// NewPostgresStore constructs the store. notifier may be nil.
func NewPostgresStore(db *sqlx.DB, notifier store.Notifier, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, notifier: notifier, logger: logger}
}

// RunInTransaction executes fn in a READ COMMITTED transaction; workflows take
// explicit row locks for the documents they change.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapError(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	t := &pgTx{pgReader: pgReader{q: sqlTx}, tx: sqlTx, actor: store.ActorFromContext(ctx)}
	if err = fn(t); err != nil {
		return mapError(err)
	}

	touched, err := t.flushEvents(ctx)
	if err != nil {
		return mapError(err)
	}
	if err = sqlTx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit transaction: %w", err))
	}

	s.publish(ctx, touched)
	return nil
}

func (s *PostgresStore) publish(ctx context.Context, touched []models.EntityType) {
	if s.notifier == nil {
		return
	}
	for _, entity := range touched {
		if err := s.notifier.Publish(context.WithoutCancel(ctx), string(entity)); err != nil {
			s.logger.Warn("publish change signal", zap.String("entity", string(entity)), zap.Error(err))
		}
	}
}

// View runs fn inside a read-only REPEATABLE READ transaction so every query
// sees the same snapshot.
func (s *PostgresStore) View(ctx context.Context, fn func(r store.Reader) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck

	if err := fn(pgReader{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return nil
}

// ChangesSince returns events of a stream with seq greater than afterSeq.
func (s *PostgresStore) ChangesSince(ctx context.Context, entity models.EntityType, afterSeq int64, limit int) ([]models.ChangeEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT seq, entity_type, operation, document_id, delta, actor, committed_at
        FROM change_events WHERE entity_type = $1 AND seq > $2 ORDER BY seq LIMIT $3`
	var events []models.ChangeEvent
	if err := s.db.SelectContext(ctx, &events, query, entity, afterSeq, limit); err != nil {
		return nil, fmt.Errorf("list change events: %w", err)
	}
	return events, nil
}

// LoadCursor returns the last processed seq of a consumer.
func (s *PostgresStore) LoadCursor(ctx context.Context, consumer string) (int64, error) {
	const query = `SELECT last_seq FROM trigger_cursors WHERE consumer = $1`
	var seq int64
	if err := s.db.GetContext(ctx, &seq, query, consumer); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("load trigger cursor: %w", err)
	}
	return seq, nil
}

// SaveCursor stores the last processed seq of a consumer.
func (s *PostgresStore) SaveCursor(ctx context.Context, consumer string, seq int64) error {
	const query = `INSERT INTO trigger_cursors (consumer, last_seq, updated_at) VALUES ($1, $2, NOW())
        ON CONFLICT (consumer) DO UPDATE SET last_seq = EXCLUDED.last_seq, updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, query, consumer, seq); err != nil {
		return fmt.Errorf("save trigger cursor: %w", err)
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if _, ok := conflictCodes[pqErr.Code]; ok {
			return fmt.Errorf("%w: %s", store.ErrConflict, pqErr.Message)
		}
	}
	return err
}

func sortedEntities(events []pendingEvent) []models.EntityType {
	seen := map[models.EntityType]struct{}{}
	for _, ev := range events {
		seen[ev.entity] = struct{}{}
	}
	out := make([]models.EntityType, 0, len(seen))
	for entity := range seen {
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
