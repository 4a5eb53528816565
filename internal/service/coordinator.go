package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-engine/internal/store"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
	"github.com/noah-isme/academic-engine/pkg/policy"
	"github.com/noah-isme/academic-engine/pkg/tracing"
)

// ReportCachePattern matches every cached report payload.
const ReportCachePattern = reportCachePrefix + "*"

type cacheInvalidator interface {
	InvalidateAsync(ctx context.Context, pattern string)
}

// CoordinatorConfig carries the academic thresholds and transaction bounds.
type CoordinatorConfig struct {
	PassingGrade         float64
	GraduationMinAverage float64
	DefaultCapacity      int
	TxTimeout            time.Duration
	MaxRetries           int
	RetryDelay           time.Duration
}

// Coordinator runs the academic workflows, each as one atomic transaction.
type Coordinator struct {
	store     store.Store
	policy    *policy.Policy
	cfg       CoordinatorConfig
	validator *validator.Validate
	metrics   *MetricsService
	cache     cacheInvalidator
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewCoordinator constructs a Coordinator. A nil policy falls back to
// cfg.DefaultCapacity and no withdrawal deadlines.
func NewCoordinator(st store.Store, pol *policy.Policy, cfg CoordinatorConfig, validate *validator.Validate, metrics *MetricsService, cache cacheInvalidator, logger *zap.Logger) *Coordinator {
	if cfg.PassingGrade <= 0 {
		cfg.PassingGrade = 3.0
	}
	if cfg.GraduationMinAverage <= 0 {
		cfg.GraduationMinAverage = 3.0
	}
	if cfg.DefaultCapacity <= 0 {
		cfg.DefaultCapacity = 30
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 5 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}
	if pol == nil {
		pol = &policy.Policy{DefaultCapacity: cfg.DefaultCapacity}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:     st,
		policy:    pol,
		cfg:       cfg,
		validator: validate,
		metrics:   metrics,
		cache:     cache,
		logger:    logger,
		tracer:    tracing.Tracer(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// execute runs fn in a transaction bounded by TxTimeout, retrying store
// conflicts and per-attempt timeouts with exponential backoff.
func (c *Coordinator) execute(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx) error) error {
	ctx, span := c.tracer.Start(ctx, "coordinator."+op, trace.WithAttributes(
		attribute.String("academic.operation", op),
		attribute.String("academic.actor", store.ActorFromContext(ctx)),
	))
	defer span.End()
	start := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryDelay
	b.MaxInterval = 10 * c.cfg.RetryDelay

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if attempt > 1 {
			c.metrics.RecordTransactionRetry(op)
		}
		err := c.attempt(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if ctx.Err() == nil && isTransient(err) {
			c.logger.Debug("transaction aborted, retrying", zap.String("operation", op), zap.Int("attempt", attempt), zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(c.cfg.MaxRetries)+1))

	span.SetAttributes(attribute.Int("academic.attempts", attempt))
	if err == nil {
		c.metrics.ObserveTransaction(op, TxOutcomeCommitted, time.Since(start))
		if c.cache != nil {
			c.cache.InvalidateAsync(ctx, ReportCachePattern)
		}
		return nil
	}

	appErr := translateTxError(err)
	outcome := TxOutcomeRejected
	if errors.Is(appErr, appErrors.ErrTransactionAbort) {
		outcome = TxOutcomeAborted
	}
	if errors.Is(appErr, appErrors.ErrInternal) {
		c.logger.Error("transaction failed", zap.String("operation", op), zap.Error(err))
	}
	c.metrics.ObserveTransaction(op, outcome, time.Since(start))
	span.RecordError(appErr)
	span.SetStatus(codes.Error, appErr.Code)
	return appErr
}

func (c *Coordinator) attempt(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, c.cfg.TxTimeout)
	defer cancel()
	return c.store.RunInTransaction(txCtx, func(tx store.Tx) error {
		return fn(txCtx, tx)
	})
}

func isTransient(err error) bool {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return false
	}
	return errors.Is(err, store.ErrConflict) || errors.Is(err, context.DeadlineExceeded)
}

func translateTxError(err error) *appErrors.Error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, store.ErrConflict), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		abort := *appErrors.ErrTransactionAbort
		abort.Err = err
		return &abort
	case errors.Is(err, store.ErrNotFound):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, appErrors.ErrNotFound.Message)
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "transaction failed")
	}
}

// notFound turns store.ErrNotFound into a typed error naming the entity and
// passes anything else through for retry classification.
func notFound(err error, entity, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return appErrors.Clonef(appErrors.ErrNotFound, "%s %s not found", entity, id)
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}

func validationError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
