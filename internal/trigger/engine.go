package trigger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
	"github.com/noah-isme/academic-engine/pkg/feed"
	"github.com/noah-isme/academic-engine/pkg/tracing"
)

// Handler outcomes reported to Metrics.
const (
	ResultApplied = "applied"
	ResultReplay  = "replay"
	ResultFailed  = "failed"
)

const cursorPrefix = "trigger:"

// Metrics receives engine instrumentation.
type Metrics interface {
	RecordTriggerEvent(handler, result string)
	SetTriggerCursor(stream string, seq int64)
}

// ReportInvalidator drops cached reports once derived state changed.
type ReportInvalidator interface {
	InvalidateReports(ctx context.Context)
}

// Config tunes polling and retries.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
	RetryDelay   time.Duration
}

// Engine runs one sequential consumer per entity stream.
type Engine struct {
	store    store.Store
	bus      feed.Bus
	handlers []Handler
	streams  []models.EntityType
	cfg      Config
	metrics  Metrics
	reports  ReportInvalidator
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewEngine constructs an Engine. bus and metrics may be nil.
func NewEngine(st store.Store, bus feed.Bus, handlers []Handler, cfg Config, metrics Metrics, logger *zap.Logger) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	seen := map[models.EntityType]struct{}{}
	var streams []models.EntityType
	for _, h := range handlers {
		if _, ok := seen[h.Entity()]; ok {
			continue
		}
		seen[h.Entity()] = struct{}{}
		streams = append(streams, h.Entity())
	}
	sort.Slice(streams, func(i, j int) bool { return streams[i] < streams[j] })

	return &Engine{
		store:    st,
		bus:      bus,
		handlers: handlers,
		streams:  streams,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "trigger_engine")),
		tracer:   tracing.Tracer(),
	}
}

// UseReportInvalidator invalidates cached reports after each drain pass that
// applied at least one effect.
func (e *Engine) UseReportInvalidator(r ReportInvalidator) {
	e.reports = r
}

// Run consumes every stream until ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	wake := make(map[models.EntityType]chan struct{}, len(e.streams))
	for _, stream := range e.streams {
		wake[stream] = make(chan struct{}, 1)
	}

	if e.bus != nil {
		signals, err := e.bus.Subscribe(ctx)
		if err != nil {
			e.logger.Warn("change signal subscription failed, polling only", zap.Error(err))
		} else {
			g.Go(func() error {
				for {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case entity, ok := <-signals:
						if !ok {
							return nil
						}
						if ch, ok := wake[models.EntityType(entity)]; ok {
							select {
							case ch <- struct{}{}:
							default:
							}
						}
					}
				}
			})
		}
	}

	for _, stream := range e.streams {
		g.Go(func() error { return e.consume(ctx, stream, wake[stream]) })
	}

	e.logger.Info("trigger engine started", zap.Int("handlers", len(e.handlers)), zap.Duration("poll_interval", e.cfg.PollInterval))
	err := g.Wait()
	e.logger.Info("trigger engine stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) consume(ctx context.Context, stream models.EntityType, wake <-chan struct{}) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := e.drainStream(ctx, stream); err != nil && ctx.Err() == nil {
			e.logger.Warn("stream stalled, retrying on next poll", zap.String("stream", string(stream)), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
		}
	}
}

// Drain applies every pending event of every stream once and returns the
// number of events processed.
func (e *Engine) Drain(ctx context.Context) (int, error) {
	total := 0
	for _, stream := range e.streams {
		n, err := e.drainStream(ctx, stream)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// drainStream advances the stream cursor past each event whose handlers all
// succeeded, stopping at the first failure.
func (e *Engine) drainStream(ctx context.Context, stream models.EntityType) (int, error) {
	applied := 0
	defer func() {
		if applied > 0 && e.reports != nil {
			e.reports.InvalidateReports(ctx)
		}
	}()

	consumer := cursorPrefix + string(stream)
	cursor, err := e.store.LoadCursor(ctx, consumer)
	if err != nil {
		return 0, fmt.Errorf("load cursor %s: %w", consumer, err)
	}

	processed := 0
	for {
		events, err := e.store.ChangesSince(ctx, stream, cursor, e.cfg.BatchSize)
		if err != nil {
			return processed, fmt.Errorf("read %s changes after %d: %w", stream, cursor, err)
		}
		for _, ev := range events {
			n, err := e.dispatch(ctx, ev)
			applied += n
			if err != nil {
				return processed, err
			}
			if err := e.store.SaveCursor(ctx, consumer, ev.Seq); err != nil {
				return processed, fmt.Errorf("save cursor %s: %w", consumer, err)
			}
			cursor = ev.Seq
			processed++
			if e.metrics != nil {
				e.metrics.SetTriggerCursor(string(stream), cursor)
			}
		}
		if len(events) < e.cfg.BatchSize {
			return processed, nil
		}
	}
}

// Dispatch applies every matching handler to ev. Already applied effects are
// skipped, so Dispatch may be called any number of times for the same event.
func (e *Engine) Dispatch(ctx context.Context, ev models.ChangeEvent) error {
	_, err := e.dispatch(ctx, ev)
	return err
}

// dispatch returns the number of handlers that applied a new effect.
func (e *Engine) dispatch(ctx context.Context, ev models.ChangeEvent) (int, error) {
	applied := 0
	for _, h := range e.handlers {
		if h.Entity() != ev.EntityType || !h.Matches(ev) {
			continue
		}
		ok, err := e.applyWithRetry(ctx, h, ev)
		if err != nil {
			return applied, fmt.Errorf("%s on %s #%d: %w", h.Name(), ev.EntityType, ev.Seq, err)
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}

func (e *Engine) applyWithRetry(ctx context.Context, h Handler, ev models.ChangeEvent) (bool, error) {
	ctx, span := e.tracer.Start(ctx, "trigger."+h.Name(), trace.WithAttributes(
		attribute.String("trigger.stream", string(ev.EntityType)),
		attribute.Int64("trigger.seq", ev.Seq),
		attribute.String("trigger.document_id", ev.DocumentID),
	))
	defer span.End()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryDelay
	b.MaxInterval = 20 * e.cfg.RetryDelay

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := e.apply(ctx, h, ev)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, appErrors.ErrReplayDetected) || ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		e.logger.Debug("handler failed", zap.String("handler", h.Name()), zap.Int64("seq", ev.Seq), zap.Int("attempt", attempt), zap.Error(err))
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(e.cfg.MaxRetries)+1))

	switch {
	case err == nil:
		e.record(h.Name(), ResultApplied)
		return true, nil
	case errors.Is(err, appErrors.ErrReplayDetected):
		span.SetAttributes(attribute.Bool("trigger.replay", true))
		e.record(h.Name(), ResultReplay)
		return false, nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		e.record(h.Name(), ResultFailed)
		return false, err
	}
}

func (e *Engine) apply(ctx context.Context, h Handler, ev models.ChangeEvent) error {
	key := h.DedupeKey(ev)
	ctx = store.WithActor(ctx, cursorPrefix+h.Name())
	return e.store.RunInTransaction(ctx, func(tx store.Tx) error {
		claimed, err := tx.ClaimReceipt(ctx, h.Name(), key)
		if err != nil {
			return err
		}
		if !claimed {
			return appErrors.Clonef(appErrors.ErrReplayDetected, "%s already applied %s", h.Name(), key)
		}
		return h.Apply(ctx, tx, ev)
	})
}

func (e *Engine) record(handler, result string) {
	if e.metrics != nil {
		e.metrics.RecordTriggerEvent(handler, result)
	}
}
