package store

import "context"

// DefaultActor is recorded when no caller identity is attached.
const DefaultActor = "system"

type actorKey struct{}

// WithActor attaches the caller identity recorded on change events.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the attached actor or DefaultActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return DefaultActor
}
