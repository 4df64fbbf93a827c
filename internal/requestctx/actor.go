// internal/requestctx/actor.go

// Package requestctx carries the acting account through a request.
package requestctx

import (
	"context"

	"github.com/google/uuid"
)

type actorContextKey struct{}

// WithActor stores the acting account id in context.
func WithActor(ctx context.Context, accountID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, accountID)
}

// ActorFromContext returns the acting account id, if any.
func ActorFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(actorContextKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
