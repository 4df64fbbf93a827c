package requestctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestActorRoundTrip(t *testing.T) {
	id := uuid.New()
	got, ok := ActorFromContext(WithActor(context.Background(), id))
	if !ok || got != id {
		t.Fatalf("ActorFromContext = %v, %v; want %v, true", got, ok, id)
	}
}

func TestActorMissing(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatalf("expected no actor")
	}
	if _, ok := ActorFromContext(WithActor(context.Background(), uuid.Nil)); ok {
		t.Fatalf("nil uuid must not count as an actor")
	}
}
