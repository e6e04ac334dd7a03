package services

import (
	"context"
	"strings"
	"time"
)

// DefaultActor is recorded on audit entries when the caller did not name
// itself. There is no user model behind it.
const DefaultActor = "Usuario actual"

// SystemActor signs entries written by scheduled jobs.
const SystemActor = "sistema"

type actorKey struct{}

func WithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return DefaultActor
}

// timeNow is swapped by tests that need a fixed clock.
var timeNow = time.Now
