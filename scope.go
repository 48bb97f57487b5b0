package warrant

import (
	"context"

	"github.com/xraph/forge"
)

// ActorFromContext returns the acting user: an explicit WithActor value,
// else the Forge authenticated user, else "".
func ActorFromContext(ctx context.Context) string {
	if a := explicitActor(ctx); a != "" {
		return a
	}
	return forge.UserIDFromContext(ctx)
}

func (e *Engine) actor(ctx context.Context) string {
	if a := ActorFromContext(ctx); a != "" {
		return a
	}
	return e.config.SystemActor
}
