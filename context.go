package warrant

import "context"

type contextKey int

const ctxKeyActor contextKey = iota

// WithActor returns a context naming the user performing an operation.
// Use this in standalone mode (without Forge).
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actorID)
}

func explicitActor(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyActor).(string)
	if !ok {
		return ""
	}
	return v
}
