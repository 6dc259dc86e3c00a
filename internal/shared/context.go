package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the id of the account performing the operation.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext returns the acting account id, or 0 for system operations.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
