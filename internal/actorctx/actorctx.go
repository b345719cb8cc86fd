// Package actorctx carries the acting user's id on a plain
// context.Context, so non-HTTP code (the budgeting service, the job
// executor, log handlers) can attribute work to a user without knowing
// about gin.
package actorctx

import "context"

type ctxKey struct{}

// WithUserID stamps the acting user onto the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

func UserIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)

	return v, ok && v != ""
}
