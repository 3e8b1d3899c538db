package logtrace

import (
	"context"
)

type requestIdContextKey struct{}

func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdContextKey{}, requestId)
}

func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(requestIdContextKey{}).(string)
	if !ok {
		return ""
	}
	return r
}
