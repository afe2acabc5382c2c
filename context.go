package authflow

import "context"

type requestIDContextKey struct{}

// WithRequestID attaches the correlation id of one gateway call to ctx.
// Controllers set it before every call; gateway.HTTPGateway forwards it as
// the X-Request-ID header.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the id set by [WithRequestID], or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
