package ctxkeys

import (
	"context"

	"go.uber.org/zap"
)

// ContextKey is used for storing request-scoped values in context
type ContextKey string

const (
	// Request stores the *RequestContext of the current gateway invocation
	Request ContextKey = "tidewave_request"
)

// RequestContext is the per-request state the gateway threads through every
// call in the handling path. It is never shared across requests.
type RequestContext struct {
	ID         string
	Method     string
	Path       string
	RemoteAddr string
}

// WithRequest attaches rc to ctx.
func WithRequest(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, Request, rc)
}

// FromContext returns the request context, if any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(Request).(*RequestContext)
	return rc, ok && rc != nil
}

// RequestID returns the correlation id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if rc, ok := FromContext(ctx); ok {
		return rc.ID
	}
	return ""
}

// LogFields returns zap fields identifying the request for audit lines.
func LogFields(ctx context.Context) []zap.Field {
	rc, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return []zap.Field{
		zap.String("request_id", rc.ID),
		zap.String("remote_addr", rc.RemoteAddr),
	}
}
