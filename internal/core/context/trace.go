package context

import "context"

// Trace identifies one request across log lines and response headers.
// TraceID links the request to its upstream caller; RequestID is unique
// to this hop.
type Trace struct {
	TraceID   string
	RequestID string
}

type traceKey struct{}

// WithTrace attaches trace identifiers to the context.
func WithTrace(ctx context.Context, tr Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, tr)
}

// GetTrace returns the trace identifiers; ok is false outside a request.
func GetTrace(ctx context.Context) (Trace, bool) {
	tr, ok := ctx.Value(traceKey{}).(Trace)
	return tr, ok
}
