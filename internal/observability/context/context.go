// Package obscontext carries request-scoped identifiers used by logging and tracing.
package obscontext

import "context"

type requestIDKey struct{}
type orgIDKey struct{}
type actorKey struct{}

type actor struct {
	Type string
	ID   string
}

// WithRequestID stores the request id on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id, or empty when absent.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithOrgID stores the organization id on the context.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	if orgID == "" {
		return ctx
	}
	return context.WithValue(ctx, orgIDKey{}, orgID)
}

// OrgIDFromContext returns the organization id, or empty when absent.
func OrgIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(orgIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActor stores the acting principal on the context.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	if actorType == "" && actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor{Type: actorType, ID: actorID})
}

// ActorFromContext returns the acting principal, or empty strings when absent.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(actorKey{}).(actor); ok {
		return v.Type, v.ID
	}
	return "", ""
}
