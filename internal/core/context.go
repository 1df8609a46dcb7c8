package core

import "context"

type contextKey string

const (
	ctxKeyDocumentID contextKey = "document_id"
	ctxKeyIPAddress  contextKey = "client_ip"
	ctxKeyUserAgent  contextKey = "client_ua"
)

// WithDocumentID fixes the ID ProcessDocument assigns to the next document.
// Callers that persist records before the result exists use it to share one ID.
func WithDocumentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyDocumentID, id)
}

// DocumentIDFromContext returns the ID set by WithDocumentID, if any.
func DocumentIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyDocumentID).(string); ok {
		return v
	}
	return ""
}

// ContextWithIPAddress records the client address of an uploaded document.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent records the client User-Agent of an uploaded document.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// GetIPAddressFromContext extracts the client address.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// GetUserAgentFromContext extracts the client User-Agent.
func GetUserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}
