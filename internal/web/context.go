package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/VotersList/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx so stored
// documents record who converted them.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// clientIP returns r.RemoteAddr without its port. chi's RealIP middleware
// has already replaced it with the forwarded address when one was sent.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
