// Package requestcontext carries request-scoped values set by middleware.
package requestcontext

import "context"

type (
	requestIDKey struct{}
	clientIPKey  struct{}
	userAgentKey struct{}
	crawlerKey   struct{}
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID, or "" outside an HTTP request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithClientMetadata stores the resolved client IP and raw User-Agent.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, ip)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func UserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentKey{}).(string)
	return ua
}

// WithCrawler marks the request as coming from an automated agent.
func WithCrawler(ctx context.Context, crawler bool) context.Context {
	return context.WithValue(ctx, crawlerKey{}, crawler)
}

// IsCrawler reports whether the request was marked as automated.
func IsCrawler(ctx context.Context) bool {
	crawler, _ := ctx.Value(crawlerKey{}).(bool)
	return crawler
}
