package middleware

// Context keys for middleware data storage
type contextKey string

const (
	// RequestIDContextKey is the context key for request ID
	RequestIDContextKey contextKey = "request_id"

	// StartTimeContextKey is the context key for request start time
	StartTimeContextKey contextKey = "start_time"
)

// HTTP headers
const (
	// RequestIDHeader is the header name for request ID
	RequestIDHeader = "X-Request-ID"

	// AuthorizationHeader is the header name for authorization
	AuthorizationHeader = "Authorization"

	// RateLimitHeader prefix for rate limit headers
	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
	RateLimitResetHeader     = "X-RateLimit-Reset"

	// Cache control headers
	CacheControlHeader = "Cache-Control"
	ETagHeader         = "ETag"
	IfNoneMatchHeader  = "If-None-Match"

	// API version header
	APIVersionHeader = "X-API-Version"
)
