package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ragpilot/ragpilot/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// RequestLimit is the number of requests allowed per window.
	RequestLimit int
	// WindowLength is the window duration.
	WindowLength time.Duration
}

// Default rate limit configurations.
var (
	// ProbeRateLimit applies to the on-demand check endpoint, which fires
	// real probes against every dependency (6 req/min).
	ProbeRateLimit = RateLimitConfig{
		RequestLimit: 6,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to read-only endpoints (120 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 120,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP creates a rate limiter middleware keyed on client IP.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceededHandler),
	)
}

func rateLimitExceededHandler(w http.ResponseWriter, r *http.Request) {
	problem := models.NewTooManyRequests(GetRequestID(r.Context()), "rate limit exceeded")
	problem.Instance = r.URL.Path
	problem.Write(w)
}
