package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/admission-go/internal/ratelimit"
	"go.uber.org/zap"
)

// denialBody is the wire contract collaborators expect on a 429.
type denialBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retryAfter"`
}

// RateLimit returns a huma middleware enforcing the shared per-subject
// budget. Every checked response carries X-RateLimit-Limit, -Remaining, and
// -Reset (seconds) headers; denials answer 429 with a Retry-After header and
// a JSON body. The limiter fails open on store outages, so this middleware
// never turns an admission failure into an error response.
//
// Operations can override the policy through ratelimit.MetadataKey metadata:
// their checks run against a per-operation bucket keyed
// "rate_limit:<subject>:<operation>".
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		subject := subjectKey(ctx)
		limit, _ := limiter.Defaults()

		var res ratelimit.Result

		if cfg := ratelimit.GetEndpointConfig(ctx); cfg != nil {
			if cfg.Disabled {
				next(ctx)
				return
			}

			limit = cfg.Limit

			var err error
			res, err = limiter.CheckLimitWith(ctx.Context(), subject+":"+cfg.Operation, cfg.Limit, cfg.Window)
			if err != nil {
				// Misconfigured metadata should not take the endpoint down.
				logger.Error("invalid endpoint rate limit config",
					zap.String("operation", cfg.Operation),
					zap.Error(err))
				next(ctx)

				return
			}
		} else {
			res = limiter.CheckLimit(ctx.Context(), subject)
		}

		ctx.SetHeader("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		ctx.SetHeader("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		ctx.SetHeader("X-RateLimit-Reset", strconv.FormatInt(res.ResetAtMillis/1000, 10))

		if !res.Allowed {
			writeDenial(ctx, res, logger)

			return
		}

		next(ctx)
	}
}

// writeDenial answers 429 with the Retry-After header and JSON body.
func writeDenial(ctx huma.Context, res ratelimit.Result, logger *zap.Logger) {
	ctx.SetHeader("Retry-After", strconv.FormatInt(res.RetryAfterSeconds, 10))
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(http.StatusTooManyRequests)

	body := denialBody{
		Error:      "rate_limit_exceeded",
		Message:    "too many requests",
		RetryAfter: res.RetryAfterSeconds,
	}

	if err := json.NewEncoder(ctx.BodyWriter()).Encode(body); err != nil {
		logger.Error("failed to write rate limit denial", zap.Error(err))
	}
}

// subjectKey derives the rate-limited subject from client IP and User-Agent.
func subjectKey(ctx huma.Context) string {
	ip := clientIP(ctx)
	ua := ctx.Header("User-Agent")

	hash := sha256.Sum256([]byte(ip + "|" + ua))

	return hex.EncodeToString(hash[:])
}

// clientIP extracts the client IP from the request, considering proxies.
func clientIP(ctx huma.Context) string {
	// Check X-Forwarded-For header (may contain multiple IPs)
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		// Take the first IP (original client)
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}

		return strings.TrimSpace(xff)
	}

	// Check X-Real-IP header
	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to Host (which contains remote addr in Huma context)
	host := ctx.Host()

	ip, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}

	return ip
}
