package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"portal/internal/ratelimit/models"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/platform/httputil"
	"portal/pkg/requestcontext"
)

type Limiter interface {
	Allow(ctx context.Context, action, caller string, limit int, window time.Duration) (models.Result, error)
}

// ByIP throttles requests per client IP using the shared counter store.
// It must run after the metadata middleware. Limiter errors fail open.
func ByIP(limiter Limiter, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			res, err := limiter.Allow(ctx, models.ActionRequest, ip, limit, window)
			if err != nil {
				logger.ErrorContext(ctx, "failed to check IP rate limit",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				WriteTooManyRequests(w, res.RetryAfter, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteTooManyRequests writes a 429 with a Retry-After header in whole seconds.
func WriteTooManyRequests(w http.ResponseWriter, retryAfter time.Duration, msg string) {
	secs := int(retryAfter.Round(time.Second).Seconds())
	w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
	httputil.WriteError(w, dErrors.New(dErrors.CodeTooManyRequests, msg))
}
