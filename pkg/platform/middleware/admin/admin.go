package admin

import (
	"context"
	"log/slog"
	"net/http"

	id "portal/pkg/domain"
	"portal/pkg/requestcontext"
)

// AccountChecker reports whether an account is an administrator.
type AccountChecker interface {
	IsAdministrator(ctx context.Context, accountID id.AccountID) (bool, error)
}

// RequireAdministrator refuses /admin routes to non-administrator accounts.
// It must run after auth.RequireAuth. Per-edge role checks still happen in
// the service; this only keeps applicants out of the admin surface.
func RequireAdministrator(checker AccountChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)
			accountID := requestcontext.AccountID(ctx)

			ok, err := checker.IsAdministrator(ctx, accountID)
			if err != nil {
				logger.ErrorContext(ctx, "admin check failed",
					"error", err,
					"request_id", requestID,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"unavailable","error_description":"account lookup failed"}`))
				return
			}
			if !ok {
				logger.WarnContext(ctx, "non-administrator on admin route",
					"account_id", accountID,
					"request_id", requestID,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"administrator account required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
