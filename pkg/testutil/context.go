package testutil

import (
	"net/http"

	id "portal/pkg/domain"
	"portal/pkg/requestcontext"
)

// WithAuth puts what auth.RequireAuth would set on the request context, so
// handlers can be tested without minting tokens. An empty jti is omitted.
func WithAuth(req *http.Request, accountID id.AccountID, jti string) *http.Request {
	ctx := requestcontext.WithAccountID(req.Context(), accountID)
	if jti != "" {
		ctx = requestcontext.WithTokenID(ctx, jti)
	}
	return req.WithContext(ctx)
}
