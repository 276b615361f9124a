package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	accounthandler "portal/internal/accounts/handler"
	accountservice "portal/internal/accounts/service"
	apphandler "portal/internal/applications/handler"
	"portal/internal/applications/limits"
	"portal/internal/applications/reference"
	appservice "portal/internal/applications/service"
	"portal/internal/audit"
	jwttoken "portal/internal/jwt_token"
	"portal/internal/platform/config"
	"portal/internal/platform/metrics"
	rlmiddleware "portal/internal/ratelimit/middleware"
	adminmw "portal/pkg/platform/middleware/admin"
	authmw "portal/pkg/platform/middleware/auth"
	"portal/pkg/testutil"
)

func TestRouterReviewFlow(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	st := buildStores(nil, log)

	limiter, sweeper, err := buildLimiter(config.Server{RateLimit: config.RateLimitConfig{
		LoginMaxAttempts: 5,
		LoginWindow:      time.Minute,
		SweepSchedule:    "@every 1h",
	}}, nil, log)
	require.NoError(t, err)
	t.Cleanup(func() { <-sweeper.Stop().Done() })

	jwtService := jwttoken.NewJWTService("test-signing-key", "portal", "portal-api")
	accounts := accountservice.New(st.accounts, jwtService,
		accountservice.WithLogger(log),
		accountservice.WithAttemptLimiter(limiter),
		accountservice.WithBcryptCost(bcrypt.MinCost),
	)
	_, err = accounts.SeedDemo(ctx, demoPassword)
	require.NoError(t, err)

	recorder := audit.NewRecorder(st.audit, audit.WithLogger(log))
	applications := appservice.New(st.applications, accounts, limits.New(st.applications), reference.New(),
		appservice.WithLogger(log),
		appservice.WithAuditRecorder(recorder),
	)

	router := newRouter(routerDeps{
		accounts:     accounthandler.New(accounts, log),
		applications: apphandler.New(applications, log),
		authMW:       authmw.RequireAuth(jwttoken.NewAdapter(jwtService), log),
		adminMW:      adminmw.RequireAdministrator(accounts, log),
		ipLimit:      rlmiddleware.ByIP(limiter, 1000, time.Minute, log),
		publicLimit:  1000,
		metrics:      metrics.New(),
		ready:        readiness(nil, nil),
	})

	call := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := testutil.NewRequestWithBody(t, method, path, body)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return testutil.DoRequest(router, req)
	}
	login := func(email string) string {
		rr := call(http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"`+demoPassword+`"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		return testutil.UnmarshalResponse[accounthandler.LoginResponse](t, rr).AccessToken
	}

	t.Run("probes", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, call(http.MethodGet, "/healthz", "", "").Code)
		assert.Equal(t, http.StatusOK, call(http.MethodGet, "/readyz", "", "").Code)
		assert.Equal(t, http.StatusOK, call(http.MethodGet, "/services", "", "").Code)
	})

	t.Run("applicant routes require a token", func(t *testing.T) {
		rr := call(http.MethodGet, "/applications", "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	applicant := login("applicant@portal.local")
	vetting := login("vetting_admin@portal.local")
	approving := login("approving_admin@portal.local")

	var appID string
	t.Run("submit", func(t *testing.T) {
		rr := call(http.MethodPost, "/applications", applicant, `{"service_name":"city_pass","form_data":{"district":"north"}}`)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		appID = testutil.UnmarshalResponse[apphandler.ApplicationResponse](t, rr).ID
	})

	t.Run("applicant cannot reach admin routes", func(t *testing.T) {
		rr := call(http.MethodPost, "/admin/applications/"+appID+"/vet", applicant, "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("vet then approve", func(t *testing.T) {
		rr := call(http.MethodPost, "/admin/applications/"+appID+"/approve", vetting, "")
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

		rr = call(http.MethodPost, "/admin/applications/"+appID+"/vet", vetting, `{"note":"documents checked"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		rr = call(http.MethodPost, "/admin/applications/"+appID+"/approve", approving, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		approved := testutil.UnmarshalResponse[apphandler.ApplicationResponse](t, rr)
		assert.Equal(t, "completed", approved.Status)
		assert.True(t, strings.HasPrefix(approved.ReferenceNumber, "CP-"), approved.ReferenceNumber)
	})

	t.Run("detail carries history", func(t *testing.T) {
		rr := call(http.MethodGet, "/applications/"+appID, applicant, "")
		require.Equal(t, http.StatusOK, rr.Code)
		detail := testutil.UnmarshalResponse[apphandler.DetailResponse](t, rr)
		require.Len(t, detail.History, 2)
		assert.Equal(t, "vet", detail.History[0].Action)
		assert.Equal(t, "approve", detail.History[1].Action)
	})

	t.Run("metrics", func(t *testing.T) {
		rr := call(http.MethodGet, "/metrics", "", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "portal_http_requests_total")
	})
}
