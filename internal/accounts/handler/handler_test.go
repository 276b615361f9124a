package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"portal/internal/accounts/models"
	"portal/internal/accounts/service"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
)

type stubService struct {
	result *service.LoginResult
	err    error
	email  string
}

func (s *stubService) Login(_ context.Context, email, _ string) (*service.LoginResult, error) {
	s.email = email
	return s.result, s.err
}

type LoginHandlerSuite struct {
	suite.Suite
	svc    *stubService
	router chi.Router
}

func TestLoginHandlerSuite(t *testing.T) {
	suite.Run(t, new(LoginHandlerSuite))
}

func (s *LoginHandlerSuite) SetupTest() {
	s.svc = &stubService{}
	s.router = chi.NewRouter()
	New(s.svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *LoginHandlerSuite) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *LoginHandlerSuite) TestSuccess() {
	accountID := id.NewAccountID()
	s.svc.result = &service.LoginResult{
		AccessToken: "tok",
		ExpiresIn:   time.Hour,
		Account:     &models.Account{ID: accountID, Kind: models.KindApplicant},
	}

	rr := s.post(`{"email":" ada@example.com ","password":"secret-pass"}`)
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("ada@example.com", s.svc.email)

	var resp LoginResponse
	s.Require().NoError(json.NewDecoder(rr.Body).Decode(&resp))
	s.Equal("tok", resp.AccessToken)
	s.Equal("Bearer", resp.TokenType)
	s.Equal(3600, resp.ExpiresIn)
	s.Equal(accountID.String(), resp.AccountID)
}

func (s *LoginHandlerSuite) TestMissingFields() {
	rr := s.post(`{"email":"ada@example.com"}`)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *LoginHandlerSuite) TestInvalidCredentials() {
	s.svc.err = dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	rr := s.post(`{"email":"ada@example.com","password":"nope-nope"}`)
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *LoginHandlerSuite) TestLockedOut() {
	s.svc.err = dErrors.Wrap(&service.LockedOutError{RetryAfter: 2 * time.Minute},
		dErrors.CodeTooManyRequests, "too many failed login attempts")
	rr := s.post(`{"email":"ada@example.com","password":"nope-nope"}`)
	s.Equal(http.StatusTooManyRequests, rr.Code)
	s.Equal("120", rr.Header().Get("Retry-After"))
}
