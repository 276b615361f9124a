package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"portal/internal/accounts/models"
	rlmodels "portal/internal/ratelimit/models"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/platform/sentinel"
	strutil "portal/pkg/platform/strings"
	"portal/pkg/requestcontext"
)

// Login authenticates email/password and issues an access token. Failed
// attempts are counted per client IP and per email; once either reaches the
// limit the caller is locked out until the window expires.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = models.NormalizeEmail(email)
	callers := strutil.DedupeAndTrim([]string{requestcontext.ClientIP(ctx), email})

	if err := s.checkLockout(ctx, callers); err != nil {
		return nil, err
	}

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, wrapAccountErr(err)
	}

	hash := s.timingHash()
	if account != nil {
		hash = []byte(account.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || account == nil {
		s.recordFailure(ctx, callers)
		s.logAudit(ctx, "login_failed")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}

	if s.limiter != nil {
		if err := s.limiter.ClearFailures(ctx, rlmodels.ActionLogin, email); err != nil {
			s.logger.WarnContext(ctx, "failed to clear login failures", "error", err)
		}
	}

	token, jti, err := s.tokens.GenerateAccessToken(account.ID, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	s.logAudit(ctx, "login_succeeded", "account_id", account.ID)

	return &LoginResult{
		AccessToken: token,
		TokenID:     jti,
		ExpiresIn:   s.tokenTTL,
		Account:     account,
	}, nil
}

// timingHash is compared against for unknown emails. It is built at the
// service's own cost so both failure paths take the same time.
func (s *Service) timingHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("portal-timing-equalizer"), s.bcryptCost)
	})
	return s.dummyHash
}

func (s *Service) checkLockout(ctx context.Context, callers []string) error {
	if s.limiter == nil {
		return nil
	}
	for _, caller := range callers {
		res, err := s.limiter.CheckAttempt(ctx, rlmodels.ActionLogin, caller)
		if err != nil {
			return err
		}
		if !res.Allowed {
			return dErrors.Wrap(&LockedOutError{RetryAfter: res.RetryAfter},
				dErrors.CodeTooManyRequests, "too many failed login attempts")
		}
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, callers []string) {
	if s.limiter == nil {
		return
	}
	for _, caller := range callers {
		if err := s.limiter.RecordFailure(ctx, rlmodels.ActionLogin, caller); err != nil {
			s.logger.WarnContext(ctx, "failed to record login failure", "error", err)
		}
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	args := append([]any{
		"log_type", "audit",
		"event", event,
		"request_id", requestcontext.RequestID(ctx),
	}, attrs...)
	s.logger.InfoContext(ctx, event, args...)
}
