package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ehealth-cst/ehealth-client/internal/auth"
	"github.com/ehealth-cst/ehealth-client/internal/config"
	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/repository"
	apperrors "github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

// mfaChallengeTTL bounds how long a password-verified login may wait for its code.
const mfaChallengeTTL = 5 * time.Minute

// IssuedTokens is the credential pair handed to a client, with the session it
// belongs to.
type IssuedTokens struct {
	Session        *domain.Session
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

// LoginResult is the outcome of a password login. Tokens is nil when the user
// must complete MFA first.
type LoginResult struct {
	User        *domain.User
	MFARequired bool
	Tokens      *IssuedTokens
}

// AuthService coordinates login, MFA, refresh and session management.
type AuthService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	refreshTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	pending map[string]time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.SessionRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		refreshTTL: cfg.Auth.RefreshTokenTTL(),
		logger:     logger,
		now:        time.Now,
		pending:    make(map[string]time.Time),
	}
}

func invalidCredentials() error {
	return apperrors.NewUnauthorized("Invalid email or password")
}

func invalidMFACode() error {
	return apperrors.NewUnauthorized("Invalid or expired MFA code")
}

// Login checks the password. Users with MFA enabled get a pending challenge
// instead of tokens.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.CompareSecret(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrMismatch) {
			return nil, invalidCredentials()
		}
		return nil, apperrors.NewInternalError(err)
	}

	if user.MFAEnabled {
		s.mu.Lock()
		s.pending[user.Email] = s.now().Add(mfaChallengeTTL)
		s.mu.Unlock()
		s.logger.Info("mfa challenge issued", zap.String("user_id", user.ID))
		return &LoginResult{User: user, MFARequired: true}, nil
	}

	tokens, err := s.issue(ctx, user, userAgent)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

// VerifyMFALogin completes a login that was answered with an MFA challenge.
// A successful verification consumes the challenge.
func (s *AuthService) VerifyMFALogin(ctx context.Context, email, code, userAgent string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || code == "" {
		return nil, apperrors.NewValidationError("email and code required", nil)
	}

	s.mu.Lock()
	deadline, ok := s.pending[email]
	if ok && !s.now().Before(deadline) {
		delete(s.pending, email)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, invalidMFACode()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidMFACode()
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.CompareSecret(user.MFACodeHash, code); err != nil {
		if errors.Is(err, auth.ErrMismatch) {
			return nil, invalidMFACode()
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.mu.Lock()
	delete(s.pending, email)
	s.mu.Unlock()

	tokens, err := s.issue(ctx, user, userAgent)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

func (s *AuthService) issue(ctx context.Context, user *domain.User, userAgent string) (*IssuedTokens, error) {
	now := s.now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	refresh := auth.NewRefreshToken()
	if err := s.sessions.Create(ctx, session, refresh); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	access, accessExp, err := s.tokenMgr.GenerateToken(user.ID, session.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("session created", zap.String("user_id", user.ID), zap.String("session_id", session.ID))
	return &IssuedTokens{
		Session:        session,
		AccessToken:    access,
		AccessExpires:  accessExp,
		RefreshToken:   refresh,
		RefreshExpires: session.ExpiresAt,
	}, nil
}

// Refresh rotates the refresh token and issues a new access token for the
// same session. Reusing an already rotated token ends the session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*IssuedTokens, error) {
	if refreshToken == "" {
		return nil, apperrors.NewUnauthorized("missing refresh token")
	}

	next := auth.NewRefreshToken()
	session, err := s.sessions.Rotate(ctx, refreshToken, next, s.now().UTC().Add(s.refreshTTL))
	switch {
	case errors.Is(err, repository.ErrTokenReplay):
		s.logger.Warn("refresh token replayed; session revoked")
		return nil, apperrors.NewUnauthorized("Invalid refresh token")
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NewUnauthorized("Invalid refresh token")
	case err != nil:
		return nil, apperrors.NewInternalError(err)
	}

	access, accessExp, err := s.tokenMgr.GenerateToken(session.UserID, session.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &IssuedTokens{
		Session:        session,
		AccessToken:    access,
		AccessExpires:  accessExp,
		RefreshToken:   next,
		RefreshExpires: session.ExpiresAt,
	}, nil
}

// Logout revokes a session. Revoking an unknown session is not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// ListSessions returns the user's sessions, flagging currentID.
func (s *AuthService) ListSessions(ctx context.Context, userID, currentID string) ([]domain.Session, error) {
	list, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for i := range list {
		list[i].IsCurrent = list[i].ID == currentID
	}
	return list, nil
}

// DeleteSession revokes one of the user's sessions.
func (s *AuthService) DeleteSession(ctx context.Context, userID, sessionID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && session.UserID != userID) {
		return apperrors.NewNotFound("session", map[string]any{"id": sessionID})
	}
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return s.Logout(ctx, sessionID)
}

// DeleteOtherSessions revokes every session of the user except currentID.
func (s *AuthService) DeleteOtherSessions(ctx context.Context, userID, currentID string) (int, error) {
	n, err := s.sessions.DeleteByUser(ctx, userID, currentID)
	if err != nil {
		return n, apperrors.NewInternalError(err)
	}
	return n, nil
}

// ToggleAvailability flips the health assistant's availability flag.
func (s *AuthService) ToggleAvailability(ctx context.Context, userID string) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, apperrors.NewNotFound("user", nil)
		}
		return false, apperrors.NewInternalError(err)
	}
	user.IsAvailable = !user.IsAvailable
	if err := s.users.Update(ctx, user); err != nil {
		return false, apperrors.NewInternalError(err)
	}
	return user.IsAvailable, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
