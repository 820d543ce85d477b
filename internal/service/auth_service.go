package service

import (
	"context"
	"errors"
	"time"

	"github.com/mirkodev/notes-service/internal/domain"
	"github.com/mirkodev/notes-service/internal/observability"
	"github.com/mirkodev/notes-service/internal/repository"
	"github.com/mirkodev/notes-service/internal/security"

	"github.com/google/uuid"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// AuthService orchestrates login, refresh-token rotation, logout and
// identity resolution. All collaborators are injected; the service holds no
// mutable state beyond them and is safe for concurrent use.
type AuthService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	jwtMgr     *security.JWTManager
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, jwtMgr *security.JWTManager, accessTTL, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		jwtMgr:     jwtMgr,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Login validates the credentials and persists a fresh session. The
// disabled flag is deliberately not checked here: a disabled account can
// still log in but is rejected by RequireActive on every protected request.
func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.users.FindByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthLogin("user_not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordAuthLogin("error")
		return nil, err
	}
	if !security.VerifyPassword(user.PasswordHash, password) {
		observability.RecordAuthLogin("invalid_password")
		return nil, ErrInvalidCredentials
	}
	pair, _, err := s.mintSession(user.ID)
	if err != nil {
		observability.RecordAuthLogin("error")
		return nil, err
	}
	observability.RecordAuthLogin("success")
	return pair, nil
}

// Refresh rotates the presented refresh token: the matching active session
// is deactivated and replaced by a successor inside one repository
// transaction, so a replayed token either wins the race or fails cleanly.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	old, err := s.sessions.FindActiveByRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordAuthRefresh("invalid_token")
			return nil, ErrInvalidRefreshToken
		}
		observability.RecordAuthRefresh("error")
		return nil, err
	}
	if !old.RefreshExpires.After(s.now()) {
		observability.RecordAuthRefresh("expired")
		return nil, ErrInvalidRefreshToken
	}

	pair, successor, err := s.buildSession(old.UserID)
	if err != nil {
		observability.RecordAuthRefresh("error")
		return nil, err
	}
	if err := s.sessions.Rotate(old.SessionID, successor); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			// Lost a race against a concurrent refresh of the same token.
			observability.RecordAuthRefresh("invalid_token")
			return nil, ErrInvalidRefreshToken
		}
		observability.RecordAuthRefresh("error")
		return nil, err
	}
	observability.RecordAuthRefresh("success")
	return pair, nil
}

// Logout deactivates the session named by the caller's access token. It is
// idempotent: logging out an already-inactive or missing session succeeds.
func (s *AuthService) Logout(ctx context.Context, userID uint, sessionID string) error {
	if _, err := s.sessions.DeactivateByIDForUser(userID, sessionID); err != nil {
		observability.RecordAuthLogout("error")
		return err
	}
	observability.RecordAuthLogout("success")
	return nil
}

// RevokeSession ends one named session, scoped to the caller.
func (s *AuthService) RevokeSession(ctx context.Context, userID uint, sessionID string) (bool, error) {
	return s.sessions.DeactivateByIDForUser(userID, sessionID)
}

// RevokeAll ends every active session the user holds ("log out everywhere").
func (s *AuthService) RevokeAll(ctx context.Context, userID uint) (int64, error) {
	return s.sessions.DeactivateAllByUser(userID)
}

func (s *AuthService) ListSessions(ctx context.Context, userID uint) ([]domain.Session, error) {
	return s.sessions.ListActiveByUser(userID)
}

// Resolve turns a presented access token into the authenticated user. A
// structurally valid, unexpired token is necessary but not sufficient: the
// session its jti references must still be active and unexpired, which is
// what makes logout and rotation take effect immediately.
func (s *AuthService) Resolve(ctx context.Context, rawToken string) (*domain.User, *security.Claims, error) {
	claims, err := s.jwtMgr.Decode(rawToken)
	if err != nil {
		return nil, nil, ErrUnauthenticated
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, nil, ErrUnauthenticated
	}
	session, err := s.sessions.FindActiveBySessionID(claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, err
	}
	if session.UserID != userID {
		return nil, nil, ErrUnauthenticated
	}
	user, err := s.users.FindByID(session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}
	return user, claims, nil
}

func (s *AuthService) mintSession(userID uint) (*TokenPair, *domain.Session, error) {
	pair, session, err := s.buildSession(userID)
	if err != nil {
		return nil, nil, err
	}
	// No token leaves this function unless the row is committed.
	if err := s.sessions.Create(session); err != nil {
		return nil, nil, err
	}
	return pair, session, nil
}

func (s *AuthService) buildSession(userID uint) (*TokenPair, *domain.Session, error) {
	now := s.now()
	sessionID := uuid.NewString()
	refreshToken, err := security.NewRefreshToken()
	if err != nil {
		return nil, nil, err
	}
	accessExpires := now.Add(s.accessTTL)
	accessToken, err := s.jwtMgr.Encode(userID, sessionID, accessExpires)
	if err != nil {
		return nil, nil, err
	}
	session := &domain.Session{
		SessionID:      sessionID,
		UserID:         userID,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		AccessExpires:  accessExpires,
		RefreshExpires: now.Add(s.refreshTTL),
		IsActive:       true,
	}
	pair := &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: "bearer"}
	return pair, session, nil
}
