package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mirkodev/notes-service/internal/domain"
	"github.com/mirkodev/notes-service/internal/repository"
	"github.com/mirkodev/notes-service/internal/security"
)

type inMemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newInMemorySessionRepo() *inMemorySessionRepo {
	return &inMemorySessionRepo{sessions: map[string]*domain.Session{}}
}

func (r *inMemorySessionRepo) Create(s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[cp.SessionID] = &cp
	return nil
}

func (r *inMemorySessionRepo) FindActiveByRefreshToken(token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.RefreshToken == token && s.IsActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrSessionNotFound
}

func (r *inMemorySessionRepo) FindActiveBySessionID(sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || !s.IsActive || !s.AccessExpires.After(time.Now()) {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *inMemorySessionRepo) Rotate(oldSessionID string, newSession *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.sessions[oldSessionID]
	if !ok || !old.IsActive {
		return repository.ErrSessionNotFound
	}
	old.IsActive = false
	cp := *newSession
	r.sessions[cp.SessionID] = &cp
	return nil
}

func (r *inMemorySessionRepo) Deactivate(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.IsActive = false
	}
	return nil
}

func (r *inMemorySessionRepo) DeactivateByIDForUser(userID uint, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.UserID != userID || !s.IsActive {
		return false, nil
	}
	s.IsActive = false
	return true, nil
}

func (r *inMemorySessionRepo) DeactivateAllByUser(userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *inMemorySessionRepo) ListActiveByUser(userID uint) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

type inMemoryUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{nextID: 1, users: map[uint]*domain.User{}}
}

func (r *inMemoryUserRepo) Create(u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	cp.ID = r.nextID
	r.nextID++
	r.users[cp.ID] = &cp
	u.ID = cp.ID
	return nil
}

func (r *inMemoryUserRepo) FindByID(id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) FindByUsername(username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) FindByEmail(email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) Update(u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *inMemoryUserRepo) List() ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func newTestAuthService(t *testing.T) (*AuthService, *inMemoryUserRepo, *inMemorySessionRepo) {
	t.Helper()
	users := newInMemoryUserRepo()
	sessions := newInMemorySessionRepo()
	jwtMgr := security.NewJWTManager("notes-service", "abcdefghijklmnopqrstuvwxyz123456")
	svc := NewAuthService(users, sessions, jwtMgr, 15*time.Minute, 7*24*time.Hour)
	return svc, users, sessions
}

func seedUser(t *testing.T, users *inMemoryUserRepo, username, password string) *domain.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{Username: username, Email: username + "@dev.com", PasswordHash: hash, Role: domain.RoleUser}
	if err := users.Create(u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestLoginIssuesPairBoundToActiveSession(t *testing.T) {
	svc, users, sessions := newTestAuthService(t)
	alice := seedUser(t, users, "alice", "correct")

	pair, err := svc.Login(context.Background(), "alice", "correct")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.TokenType != "bearer" {
		t.Fatalf("unexpected token type %q", pair.TokenType)
	}

	claims, err := svc.jwtMgr.Decode(pair.AccessToken)
	if err != nil {
		t.Fatalf("decode access token: %v", err)
	}
	uid, err := claims.UserID()
	if err != nil {
		t.Fatalf("user id: %v", err)
	}
	if uid != alice.ID {
		t.Fatalf("expected sub %d, got %d", alice.ID, uid)
	}
	session, err := sessions.FindActiveBySessionID(claims.ID)
	if err != nil {
		t.Fatalf("expected active session for jti %q: %v", claims.ID, err)
	}
	if session.UserID != alice.ID || session.RefreshToken != pair.RefreshToken {
		t.Fatalf("session does not match issued pair: %+v", session)
	}
}

func TestLoginRejectsUnknownUserAndWrongPassword(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	seedUser(t, users, "alice", "correct")

	if _, err := svc.Login(context.Background(), "nobody", "x"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginAllowsDisabledAccount(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	u := seedUser(t, users, "moure", "pw")
	u.Disabled = true
	if err := users.Update(u); err != nil {
		t.Fatalf("disable: %v", err)
	}

	// Disabled-ness is enforced at resolution time, not at login.
	if _, err := svc.Login(context.Background(), "moure", "pw"); err != nil {
		t.Fatalf("expected disabled user to log in, got %v", err)
	}
}

func TestConcurrentLoginsProduceIndependentSessions(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	alice := seedUser(t, users, "alice", "pw")

	first, err := svc.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := svc.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if first.RefreshToken == second.RefreshToken {
		t.Fatal("expected distinct refresh tokens per login")
	}

	active, err := svc.ListSessions(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 parallel sessions, got %d", len(active))
	}
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	seedUser(t, users, "alice", "pw")

	pair, err := svc.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("rotation must mint a fresh refresh token")
	}

	// The rotated-out token is single-use.
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
	// The successor still works.
	if _, err := svc.Refresh(context.Background(), next.RefreshToken); err != nil {
		t.Fatalf("successor refresh: %v", err)
	}
}

func TestRefreshInvalidatesOldAccessToken(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	seedUser(t, users, "alice", "pw")

	pair, err := svc.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// The pre-rotation access token is cryptographically fine but its
	// session is gone.
	if _, _, err := svc.Resolve(context.Background(), pair.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for rotated-out access token, got %v", err)
	}
}

func TestRefreshRejectsExpiredRefreshToken(t *testing.T) {
	svc, users, sessions := newTestAuthService(t)
	seedUser(t, users, "alice", "pw")

	pair, err := svc.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	for _, s := range sessions.sessions {
		s.RefreshExpires = time.Now().Add(-time.Minute)
	}

	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected expired refresh token to fail, got %v", err)
	}
}

func TestResolveAndLogout(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	alice := seedUser(t, users, "alice", "pw")

	pair, err := svc.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	user, claims, err := svc.Resolve(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if user.ID != alice.ID {
		t.Fatalf("resolved wrong user: %+v", user)
	}

	if err := svc.Logout(context.Background(), user.ID, claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	// Logout is idempotent.
	if err := svc.Logout(context.Background(), user.ID, claims.ID); err != nil {
		t.Fatalf("repeat logout: %v", err)
	}
	if err := svc.Logout(context.Background(), user.ID, "no-such-session"); err != nil {
		t.Fatalf("logout of unknown session: %v", err)
	}

	// The unexpired access token is dead once its session ended.
	if _, _, err := svc.Resolve(context.Background(), pair.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after logout, got %v", err)
	}
}

func TestResolveRejectsGarbageToken(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	if _, _, err := svc.Resolve(context.Background(), "not-a-token"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolveReportsVanishedUser(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	alice := seedUser(t, users, "alice", "pw")

	pair, err := svc.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := users.Delete(alice.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	if _, _, err := svc.Resolve(context.Background(), pair.AccessToken); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for deleted user, got %v", err)
	}
}

func TestRevokeAllEndsEverySession(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	alice := seedUser(t, users, "alice", "pw")

	a, _ := svc.Login(context.Background(), "alice", "pw")
	b, _ := svc.Login(context.Background(), "alice", "pw")

	n, err := svc.RevokeAll(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 sessions revoked, got %d", n)
	}
	for _, pair := range []*TokenPair{a, b} {
		if _, _, err := svc.Resolve(context.Background(), pair.AccessToken); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected all tokens dead, got %v", err)
		}
	}
}
