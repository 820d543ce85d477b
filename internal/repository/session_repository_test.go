package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mirkodev/notes-service/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSessionRepositoryRefreshTokenLookupRequiresActive(t *testing.T) {
	repo := newSessionRepoForTest(t)

	s := testSession("s1", 1, "refresh-1")
	if err := repo.Create(s); err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := repo.FindActiveByRefreshToken("refresh-1")
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if found.SessionID != "s1" {
		t.Fatalf("unexpected session: %+v", found)
	}

	if err := repo.Deactivate("s1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := repo.FindActiveByRefreshToken("refresh-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after deactivation, got %v", err)
	}
}

func TestSessionRepositorySessionIDLookupFiltersExpiredAccess(t *testing.T) {
	repo := newSessionRepoForTest(t)

	expired := testSession("s-expired", 1, "refresh-expired")
	expired.AccessExpires = time.Now().UTC().Add(-time.Minute)
	if err := repo.Create(expired); err != nil {
		t.Fatalf("create expired: %v", err)
	}
	live := testSession("s-live", 1, "refresh-live")
	if err := repo.Create(live); err != nil {
		t.Fatalf("create live: %v", err)
	}

	if _, err := repo.FindActiveBySessionID("s-expired"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired access token session to be invisible, got %v", err)
	}
	if _, err := repo.FindActiveBySessionID("s-live"); err != nil {
		t.Fatalf("expected live session to resolve: %v", err)
	}
}

func TestSessionRepositoryRotate(t *testing.T) {
	repo := newSessionRepoForTest(t)

	old := testSession("s-old", 1, "refresh-old")
	if err := repo.Create(old); err != nil {
		t.Fatalf("create: %v", err)
	}

	successor := testSession("s-new", 1, "refresh-new")
	if err := repo.Rotate("s-old", successor); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := repo.FindActiveByRefreshToken("refresh-old"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected rotated-out token to be inactive, got %v", err)
	}
	got, err := repo.FindActiveByRefreshToken("refresh-new")
	if err != nil {
		t.Fatalf("find successor: %v", err)
	}
	if got.SessionID != "s-new" {
		t.Fatalf("unexpected successor: %+v", got)
	}

	// Rotating the same session again must fail without touching the
	// successor: a replayed refresh token gets nothing.
	if err := repo.Rotate("s-old", testSession("s-replay", 1, "refresh-replay")); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected replay rotate to fail, got %v", err)
	}
	if _, err := repo.FindActiveByRefreshToken("refresh-new"); err != nil {
		t.Fatalf("successor must survive failed replay: %v", err)
	}
	if _, err := repo.FindActiveByRefreshToken("refresh-replay"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("replay successor must not exist, got %v", err)
	}
}

func TestSessionRepositoryDeactivateScoping(t *testing.T) {
	repo := newSessionRepoForTest(t)

	if err := repo.Create(testSession("u1-a", 1, "r1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(testSession("u1-b", 1, "r2")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(testSession("u2-a", 2, "r3")); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Another user's session id is out of reach.
	changed, err := repo.DeactivateByIDForUser(1, "u2-a")
	if err != nil {
		t.Fatalf("deactivate foreign: %v", err)
	}
	if changed {
		t.Fatal("expected no rows changed for foreign session")
	}

	changed, err = repo.DeactivateByIDForUser(1, "u1-a")
	if err != nil {
		t.Fatalf("deactivate own: %v", err)
	}
	if !changed {
		t.Fatal("expected own session to be deactivated")
	}
	// Second deactivation is a no-op, not an error.
	changed, err = repo.DeactivateByIDForUser(1, "u1-a")
	if err != nil {
		t.Fatalf("repeat deactivate: %v", err)
	}
	if changed {
		t.Fatal("expected repeat deactivation to change nothing")
	}

	n, err := repo.DeactivateAllByUser(1)
	if err != nil {
		t.Fatalf("deactivate all: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 remaining session revoked, got %d", n)
	}

	sessions, err := repo.ListActiveByUser(2)
	if err != nil {
		t.Fatalf("list user 2: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != "u2-a" {
		t.Fatalf("user 2 sessions must be untouched: %+v", sessions)
	}
}

func testSession(id string, userID uint, refresh string) *domain.Session {
	now := time.Now().UTC()
	return &domain.Session{
		SessionID:      id,
		UserID:         userID,
		AccessToken:    "access-" + id,
		RefreshToken:   refresh,
		AccessExpires:  now.Add(15 * time.Minute),
		RefreshExpires: now.Add(7 * 24 * time.Hour),
		IsActive:       true,
	}
}

func newSessionRepoForTest(t *testing.T) SessionRepository {
	t.Helper()
	return NewSessionRepository(newTestDB(t))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
