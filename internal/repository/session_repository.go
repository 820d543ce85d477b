package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mirkodev/notes-service/internal/domain"
	"github.com/mirkodev/notes-service/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(s *domain.Session) error
	FindActiveByRefreshToken(token string) (*domain.Session, error)
	FindActiveBySessionID(sessionID string) (*domain.Session, error)
	Rotate(oldSessionID string, newSession *domain.Session) error
	Deactivate(sessionID string) error
	DeactivateByIDForUser(userID uint, sessionID string) (bool, error)
	DeactivateAllByUser(userID uint) (int64, error)
	ListActiveByUser(userID uint) ([]domain.Session, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(s *domain.Session) error {
	err := r.db.Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create", "success")
	return nil
}

// FindActiveByRefreshToken never looks a refresh token up without the
// is_active filter; replayed rotated tokens must miss here.
func (r *GormSessionRepository) FindActiveByRefreshToken(token string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.Where("refresh_token = ? AND is_active = ?", token, true).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_refresh_token", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_refresh_token", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_refresh_token", "success")
	return &s, nil
}

func (r *GormSessionRepository) FindActiveBySessionID(sessionID string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.Where("session_id = ? AND is_active = ? AND access_expires > ?", sessionID, true, time.Now().UTC()).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_session_id", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_session_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_session_id", "success")
	return &s, nil
}

// Rotate deactivates the old session and inserts its successor in one
// transaction. A concurrent refresh with the same token observes either the
// fully-old or the fully-new state, never a deactivated row without a
// successor.
func (r *GormSessionRepository) Rotate(oldSessionID string, newSession *domain.Session) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var s domain.Session
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ? AND is_active = ?", oldSessionID, true).
			First(&s).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if err := tx.Model(&domain.Session{}).
			Where("session_id = ?", oldSessionID).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(newSession).Error
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "rotate", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "session", "rotate", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "rotate", "success")
	return nil
}

func (r *GormSessionRepository) Deactivate(sessionID string) error {
	err := r.db.Model(&domain.Session{}).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Update("is_active", false).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "deactivate", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "deactivate", "success")
	return nil
}

func (r *GormSessionRepository) DeactivateByIDForUser(userID uint, sessionID string) (bool, error) {
	res := r.db.Model(&domain.Session{}).
		Where("user_id = ? AND session_id = ? AND is_active = ?", userID, sessionID, true).
		Update("is_active", false)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "deactivate_for_user", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "deactivate_for_user", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) DeactivateAllByUser(userID uint) (int64, error) {
	res := r.db.Model(&domain.Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "deactivate_all", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "deactivate_all", "success")
	return res.RowsAffected, nil
}

func (r *GormSessionRepository) ListActiveByUser(userID uint) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "list_active", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "list_active", "success")
	return sessions, nil
}
