package repository

import (
	"github.com/mirkodev/notes-service/internal/domain"

	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Session{},
		&domain.Note{},
		&domain.Tag{},
		&domain.SharedNote{},
	)
}
