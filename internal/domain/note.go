package domain

import "time"

const (
	CategoryWork    = "work"
	CategoryStudy   = "study"
	CategoryUnknown = "unknown"
)

const (
	SharePermissionRead  = "read"
	SharePermissionWrite = "write"
)

func ValidCategory(c string) bool {
	switch c {
	case CategoryWork, CategoryStudy, CategoryUnknown:
		return true
	}
	return false
}

type Note struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"not null" json:"text"`
	Category  string    `gorm:"size:16;not null;default:unknown" json:"category"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Tags      []Tag     `gorm:"many2many:note_tags" json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"-"`
	Name string `gorm:"size:64;uniqueIndex;not null" json:"tag"`
}

// SharedNote grants TargetUserID read or write access to one of
// OwnerID's notes.
type SharedNote struct {
	NoteID       uint   `gorm:"primaryKey;autoIncrement:false" json:"note_id"`
	OwnerID      uint   `gorm:"primaryKey;autoIncrement:false" json:"original_user_id"`
	TargetUserID uint   `gorm:"primaryKey;autoIncrement:false" json:"shared_user_id"`
	Permission   string `gorm:"size:16;not null;default:read" json:"permission"`
}
