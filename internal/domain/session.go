package domain

import "time"

// Session correlates one issued token pair with its owning user. The
// SessionID doubles as the access token's jti claim. Rows are never updated
// in place except to flip IsActive off; a refresh always inserts a successor
// row instead of mutating the old one.
type Session struct {
	SessionID      string    `gorm:"primaryKey;size:64" json:"session_id"`
	UserID         uint      `gorm:"index;not null" json:"user_id"`
	AccessToken    string    `gorm:"size:1024;uniqueIndex" json:"-"`
	RefreshToken   string    `gorm:"size:128;uniqueIndex;not null" json:"-"`
	AccessExpires  time.Time `gorm:"not null" json:"access_expires"`
	RefreshExpires time.Time `gorm:"not null" json:"refresh_expires"`
	IsActive       bool      `gorm:"index;not null;default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}
