package domain

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"user_id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	Disabled     bool      `gorm:"not null;default:false" json:"disabled"`
	Role         string    `gorm:"size:16;not null;default:user" json:"role"`
	Notes        []Note    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Sessions     []Session `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
