package auth

import "time"

type UserRole string

const (
	RoleGuest UserRole = "guest"
	RoleHost  UserRole = "host"
	RoleAdmin UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleGuest, RoleHost, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID                  int64      `gorm:"primaryKey" json:"id"`
	Email               string     `gorm:"size:255;not null;uniqueIndex:idx_users_email" json:"email"`
	PasswordHash        string     `gorm:"size:255;not null" json:"-"`
	Role                UserRole   `gorm:"size:20;not null;default:guest" json:"role"`
	Name                string     `gorm:"size:255;not null" json:"name"`
	Phone               string     `gorm:"size:32" json:"phone,omitempty"`
	IsBanned            bool       `gorm:"not null;default:false" json:"is_banned"`
	BannedAt            *time.Time `json:"banned_at,omitempty"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&User{}, &RefreshToken{}}
}
