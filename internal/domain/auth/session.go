package auth

import "time"

// RefreshToken is one opaque refresh credential. Tokens rotate on every
// refresh; all tokens minted from one login share a FamilyID so reuse of a
// rotated token revokes the whole family.
type RefreshToken struct {
	ID              int64      `gorm:"primaryKey"`
	UserID          int64      `gorm:"not null;index"`
	TokenHash       string     `gorm:"size:64;not null;uniqueIndex"`
	FamilyID        string     `gorm:"size:36;not null;index"`
	RotatedFrom     *int64     `gorm:"column:rotated_from"`
	UserAgent       *string    `gorm:"size:512"`
	IP              *string    `gorm:"size:64"`
	ExpiresAt       time.Time  `gorm:"not null;index"`
	UsedAt          *time.Time
	RevokedAt       *time.Time
	ReuseDetectedAt *time.Time
	CreatedAt       time.Time
}

func (RefreshToken) TableName() string { return "refresh_tokens" }
