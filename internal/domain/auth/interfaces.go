package auth

import (
	"context"

	"gorm.io/gorm"
)

// UserRepositoryInterface is the subset of user storage the auth service needs.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	DB() *gorm.DB
}

type jwtService interface {
	GenerateToken(userID int64, role string) (string, error)
}
