package auth

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=guest host"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserPublic struct {
	ID    int64    `json:"id"`
	Role  UserRole `json:"role"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
}

func toPublic(u *User) UserPublic {
	return UserPublic{ID: u.ID, Role: u.Role, Name: u.Name, Email: u.Email}
}
