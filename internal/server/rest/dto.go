package rest

import (
	"time"

	"github.com/avdeev/usersvc/internal/server/models"
)

// Request bodies are validated by gin's binding layer (validator tags)
// before any service call; the core never sees malformed input.

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=120"`
	Name     string `json:"name" binding:"required,max=120"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email,max=120"`
	Name     string `json:"name" binding:"required,max=120"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type UpdateUserRequest struct {
	Email string `json:"email" binding:"required,email,max=120"`
	Name  string `json:"name" binding:"required,max=120"`
}

type AuthResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserResponse is the public view of an account. The password hash is
// deliberately absent.
type UserResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
