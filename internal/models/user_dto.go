package models

import "time"

// CreateUserRequest represents the request body for creating an administrative user
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// TokenRequest carries username/password for POST /auth/token.
// Both form and JSON encodings are accepted.
type TokenRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// TokenResponse is the bearer token issued to an authenticated user
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// UserResponse represents a user without the password hash
type UserResponse struct {
	Id        string         `json:"id"`
	Username  string         `json:"username"`
	Email     string         `json:"email,omitempty"`
	State     LifecycleState `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToResponse converts a domain User to a UserResponse DTO
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		Id:        u.Id,
		Username:  u.Username,
		Email:     u.Email,
		State:     u.State,
		CreatedAt: u.CreatedAt,
	}
}
