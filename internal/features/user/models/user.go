package models

import "time"

// User представляет пользователя системы. Authentication material is either a
// bcrypt password hash with a username, or a 33-byte compressed linking key
// from an LNURL-auth wallet; linked accounts may carry both.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username,omitempty"`
	PasswordHash     string    `json:"-"`
	LinkingKey       string    `json:"-"`
	DisplayName      string    `json:"display_name"`
	LightningAddress string    `json:"lightning_address,omitempty"`
	IsAdmin          bool      `json:"is_admin"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UserResponse представляет публичную информацию о пользователе
type UserResponse struct {
	ID               string    `json:"userId"`
	Username         string    `json:"username,omitempty"`
	DisplayName      string    `json:"displayName"`
	LightningAddress string    `json:"lightningAddress,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func ToUserResponse(u *User) *UserResponse {
	return &UserResponse{
		ID:               u.ID,
		Username:         u.Username,
		DisplayName:      u.DisplayName,
		LightningAddress: u.LightningAddress,
		CreatedAt:        u.CreatedAt,
	}
}

type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type LightningAddressRequest struct {
	LightningAddress string `json:"lightningAddress"`
}
