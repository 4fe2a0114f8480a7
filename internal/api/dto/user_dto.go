package dto

import "time"

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	FirstName      string `json:"first_name" form:"first_name"`
	LastName       string `json:"last_name" form:"last_name"`
	Email          string `json:"email" form:"email"`
	Phone          string `json:"phone" form:"phone"`
	Password       string `json:"password" form:"password"`
	Role           string `json:"role" form:"role"`
	DisplayPicture string `json:"display_picture" form:"display_picture"`
}

// LoginRequest identifies the account by email or phone.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Phone    string `json:"phone" form:"phone"`
	Password string `json:"password" form:"password"`
}

// ForgotPasswordRequest payload.
type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email"`
	Phone string `json:"phone" form:"phone"`
}

// ResetPasswordRequest payload; the token travels in the path.
type ResetPasswordRequest struct {
	Password string `json:"password" form:"password"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password"`
	NewPassword     string `json:"new_password" form:"new_password"`
}

// ProfileUpdateRequest payload. A nil picture leaves it unchanged.
type ProfileUpdateRequest struct {
	FirstName      string  `json:"first_name" form:"first_name"`
	LastName       string  `json:"last_name" form:"last_name"`
	DisplayPicture *string `json:"display_picture" form:"display_picture"`
}

// UserResponse is the sanitized account returned to its owner.
type UserResponse struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	DisplayPicture string    `json:"display_picture"`
	Role           string    `json:"role"`
	IsVerified     bool      `json:"is_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ClientProfile is the field set a client sees of their own profile.
type ClientProfile struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	DisplayPicture string `json:"display_picture"`
}

// StaffProfile is the field set agents and admins see.
type StaffProfile struct {
	ClientProfile
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse is returned by login and refresh. The refresh token only
// ever travels in its cookie.
type SessionResponse struct {
	AccessToken string        `json:"access_token"`
	ExpiresAt   time.Time     `json:"expires_at"`
	User        *UserResponse `json:"user,omitempty"`
}

// PasswordResetResponse exposes the reset token when delivery is stubbed.
type PasswordResetResponse struct {
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// DeleteUserResponse reports the cascade.
type DeleteUserResponse struct {
	ID             string `json:"id"`
	TicketsRemoved int    `json:"tickets_removed"`
}
