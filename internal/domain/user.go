package domain

import (
	"strings"
	"time"
)

// Role enumerates what an identity may do.
type Role string

const (
	RoleClient Role = "client"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

// ParseRole normalises a role string; ok is false for unknown roles.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// IsStaff is true for agents and admins.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// User is the credential record for anyone who signs in.
type User struct {
	ID                  string
	FirstName           string
	LastName            string
	Email               string
	Phone               string
	PasswordHash        string
	DisplayPicture      string
	Role                Role
	IsVerified          bool
	VerificationToken   *string
	VerificationExpires *time.Time
	ResetToken          *string
	ResetExpires        *time.Time
	RefreshTokenHash    *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Sanitized returns a copy with secrets and single-use tokens removed.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.RefreshTokenHash = nil
	u.VerificationToken = nil
	u.VerificationExpires = nil
	u.ResetToken = nil
	u.ResetExpires = nil
	return u
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
