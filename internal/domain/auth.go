package domain

import "time"

// TokenKind differentiates access from refresh tokens. It is carried in the "typ" claim.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Token describes an issued signed token.
type Token struct {
	ID        string
	SubjectID string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is the result of a successful login or refresh.
type Session struct {
	User             User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
