package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ticketly/ticket-service/internal/domain"
)

var (
	// ErrInvalidToken covers bad signatures, expiry and malformed input.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongTokenKind is returned when an access token is presented as refresh or vice versa.
	ErrWrongTokenKind = errors.New("wrong token kind")
)

// TokenSettings carries the signing keys and lifetimes.
type TokenSettings struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenService issues and validates access and refresh JWTs signed with separate keys.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService builds a service. Secrets must be non-empty and distinct.
func NewTokenService(settings TokenSettings) (*TokenService, error) {
	if settings.AccessSecret == "" || settings.RefreshSecret == "" {
		return nil, errors.New("token secrets are required")
	}
	if settings.AccessSecret == settings.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if settings.AccessTTL <= 0 {
		settings.AccessTTL = 14 * 24 * time.Hour
	}
	if settings.RefreshTTL <= 0 {
		settings.RefreshTTL = 14 * 24 * time.Hour
	}
	return &TokenService{
		accessSecret:  []byte(settings.AccessSecret),
		refreshSecret: []byte(settings.RefreshSecret),
		accessTTL:     settings.AccessTTL,
		refreshTTL:    settings.RefreshTTL,
		now:           time.Now,
	}, nil
}

// RefreshTTL is the lifetime of refresh tokens, used for the cookie expiry.
func (ts *TokenService) RefreshTTL() time.Duration {
	return ts.refreshTTL
}

// Claims describes the JWT payload.
type Claims struct {
	Kind domain.TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// Token converts claims to the domain view.
func (c *Claims) Token() domain.Token {
	t := domain.Token{ID: c.ID, SubjectID: c.Subject, Kind: c.Kind}
	if c.IssuedAt != nil {
		t.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		t.ExpiresAt = c.ExpiresAt.Time
	}
	return t
}

// IssueAccessToken signs a short-lived bearer token for subjectID.
func (ts *TokenService) IssueAccessToken(subjectID string) (string, time.Time, error) {
	return ts.issue(domain.TokenKindAccess, subjectID)
}

// IssueRefreshToken signs a refresh token for subjectID with the refresh key.
func (ts *TokenService) IssueRefreshToken(subjectID string) (string, time.Time, error) {
	return ts.issue(domain.TokenKindRefresh, subjectID)
}

func (ts *TokenService) issue(kind domain.TokenKind, subjectID string) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	secret, ttl := ts.keyFor(kind)
	now := ts.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

// Verify validates token against the key for kind. It never panics; every
// failure is reported as ErrInvalidToken or ErrWrongTokenKind.
func (ts *TokenService) Verify(kind domain.TokenKind, token string) (*Claims, error) {
	secret, _ := ts.keyFor(kind)
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}

func (ts *TokenService) keyFor(kind domain.TokenKind) ([]byte, time.Duration) {
	if kind == domain.TokenKindRefresh {
		return ts.refreshSecret, ts.refreshTTL
	}
	return ts.accessSecret, ts.accessTTL
}

// HashRefreshToken returns the stored representation of a refresh token.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RefreshTokenMatches compares token against a stored hash in constant time.
func RefreshTokenMatches(token, hash string) bool {
	if hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashRefreshToken(token)), []byte(hash)) == 1
}
