package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ticketly/ticket-service/internal/domain"
	"github.com/ticketly/ticket-service/internal/repository"
	apperrors "github.com/ticketly/ticket-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller with secrets stripped.
type Principal struct {
	User domain.User
}

// Role returns the caller's role.
func (p *Principal) Role() domain.Role {
	return p.User.Role
}

// Authenticator validates bearer tokens and loads principals.
type Authenticator struct {
	tokens *TokenService
	users  repository.UserRepository
}

// NewAuthenticator constructs middleware.
func NewAuthenticator(tokens *TokenService, users repository.UserRepository) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (a *Authenticator) Handle(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := a.tokens.Verify(domain.TokenKindAccess, token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := a.users.GetByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.NewInternalError(err)
	}

	c.Locals(principalKey, &Principal{User: user.Sanitized()})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	principal, ok := c.Locals(principalKey).(*Principal)
	return principal, ok && principal != nil
}
