package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ticketly/ticket-service/internal/api/dto"
	"github.com/ticketly/ticket-service/internal/service"
)

const (
	refreshCookieName = "refreshToken"
	accessCookieName  = "accessToken"
)

// CookieSettings controls the refresh token cookie.
type CookieSettings struct {
	Secure bool
	MaxAge time.Duration
}

// UsersHandler exposes the account lifecycle endpoints.
type UsersHandler struct {
	auth             *service.AuthService
	cookies          CookieSettings
	exposeResetToken bool
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, cookies CookieSettings, exposeResetToken bool) *UsersHandler {
	if cookies.MaxAge <= 0 {
		cookies.MaxAge = 14 * 24 * time.Hour
	}
	return &UsersHandler{auth: authService, cookies: cookies, exposeResetToken: exposeResetToken}
}

// Register handles POST /api/users/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		Password:       req.Password,
		Role:           req.Role,
		DisplayPicture: req.DisplayPicture,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data":    userResponse(*user),
		"message": "user registered successfully",
	})
}

// VerifyEmail handles GET /api/users/verify-email/:token.
func (h *UsersHandler) VerifyEmail(c *fiber.Ctx) error {
	user, err := h.auth.VerifyEmail(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(*user), "message": "email verified successfully"})
}

// Login handles POST /api/users/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.auth.Login(c.UserContext(), service.LoginInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, session.RefreshToken)
	return c.JSON(fiber.Map{
		"data": dto.SessionResponse{
			AccessToken: session.AccessToken,
			ExpiresAt:   session.AccessExpiresAt,
			User:        userResponse(session.User),
		},
		"message": "login successful",
	})
}

// RefreshToken handles GET /api/users/refresh-token. The refresh token is read
// from its cookie only.
func (h *UsersHandler) RefreshToken(c *fiber.Ctx) error {
	session, err := h.auth.Refresh(c.UserContext(), c.Cookies(refreshCookieName))
	if err != nil {
		return err
	}
	if session.RefreshToken != "" {
		h.setRefreshCookie(c, session.RefreshToken)
	}
	return c.JSON(fiber.Map{"data": dto.SessionResponse{
		AccessToken: session.AccessToken,
		ExpiresAt:   session.AccessExpiresAt,
	}})
}

// Logout handles POST /api/users/logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.auth.Logout(c.UserContext(), user.ID); err != nil {
		return err
	}
	h.clearCookies(c)
	return c.JSON(fiber.Map{"message": "logged out successfully"})
}

// ForgotPassword handles POST /api/users/forgot-password.
func (h *UsersHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	reset, err := h.auth.ForgotPassword(c.UserContext(), req.Email, req.Phone)
	if err != nil {
		return err
	}
	resp := fiber.Map{"message": "password reset instructions sent"}
	if h.exposeResetToken {
		resp["data"] = dto.PasswordResetResponse{ResetToken: reset.Token, ExpiresAt: reset.ExpiresAt}
	}
	return c.JSON(resp)
}

// ResetPassword handles POST /api/users/reset-password/:token.
func (h *UsersHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.UserContext(), c.Params("token"), req.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "password reset successfully"})
}

// ChangePassword handles PUT /api/users/:id/change-password.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.ChangePassword(c.UserContext(), user, c.Params("id"), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "password changed successfully"})
}

func (h *UsersHandler) setRefreshCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.cookies.MaxAge),
		HTTPOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *UsersHandler) clearCookies(c *fiber.Ctx) {
	for _, name := range []string{refreshCookieName, accessCookieName} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			HTTPOnly: true,
			Secure:   h.cookies.Secure,
			SameSite: fiber.CookieSameSiteStrictMode,
		})
	}
}
