package http

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ticketly/ticket-service/internal/api/http/handlers"
	"github.com/ticketly/ticket-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Metrics       *handlers.MetricsHandler
	Users         *handlers.UsersHandler
	Profiles      *handlers.ProfileHandler
	Tickets       *handlers.TicketsHandler
	Authenticator *auth.Authenticator
	Policy        *auth.Policy

	// LoginLimiter and RegisterLimiter are optional rate limit middlewares.
	LoginLimiter    fiber.Handler
	RegisterLimiter fiber.Handler

	// StaticDir is served as a single page app when set.
	StaticDir string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Snapshot)
	}

	api := app.Group("/api")
	authn := cfg.Authenticator.Handle
	require := func(capability auth.Capability) fiber.Handler {
		return auth.Require(cfg.Policy, capability)
	}

	users := api.Group("/users")
	users.Post("/register", optional(cfg.RegisterLimiter), cfg.Users.Register)
	users.Post("/login", optional(cfg.LoginLimiter), cfg.Users.Login)
	users.Post("/logout", authn, cfg.Users.Logout)
	users.Get("/verify-email/:token", cfg.Users.VerifyEmail)
	users.Get("/refresh-token", cfg.Users.RefreshToken)
	users.Post("/forgot-password", cfg.Users.ForgotPassword)
	users.Post("/reset-password/:token", cfg.Users.ResetPassword)

	users.Get("/profile/:id?", authn, require(auth.CapProfileRead), cfg.Profiles.GetProfile)
	users.Put("/profile/:id?", authn, require(auth.CapProfileUpdate), cfg.Profiles.UpdateProfile)
	users.Get("/users", authn, require(auth.CapUserList), cfg.Profiles.ListUsers)
	users.Get("", authn, require(auth.CapUserList), cfg.Profiles.ListUsers)
	users.Put("/:id/change-password", authn, require(auth.CapPasswordChange), cfg.Users.ChangePassword)
	users.Delete("/:id", authn, require(auth.CapUserDelete), cfg.Profiles.DeleteUser)

	tickets := api.Group("/tickets", authn)
	tickets.Get("", require(auth.CapTicketList), cfg.Tickets.ListTickets)
	tickets.Post("", require(auth.CapTicketCreate), cfg.Tickets.CreateTicket)
	tickets.Get("/:id", require(auth.CapTicketRead), cfg.Tickets.GetTicket)
	tickets.Patch("/:id", require(auth.CapTicketUpdateStatus), cfg.Tickets.UpdateStatus)
	tickets.Delete("/:id", require(auth.CapTicketDelete), cfg.Tickets.DeleteTicket)

	if cfg.StaticDir != "" {
		registerStatic(app, cfg.StaticDir)
	}
}

func optional(h fiber.Handler) fiber.Handler {
	if h == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return h
}

// registerStatic serves built frontend assets and falls back to index.html for
// client-side routes. Unknown /api paths still 404.
func registerStatic(app *fiber.App, dir string) {
	index := filepath.Join(dir, "index.html")
	app.Static("/", dir)
	app.Get("/*", func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api/") || c.Path() == "/api" {
			return fiber.ErrNotFound
		}
		if _, err := os.Stat(index); err != nil {
			return fiber.ErrNotFound
		}
		return c.SendFile(index)
	})
}
