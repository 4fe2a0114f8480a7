package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/ticketly/ticket-service/internal/api/http"
	"github.com/ticketly/ticket-service/internal/api/http/handlers"
	"github.com/ticketly/ticket-service/internal/auth"
	"github.com/ticketly/ticket-service/internal/config"
	"github.com/ticketly/ticket-service/internal/events"
	"github.com/ticketly/ticket-service/internal/observability"
	"github.com/ticketly/ticket-service/internal/persistence"
	"github.com/ticketly/ticket-service/internal/ratelimit"
	"github.com/ticketly/ticket-service/internal/repository"
	"github.com/ticketly/ticket-service/internal/service"
	"github.com/ticketly/ticket-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		userRepo   repository.UserRepository
		ticketRepo repository.TicketRepository
	)
	if pg.Enabled() {
		userRepo = repository.NewUserRepository(pg.Pool)
		ticketRepo = repository.NewTicketRepository(pg.Pool)
	} else {
		mem := repository.NewMemoryStore()
		userRepo = mem.Users()
		ticketRepo = mem.Tickets()
	}

	// without Redis the limiters fall back to fiber's per-process storage
	var limitStore ratelimit.Store
	if redis.Enabled() {
		limitStore = ratelimit.NewRedisStore(redis.Client, cfg.App.Name+":ratelimit")
	}

	tokens, err := auth.NewTokenService(auth.TokenSettings{
		AccessSecret:  cfg.Auth.AccessTokenSecret,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal("failed to init token service", zap.Error(err))
	}
	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("failed to init password hasher", zap.Error(err))
	}
	policy := auth.NewPolicy(auth.PolicyOptions{AgentsMayDeleteUsers: cfg.Auth.AgentsMayDeleteUsers})

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification, cfg.App.BaseURL)

	authService := service.NewAuthService(service.AuthOptions{
		RequireEmailVerification: cfg.Auth.RequireEmailVerification,
		RotateRefreshTokens:      cfg.Auth.RotateRefreshTokens,
		AllowStaffSelfSignup:     cfg.Auth.AllowStaffSelfSignup,
		VerificationTTL:          cfg.Auth.VerificationTokenTTL,
		ResetTTL:                 cfg.Auth.PasswordResetTTL,
	}, service.AuthDependencies{
		UserRepo:   userRepo,
		Tokens:     tokens,
		Hasher:     hasher,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	userService := service.NewUserService(service.UserDependencies{
		UserRepo:   userRepo,
		Policy:     policy,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	metrics := observability.NewMetrics()
	app := httptransport.NewApp(cfg.App.Name, cfg.App.BodyLimitBytes, httptransport.MiddlewareConfig{
		Logger:         logger,
		Metrics:        metrics,
		Timeout:        cfg.App.RequestTimeout(),
		AllowedOrigins: cfg.App.AllowedOrigins,
	})

	staticDir := ""
	if cfg.App.IsProduction() {
		staticDir = cfg.App.StaticDir
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Metrics: handlers.NewMetricsHandler(metrics),
		Users: handlers.NewUsersHandler(authService, handlers.CookieSettings{
			Secure: cfg.App.IsProduction(),
			MaxAge: tokens.RefreshTTL(),
		}, cfg.Auth.ExposeResetToken),
		Profiles:      handlers.NewProfileHandler(userService),
		Tickets:       handlers.NewTicketsHandler(ticketService),
		Authenticator: auth.NewAuthenticator(tokens, userRepo),
		Policy:        policy,
		LoginLimiter: ratelimit.Middleware(limitStore, ratelimit.Rule{
			Name:    "login",
			Max:     cfg.RateLimit.LoginMax,
			Window:  cfg.RateLimit.Window,
			Message: "too many login attempts, please try again later",
		}, logger),
		RegisterLimiter: ratelimit.Middleware(limitStore, ratelimit.Rule{
			Name:    "register",
			Max:     cfg.RateLimit.RegisterMax,
			Window:  cfg.RateLimit.Window,
			Message: "too many accounts created from this IP, please try again later",
		}, logger),
		StaticDir: staticDir,
	})

	sweeper := worker.NewSweeper(userRepo, ticketRepo, cfg.Worker.SweepInterval, logger)
	background := worker.StartBackground(ctx, notifications, sweeper)

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	shutdown(app, logger)
	background.Wait()
}

func shutdown(app *fiber.App, logger *zap.Logger) {
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
