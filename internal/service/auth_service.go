package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ticketly/ticket-service/internal/auth"
	"github.com/ticketly/ticket-service/internal/domain"
	"github.com/ticketly/ticket-service/internal/events"
	"github.com/ticketly/ticket-service/internal/repository"
	apperrors "github.com/ticketly/ticket-service/pkg/util/errorutil"
)

const (
	msgFillAllFields    = "please fill in all fields"
	msgInvalidEmail     = "invalid email format"
	msgWeakPassword     = "password must contain 8+ characters with uppercase, lowercase, and numbers"
	msgLongPassword     = "password must be at most 72 bytes"
	msgInvalidCreds     = "invalid credentials"
	msgInvalidResetLink = "invalid or expired reset token"
)

// AuthOptions toggles account lifecycle behaviour.
type AuthOptions struct {
	RequireEmailVerification bool
	RotateRefreshTokens      bool
	AllowStaffSelfSignup     bool
	VerificationTTL          time.Duration
	ResetTTL                 time.Duration
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenService
	Hasher     *auth.PasswordHasher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// AuthService coordinates registration, login and credential recovery.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenService
	hasher     *auth.PasswordHasher
	dispatcher events.Dispatcher
	logger     *zap.Logger
	opts       AuthOptions
	now        func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(opts AuthOptions, deps AuthDependencies) *AuthService {
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		hasher:     deps.Hasher,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// RegisterInput describes a new account.
type RegisterInput struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Password       string
	Role           string
	DisplayPicture string
}

// Register creates an account. Uniqueness of email and phone is enforced by the store.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	email := domain.NormalizeEmail(in.Email)

	if in.FirstName == "" || in.LastName == "" || email == "" || in.Phone == "" || in.Password == "" {
		return nil, apperrors.NewValidationError(msgFillAllFields, nil)
	}
	if !domain.ValidEmail(email) {
		return nil, apperrors.NewValidationError(msgInvalidEmail, map[string]any{"field": "email"})
	}
	if err := checkPassword(in.Password, "password"); err != nil {
		return nil, err
	}
	if in.DisplayPicture != "" && !domain.ValidImageRef(in.DisplayPicture) {
		return nil, apperrors.NewValidationError("display_picture must be an image data URL or http(s) URL", map[string]any{"field": "display_picture"})
	}

	role := domain.RoleClient
	if parsed, ok := domain.ParseRole(in.Role); ok && s.opts.AllowStaffSelfSignup {
		role = parsed
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          email,
		Phone:          in.Phone,
		PasswordHash:   hash,
		DisplayPicture: in.DisplayPicture,
		Role:           role,
		IsVerified:     !s.opts.RequireEmailVerification,
	}
	// auto-verified accounts get no token, so a stale link cannot touch them
	var token string
	if !user.IsVerified {
		token = uuid.NewString()
		expires := s.now().Add(s.opts.VerificationTTL).UTC()
		user.VerificationToken = &token
		user.VerificationExpires = &expires
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}

	s.publish(ctx, events.New(events.EventUserRegistered, user.ID, events.Actor{UserID: user.ID, Role: user.Role},
		events.UserRegisteredPayload{
			Email:             user.Email,
			FirstName:         user.FirstName,
			Role:              user.Role,
			VerificationToken: token,
			NeedsVerification: !user.IsVerified,
		}))

	clean := user.Sanitized()
	return &clean, nil
}

// VerifyEmail consumes a verification token. An expired token deletes the
// still-unverified account so the address can register again.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.NewValidationError("no verification token provided", nil)
	}
	user, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewValidationError("invalid or expired verification token", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if user.IsVerified {
		return s.clearVerification(ctx, user)
	}

	if user.VerificationExpires == nil || !s.now().Before(*user.VerificationExpires) {
		if _, err := s.users.DeleteCascade(ctx, user.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternalError(err)
		}
		return nil, apperrors.NewValidationError("verification token expired, please register again", nil)
	}

	user.IsVerified = true
	return s.clearVerification(ctx, user)
}

func (s *AuthService) clearVerification(ctx context.Context, user *domain.User) (*domain.User, error) {
	user.VerificationToken = nil
	user.VerificationExpires = nil
	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}
	clean := user.Sanitized()
	return &clean, nil
}

// LoginInput identifies the account by email or phone.
type LoginInput struct {
	Email    string
	Phone    string
	Password string
}

// Login authenticates and opens a session. Exactly one bcrypt comparison runs
// whether or not the account exists.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*domain.Session, error) {
	email := domain.NormalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)
	if (email == "" && phone == "") || in.Password == "" {
		return nil, apperrors.NewValidationError("please provide email/phone and password", nil)
	}

	user, err := s.lookup(ctx, email, phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	hash := ""
	if user != nil {
		hash = user.PasswordHash
	}
	// compare first: a missing account still costs one bcrypt round
	if !s.hasher.Matches(hash, in.Password) || user == nil {
		return nil, apperrors.NewUnauthorized(msgInvalidCreds)
	}
	if !user.IsVerified {
		return nil, apperrors.NewForbidden("account not verified, please check your email")
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return session, nil
}

// Refresh exchanges a refresh token for a new access token. With rotation
// enabled the refresh token is replaced as well.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, apperrors.NewUnauthorized("refresh token is missing")
	}
	claims, err := s.tokens.Verify(domain.TokenKindRefresh, refreshToken)
	if err != nil {
		return nil, apperrors.NewForbidden("refresh token could not be verified")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	if user.RefreshTokenHash == nil || !auth.RefreshTokenMatches(refreshToken, *user.RefreshTokenHash) {
		return nil, apperrors.NewForbidden("refresh token does not match")
	}

	if s.opts.RotateRefreshTokens {
		return s.openSession(ctx, user)
	}

	access, accessExp, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &domain.Session{User: user.Sanitized(), AccessToken: access, AccessExpiresAt: accessExp}, nil
}

// Logout forgets the stored refresh token. Calling it twice is harmless.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshTokenHash(ctx, userID, nil); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// PasswordReset is the issued reset token.
type PasswordReset struct {
	Token     string
	ExpiresAt time.Time
}

// ForgotPassword issues a single-use reset token for the account matching email or phone.
func (s *AuthService) ForgotPassword(ctx context.Context, email, phone string) (*PasswordReset, error) {
	email = domain.NormalizeEmail(email)
	phone = strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return nil, apperrors.NewValidationError("email or phone number is required", nil)
	}

	user, err := s.lookup(ctx, email, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			field := "email"
			if email == "" {
				field = "phone"
			}
			return nil, apperrors.NewNotFound("account", map[string]any{"field": field})
		}
		return nil, apperrors.NewInternalError(err)
	}

	token := uuid.NewString()
	expires := s.now().Add(s.opts.ResetTTL).UTC()
	user.ResetToken = &token
	user.ResetExpires = &expires
	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}

	s.publish(ctx, events.New(events.EventPasswordResetRequested, user.ID, events.Actor{UserID: user.ID, Role: user.Role},
		events.PasswordResetRequestedPayload{
			Email:      user.Email,
			FirstName:  user.FirstName,
			ResetToken: token,
			ExpiresAt:  expires,
		}))
	return &PasswordReset{Token: token, ExpiresAt: expires}, nil
}

// ResetPassword sets a new password from a reset token and signs out every session.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.NewValidationError(msgInvalidResetLink, nil)
	}
	user, err := s.users.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError(msgInvalidResetLink, nil)
		}
		return apperrors.NewInternalError(err)
	}
	if user.ResetExpires == nil || !s.now().Before(*user.ResetExpires) {
		return apperrors.NewValidationError(msgInvalidResetLink, nil)
	}
	if err := checkPassword(password, "password"); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	user.ResetToken = nil
	user.ResetExpires = nil
	if err := s.users.Update(ctx, user); err != nil {
		return mapRepoError(err, "user")
	}
	return s.Logout(ctx, user.ID)
}

// ChangePassword lets a signed-in user replace their own password.
func (s *AuthService) ChangePassword(ctx context.Context, actor domain.User, targetID, current, next string) error {
	if targetID == "" {
		targetID = actor.ID
	}
	if targetID != actor.ID {
		return apperrors.NewForbidden("you can only change your own password")
	}
	if current == "" || next == "" {
		return apperrors.NewValidationError(msgFillAllFields, nil)
	}

	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return mapRepoError(err, "user")
	}
	if !s.hasher.Matches(user.PasswordHash, current) {
		return apperrors.NewUnauthorized("current password is incorrect")
	}
	if err := checkPassword(next, "new_password"); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	return mapRepoError(s.users.Update(ctx, user), "user")
}

func checkPassword(password, field string) error {
	if domain.PasswordTooLong(password) {
		return apperrors.NewValidationError(msgLongPassword, map[string]any{"field": field})
	}
	if !domain.ValidPassword(password) {
		return apperrors.NewValidationError(msgWeakPassword, map[string]any{"field": field})
	}
	return nil
}

func (s *AuthService) lookup(ctx context.Context, email, phone string) (*domain.User, error) {
	if email != "" {
		user, err := s.users.GetByEmail(ctx, email)
		if err == nil || !errors.Is(err, repository.ErrNotFound) || phone == "" {
			return user, err
		}
	}
	return s.users.GetByPhone(ctx, phone)
}

// openSession issues both tokens and stores the refresh hash. Any earlier
// refresh token for this user stops working.
func (s *AuthService) openSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	access, accessExp, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	hash := auth.HashRefreshToken(refresh)
	if err := s.users.SetRefreshTokenHash(ctx, user.ID, &hash); err != nil {
		return nil, mapRepoError(err, "user")
	}
	return &domain.Session{
		User:             user.Sanitized(),
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, s.logger, event)
}
