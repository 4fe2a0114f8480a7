package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ticketly/ticket-service/internal/auth"
	"github.com/ticketly/ticket-service/internal/domain"
	"github.com/ticketly/ticket-service/internal/events"
	"github.com/ticketly/ticket-service/internal/repository"
	apperrors "github.com/ticketly/ticket-service/pkg/util/errorutil"
)

const (
	defaultProfileLimit = 20
	defaultUserLimit    = 5
)

// UserService serves profile reads and updates, user listings and deletion.
type UserService struct {
	users      repository.UserRepository
	policy     *auth.Policy
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Policy     *auth.Policy
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: deps.UserRepo, policy: deps.Policy, dispatcher: deps.Dispatcher, logger: logger}
}

// UserPage is one page of users.
type UserPage struct {
	Items      []domain.User
	Pagination Pagination
}

// Profile returns a single profile. Clients may only read their own.
func (s *UserService) Profile(ctx context.Context, actor domain.User, id string) (*domain.User, error) {
	if actor.Role == domain.RoleClient {
		if id != "" && id != actor.ID {
			return nil, apperrors.NewForbidden("unauthorized to view other user profiles")
		}
		id = actor.ID
	}
	if id == "" {
		id = actor.ID
	}
	return s.get(ctx, id)
}

// ProfileListQuery filters the staff profile listing.
type ProfileListQuery struct {
	PageRequest
	Role string
	Sort string
}

// ListProfiles is the staff view of GET /profile without an id.
func (s *UserService) ListProfiles(ctx context.Context, actor domain.User, q ProfileListQuery) (*UserPage, error) {
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	page := q.PageRequest.normalize(defaultProfileLimit, true)
	filter := repository.UserFilter{
		SortAsc: strings.TrimSpace(q.Sort) == "createdAt",
		Limit:   page.Limit,
		Offset:  page.offset(),
	}
	if role, ok := domain.ParseRole(q.Role); ok {
		filter.Role = &role
	}
	return s.list(ctx, filter, page)
}

// ListUsersQuery filters GET /users.
type ListUsersQuery struct {
	PageRequest
	Search string
}

// ListUsers returns a searchable newest-first listing for staff.
func (s *UserService) ListUsers(ctx context.Context, q ListUsersQuery) (*UserPage, error) {
	page := q.PageRequest.normalize(defaultUserLimit, false)
	return s.list(ctx, repository.UserFilter{
		Search: strings.TrimSpace(q.Search),
		Limit:  page.Limit,
		Offset: page.offset(),
	}, page)
}

func (s *UserService) list(ctx context.Context, filter repository.UserFilter, page PageRequest) (*UserPage, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for i := range users {
		users[i] = users[i].Sanitized()
	}
	return &UserPage{Items: users, Pagination: newPagination(total, page)}, nil
}

// ProfileUpdate carries editable profile fields.
type ProfileUpdate struct {
	FirstName      string
	LastName       string
	DisplayPicture *string
}

// UpdateProfile edits names and picture. Admins may edit anyone; others only themselves.
func (s *UserService) UpdateProfile(ctx context.Context, actor domain.User, id string, in ProfileUpdate) (*domain.User, error) {
	if id == "" {
		id = actor.ID
	}
	if id != actor.ID && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("you can only update your own profile")
	}
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.FirstName == "" || in.LastName == "" {
		return nil, apperrors.NewValidationError("can't update with empty fields", nil)
	}
	if in.DisplayPicture != nil && *in.DisplayPicture != "" && !domain.ValidImageRef(*in.DisplayPicture) {
		return nil, apperrors.NewValidationError("display_picture must be an image data URL or http(s) URL", map[string]any{"field": "display_picture"})
	}

	user, err := s.getRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	if in.DisplayPicture != nil {
		user.DisplayPicture = *in.DisplayPicture
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}
	clean := user.Sanitized()
	return &clean, nil
}

// DeleteUser removes a user and their tickets in one step.
func (s *UserService) DeleteUser(ctx context.Context, actor domain.User, id string) (int, error) {
	if s.policy != nil && !s.policy.Allows(actor.Role, auth.CapUserDelete) {
		return 0, apperrors.NewForbidden("insufficient role")
	}
	user, err := s.getRaw(ctx, id)
	if err != nil {
		return 0, err
	}
	removed, err := s.users.DeleteCascade(ctx, id)
	if err != nil {
		return 0, mapRepoError(err, "user")
	}

	s.logger.Info("user deleted",
		zap.String("user_id", id),
		zap.String("actor_id", actor.ID),
		zap.Int("tickets_removed", removed))
	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventUserDeleted, id,
		events.Actor{UserID: actor.ID, Role: actor.Role},
		events.UserDeletedPayload{Email: user.Email, TicketsRemoved: removed}))
	return removed, nil
}

func (s *UserService) get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.getRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	clean := user.Sanitized()
	return &clean, nil
}

func (s *UserService) getRaw(ctx context.Context, id string) (*domain.User, error) {
	if !validUUID(id) {
		return nil, apperrors.NewNotFound("user", nil)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	return user, nil
}
