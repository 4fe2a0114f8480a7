package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ticketly/ticket-service/internal/domain"
	"github.com/ticketly/ticket-service/internal/events"
	"github.com/ticketly/ticket-service/internal/repository"
	apperrors "github.com/ticketly/ticket-service/pkg/util/errorutil"
)

const defaultTicketLimit = 5

// TicketService coordinates ticket workflows with role scoping.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{tickets: deps.TicketRepo, dispatcher: deps.Dispatcher, logger: logger}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Screenshot string
	Summary    string
	Status     string
}

// CreateTicket files a new ticket for the requesting client. New tickets always
// start at CREATED; a supplied status is only validated.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.User, in TicketCreateInput) (*domain.Ticket, error) {
	if actor.Role != domain.RoleClient {
		return nil, apperrors.NewForbidden("only clients are authorized to create tickets")
	}
	screenshot := strings.TrimSpace(in.Screenshot)
	summary := strings.TrimSpace(in.Summary)
	if screenshot == "" || summary == "" {
		return nil, apperrors.NewValidationError("please provide screenshot and summary", nil)
	}
	if !domain.ValidImageRef(screenshot) {
		return nil, apperrors.NewValidationError("invalid image, it must be a valid URL or a base64 image", map[string]any{"field": "screenshot"})
	}
	if len([]rune(summary)) < domain.MinSummaryLength {
		return nil, apperrors.NewValidationError("summary must be at least 10 characters", map[string]any{"field": "summary"})
	}
	if in.Status != "" && !domain.TicketStatus(in.Status).Valid() {
		return nil, apperrors.NewValidationError("invalid ticket status", map[string]any{"field": "status"})
	}

	ticket := &domain.Ticket{
		Screenshot: screenshot,
		Summary:    summary,
		Status:     domain.TicketStatusCreated,
		CreatedBy:  actor.Email,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, mapRepoError(err, "ticket")
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventTicketCreated, ticket.ID, actorOf(actor),
		events.TicketCreatedPayload{CreatedBy: ticket.CreatedBy, Summary: ticket.Summary}))
	return ticket, nil
}

// TicketListQuery captures listing filters.
type TicketListQuery struct {
	PageRequest
	Search    string
	Status    string
	CreatedBy string
}

// TicketPage is one page of tickets.
type TicketPage struct {
	Items      []domain.Ticket
	Pagination Pagination
}

// ListTickets returns newest-first tickets. Clients only ever see their own.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.User, q TicketListQuery) (*TicketPage, error) {
	page := q.PageRequest.normalize(defaultTicketLimit, false)
	filter := repository.TicketFilter{
		Search: strings.TrimSpace(q.Search),
		Limit:  page.Limit,
		Offset: page.offset(),
	}
	if q.Status != "" {
		status := domain.TicketStatus(q.Status)
		if !status.Valid() {
			return nil, apperrors.NewValidationError("invalid ticket status", map[string]any{"field": "status"})
		}
		filter.Status = &status
	}
	if actor.Role.IsStaff() {
		if creator := domain.NormalizeEmail(q.CreatedBy); creator != "" {
			filter.CreatedBy = &creator
		}
	} else {
		email := actor.Email
		filter.CreatedBy = &email
	}

	tickets, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &TicketPage{Items: tickets, Pagination: newPagination(total, page)}, nil
}

// GetTicket returns one ticket. A client asking for someone else's ticket gets 404.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.User, id string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() && ticket.CreatedBy != actor.Email {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	return ticket, nil
}

// UpdateStatus moves a ticket to a new status. Invalid statuses never touch the store.
func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.User, id, status string) (*domain.Ticket, error) {
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	next := domain.TicketStatus(status)
	if !next.Valid() {
		return nil, apperrors.NewValidationError("invalid ticket status", map[string]any{"field": "status"})
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.tickets.UpdateStatus(ctx, id, next)
	if err != nil {
		return nil, mapRepoError(err, "ticket")
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventTicketStatusChanged, id, actorOf(actor),
		events.TicketStatusChangedPayload{OldStatus: current.Status, NewStatus: next, CreatedBy: updated.CreatedBy}))
	return updated, nil
}

// DeleteTicket removes a ticket. Admins may delete any; clients only their own.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.User, id string) error {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleClient:
		if ticket.CreatedBy != actor.Email {
			return apperrors.NewForbidden("clients can only delete their own tickets")
		}
	default:
		return apperrors.NewForbidden("insufficient role")
	}

	if err := s.tickets.Delete(ctx, id); err != nil {
		return mapRepoError(err, "ticket")
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventTicketDeleted, id, actorOf(actor),
		events.TicketDeletedPayload{CreatedBy: ticket.CreatedBy}))
	return nil
}

func (s *TicketService) load(ctx context.Context, id string) (*domain.Ticket, error) {
	if !validUUID(id) {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "ticket")
	}
	return ticket, nil
}

func actorOf(u domain.User) events.Actor {
	return events.Actor{UserID: u.ID, Role: u.Role}
}
