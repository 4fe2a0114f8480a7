package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ticketly/ticket-service/internal/config"
	"github.com/ticketly/ticket-service/internal/events"
)

// NotificationService turns domain events into (stubbed) emails and webhooks.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	baseURL    string
}

// NewNotificationService creates the service. baseURL prefixes links in emails.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, baseURL string) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
	n.dispatcher.Subscribe(events.EventUserDeleted, n.handleAudit)
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleAudit)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleAudit)
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserRegisteredPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.logger.Info("UserRegistered", zap.String("user_id", event.SubjectID), zap.String("role", string(payload.Role)))
	if payload.NeedsVerification {
		link := n.baseURL + "/verify-email/" + payload.VerificationToken
		n.sendEmailNotificationStub(ctx, event, payload.Email, "Verify your Ticketly account", link)
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetRequestedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.logger.Info("PasswordResetRequested", zap.String("user_id", event.SubjectID), zap.Time("expires_at", payload.ExpiresAt))
	link := n.baseURL + "/reset-password/" + payload.ResetToken
	n.sendEmailNotificationStub(ctx, event, payload.Email, "Reset your Ticketly password", link)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.SubjectID), zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.TicketStatusChangedPayload); ok {
		n.sendEmailNotificationStub(ctx, event, payload.CreatedBy,
			fmt.Sprintf("Your ticket is now %s", payload.NewStatus), n.baseURL+"/tickets")
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleAudit(ctx context.Context, event events.Event) error {
	n.logger.Info("DomainEvent",
		zap.String("event_type", string(event.Type)),
		zap.String("subject_id", event.SubjectID),
		zap.String("actor_id", event.Actor.UserID),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// sendEmailNotificationStub logs the email that would be sent. The link carries a
// single-use token, so it is only logged at debug level.
func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, to, subject, link string) {
	if !n.cfg.EmailEnabled || strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Info("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("event_type", string(event.Type)))
	n.logger.Debug("email link", zap.String("to", to), zap.String("link", link))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}
