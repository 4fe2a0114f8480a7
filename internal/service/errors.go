package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ticketly/ticket-service/internal/events"
	"github.com/ticketly/ticket-service/internal/repository"
	apperrors "github.com/ticketly/ticket-service/pkg/util/errorutil"
)

// mapRepoError converts repository errors into API errors for resource.
func mapRepoError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, nil)
	}
	if dup, ok := repository.IsDuplicate(err); ok {
		return apperrors.NewConflict(fmt.Sprintf("%s already in use", dup.Field), map[string]any{"field": dup.Field})
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return apperrors.NewInternalError(err)
}

// validUUID gates lookups so malformed ids read as not found.
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// publishEvent never fails the calling request; handler errors are logged.
func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	err := dispatcher.Publish(ctx, event)
	if err == nil {
		return
	}
	var pubErr *events.PublishError
	if !errors.As(err, &pubErr) {
		logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("subject_id", event.SubjectID),
			zap.Error(err))
		return
	}
	for _, f := range pubErr.Failures {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.String("subject_id", event.SubjectID),
			zap.Int("handler", f.Position),
			zap.Bool("panicked", f.Panicked),
			zap.Error(f.Err))
	}
}
