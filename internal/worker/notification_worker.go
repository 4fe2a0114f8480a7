package worker

import (
	"context"

	"github.com/ticketly/ticket-service/internal/service"
)

// Background tracks the helpers started next to the HTTP server.
type Background struct {
	sweeperDone <-chan struct{}
}

// StartNotificationWorker registers notification handlers on the dispatcher.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartBackground wires notifications and launches the sweeper loop. Cancel
// ctx and call Wait to stop.
func StartBackground(ctx context.Context, notifications *service.NotificationService, sweeper *Sweeper) *Background {
	StartNotificationWorker(notifications)
	b := &Background{}
	if sweeper != nil {
		b.sweeperDone = sweeper.Start(ctx)
	}
	return b
}

// Wait blocks until the sweeper loop has exited.
func (b *Background) Wait() {
	if b == nil || b.sweeperDone == nil {
		return
	}
	<-b.sweeperDone
}
