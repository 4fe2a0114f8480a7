package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ticketly/ticket-service/internal/repository"
)

// Sweeper periodically removes expired unverified accounts and tickets left
// without a creator.
type Sweeper struct {
	users    repository.UserRepository
	tickets  repository.TicketRepository
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// SweepResult counts what one pass removed.
type SweepResult struct {
	UnverifiedUsers int
	OrphanTickets   int
}

// NewSweeper builds a sweeper; an interval <= 0 disables the loop in Start.
func NewSweeper(users repository.UserRepository, tickets repository.TicketRepository, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{users: users, tickets: tickets, interval: interval, logger: logger, now: time.Now}
}

// RunOnce performs a single pass.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	purged, err := s.users.PurgeUnverified(ctx, s.now())
	if err != nil {
		return res, err
	}
	res.UnverifiedUsers = purged

	orphans, err := s.tickets.DeleteOrphans(ctx)
	if err != nil {
		return res, err
	}
	res.OrphanTickets = orphans
	return res, nil
}

// Start runs passes until ctx is cancelled. The returned channel closes when the loop exits.
func (s *Sweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if s.interval <= 0 {
		s.logger.Info("sweeper disabled")
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				res, err := s.RunOnce(ctx)
				if err != nil {
					s.logger.Warn("sweep failed", zap.Error(err))
					continue
				}
				if res.UnverifiedUsers > 0 || res.OrphanTickets > 0 {
					s.logger.Info("sweep completed",
						zap.Int("unverified_users", res.UnverifiedUsers),
						zap.Int("orphan_tickets", res.OrphanTickets))
				}
			}
		}
	}()
	return done
}
