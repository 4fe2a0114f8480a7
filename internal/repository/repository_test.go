package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ticketly/ticket-service/internal/domain"
	"github.com/ticketly/ticket-service/internal/persistence"
)

type stores struct {
	users   UserRepository
	tickets TicketRepository
}

func backends(t *testing.T) map[string]func(t *testing.T) stores {
	t.Helper()
	out := map[string]func(t *testing.T) stores{
		"memory": func(t *testing.T) stores {
			mem := NewMemoryStore()
			return stores{users: mem.Users(), tickets: mem.Tickets()}
		},
	}
	dsn := os.Getenv("TICKETLY_TEST_POSTGRES_DSN")
	if dsn == "" {
		return out
	}
	out["postgres"] = func(t *testing.T) stores {
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(pool.Close)
		require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))
		_, err = pool.Exec(ctx, `TRUNCATE tickets, users CASCADE`)
		require.NoError(t, err)
		return stores{users: NewUserRepository(pool), tickets: NewTicketRepository(pool)}
	}
	return out
}

func newUser(n int, role domain.Role) *domain.User {
	return &domain.User{
		FirstName:    fmt.Sprintf("First%d", n),
		LastName:     fmt.Sprintf("Last%d", n),
		Email:        fmt.Sprintf("user%d@x.com", n),
		Phone:        fmt.Sprintf("+1555000%04d", n),
		PasswordHash: "hash",
		Role:         role,
		IsVerified:   true,
	}
}

func newTicket(n int, owner string) *domain.Ticket {
	return &domain.Ticket{
		Screenshot: fmt.Sprintf("data:image/png;base64,shot%d", n),
		Summary:    fmt.Sprintf("Ticket summary number %d", n),
		Status:     domain.TicketStatusCreated,
		CreatedBy:  owner,
	}
}

func TestUserRepositoryContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			u := newUser(1, domain.RoleClient)
			require.NoError(t, s.users.Create(ctx, u))
			require.NotEmpty(t, u.ID)

			dupEmail := newUser(2, domain.RoleClient)
			dupEmail.Email = u.Email
			err := s.users.Create(ctx, dupEmail)
			dup, ok := IsDuplicate(err)
			require.True(t, ok, "expected duplicate, got %v", err)
			assert.Equal(t, "email", dup.Field)

			dupPhone := newUser(3, domain.RoleClient)
			dupPhone.Phone = u.Phone
			dup, ok = IsDuplicate(s.users.Create(ctx, dupPhone))
			require.True(t, ok)
			assert.Equal(t, "phone", dup.Field)

			_, err = s.users.GetByID(ctx, "not-a-uuid")
			assert.ErrorIs(t, err, ErrNotFound)

			byPhone, err := s.users.GetByPhone(ctx, u.Phone)
			require.NoError(t, err)
			assert.Equal(t, u.ID, byPhone.ID)

			hash := "refresh-hash"
			require.NoError(t, s.users.SetRefreshTokenHash(ctx, u.ID, &hash))
			got, err := s.users.GetByEmail(ctx, u.Email)
			require.NoError(t, err)
			require.NotNil(t, got.RefreshTokenHash)
			assert.Equal(t, hash, *got.RefreshTokenHash)

			reset := "reset-token"
			got.ResetToken = &reset
			got.FirstName = "Renamed"
			require.NoError(t, s.users.Update(ctx, got))
			byReset, err := s.users.GetByResetToken(ctx, reset)
			require.NoError(t, err)
			assert.Equal(t, "Renamed", byReset.FirstName)
			require.NotNil(t, byReset.RefreshTokenHash, "update must not clear the refresh hash")
		})
	}
}

func TestUserListAndCascade(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			var owner *domain.User
			for i := 1; i <= 4; i++ {
				role := domain.RoleClient
				if i == 4 {
					role = domain.RoleAgent
				}
				u := newUser(i, role)
				require.NoError(t, s.users.Create(ctx, u))
				if i == 1 {
					owner = u
				}
			}

			agent := domain.RoleAgent
			items, total, err := s.users.List(ctx, UserFilter{Role: &agent, Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			require.Len(t, items, 1)
			assert.Equal(t, domain.RoleAgent, items[0].Role)

			items, total, err = s.users.List(ctx, UserFilter{Search: "LAST", Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, 4, total)
			assert.Len(t, items, 2)

			_, total, err = s.users.List(ctx, UserFilter{Search: "%", Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, 0, total, "like metacharacters are literal")

			for i := 0; i < 3; i++ {
				require.NoError(t, s.tickets.Create(ctx, newTicket(i, owner.Email)))
			}
			other := newTicket(99, "user2@x.com")
			require.NoError(t, s.tickets.Create(ctx, other))

			removed, err := s.users.DeleteCascade(ctx, owner.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, removed)

			email := owner.Email
			_, total, err = s.tickets.List(ctx, TicketFilter{CreatedBy: &email})
			require.NoError(t, err)
			assert.Zero(t, total)

			_, err = s.tickets.GetByID(ctx, other.ID)
			assert.NoError(t, err)

			_, err = s.users.DeleteCascade(ctx, owner.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestPurgeUnverified(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			past := time.Now().Add(-2 * time.Hour)
			future := time.Now().Add(time.Hour)
			token := "verify-me"

			stale := newUser(1, domain.RoleClient)
			stale.IsVerified = false
			stale.VerificationToken = &token
			stale.VerificationExpires = &past
			require.NoError(t, s.users.Create(ctx, stale))
			require.NoError(t, s.tickets.Create(ctx, newTicket(1, stale.Email)))

			pending := newUser(2, domain.RoleClient)
			pending.IsVerified = false
			pending.VerificationExpires = &future
			require.NoError(t, s.users.Create(ctx, pending))

			purged, err := s.users.PurgeUnverified(ctx, time.Now())
			require.NoError(t, err)
			assert.Equal(t, 1, purged)

			_, err = s.users.GetByVerificationToken(ctx, token)
			assert.ErrorIs(t, err, ErrNotFound)
			_, total, err := s.tickets.List(ctx, TicketFilter{})
			require.NoError(t, err)
			assert.Zero(t, total)
			_, err = s.users.GetByID(ctx, pending.ID)
			assert.NoError(t, err)
		})
	}
}

func TestTicketRepositoryContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			owner := newUser(1, domain.RoleClient)
			require.NoError(t, s.users.Create(ctx, owner))

			var first *domain.Ticket
			for i := 0; i < 12; i++ {
				tk := newTicket(i, owner.Email)
				if i%3 == 0 {
					tk.Summary = fmt.Sprintf("Button broken 100%% case %d", i)
				}
				require.NoError(t, s.tickets.Create(ctx, tk))
				if i == 0 {
					first = tk
				}
			}

			dup, ok := IsDuplicate(s.tickets.Create(ctx, newTicket(0, owner.Email)))
			require.True(t, ok)
			assert.Equal(t, "screenshot", dup.Field)

			email := owner.Email
			page, total, err := s.tickets.List(ctx, TicketFilter{CreatedBy: &email, Limit: 5, Offset: 5})
			require.NoError(t, err)
			assert.Equal(t, 12, total)
			assert.Len(t, page, 5)

			_, total, err = s.tickets.List(ctx, TicketFilter{Search: "button BROKEN 100%"})
			require.NoError(t, err)
			assert.Equal(t, 4, total)

			completed := domain.TicketStatusCompleted
			updated, err := s.tickets.UpdateStatus(ctx, first.ID, completed)
			require.NoError(t, err)
			assert.Equal(t, completed, updated.Status)

			_, total, err = s.tickets.List(ctx, TicketFilter{Status: &completed})
			require.NoError(t, err)
			assert.Equal(t, 1, total)

			_, err = s.tickets.UpdateStatus(ctx, "00000000-0000-0000-0000-000000000000", completed)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.tickets.Delete(ctx, first.ID))
			assert.ErrorIs(t, s.tickets.Delete(ctx, first.ID), ErrNotFound)
			_, err = s.tickets.GetByID(ctx, "zzz")
			assert.ErrorIs(t, err, ErrNotFound)

			err = s.tickets.Create(ctx, newTicket(50, "ghost@x.com"))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryDeleteOrphans(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	owner := newUser(1, domain.RoleClient)
	require.NoError(t, mem.Users().Create(ctx, owner))
	require.NoError(t, mem.Tickets().Create(ctx, newTicket(1, owner.Email)))

	// simulate a record left behind by an interrupted delete
	mem.tickets["orphan"] = &ticketRecord{ticket: domain.Ticket{ID: "orphan", CreatedBy: "gone@x.com"}}

	removed, err := mem.Tickets().DeleteOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, total, err := mem.Tickets().List(ctx, TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: "22P02"}), ErrNotFound)

	dup, ok := IsDuplicate(translate(&pgconn.PgError{Code: "23505", ConstraintName: "users_phone_key"}))
	require.True(t, ok)
	assert.Equal(t, "phone", dup.Field)

	dup, ok = IsDuplicate(fmt.Errorf("wrap: %w", translate(&pgconn.PgError{Code: "23505", ConstraintName: "tickets_screenshot_key"})))
	require.True(t, ok)
	assert.Equal(t, "screenshot", dup.Field)

	other := &pgconn.PgError{Code: "40001"}
	assert.Same(t, other, translate(other))
	assert.Equal(t, `%100\%\_x\\%`, containsPattern(`100%_x\`))
}
