package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/ticketly/ticket-service/internal/auth"
	"github.com/ticketly/ticket-service/internal/domain"
	"github.com/ticketly/ticket-service/internal/events"
	"github.com/ticketly/ticket-service/internal/repository"
	apperrors "github.com/ticketly/ticket-service/pkg/util/errorutil"
)

type testEnv struct {
	store      *repository.MemoryStore
	tokens     *auth.TokenService
	hasher     *auth.PasswordHasher
	dispatcher events.Dispatcher
	logs       *observer.ObservedLogs
	auth       *AuthService
	users      *UserService
	tickets    *TicketService
	published  []events.Event
}

func newTestEnv(t *testing.T, opts AuthOptions) *testEnv {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenSettings{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
	})
	require.NoError(t, err)
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher()

	env := &testEnv{store: store, tokens: tokens, hasher: hasher, dispatcher: dispatcher, logs: logs}
	record := func(_ context.Context, e events.Event) error {
		env.published = append(env.published, e)
		return nil
	}
	for _, et := range []events.EventType{
		events.EventUserRegistered, events.EventPasswordResetRequested, events.EventUserDeleted,
		events.EventTicketCreated, events.EventTicketStatusChanged, events.EventTicketDeleted,
	} {
		dispatcher.Subscribe(et, record)
	}

	env.auth = NewAuthService(opts, AuthDependencies{
		UserRepo: store.Users(), Tokens: tokens, Hasher: hasher, Dispatcher: dispatcher, Logger: logger,
	})
	env.users = NewUserService(UserDependencies{
		UserRepo: store.Users(), Policy: auth.NewPolicy(auth.PolicyOptions{}), Dispatcher: dispatcher, Logger: logger,
	})
	env.tickets = NewTicketService(TicketDependencies{TicketRepo: store.Tickets(), Dispatcher: dispatcher, Logger: logger})
	return env
}

func (e *testEnv) register(t *testing.T, n int, role domain.Role) *domain.User {
	t.Helper()
	user, err := e.auth.Register(context.Background(), RegisterInput{
		FirstName: fmt.Sprintf("First%d", n),
		LastName:  fmt.Sprintf("Last%d", n),
		Email:     fmt.Sprintf("User%d@X.com", n),
		Phone:     fmt.Sprintf("+1555%04d", n),
		Password:  "Passw0rd!",
		Role:      string(role),
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) eventsOf(et events.EventType) []events.Event {
	var out []events.Event
	for _, ev := range e.published {
		if ev.Type == et {
			out = append(out, ev)
		}
	}
	return out
}

func assertStatus(t *testing.T, err error, status int) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, status, de.HTTPStatus, de.Message)
	return de
}

func defaultOpts() AuthOptions {
	return AuthOptions{AllowStaffSelfSignup: true}
}

func screenshot(n int) string {
	return fmt.Sprintf("data:image/png;base64,c2hvdA%d", n)
}

func (e *testEnv) createTicket(t *testing.T, owner *domain.User, n int) *domain.Ticket {
	t.Helper()
	ticket, err := e.tickets.CreateTicket(context.Background(), *owner, TicketCreateInput{
		Screenshot: screenshot(n),
		Summary:    fmt.Sprintf("Button broken on page %d", n),
	})
	require.NoError(t, err)
	return ticket
}
