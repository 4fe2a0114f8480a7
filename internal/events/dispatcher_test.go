package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	boom := errors.New("boom")

	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.SubjectID)
		return boom
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.SubjectID)
		return nil
	})
	d.Subscribe(EventTicketDeleted, func(context.Context, Event) error {
		calls = append(calls, "deleted")
		return nil
	})
	d.Subscribe(EventTicketDeleted, nil)

	event := New(EventTicketCreated, "t1", Actor{}, nil)
	err := d.Publish(context.Background(), event)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"first:t1", "second:t1"}, calls)

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, event.ID, pubErr.EventID)
	assert.Equal(t, EventTicketCreated, pubErr.Type)
	require.Len(t, pubErr.Failures, 1)
	assert.Equal(t, 0, pubErr.Failures[0].Position)
	assert.False(t, pubErr.Failures[0].Panicked)

	assert.NoError(t, d.Publish(context.Background(), New(EventUserDeleted, "u1", Actor{}, nil)))
	assert.NoError(t, d.Publish(context.Background(), New(EventTicketDeleted, "t1", Actor{}, nil)))
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := NewInMemoryDispatcher()
	ran := false
	d.Subscribe(EventUserDeleted, func(context.Context, Event) error { panic("nil map") })
	d.Subscribe(EventUserDeleted, func(context.Context, Event) error {
		ran = true
		return nil
	})

	err := d.Publish(context.Background(), New(EventUserDeleted, "u1", Actor{}, nil))
	assert.True(t, ran, "later handlers still run")
	assert.ErrorIs(t, err, ErrHandlerPanic)

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	require.Len(t, pubErr.Failures, 1)
	assert.True(t, pubErr.Failures[0].Panicked)
	assert.Contains(t, pubErr.Failures[0].Err.Error(), "nil map")
}

func TestNewStampsEvent(t *testing.T) {
	e := New(EventUserRegistered, "u1", Actor{UserID: "u1"}, UserRegisteredPayload{Email: "a@x.com"})
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, EventUserRegistered, e.Type)
}
