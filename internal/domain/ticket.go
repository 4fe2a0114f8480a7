package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusCreated    TicketStatus = "CREATED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusRejected   TicketStatus = "REJECTED"
	TicketStatusCompleted  TicketStatus = "COMPLETED"
)

// TicketStatuses lists every valid status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusCreated,
	TicketStatusInProgress,
	TicketStatusRejected,
	TicketStatusCompleted,
}

// Valid reports whether s is one of the four known statuses.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// MinSummaryLength is the shortest accepted ticket summary.
const MinSummaryLength = 10

// Ticket is a support request raised by a client.
type Ticket struct {
	ID         string
	Screenshot string
	Summary    string
	Status     TicketStatus
	CreatedBy  string // creator email
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
