package dto

import (
	"time"

	"github.com/ticketly/ticket-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Screenshot string `json:"screenshot" form:"screenshot"`
	Summary    string `json:"summary" form:"summary"`
	Status     string `json:"status" form:"status"`
}

// UpdateTicketStatusRequest payload.
type UpdateTicketStatusRequest struct {
	Status string `json:"status" form:"status"`
}

// TicketResponse is a ticket as served to callers. CreatedBy is omitted for clients.
type TicketResponse struct {
	ID         string              `json:"id"`
	Screenshot string              `json:"screenshot"`
	Summary    string              `json:"summary"`
	Status     domain.TicketStatus `json:"status"`
	CreatedBy  *string             `json:"created_by,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}
