package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ticketly/ticket-service/internal/domain"
	apperrors "github.com/ticketly/ticket-service/pkg/util/errorutil"
)

// Capability names a (resource, action) pair guarded by role.
type Capability string

const (
	CapTicketList         Capability = "ticket.list"
	CapTicketRead         Capability = "ticket.read"
	CapTicketCreate       Capability = "ticket.create"
	CapTicketUpdateStatus Capability = "ticket.update_status"
	CapTicketDelete       Capability = "ticket.delete"
	CapProfileRead        Capability = "profile.read"
	CapProfileUpdate      Capability = "profile.update"
	CapPasswordChange     Capability = "password.change"
	CapUserList           Capability = "user.list"
	CapUserDelete         Capability = "user.delete"
)

// Policy maps each capability to the roles allowed to use it. Ownership
// rules (a client deleting only their own ticket) are checked by the services.
type Policy struct {
	allowed map[Capability]map[domain.Role]struct{}
}

// PolicyOptions toggles the deployment-dependent grants.
type PolicyOptions struct {
	AgentsMayDeleteUsers bool
}

// NewPolicy returns the capability table.
func NewPolicy(opts PolicyOptions) *Policy {
	everyone := []domain.Role{domain.RoleClient, domain.RoleAgent, domain.RoleAdmin}
	staff := []domain.Role{domain.RoleAgent, domain.RoleAdmin}
	userDelete := []domain.Role{domain.RoleAdmin}
	if opts.AgentsMayDeleteUsers {
		userDelete = staff
	}

	table := map[Capability][]domain.Role{
		CapTicketList:         everyone,
		CapTicketRead:         everyone,
		CapTicketCreate:       {domain.RoleClient},
		CapTicketUpdateStatus: staff,
		CapTicketDelete:       {domain.RoleClient, domain.RoleAdmin},
		CapProfileRead:        everyone,
		CapProfileUpdate:      everyone,
		CapPasswordChange:     everyone,
		CapUserList:           staff,
		CapUserDelete:         userDelete,
	}

	p := &Policy{allowed: make(map[Capability]map[domain.Role]struct{}, len(table))}
	for capability, roles := range table {
		set := make(map[domain.Role]struct{}, len(roles))
		for _, role := range roles {
			set[role] = struct{}{}
		}
		p.allowed[capability] = set
	}
	return p
}

// Allows reports whether role may use capability. Unknown capabilities are denied.
func (p *Policy) Allows(role domain.Role, capability Capability) bool {
	_, ok := p.allowed[capability][role]
	return ok
}

// Require gates a route on capability. It must run after Authenticator.Handle.
func Require(policy *Policy, capability Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !policy.Allows(principal.Role(), capability) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
