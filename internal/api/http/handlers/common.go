package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ticketly/ticket-service/internal/api/dto"
	"github.com/ticketly/ticket-service/internal/auth"
	"github.com/ticketly/ticket-service/internal/domain"
	"github.com/ticketly/ticket-service/internal/service"
	apperrors "github.com/ticketly/ticket-service/pkg/util/errorutil"
)

func currentUser(c *fiber.Ctx) (domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.User{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.User, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

// parseInt returns 0 for missing or malformed values; the services apply defaults.
func parseInt(val string) int {
	if val == "" {
		return 0
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return parsed
}

func pageRequest(c *fiber.Ctx) service.PageRequest {
	return service.PageRequest{Page: parseInt(c.Query("page")), Limit: parseInt(c.Query("limit"))}
}

func userResponse(u domain.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		Phone:          u.Phone,
		DisplayPicture: u.DisplayPicture,
		Role:           string(u.Role),
		IsVerified:     u.IsVerified,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func clientProfile(u domain.User) dto.ClientProfile {
	return dto.ClientProfile{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		Phone:          u.Phone,
		DisplayPicture: u.DisplayPicture,
	}
}

func staffProfile(u domain.User) dto.StaffProfile {
	return dto.StaffProfile{ClientProfile: clientProfile(u), Role: string(u.Role), CreatedAt: u.CreatedAt}
}

// profileView picks the field set by the viewer's role.
func profileView(viewer domain.Role, u domain.User) any {
	if viewer.IsStaff() {
		return staffProfile(u)
	}
	return clientProfile(u)
}

func staffProfiles(users []domain.User) []dto.StaffProfile {
	out := make([]dto.StaffProfile, 0, len(users))
	for _, u := range users {
		out = append(out, staffProfile(u))
	}
	return out
}

func ticketResponse(viewer domain.Role, t *domain.Ticket) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:         t.ID,
		Screenshot: t.Screenshot,
		Summary:    t.Summary,
		Status:     t.Status,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
	if viewer.IsStaff() {
		createdBy := t.CreatedBy
		resp.CreatedBy = &createdBy
	}
	return resp
}
