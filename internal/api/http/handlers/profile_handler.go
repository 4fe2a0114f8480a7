package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ticketly/ticket-service/internal/api/dto"
	"github.com/ticketly/ticket-service/internal/service"
)

// ProfileHandler serves profiles, user listings and user deletion.
type ProfileHandler struct {
	users *service.UserService
}

// NewProfileHandler constructs handler.
func NewProfileHandler(userService *service.UserService) *ProfileHandler {
	return &ProfileHandler{users: userService}
}

// GetProfile handles GET /api/users/profile/:id?. Staff without an id get a
// paginated listing.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id := c.Params("id")

	if id == "" && actor.Role.IsStaff() {
		page, err := h.users.ListProfiles(c.UserContext(), actor, service.ProfileListQuery{
			PageRequest: pageRequest(c),
			Role:        c.Query("role"),
			Sort:        c.Query("sort"),
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": staffProfiles(page.Items), "pagination": page.Pagination})
	}

	user, err := h.users.Profile(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": profileView(actor.Role, *user)})
}

// UpdateProfile handles PUT /api/users/profile/:id?.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ProfileUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.users.UpdateProfile(c.UserContext(), actor, c.Params("id"), service.ProfileUpdate{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		DisplayPicture: req.DisplayPicture,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": profileView(actor.Role, *user), "message": "profile updated successfully"})
}

// ListUsers handles GET /api/users and GET /api/users/users.
func (h *ProfileHandler) ListUsers(c *fiber.Ctx) error {
	page, err := h.users.ListUsers(c.UserContext(), service.ListUsersQuery{
		PageRequest: pageRequest(c),
		Search:      c.Query("search"),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffProfiles(page.Items), "pagination": page.Pagination})
}

// DeleteUser handles DELETE /api/users/:id.
func (h *ProfileHandler) DeleteUser(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	removed, err := h.users.DeleteUser(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":    dto.DeleteUserResponse{ID: id, TicketsRemoved: removed},
		"message": "user and their tickets deleted",
	})
}
