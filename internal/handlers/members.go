package handlers

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/models"
)

// MemberStore persists workspace memberships
type MemberStore interface {
	GetMembership(ctx context.Context, workspaceID, userID string) (*models.Membership, error)
	UpsertMembership(ctx context.Context, m *models.Membership) error
	RemoveMembership(ctx context.Context, workspaceID, userID string) (bool, error)
}

type MemberHandler struct {
	members  MemberStore
	usage    UsageCounter
	validate *validator.Validate
}

func NewMemberHandler(members MemberStore, usage UsageCounter, validate *validator.Validate) *MemberHandler {
	return &MemberHandler{members: members, usage: usage, validate: validate}
}

// Add activates a seat for a user. Re-adding an active member is a no-op
// and does not count twice.
func (h *MemberHandler) Add(c *fiber.Ctx) error {
	var req AddMemberRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}
	workspaceID := c.Params("workspaceId")
	ctx := c.UserContext()

	existing, err := h.members.GetMembership(ctx, workspaceID, req.UserID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}
	if existing != nil && existing.Status == models.MembershipActive {
		return c.JSON(fiber.Map{
			"success": true,
			"data":    existing,
		})
	}

	role := models.MembershipRole(req.Role)
	if role == "" {
		role = models.RoleMember
	}
	m := &models.Membership{
		WorkspaceID: workspaceID,
		UserID:      req.UserID,
		Role:        role,
		Status:      models.MembershipActive,
	}
	if existing != nil {
		m.ID = existing.ID
	}
	if err := h.members.UpsertMembership(ctx, m); err != nil {
		return err
	}
	h.usage.Increment(ctx, workspaceID, models.MetricUsers, 1)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    m,
	})
}

// Remove frees a seat
func (h *MemberHandler) Remove(c *fiber.Ctx) error {
	workspaceID := c.Params("workspaceId")
	ctx := c.UserContext()

	removed, err := h.members.RemoveMembership(ctx, workspaceID, c.Params("userId"))
	if err != nil {
		return err
	}
	if !removed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Member not found",
		})
	}
	h.usage.Decrement(ctx, workspaceID, models.MetricUsers, 1)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Member removed",
	})
}
