package handlers

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/middleware"
	"github.com/linkhub/backend/internal/models"
)

// UsageCounter applies committed business changes to usage counters.
// *services.UsageService implements it.
type UsageCounter interface {
	Increment(ctx context.Context, workspaceID string, metric models.Metric, amount int64)
	Decrement(ctx context.Context, workspaceID string, metric models.Metric, amount int64)
}

// LinkStore persists links
type LinkStore interface {
	CreateLink(ctx context.Context, link *models.Link) error
	DeleteLink(ctx context.Context, workspaceID, linkID string) (bool, error)
}

type LinkHandler struct {
	links    LinkStore
	usage    UsageCounter
	validate *validator.Validate
}

func NewLinkHandler(links LinkStore, usage UsageCounter, validate *validator.Validate) *LinkHandler {
	return &LinkHandler{links: links, usage: usage, validate: validate}
}

// Create adds a link. The links quota is checked by middleware before this
// runs.
func (h *LinkHandler) Create(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	link := &models.Link{
		WorkspaceID: c.Params("workspaceId"),
		Slug:        req.Slug,
		URL:         req.URL,
		Title:       req.Title,
	}
	if actor := middleware.GetActor(c); actor != nil {
		link.CreatedBy = actor.UserID
	}
	if link.Slug == "" {
		slug, err := randomSlug(slugLength)
		if err != nil {
			return err
		}
		link.Slug = slug
	}

	ctx := c.UserContext()
	if err := h.links.CreateLink(ctx, link); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Slug is already taken",
			})
		}
		return err
	}
	h.usage.Increment(ctx, link.WorkspaceID, models.MetricLinks, 1)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    link,
	})
}

// Delete removes a link. Clicks already recorded keep counting.
func (h *LinkHandler) Delete(c *fiber.Ctx) error {
	workspaceID := c.Params("workspaceId")
	ctx := c.UserContext()

	deleted, err := h.links.DeleteLink(ctx, workspaceID, c.Params("linkId"))
	if err != nil {
		return err
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Link not found",
		})
	}
	h.usage.Decrement(ctx, workspaceID, models.MetricLinks, 1)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Link deleted",
	})
}
