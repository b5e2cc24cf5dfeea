package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// LinkFinder resolves short links
type LinkFinder interface {
	FindLinkBySlug(ctx context.Context, slug string) (*models.Link, error)
}

// ClickTracker records redirects. *services.UsageService implements it.
type ClickTracker interface {
	TrackClick(ctx context.Context, event *models.ClickEvent)
}

type RedirectHandler struct {
	links   LinkFinder
	tracker ClickTracker
	lookups singleflight.Group
	logger  zerolog.Logger
}

func NewRedirectHandler(links LinkFinder, tracker ClickTracker, logger zerolog.Logger) *RedirectHandler {
	return &RedirectHandler{
		links:   links,
		tracker: tracker,
		logger:  logger.With().Str("handler", "redirect").Logger(),
	}
}

// Redirect sends the visitor to the link target and records the click.
// Tracking failures never affect the redirect.
func (h *RedirectHandler) Redirect(c *fiber.Ctx) error {
	slug := c.Params("slug")
	ctx := c.UserContext()

	v, err, _ := h.lookups.Do(slug, func() (interface{}, error) {
		return h.links.FindLinkBySlug(ctx, slug)
	})
	if errors.Is(err, database.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Link not found",
		})
	}
	if err != nil {
		return err
	}
	link := v.(*models.Link)

	h.tracker.TrackClick(context.WithoutCancel(ctx), &models.ClickEvent{
		LinkID:      link.ID,
		WorkspaceID: link.WorkspaceID,
		Referrer:    truncate(c.Get(fiber.HeaderReferer), 500),
		Country:     strings.ToUpper(truncate(c.Get("CF-IPCountry"), 2)),
		UserAgent:   truncate(c.Get(fiber.HeaderUserAgent), 255),
		IPAddress:   c.IP(),
	})

	return c.Redirect(link.URL, fiber.StatusFound)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
