package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/middleware"
	"github.com/linkhub/backend/internal/models"
	"github.com/linkhub/backend/internal/services"
	"github.com/rs/zerolog"
)

// LimitsStore applies admin limit changes
type LimitsStore interface {
	UpdateWorkspaceLimits(ctx context.Context, workspaceID string, u database.LimitsUpdate) (*models.Workspace, error)
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

type AdminHandler struct {
	store    LimitsStore
	usage    *services.UsageService
	sync     *services.UsageSyncService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewAdminHandler(store LimitsStore, usage *services.UsageService, sync *services.UsageSyncService, validate *validator.Validate, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		store:    store,
		usage:    usage,
		sync:     sync,
		validate: validate,
		logger:   logger.With().Str("handler", "admin").Logger(),
	}
}

// UpdateLimits changes a workspace's plan, overrides or custom limits
func (h *AdminHandler) UpdateLimits(c *fiber.Ctx) error {
	var req UpdateLimitsRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	update := database.LimitsUpdate{
		MaxLinks:     req.MaxLinks,
		MaxClicks:    req.MaxClicks,
		MaxUsers:     req.MaxUsers,
		CustomLimits: req.CustomLimits,
		ClearCustom:  req.ClearCustomLimits,
	}
	if req.Plan != nil {
		plan, err := models.ParsePlan(*req.Plan)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		update.Plan = &plan
	}
	for _, name := range req.ClearOverrides {
		switch models.Metric(name) {
		case models.MetricLinks:
			update.ClearLinks = true
		case models.MetricClicks:
			update.ClearClicks = true
		case models.MetricUsers:
			update.ClearUsers = true
		}
	}

	ctx := c.UserContext()
	workspaceID := c.Params("workspaceId")
	ws, err := h.store.UpdateWorkspaceLimits(ctx, workspaceID, update)
	if errors.Is(err, database.ErrNotFound) {
		return middleware.UsageError(c, services.ErrWorkspaceNotFound)
	}
	if err != nil {
		return err
	}

	metadata, _ := json.Marshal(req)
	entry := &models.AuditLog{
		WorkspaceID: workspaceID,
		Action:      models.AuditActionUpdateLimits,
		EntityType:  "workspace",
		EntityID:    workspaceID,
		Metadata:    metadata,
		IPAddress:   c.IP(),
		UserAgent:   c.Get(fiber.HeaderUserAgent),
		CreatedAt:   time.Now().UTC(),
	}
	if actor := middleware.GetActor(c); actor != nil {
		entry.UserID = actor.UserID
	}
	if err := h.store.CreateAuditLog(ctx, entry); err != nil {
		h.logger.Error().Err(err).Str("workspace_id", workspaceID).Msg("Failed to audit limit change")
	}

	if _, err := h.sync.RecalculateUsage(ctx, workspaceID); err != nil {
		h.logger.Warn().Err(err).Str("workspace_id", workspaceID).Msg("Recalculation after limit change failed")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"workspace": ws,
			"limits":    h.usage.LimitsFor(ws),
		},
	})
}

// Recalculate recounts usage from the database
func (h *AdminHandler) Recalculate(c *fiber.Ctx) error {
	workspaceID := c.Params("workspaceId")
	snapshot, err := h.sync.RecalculateUsage(c.UserContext(), workspaceID)
	if err != nil {
		return middleware.UsageError(c, err)
	}

	metadata, _ := json.Marshal(snapshot)
	entry := &models.AuditLog{
		WorkspaceID: workspaceID,
		Action:      models.AuditActionRecalculateUsage,
		EntityType:  "workspace",
		EntityID:    workspaceID,
		Metadata:    metadata,
		IPAddress:   c.IP(),
		CreatedAt:   time.Now().UTC(),
	}
	if actor := middleware.GetActor(c); actor != nil {
		entry.UserID = actor.UserID
	}
	if err := h.store.CreateAuditLog(c.UserContext(), entry); err != nil {
		h.logger.Error().Err(err).Str("workspace_id", workspaceID).Msg("Failed to audit recalculation")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    snapshot,
	})
}

// Sync copies the workspace's counters to the database now
func (h *AdminHandler) Sync(c *fiber.Ctx) error {
	synced, err := h.sync.SyncUsageToDatabase(c.UserContext(), c.Params("workspaceId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"synced": synced},
	})
}

// ResetMonthly zeroes every workspace's click counter for the current month
func (h *AdminHandler) ResetMonthly(c *fiber.Ctx) error {
	if err := h.sync.ResetMonthlyCounters(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Monthly counters reset",
	})
}
