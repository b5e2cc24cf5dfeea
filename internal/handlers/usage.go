package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/linkhub/backend/internal/middleware"
	"github.com/linkhub/backend/internal/models"
	"github.com/linkhub/backend/internal/services"
)

type UsageHandler struct {
	usage    *services.UsageService
	alerts   *services.UsageAlertService
	validate *validator.Validate
}

func NewUsageHandler(usage *services.UsageService, alerts *services.UsageAlertService, validate *validator.Validate) *UsageHandler {
	return &UsageHandler{usage: usage, alerts: alerts, validate: validate}
}

// Get returns current usage and limits for every metric
func (h *UsageHandler) Get(c *fiber.Ctx) error {
	summary, err := h.usage.GetUsageSummary(c.UserContext(), c.Params("workspaceId"))
	if err != nil {
		return middleware.UsageError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    summary,
	})
}

// Check evaluates a prospective increment without changing anything
func (h *UsageHandler) Check(c *fiber.Ctx) error {
	var req CheckUsageRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}
	if req.Increment == 0 {
		req.Increment = 1
	}

	check, err := h.usage.CheckUsageLimits(c.UserContext(), c.Params("workspaceId"), models.Metric(req.Metric), req.Increment)
	if err != nil {
		return middleware.UsageError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    check,
	})
}

// Alerts lists metrics at or above the warning threshold
func (h *UsageHandler) Alerts(c *fiber.Ctx) error {
	alerts, err := h.alerts.CheckUsageAlerts(c.UserContext(), c.Params("workspaceId"))
	if err != nil {
		return middleware.UsageError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    alerts,
	})
}
