package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/linkhub/backend/internal/middleware"
	"github.com/linkhub/backend/internal/models"
)

// UsageHistory lists durable usage rows
type UsageHistory interface {
	ListUsageMetrics(ctx context.Context, workspaceID string) ([]models.UsageMetric, error)
}

type AnalyticsHandler struct {
	history UsageHistory
}

func NewAnalyticsHandler(history UsageHistory) *AnalyticsHandler {
	return &AnalyticsHandler{history: history}
}

type monthlyClicks struct {
	Month  string `json:"month"`
	Clicks int64  `json:"clicks"`
}

// Get returns click analytics. Over the click limit the response is marked
// read-only instead of failing.
func (h *AnalyticsHandler) Get(c *fiber.Ctx) error {
	rows, err := h.history.ListUsageMetrics(c.UserContext(), c.Params("workspaceId"))
	if err != nil {
		return err
	}

	months := []monthlyClicks{}
	for _, r := range rows {
		if r.MetricType != models.MetricClicks || r.Period != models.PeriodMonthly {
			continue
		}
		months = append(months, monthlyClicks{Month: r.PeriodStart.Format("2006-01"), Clicks: r.Value})
	}

	data := fiber.Map{
		"history":   months,
		"read_only": middleware.IsReadOnly(c),
	}
	if check := middleware.GetUsageCheck(c); check != nil {
		data["current_month"] = check
	}
	resp := fiber.Map{
		"success": true,
		"data":    data,
	}
	if middleware.IsReadOnly(c) {
		resp["message"] = "Monthly click limit reached. Analytics are read-only until the limit resets or the plan is upgraded."
	}
	return c.JSON(resp)
}
