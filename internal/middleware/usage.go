package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/linkhub/backend/internal/models"
	"github.com/linkhub/backend/internal/services"
)

// Locals keys set by UsageLimit
const (
	UsageKey    = "usage"
	ReadOnlyKey = "readOnly"
)

// Enforcer gates quota-bound requests. *services.UsageService implements it.
type Enforcer interface {
	Enforce(ctx context.Context, actor *services.Actor, workspaceID string, metric models.Metric, opts services.EnforceOptions) (*services.LimitCheck, error)
}

// UsageLimit rejects the request when it would push metric over the
// workspace's limit. With graceful degradation the request continues and
// handlers read ReadOnlyKey instead.
func UsageLimit(enforcer Enforcer, metric models.Metric, opts services.EnforceOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		check, err := enforcer.Enforce(c.UserContext(), GetActor(c), c.Params("workspaceId"), metric, opts)
		if err != nil {
			return UsageError(c, err)
		}
		c.Locals(UsageKey, check)
		c.Locals(ReadOnlyKey, check.ReadOnly)
		return c.Next()
	}
}

// GetUsageCheck returns the check stored by UsageLimit, or nil
func GetUsageCheck(c *fiber.Ctx) *services.LimitCheck {
	check, _ := c.Locals(UsageKey).(*services.LimitCheck)
	return check
}

// IsReadOnly reports whether UsageLimit degraded the request
func IsReadOnly(c *fiber.Ctx) bool {
	ro, _ := c.Locals(ReadOnlyKey).(bool)
	return ro
}

// UsageError writes the JSON response for usage subsystem errors. Unknown
// errors are passed on to the app's error handler.
func UsageError(c *fiber.Ctx, err error) error {
	var limitErr *services.LimitExceededError
	switch {
	case errors.As(err, &limitErr):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "usage_limit_exceeded",
			"message": limitErr.Error(),
			"data":    limitErr,
		})
	case errors.Is(err, services.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Authentication required",
		})
	case errors.Is(err, services.ErrWorkspaceNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Workspace not found",
		})
	}
	return err
}
