package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/linkhub/backend/internal/models"
	"github.com/rs/zerolog"
)

// AuditSink stores audit entries
type AuditSink interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// entityTypes maps a workspace sub-collection to the audited entity type
var entityTypes = map[string]string{
	"links":   "link",
	"members": "membership",
}

// AuditLogger records successful mutations of workspace entities
func AuditLogger(sink AuditSink, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip non-modifying requests
		method := c.Method()
		if method == fiber.MethodGet || method == fiber.MethodHead || method == fiber.MethodOptions {
			return c.Next()
		}

		actor := GetActor(c)
		path := c.Path()
		ip := c.IP()
		userAgent := c.Get(fiber.HeaderUserAgent)

		err := c.Next()

		// Only log successful responses
		status := c.Response().StatusCode()
		if err != nil || status < 200 || status >= 400 || actor == nil {
			return err
		}

		workspaceID, entityType, entityID := parseEntityPath(path)
		if entityType == "" {
			return nil
		}

		var action models.AuditAction
		switch method {
		case fiber.MethodPost:
			action = models.AuditActionCreate
		case fiber.MethodPut, fiber.MethodPatch:
			action = models.AuditActionUpdate
		case fiber.MethodDelete:
			action = models.AuditActionDelete
		default:
			return nil
		}

		if entityID == "" {
			entityID = createdID(c.Response().Body())
		}
		metadata, _ := json.Marshal(map[string]string{"method": method, "path": path})

		entry := &models.AuditLog{
			WorkspaceID: workspaceID,
			UserID:      actor.UserID,
			Action:      action,
			EntityType:  entityType,
			EntityID:    entityID,
			Metadata:    metadata,
			IPAddress:   ip,
			UserAgent:   userAgent,
			CreatedAt:   time.Now().UTC(),
		}
		if err := sink.CreateAuditLog(c.UserContext(), entry); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to write audit log")
		}
		return nil
	}
}

// parseEntityPath splits /api/workspaces/<ws>/<collection>[/<id>]
func parseEntityPath(path string) (workspaceID, entityType, entityID string) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/"), "/"), "/")
	if len(parts) < 3 || parts[0] != "workspaces" {
		return "", "", ""
	}
	entityType, ok := entityTypes[parts[2]]
	if !ok {
		return "", "", ""
	}
	if len(parts) > 3 {
		entityID = parts[3]
	}
	return parts[1], entityType, entityID
}

// createdID pulls data.id out of a success envelope
func createdID(body []byte) string {
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if json.Unmarshal(body, &resp) != nil {
		return ""
	}
	return resp.Data.ID
}
