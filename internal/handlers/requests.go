package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/linkhub/backend/internal/models"
)

// CheckUsageRequest is the body of POST /usage/check
type CheckUsageRequest struct {
	Metric    string `json:"metric" validate:"required,oneof=links clicks users"`
	Increment int64  `json:"increment" validate:"omitempty,min=1"`
}

// CreateLinkRequest is the body of POST /links
type CreateLinkRequest struct {
	URL   string `json:"url" validate:"required,url,max=2048"`
	Slug  string `json:"slug" validate:"omitempty,alphanum,min=3,max=100"`
	Title string `json:"title" validate:"omitempty,max=255"`
}

// AddMemberRequest is the body of POST /members
type AddMemberRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"omitempty,oneof=owner admin member"`
}

// UpdateLimitsRequest is the body of PUT /admin/workspaces/:id/limits.
// Omitted fields are left unchanged.
type UpdateLimitsRequest struct {
	Plan              *string              `json:"plan" validate:"omitempty,oneof=free starter pro growth business"`
	MaxLinks          *int64               `json:"max_links" validate:"omitempty,min=-1"`
	MaxClicks         *int64               `json:"max_clicks" validate:"omitempty,min=-1"`
	MaxUsers          *int64               `json:"max_users" validate:"omitempty,min=-1"`
	ClearOverrides    []string             `json:"clear_overrides" validate:"omitempty,dive,oneof=links clicks users"`
	CustomLimits      *models.CustomLimits `json:"custom_limits"`
	ClearCustomLimits bool                 `json:"clear_custom_limits"`
	Reason            string               `json:"reason" validate:"omitempty,max=500"`
}

// parseBody decodes and validates the request body, writing a 400 on failure.
// ok is false when a response was already written.
func parseBody(c *fiber.Ctx, validate *validator.Validate, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": validationMessage(err),
		})
	}
	return true, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
