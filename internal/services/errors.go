package services

import (
	"errors"
	"fmt"

	"github.com/linkhub/backend/internal/models"
)

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrLimitExceeded     = errors.New("usage limit exceeded")
)

// LimitExceededError carries what a client needs to render an upgrade prompt.
type LimitExceededError struct {
	Metric        models.Metric `json:"metric"`
	Current       int64         `json:"current"`
	Limit         int64         `json:"limit"`
	Action        string        `json:"action"`
	CurrentPlan   models.Plan   `json:"current_plan"`
	SuggestedPlan models.Plan   `json:"suggested_plan,omitempty"`
}

func (e *LimitExceededError) Error() string {
	msg := fmt.Sprintf("You have reached your %s limit (%d) on the %s plan.", e.Metric, e.Limit, e.CurrentPlan.DisplayName())
	if e.SuggestedPlan != "" {
		return msg + fmt.Sprintf(" Upgrade to %s to continue.", e.SuggestedPlan.DisplayName())
	}
	return msg + " Contact support to raise your limit."
}

func (e *LimitExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}
