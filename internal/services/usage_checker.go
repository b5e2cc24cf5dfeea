package services

import (
	"context"

	"github.com/linkhub/backend/internal/models"
)

const warnThreshold = 80.0

// LimitCheck is the outcome of a usage limit check.
type LimitCheck struct {
	Metric          models.Metric `json:"metric"`
	Allowed         bool          `json:"allowed"`
	Current         int64         `json:"current"`
	Limit           int64         `json:"limit"`
	Percentage      float64       `json:"percentage"`
	ShouldWarn      bool          `json:"should_warn"`
	UpgradeRequired bool          `json:"upgrade_required"`
	CurrentPlan     models.Plan   `json:"current_plan"`
	SuggestedPlan   models.Plan   `json:"suggested_plan,omitempty"`
	ReadOnly        bool          `json:"read_only,omitempty"`
}

// CheckUsageLimits decides whether adding increment to metric keeps the
// workspace within its limit. Unlimited workspaces are allowed without
// reading usage.
func (s *UsageService) CheckUsageLimits(ctx context.Context, workspaceID string, metric models.Metric, increment int64) (*LimitCheck, error) {
	ws, err := s.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	limit := s.LimitsFor(ws).For(metric)
	if limit == models.Unlimited {
		s.metrics.limitCheck(metric, "unlimited")
		return &LimitCheck{
			Metric:      metric,
			Allowed:     true,
			Limit:       models.Unlimited,
			CurrentPlan: ws.Plan,
		}, nil
	}

	current, err := s.GetCurrentUsage(ctx, workspaceID, metric)
	if err != nil {
		return nil, err
	}

	projected := current + increment
	pct := usagePercentage(projected, limit)
	check := &LimitCheck{
		Metric:          metric,
		Allowed:         projected <= limit,
		Current:         current,
		Limit:           limit,
		Percentage:      pct,
		ShouldWarn:      pct >= warnThreshold && pct < 100,
		UpgradeRequired: projected > limit,
		CurrentPlan:     ws.Plan,
	}
	if check.UpgradeRequired {
		if next, ok := ws.Plan.Next(); ok {
			check.SuggestedPlan = next
		}
	}

	if check.Allowed {
		s.metrics.limitCheck(metric, "allowed")
	} else {
		s.metrics.limitCheck(metric, "denied")
	}
	return check, nil
}

// Actor is the authenticated caller resolved by the identity provider.
type Actor struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// EnforceOptions tune Enforce. Increment defaults to 1.
type EnforceOptions struct {
	Increment int64
	// GracefulDegradation turns a denial into a read-only result instead of
	// an error.
	GracefulDegradation bool
}

// Enforce is the gate in front of quota-bound mutations. It returns
// ErrUnauthenticated without an actor, and a *LimitExceededError on denial
// unless graceful degradation was requested.
func (s *UsageService) Enforce(ctx context.Context, actor *Actor, workspaceID string, metric models.Metric, opts EnforceOptions) (*LimitCheck, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	increment := opts.Increment
	if increment <= 0 {
		increment = 1
	}

	check, err := s.CheckUsageLimits(ctx, workspaceID, metric, increment)
	if err != nil {
		return nil, err
	}
	if check.Allowed {
		return check, nil
	}

	if opts.GracefulDegradation {
		check.ReadOnly = true
		return check, nil
	}

	s.logger.Info().
		Str("workspace_id", workspaceID).
		Str("user_id", actor.UserID).
		Str("metric", string(metric)).
		Int64("current", check.Current).
		Int64("limit", check.Limit).
		Msg("Usage limit reached")

	return nil, &LimitExceededError{
		Metric:        metric,
		Current:       check.Current,
		Limit:         check.Limit,
		Action:        "upgrade",
		CurrentPlan:   check.CurrentPlan,
		SuggestedPlan: check.SuggestedPlan,
	}
}
