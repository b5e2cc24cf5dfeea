package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/models"
	"github.com/rs/zerolog"
)

// AlertType classifies how close a metric is to its limit
type AlertType string

const (
	AlertWarning      AlertType = "warning"
	AlertLimitReached AlertType = "limit_reached"
)

// UsageAlert is computed on demand and never stored.
type UsageAlert struct {
	Type       AlertType     `json:"type"`
	Metric     models.Metric `json:"metric"`
	Percentage float64       `json:"percentage"`
	Current    int64         `json:"current"`
	Limit      int64         `json:"limit"`
	Message    string        `json:"message"`
	Action     string        `json:"action"`
}

// UsageWarningEmail is the payload handed to a Notifier.
type UsageWarningEmail struct {
	WorkspaceName string
	AdminEmail    string
	Metric        models.Metric
	Percentage    float64
	CurrentUsage  int64
	Limit         int64
	PlanName      string
	AlertType     AlertType
	SuggestedPlan models.Plan
}

// Notifier delivers usage warnings to a workspace owner.
type Notifier interface {
	SendUsageWarningEmail(ctx context.Context, email UsageWarningEmail) error
}

// UsageAlertService evaluates thresholds and sends at most one usage email
// per workspace per local day.
type UsageAlertService struct {
	usage    *UsageService
	notifier Notifier
	location *time.Location
	logger   zerolog.Logger
}

func NewUsageAlertService(usage *UsageService, notifier Notifier, location *time.Location, logger zerolog.Logger) *UsageAlertService {
	if location == nil {
		location = time.UTC
	}
	return &UsageAlertService{
		usage:    usage,
		notifier: notifier,
		location: location,
		logger:   logger.With().Str("service", "UsageAlertService").Logger(),
	}
}

// CheckUsageAlerts returns the metrics at or above the warning threshold,
// ordered links, clicks, users.
func (s *UsageAlertService) CheckUsageAlerts(ctx context.Context, workspaceID string) ([]UsageAlert, error) {
	ws, err := s.usage.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	limits := s.usage.LimitsFor(ws)

	alerts := []UsageAlert{}
	for _, metric := range models.AllMetrics {
		limit := limits.For(metric)
		if limit == models.Unlimited {
			continue
		}
		current, err := s.usage.GetCurrentUsage(ctx, workspaceID, metric)
		if err != nil {
			return nil, err
		}
		pct := usagePercentage(current, limit)

		var alert UsageAlert
		switch {
		case pct >= 100:
			alert = UsageAlert{
				Type:    AlertLimitReached,
				Message: fmt.Sprintf("You have reached your %s limit (%d/%d).", metric, current, limit),
			}
		case pct >= warnThreshold:
			alert = UsageAlert{
				Type:    AlertWarning,
				Message: fmt.Sprintf("You have used %.0f%% of your %s limit (%d/%d).", pct, metric, current, limit),
			}
		default:
			continue
		}
		alert.Metric = metric
		alert.Percentage = pct
		alert.Current = current
		alert.Limit = limit
		alert.Action = "upgrade"
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// mostCritical picks the first limit_reached alert, else the first alert.
func mostCritical(alerts []UsageAlert) UsageAlert {
	for _, a := range alerts {
		if a.Type == AlertLimitReached {
			return a
		}
	}
	return alerts[0]
}

// localMidnight is the start of now's day in loc.
func localMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NotifyUsageAlerts emails the workspace owner about its most critical alert.
// It reports whether an email was sent. Nothing is sent when an alert email
// already went out today or when no metric is over threshold.
func (s *UsageAlertService) NotifyUsageAlerts(ctx context.Context, workspaceID string) (bool, error) {
	since := localMidnight(s.usage.clock.Now(), s.location)
	sent, err := s.usage.store.HasAuditEntrySince(ctx, workspaceID, models.AuditActionUsageAlertSent, since)
	if err != nil {
		return false, fmt.Errorf("failed to check alert history: %w", err)
	}
	if sent {
		return false, nil
	}

	alerts, err := s.CheckUsageAlerts(ctx, workspaceID)
	if err != nil {
		return false, err
	}
	if len(alerts) == 0 {
		return false, nil
	}
	alert := mostCritical(alerts)

	ws, err := s.usage.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return false, err
	}
	to, err := s.usage.store.WorkspaceOwnerEmail(ctx, workspaceID)
	if errors.Is(err, database.ErrNotFound) {
		s.logger.Warn().Str("workspace_id", workspaceID).Msg("Workspace has no owner to notify")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up owner email: %w", err)
	}

	email := UsageWarningEmail{
		WorkspaceName: ws.Name,
		AdminEmail:    to,
		Metric:        alert.Metric,
		Percentage:    alert.Percentage,
		CurrentUsage:  alert.Current,
		Limit:         alert.Limit,
		PlanName:      ws.Plan.DisplayName(),
		AlertType:     alert.Type,
	}
	if next, ok := ws.Plan.Next(); ok {
		email.SuggestedPlan = next
	}
	if err := s.notifier.SendUsageWarningEmail(ctx, email); err != nil {
		return false, fmt.Errorf("failed to send usage alert: %w", err)
	}
	s.usage.metrics.alertSent(alert.Type, alert.Metric)

	metadata, _ := json.Marshal(map[string]interface{}{
		"metric":     alert.Metric,
		"percentage": alert.Percentage,
		"type":       alert.Type,
	})
	entry := &models.AuditLog{
		WorkspaceID: workspaceID,
		Action:      models.AuditActionUsageAlertSent,
		EntityType:  "workspace",
		EntityID:    workspaceID,
		Metadata:    metadata,
		CreatedAt:   s.usage.clock.Now().UTC(),
	}
	if err := s.usage.store.CreateAuditLog(ctx, entry); err != nil {
		// The email is out; a missing entry only risks a second email today.
		s.logger.Error().Err(err).Str("workspace_id", workspaceID).Msg("Failed to record usage alert")
	}

	s.logger.Info().
		Str("workspace_id", workspaceID).
		Str("metric", string(alert.Metric)).
		Str("type", string(alert.Type)).
		Float64("percentage", alert.Percentage).
		Msg("Usage alert sent")
	return true, nil
}

// RunAlertSweep notifies every workspace that is over a threshold.
func (s *UsageAlertService) RunAlertSweep(ctx context.Context) error {
	ids, err := s.usage.store.ListWorkspaceIDs(ctx)
	if err != nil {
		return err
	}

	var result *multierror.Error
	sent := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}
		ok, err := s.NotifyUsageAlerts(ctx, id)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("workspace %s: %w", id, err))
			continue
		}
		if ok {
			sent++
		}
	}
	s.logger.Info().Int("workspaces", len(ids)).Int("sent", sent).Msg("Usage alert sweep finished")
	return result.ErrorOrNil()
}
