package services

import (
	"time"

	"github.com/linkhub/backend/internal/models"
)

// ResolvedLimits are the effective ceilings of a workspace; -1 is unlimited.
type ResolvedLimits struct {
	Links  int64 `json:"links"`
	Clicks int64 `json:"clicks"`
	Users  int64 `json:"users"`
}

func (r ResolvedLimits) For(metric models.Metric) int64 {
	switch metric {
	case models.MetricLinks:
		return r.Links
	case models.MetricClicks:
		return r.Clicks
	case models.MetricUsers:
		return r.Users
	}
	return 0
}

// ResolveLimits computes the effective limits of ws at now. Precedence:
// beta/VIP (all unlimited), then an unexpired temporary increase, then the
// workspace override column, then the plan default.
//
// A malformed custom_limits document is passed in as nil by the caller and
// behaves as if absent.
func ResolveLimits(ws *models.Workspace, custom *models.CustomLimits, now time.Time) ResolvedLimits {
	if custom.Unlimited() {
		return ResolvedLimits{Links: models.Unlimited, Clicks: models.Unlimited, Users: models.Unlimited}
	}

	var temp *models.TempIncreases
	if custom != nil && custom.TempIncreases.Active(now) {
		temp = custom.TempIncreases
	}

	defaults := ws.Plan.Limits()
	resolve := func(metric models.Metric, tierDefault int64) int64 {
		if v := temp.For(metric); v != nil {
			return *v
		}
		if v := ws.OverrideFor(metric); v != nil {
			return *v
		}
		return tierDefault
	}

	return ResolvedLimits{
		Links:  resolve(models.MetricLinks, defaults.Links),
		Clicks: resolve(models.MetricClicks, defaults.Clicks),
		Users:  resolve(models.MetricUsers, defaults.Users),
	}
}

// usagePercentage is used/limit as a percentage. A zero limit is 100% used
// as soon as anything is used.
func usagePercentage(used, limit int64) float64 {
	if limit == 0 {
		if used > 0 {
			return 100
		}
		return 0
	}
	return float64(used*100) / float64(limit)
}
