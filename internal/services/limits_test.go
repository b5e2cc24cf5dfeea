package services

import (
	"testing"
	"time"

	"github.com/linkhub/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestResolveLimits(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name   string
		ws     models.Workspace
		custom *models.CustomLimits
		want   ResolvedLimits
	}{
		{
			name: "tier defaults",
			ws:   models.Workspace{Plan: models.PlanStarter},
			want: ResolvedLimits{Links: 500, Clicks: 10000, Users: 3},
		},
		{
			name: "unknown plan falls back to free",
			ws:   models.Workspace{Plan: "enterprise-legacy"},
			want: ResolvedLimits{Links: 50, Clicks: 1000, Users: 1},
		},
		{
			name: "override column beats tier",
			ws:   models.Workspace{Plan: models.PlanFree, MaxLinks: int64p(75)},
			want: ResolvedLimits{Links: 75, Clicks: 1000, Users: 1},
		},
		{
			name: "override may be unlimited",
			ws:   models.Workspace{Plan: models.PlanFree, MaxClicks: int64p(models.Unlimited)},
			want: ResolvedLimits{Links: 50, Clicks: models.Unlimited, Users: 1},
		},
		{
			name:   "beta user is unlimited everywhere",
			ws:     models.Workspace{Plan: models.PlanFree, MaxLinks: int64p(10)},
			custom: &models.CustomLimits{BetaUser: true},
			want:   ResolvedLimits{Links: models.Unlimited, Clicks: models.Unlimited, Users: models.Unlimited},
		},
		{
			name:   "vip customer is unlimited everywhere",
			ws:     models.Workspace{Plan: models.PlanPro},
			custom: &models.CustomLimits{VIPCustomer: true},
			want:   ResolvedLimits{Links: models.Unlimited, Clicks: models.Unlimited, Users: models.Unlimited},
		},
		{
			name: "active temp increase beats override",
			ws:   models.Workspace{Plan: models.PlanFree, MaxLinks: int64p(75)},
			custom: &models.CustomLimits{TempIncreases: &models.TempIncreases{
				Links: int64p(100), Expires: &future,
			}},
			want: ResolvedLimits{Links: 100, Clicks: 1000, Users: 1},
		},
		{
			name: "expired temp increase is ignored",
			ws:   models.Workspace{Plan: models.PlanFree, MaxLinks: int64p(75)},
			custom: &models.CustomLimits{TempIncreases: &models.TempIncreases{
				Links: int64p(100), Users: int64p(5), Expires: &past,
			}},
			want: ResolvedLimits{Links: 75, Clicks: 1000, Users: 1},
		},
		{
			name: "temp increase without expiry stays active",
			ws:   models.Workspace{Plan: models.PlanFree},
			custom: &models.CustomLimits{TempIncreases: &models.TempIncreases{
				Users: int64p(4),
			}},
			want: ResolvedLimits{Links: 50, Clicks: 1000, Users: 4},
		},
		{
			name: "temp increase expiring exactly now is expired",
			ws:   models.Workspace{Plan: models.PlanFree},
			custom: &models.CustomLimits{TempIncreases: &models.TempIncreases{
				Links: int64p(100), Expires: &now,
			}},
			want: ResolvedLimits{Links: 50, Clicks: 1000, Users: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ws := tt.ws
			assert.Equal(t, tt.want, ResolveLimits(&ws, tt.custom, now))
		})
	}
}

func TestUsagePercentage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 80.0, usagePercentage(40, 50))
	assert.Equal(t, 100.0, usagePercentage(50, 50))
	assert.Equal(t, 150.0, usagePercentage(75, 50))
	assert.InDelta(t, 33.333, usagePercentage(1, 3), 0.001)
	assert.Equal(t, 0.0, usagePercentage(0, 0))
	assert.Equal(t, 100.0, usagePercentage(1, 0))
}
