package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Workspace is a tenant. Limit columns are nil when the tier default applies
// and -1 when the resource is unlimited.
type Workspace struct {
	ID           string          `gorm:"column:id;primaryKey;size:36" json:"id"`
	Name         string          `gorm:"column:name;size:255;not null" json:"name"`
	Slug         string          `gorm:"column:slug;size:100;uniqueIndex;not null" json:"slug"`
	Plan         Plan            `gorm:"column:plan;size:20;not null;default:free" json:"plan"`
	MaxLinks     *int64          `gorm:"column:max_links" json:"max_links"`
	MaxClicks    *int64          `gorm:"column:max_clicks" json:"max_clicks"`
	MaxUsers     *int64          `gorm:"column:max_users" json:"max_users"`
	CustomLimits json.RawMessage `gorm:"column:custom_limits;type:jsonb" json:"custom_limits,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Workspace) TableName() string {
	return "workspaces"
}

// OverrideFor returns the workspace-level override column for metric
func (w *Workspace) OverrideFor(metric Metric) *int64 {
	switch metric {
	case MetricLinks:
		return w.MaxLinks
	case MetricClicks:
		return w.MaxClicks
	case MetricUsers:
		return w.MaxUsers
	}
	return nil
}

// CustomLimits is the typed form of the custom_limits document.
type CustomLimits struct {
	BetaUser      bool           `json:"beta_user,omitempty"`
	VIPCustomer   bool           `json:"vip_customer,omitempty"`
	TempIncreases *TempIncreases `json:"temp_increases,omitempty"`
}

// TempIncreases is a bundle of absolute ceilings that share one expiry.
// A later grant for one resource moves the expiry of every resource in the
// bundle.
type TempIncreases struct {
	Links   *int64     `json:"links,omitempty"`
	Clicks  *int64     `json:"clicks,omitempty"`
	Users   *int64     `json:"users,omitempty"`
	Expires *time.Time `json:"expires,omitempty"`
}

// Unlimited reports whether beta or VIP status lifts every limit
func (c *CustomLimits) Unlimited() bool {
	return c != nil && (c.BetaUser || c.VIPCustomer)
}

// Active reports whether the bundle still applies at now. A bundle without
// an expiry never lapses.
func (t *TempIncreases) Active(now time.Time) bool {
	if t == nil {
		return false
	}
	return t.Expires == nil || t.Expires.After(now)
}

// For returns the bundle value for metric, if present
func (t *TempIncreases) For(metric Metric) *int64 {
	if t == nil {
		return nil
	}
	switch metric {
	case MetricLinks:
		return t.Links
	case MetricClicks:
		return t.Clicks
	case MetricUsers:
		return t.Users
	}
	return nil
}

// ParseCustomLimits decodes a custom_limits document. Empty and JSON null
// documents decode to nil.
func ParseCustomLimits(raw json.RawMessage) (*CustomLimits, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var cl CustomLimits
	if err := json.Unmarshal(trimmed, &cl); err != nil {
		return nil, fmt.Errorf("invalid custom_limits: %w", err)
	}
	return &cl, nil
}

// EncodeCustomLimits is the inverse of ParseCustomLimits
func EncodeCustomLimits(cl *CustomLimits) (json.RawMessage, error) {
	if cl == nil {
		return nil, nil
	}
	return json.Marshal(cl)
}
