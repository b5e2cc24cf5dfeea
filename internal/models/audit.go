package models

import (
	"encoding/json"
	"time"
)

// AuditAction represents the type of audit action
type AuditAction string

const (
	AuditActionCreate           AuditAction = "create"
	AuditActionUpdate           AuditAction = "update"
	AuditActionDelete           AuditAction = "delete"
	AuditActionUpdateLimits     AuditAction = "update_limits"
	AuditActionRecalculateUsage AuditAction = "recalculate_usage"
	AuditActionUsageAlertSent   AuditAction = "usage_alert_sent"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID          string          `gorm:"column:id;primaryKey;size:36" json:"id"`
	WorkspaceID string          `gorm:"column:workspace_id;size:36;index:idx_audit_workspace_action_created" json:"workspace_id"`
	UserID      string          `gorm:"column:user_id;size:36;index" json:"user_id"`
	Action      AuditAction     `gorm:"column:action;size:50;not null;index:idx_audit_workspace_action_created" json:"action"`
	EntityType  string          `gorm:"column:entity_type;size:50;index" json:"entity_type"` // workspace, link, membership
	EntityID    string          `gorm:"column:entity_id;size:36" json:"entity_id"`
	Metadata    json.RawMessage `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	IPAddress   string          `gorm:"column:ip_address;size:50" json:"ip_address"`
	UserAgent   string          `gorm:"column:user_agent;size:255" json:"user_agent"`
	CreatedAt   time.Time       `gorm:"column:created_at;index:idx_audit_workspace_action_created" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
