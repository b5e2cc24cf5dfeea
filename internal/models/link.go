package models

import (
	"time"
)

// Link is a short link owned by a workspace
type Link struct {
	ID          string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	WorkspaceID string    `gorm:"column:workspace_id;size:36;not null;index" json:"workspace_id"`
	Slug        string    `gorm:"column:slug;size:100;uniqueIndex;not null" json:"slug"`
	URL         string    `gorm:"column:url;type:text;not null" json:"url"`
	Title       string    `gorm:"column:title;size:255" json:"title"`
	CreatedBy   string    `gorm:"column:created_by;size:36" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Link) TableName() string {
	return "links"
}

// ClickEvent is one redirect through a link. Rows are never deleted by the
// usage subsystem.
type ClickEvent struct {
	ID          string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	LinkID      string    `gorm:"column:link_id;size:36;not null;index" json:"link_id"`
	WorkspaceID string    `gorm:"column:workspace_id;size:36;not null;index" json:"workspace_id"`
	Timestamp   time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`
	Referrer    string    `gorm:"column:referrer;size:500" json:"referrer"`
	Country     string    `gorm:"column:country;size:2" json:"country"`
	UserAgent   string    `gorm:"column:user_agent;size:255" json:"user_agent"`
	IPAddress   string    `gorm:"column:ip_address;size:50" json:"ip_address"`
}

func (ClickEvent) TableName() string {
	return "click_events"
}
