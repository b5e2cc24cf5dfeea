package models

import (
	"time"
)

// User is a person known to the identity provider
type User struct {
	ID        string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Email     string    `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"column:name;size:255" json:"name"`
	IsAdmin   bool      `gorm:"column:is_admin;default:false" json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// MembershipRole is a user's role inside a workspace
type MembershipRole string

const (
	RoleOwner  MembershipRole = "owner"
	RoleAdmin  MembershipRole = "admin"
	RoleMember MembershipRole = "member"
)

// MembershipStatus tracks whether a seat is counted
type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipInvited MembershipStatus = "invited"
	MembershipRemoved MembershipStatus = "removed"
)

// Membership links a user to a workspace. Only active memberships count
// against the users limit.
type Membership struct {
	ID          string           `gorm:"column:id;primaryKey;size:36" json:"id"`
	WorkspaceID string           `gorm:"column:workspace_id;size:36;not null;uniqueIndex:idx_membership_workspace_user" json:"workspace_id"`
	UserID      string           `gorm:"column:user_id;size:36;not null;uniqueIndex:idx_membership_workspace_user" json:"user_id"`
	User        *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role        MembershipRole   `gorm:"column:role;size:20;not null;default:member" json:"role"`
	Status      MembershipStatus `gorm:"column:status;size:20;not null;default:active;index" json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (Membership) TableName() string {
	return "memberships"
}
