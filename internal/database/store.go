package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkhub/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique column is already taken.
	ErrConflict = errors.New("record already exists")
)

// naturalKey is the conflict target of usage_metrics upserts
var naturalKey = []clause.Column{
	{Name: "workspace_id"},
	{Name: "metric_type"},
	{Name: "period"},
	{Name: "period_start"},
}

// Store is the PostgreSQL durable store.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// GetWorkspace loads a workspace by id
func (s *Store) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	var ws models.Workspace
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&ws).Error; err != nil {
		return nil, notFound(err)
	}
	return &ws, nil
}

// ListWorkspaceIDs returns every workspace id, oldest first
func (s *Store) ListWorkspaceIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Workspace{}).Order("created_at").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return ids, nil
}

func (s *Store) CountLinks(ctx context.Context, workspaceID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Link{}).
		Where("workspace_id = ?", workspaceID).
		Count(&count).Error
	return count, err
}

// CountClicksSince counts click events recorded for the workspace at or after
// since. Clicks are monotonic within a month, so events of deleted links still
// count; that is why this filters on click_events.workspace_id instead of
// joining through the workspace's current links.
func (s *Store) CountClicksSince(ctx context.Context, workspaceID string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ClickEvent{}).
		Where("workspace_id = ? AND timestamp >= ?", workspaceID, since).
		Count(&count).Error
	return count, err
}

func (s *Store) CountActiveMembers(ctx context.Context, workspaceID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("workspace_id = ? AND status = ?", workspaceID, models.MembershipActive).
		Count(&count).Error
	return count, err
}

// IncrementUsageMetric adds m.Value to the row with m's natural key,
// creating it when absent.
func (s *Store) IncrementUsageMetric(ctx context.Context, m models.UsageMetric) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: naturalKey,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      gorm.Expr("usage_metrics.value + EXCLUDED.value"),
			"updated_at": gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(&m).Error
}

// DecrementUsageMetric lowers the lifetime row of metric, never below zero.
// A missing row is left alone.
func (s *Store) DecrementUsageMetric(ctx context.Context, workspaceID string, metric models.Metric, amount int64) error {
	return s.db.WithContext(ctx).Model(&models.UsageMetric{}).
		Where("workspace_id = ? AND metric_type = ? AND period = ? AND period_start = ?",
			workspaceID, metric, models.PeriodLifetime, models.LifetimePeriodStart).
		Updates(map[string]interface{}{
			"value":      gorm.Expr("GREATEST(value - ?, 0)", amount),
			"updated_at": time.Now().UTC(),
		}).Error
}

// SaveUsageSnapshot upserts every metric verbatim in one transaction.
func (s *Store) SaveUsageSnapshot(ctx context.Context, metrics []models.UsageMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range metrics {
			m := metrics[i]
			err := tx.Clauses(clause.OnConflict{
				Columns:   naturalKey,
				DoUpdates: clause.AssignmentColumns([]string{"value", "period_end", "updated_at"}),
			}).Create(&m).Error
			if err != nil {
				return fmt.Errorf("failed to upsert %s metric: %w", m.MetricType, err)
			}
		}
		return nil
	})
}

// ListUsageMetrics returns the durable rows of a workspace, newest period first
func (s *Store) ListUsageMetrics(ctx context.Context, workspaceID string) ([]models.UsageMetric, error) {
	var rows []models.UsageMetric
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("period_start DESC, metric_type").
		Find(&rows).Error
	return rows, err
}

// HasAuditEntrySince reports whether action was logged for the workspace at
// or after since.
func (s *Store) HasAuditEntrySince(ctx context.Context, workspaceID string, action models.AuditAction, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.AuditLog{}).
		Where("workspace_id = ? AND action = ? AND created_at >= ?", workspaceID, action, since).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// WorkspaceOwnerEmail returns the email of the earliest active owner
func (s *Store) WorkspaceOwnerEmail(ctx context.Context, workspaceID string) (string, error) {
	var email string
	err := s.db.WithContext(ctx).
		Table("memberships").
		Select("users.email").
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.workspace_id = ? AND memberships.role = ? AND memberships.status = ?",
			workspaceID, models.RoleOwner, models.MembershipActive).
		Order("memberships.created_at").
		Limit(1).
		Scan(&email).Error
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", ErrNotFound
	}
	return email, nil
}

func (s *Store) CreateClickEvent(ctx context.Context, event *models.ClickEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *Store) FindLinkBySlug(ctx context.Context, slug string) (*models.Link, error) {
	var link models.Link
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&link).Error; err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

func (s *Store) CreateLink(ctx context.Context, link *models.Link) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Create(link).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

// DeleteLink removes a link; deleted is false when nothing matched.
func (s *Store) DeleteLink(ctx context.Context, workspaceID, linkID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("workspace_id = ? AND id = ?", workspaceID, linkID).
		Delete(&models.Link{})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) GetMembership(ctx context.Context, workspaceID, userID string) (*models.Membership, error) {
	var m models.Membership
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// UpsertMembership activates a membership, reusing a removed or invited row
// for the same user.
func (s *Store) UpsertMembership(ctx context.Context, m *models.Membership) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "status", "updated_at"}),
	}).Create(m).Error
}

// RemoveMembership marks an active membership removed; removed is false when
// no active membership matched.
func (s *Store) RemoveMembership(ctx context.Context, workspaceID, userID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("workspace_id = ? AND user_id = ? AND status = ?", workspaceID, userID, models.MembershipActive).
		Update("status", models.MembershipRemoved)
	return res.RowsAffected > 0, res.Error
}

// LimitsUpdate carries admin changes to a workspace's limits. Nil fields are
// left unchanged; ClearX resets the column to the tier default.
type LimitsUpdate struct {
	Plan         *models.Plan
	MaxLinks     *int64
	MaxClicks    *int64
	MaxUsers     *int64
	ClearLinks   bool
	ClearClicks  bool
	ClearUsers   bool
	CustomLimits *models.CustomLimits
	ClearCustom  bool
}

// UpdateWorkspaceLimits applies u and returns the updated workspace.
func (s *Store) UpdateWorkspaceLimits(ctx context.Context, workspaceID string, u LimitsUpdate) (*models.Workspace, error) {
	updates := map[string]interface{}{}
	if u.Plan != nil {
		updates["plan"] = *u.Plan
	}
	setColumn := func(col string, v *int64, clear bool) {
		if clear {
			updates[col] = nil
		} else if v != nil {
			updates[col] = *v
		}
	}
	setColumn("max_links", u.MaxLinks, u.ClearLinks)
	setColumn("max_clicks", u.MaxClicks, u.ClearClicks)
	setColumn("max_users", u.MaxUsers, u.ClearUsers)
	if u.ClearCustom {
		updates["custom_limits"] = nil
	} else if u.CustomLimits != nil {
		raw, err := models.EncodeCustomLimits(u.CustomLimits)
		if err != nil {
			return nil, err
		}
		updates["custom_limits"] = string(raw)
	}

	if len(updates) > 0 {
		updates["updated_at"] = time.Now().UTC()
		res := s.db.WithContext(ctx).Model(&models.Workspace{}).Where("id = ?", workspaceID).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to update workspace limits: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetWorkspace(ctx, workspaceID)
}
