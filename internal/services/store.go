package services

import (
	"context"
	"time"

	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/models"
)

// Store is the durable store the usage subsystem reads ground truth from and
// mirrors counters into. *database.Store implements it.
type Store interface {
	GetWorkspace(ctx context.Context, id string) (*models.Workspace, error)
	ListWorkspaceIDs(ctx context.Context) ([]string, error)

	CountLinks(ctx context.Context, workspaceID string) (int64, error)
	CountClicksSince(ctx context.Context, workspaceID string, since time.Time) (int64, error)
	CountActiveMembers(ctx context.Context, workspaceID string) (int64, error)

	IncrementUsageMetric(ctx context.Context, m models.UsageMetric) error
	DecrementUsageMetric(ctx context.Context, workspaceID string, metric models.Metric, amount int64) error
	SaveUsageSnapshot(ctx context.Context, metrics []models.UsageMetric) error

	HasAuditEntrySince(ctx context.Context, workspaceID string, action models.AuditAction, since time.Time) (bool, error)
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	WorkspaceOwnerEmail(ctx context.Context, workspaceID string) (string, error)

	CreateClickEvent(ctx context.Context, event *models.ClickEvent) error
}

// Counters is the fast counter store. *database.Counters implements it.
type Counters interface {
	Get(ctx context.Context, key string) database.Lookup
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, amount int64) (int64, error)
	DecrBy(ctx context.Context, key string, amount int64) (int64, error)
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

var (
	_ Store    = (*database.Store)(nil)
	_ Counters = (*database.Counters)(nil)
)
