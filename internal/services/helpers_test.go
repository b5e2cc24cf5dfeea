package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/quartz"
	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store down")

// memStore is an in-memory Store.
type memStore struct {
	mu sync.Mutex

	workspaces map[string]*models.Workspace
	links      map[string]int64
	members    map[string]int64
	clicks     []models.ClickEvent
	metrics    map[string]models.UsageMetric
	audits     []models.AuditLog
	owners     map[string]string

	failAll       bool
	snapshotCalls int
	// onSnapshot runs inside SaveUsageSnapshot before rows are written
	onSnapshot func()
}

func newMemStore() *memStore {
	return &memStore{
		workspaces: map[string]*models.Workspace{},
		links:      map[string]int64{},
		members:    map[string]int64{},
		metrics:    map[string]models.UsageMetric{},
		owners:     map[string]string{},
	}
}

func metricKey(m models.UsageMetric) string {
	return fmt.Sprintf("%s/%s/%s/%d", m.WorkspaceID, m.MetricType, m.Period, m.PeriodStart.Unix())
}

func (s *memStore) addWorkspace(ws *models.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws.Plan == "" {
		ws.Plan = models.PlanFree
	}
	s.workspaces[ws.ID] = ws
}

func (s *memStore) addClicks(workspaceID string, at time.Time, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.clicks = append(s.clicks, models.ClickEvent{WorkspaceID: workspaceID, Timestamp: at})
	}
}

func (s *memStore) metric(workspaceID string, metric models.Metric, now time.Time) (models.UsageMetric, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metrics[metricKey(models.NewUsageMetric(workspaceID, metric, now, 0))]
	return m, ok
}

func (s *memStore) GetWorkspace(_ context.Context, id string) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errStoreDown
	}
	ws, ok := s.workspaces[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *ws
	return &cp, nil
}

func (s *memStore) ListWorkspaceIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errStoreDown
	}
	ids := make([]string, 0, len(s.workspaces))
	for id := range s.workspaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memStore) CountLinks(_ context.Context, workspaceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return 0, errStoreDown
	}
	return s.links[workspaceID], nil
}

func (s *memStore) CountClicksSince(_ context.Context, workspaceID string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return 0, errStoreDown
	}
	var n int64
	for _, c := range s.clicks {
		if c.WorkspaceID == workspaceID && !c.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountActiveMembers(_ context.Context, workspaceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return 0, errStoreDown
	}
	return s.members[workspaceID], nil
}

func (s *memStore) IncrementUsageMetric(_ context.Context, m models.UsageMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStoreDown
	}
	k := metricKey(m)
	if existing, ok := s.metrics[k]; ok {
		existing.Value += m.Value
		s.metrics[k] = existing
		return nil
	}
	s.metrics[k] = m
	return nil
}

func (s *memStore) DecrementUsageMetric(_ context.Context, workspaceID string, metric models.Metric, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStoreDown
	}
	k := metricKey(models.UsageMetric{
		WorkspaceID: workspaceID, MetricType: metric,
		Period: models.PeriodLifetime, PeriodStart: models.LifetimePeriodStart,
	})
	if existing, ok := s.metrics[k]; ok {
		existing.Value = max(existing.Value-amount, 0)
		s.metrics[k] = existing
	}
	return nil
}

func (s *memStore) SaveUsageSnapshot(_ context.Context, rows []models.UsageMetric) error {
	s.mu.Lock()
	hook := s.onSnapshot
	s.snapshotCalls++
	fail := s.failAll
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return errStoreDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range rows {
		s.metrics[metricKey(m)] = m
	}
	return nil
}

func (s *memStore) HasAuditEntrySince(_ context.Context, workspaceID string, action models.AuditAction, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return false, errStoreDown
	}
	for _, a := range s.audits {
		if a.WorkspaceID == workspaceID && a.Action == action && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStoreDown
	}
	s.audits = append(s.audits, *entry)
	return nil
}

func (s *memStore) WorkspaceOwnerEmail(_ context.Context, workspaceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return "", errStoreDown
	}
	email, ok := s.owners[workspaceID]
	if !ok {
		return "", database.ErrNotFound
	}
	return email, nil
}

func (s *memStore) CreateClickEvent(_ context.Context, event *models.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStoreDown
	}
	s.clicks = append(s.clicks, *event)
	return nil
}

// spyCounters records which primitives were called.
type spyCounters struct {
	Counters
	mu    sync.Mutex
	calls map[string]int
}

func (c *spyCounters) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[name]++
}

func (c *spyCounters) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *spyCounters) IncrBy(ctx context.Context, key string, amount int64) (int64, error) {
	c.record("IncrBy")
	return c.Counters.IncrBy(ctx, key, amount)
}

func (c *spyCounters) DecrBy(ctx context.Context, key string, amount int64) (int64, error) {
	c.record("DecrBy")
	return c.Counters.DecrBy(ctx, key, amount)
}

type fixture struct {
	t        *testing.T
	redis    *miniredis.Miniredis
	client   *redis.Client
	store    *memStore
	counters *spyCounters
	clock    *quartz.Mock
	usage    *UsageService
	sync     *UsageSyncService
}

// mid-month, so monthly keys are far from rollover
var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	clock := quartz.NewMock(t)
	clock.Set(testNow)

	store := newMemStore()
	counters := &spyCounters{Counters: database.NewCounters(client)}
	logger := zerolog.Nop()
	usage := NewUsageService(store, counters, clock, NewMetrics(prometheus.NewRegistry()), logger)
	return &fixture{
		t:        t,
		redis:    mr,
		client:   client,
		store:    store,
		counters: counters,
		clock:    clock,
		usage:    usage,
		sync:     NewUsageSyncService(usage, UsageSyncOptions{LockTTL: time.Minute, Concurrency: 4}, logger),
	}
}

// redisDown makes every Redis call fail.
func (f *fixture) redisDown() {
	f.redis.Close()
}

func (f *fixture) setCounter(workspaceID string, metric models.Metric, v int64) {
	f.t.Helper()
	key := database.CounterKey(workspaceID, metric, f.clock.Now())
	require.NoError(f.t, f.redis.Set(key, fmt.Sprint(v)))
}

func (f *fixture) counter(workspaceID string, metric models.Metric) (string, bool) {
	key := database.CounterKey(workspaceID, metric, f.clock.Now())
	if !f.redis.Exists(key) {
		return "", false
	}
	v, err := f.redis.Get(key)
	require.NoError(f.t, err)
	return v, true
}

func int64p(v int64) *int64 { return &v }
