package usagetrack

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/omniflow/quotad/internal/counter"
	"github.com/omniflow/quotad/internal/db"
	"github.com/omniflow/quotad/internal/models"
	"github.com/omniflow/quotad/internal/resource"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)

// failingCounter simulates an unreachable fast store.
type failingCounter struct{}

func (failingCounter) IncrBy(context.Context, string, int64, time.Time) (int64, error) {
	return 0, counter.ErrUnavailable
}

func (failingCounter) Get(context.Context, string) (int64, error) {
	return 0, counter.ErrUnavailable
}

func openTestService(t *testing.T, counters FastCounter) (*Service, *gorm.DB) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "usagetrack-test.db")
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewService(conn, counters, func() time.Time { return testNow }), conn
}

func TestTrackAndCurrentUsage(t *testing.T) {
	memory := counter.NewMemoryStore(func() time.Time { return testNow })
	service, _ := openTestService(t, memory)
	ctx := context.Background()
	id := resource.Identity{UserID: 11}

	service.TrackAPICall(ctx, id)
	service.TrackAPICall(ctx, id)
	service.TrackWorkflowRun(ctx, id)

	calls, errUsage := service.CurrentUsage(ctx, id, CounterAICalls)
	if errUsage != nil {
		t.Fatalf("current usage: %v", errUsage)
	}
	if calls != 2 {
		t.Fatalf("ai_calls = %d, want 2", calls)
	}

	runs, errUsage := service.CurrentUsage(ctx, id, CounterWorkflowRuns)
	if errUsage != nil {
		t.Fatalf("current usage: %v", errUsage)
	}
	if runs != 1 {
		t.Fatalf("workflow_runs = %d, want 1", runs)
	}
}

func TestTrackMirrorsHourlyHistory(t *testing.T) {
	memory := counter.NewMemoryStore(func() time.Time { return testNow })
	service, conn := openTestService(t, memory)
	ctx := context.Background()
	id := resource.Identity{UserID: 11}

	service.TrackAPICall(ctx, id)
	service.TrackError(ctx, id)
	service.TrackAPICall(ctx, id)

	var record models.UsageHistoryRecord
	if errFind := conn.
		Where("owner_type = ? AND owner_id = ? AND period_type = ?", resource.OwnerUser, uint64(11), models.PeriodHourly).
		Take(&record).Error; errFind != nil {
		t.Fatalf("load hourly record: %v", errFind)
	}
	if record.APICalls != 2 || record.Errors != 1 {
		t.Fatalf("hourly record = %+v, want api_calls=2 errors=1", record)
	}
	if !record.PeriodStart.Equal(testNow.Truncate(time.Hour)) {
		t.Fatalf("period start = %v, want %v", record.PeriodStart, testNow.Truncate(time.Hour))
	}
}

func TestTrackStorageDeltaRounding(t *testing.T) {
	memory := counter.NewMemoryStore(func() time.Time { return testNow })
	service, _ := openTestService(t, memory)
	ctx := context.Background()
	id := resource.Identity{UserID: 11}

	service.TrackStorageDelta(ctx, id, 2*1024*1024) // +2 MB
	service.TrackStorageDelta(ctx, id, -512*1024)   // -0.5 MB, rounds to -1 MB

	value, errUsage := service.CurrentUsage(ctx, id, CounterStorageMB)
	if errUsage != nil {
		t.Fatalf("current usage: %v", errUsage)
	}
	if value != 1 {
		t.Fatalf("storage_mb = %d, want 1", value)
	}
}

func TestTrackStorageDeltaClampsAtZero(t *testing.T) {
	memory := counter.NewMemoryStore(func() time.Time { return testNow })
	service, conn := openTestService(t, memory)
	ctx := context.Background()
	id := resource.Identity{UserID: 11}

	service.TrackStorageDelta(ctx, id, 1024*1024)    // +1 MB
	service.TrackStorageDelta(ctx, id, -5*1024*1024) // -5 MB, clamps to 0

	value, errUsage := service.CurrentUsage(ctx, id, CounterStorageMB)
	if errUsage != nil {
		t.Fatalf("current usage: %v", errUsage)
	}
	if value != 0 {
		t.Fatalf("fast storage_mb = %d, want 0", value)
	}

	var record models.UsageHistoryRecord
	if errFind := conn.
		Where("owner_type = ? AND owner_id = ? AND period_type = ?", resource.OwnerUser, uint64(11), models.PeriodHourly).
		Take(&record).Error; errFind != nil {
		t.Fatalf("load hourly record: %v", errFind)
	}
	if record.StorageMB != 0 {
		t.Fatalf("durable storage_mb = %d, want 0", record.StorageMB)
	}
}

func TestCurrentUsageDurableFallback(t *testing.T) {
	service, conn := openTestService(t, failingCounter{})
	ctx := context.Background()
	id := resource.Identity{UserID: 11}

	seed := models.UsageHistoryRecord{
		OwnerType:   resource.OwnerUser,
		OwnerID:     11,
		PeriodStart: testNow.Truncate(time.Hour),
		PeriodType:  models.PeriodHourly,
		APICalls:    9,
	}
	if errCreate := conn.Create(&seed).Error; errCreate != nil {
		t.Fatalf("seed hourly record: %v", errCreate)
	}

	value, errUsage := service.CurrentUsage(ctx, id, CounterAICalls)
	if errUsage != nil {
		t.Fatalf("current usage: %v", errUsage)
	}
	if value != 9 {
		t.Fatalf("ai_calls fallback = %d, want 9", value)
	}

	// Instance counts have no durable column and no fallback.
	if _, errUsage := service.CurrentUsage(ctx, id, string(resource.KindGateways)); !errors.Is(errUsage, ErrNoFallback) {
		t.Fatalf("expected ErrNoFallback, got %v", errUsage)
	}
}

func TestRealTimeUsageDurableFallback(t *testing.T) {
	service, conn := openTestService(t, failingCounter{})
	ctx := context.Background()
	orgID := uint64(5)
	id := resource.Identity{UserID: 11, OrganizationID: &orgID}

	seed := models.UsageHistoryRecord{
		OwnerType:        resource.OwnerOrganization,
		OwnerID:          orgID,
		PeriodStart:      testNow.Truncate(time.Hour),
		PeriodType:       models.PeriodHourly,
		APICalls:         4,
		WorkflowRuns:     2,
		PluginExecutions: 1,
		StorageMB:        30,
	}
	if errCreate := conn.Create(&seed).Error; errCreate != nil {
		t.Fatalf("seed hourly record: %v", errCreate)
	}

	snapshot, errRead := service.RealTimeUsage(ctx, id)
	if errRead != nil {
		t.Fatalf("realtime usage: %v", errRead)
	}
	if snapshot.APICalls != 4 || snapshot.WorkflowRuns != 2 || snapshot.StorageMB != 30 {
		t.Fatalf("snapshot = %+v, want durable values", snapshot)
	}
	if snapshot.PeriodType != models.PeriodDaily {
		t.Fatalf("period type = %s, want DAILY", snapshot.PeriodType)
	}
}

func TestRealTimeUsageFastPath(t *testing.T) {
	memory := counter.NewMemoryStore(func() time.Time { return testNow })
	service, _ := openTestService(t, memory)
	ctx := context.Background()
	id := resource.Identity{UserID: 11}

	service.TrackAPICall(ctx, id)
	service.TrackPluginExecution(ctx, id)
	service.TrackStorageDelta(ctx, id, 3*1024*1024)

	snapshot, errRead := service.RealTimeUsage(ctx, id)
	if errRead != nil {
		t.Fatalf("realtime usage: %v", errRead)
	}
	if snapshot.APICalls != 1 || snapshot.PluginExecutions != 1 || snapshot.StorageMB != 3 {
		t.Fatalf("snapshot = %+v, want api_calls=1 plugin_executions=1 storage_mb=3", snapshot)
	}
	if !snapshot.PeriodStart.Equal(testNow.Truncate(24 * time.Hour)) {
		t.Fatalf("period start = %v, want day start", snapshot.PeriodStart)
	}
}

func TestIncrementCounterReturnsPostIncrement(t *testing.T) {
	memory := counter.NewMemoryStore(func() time.Time { return testNow })
	service, _ := openTestService(t, memory)
	ctx := context.Background()
	id := resource.Identity{UserID: 11}

	value, errIncr := service.IncrementCounter(ctx, id, string(resource.KindGateways), 1)
	if errIncr != nil {
		t.Fatalf("increment: %v", errIncr)
	}
	if value != 1 {
		t.Fatalf("post-increment = %d, want 1", value)
	}
	value, errIncr = service.IncrementCounter(ctx, id, string(resource.KindGateways), 2)
	if errIncr != nil {
		t.Fatalf("increment: %v", errIncr)
	}
	if value != 3 {
		t.Fatalf("post-increment = %d, want 3", value)
	}
}
