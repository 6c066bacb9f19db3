package usagetrack

import (
	"context"
	"testing"
	"time"

	"github.com/omniflow/quotad/internal/counter"
	"github.com/omniflow/quotad/internal/models"
	"github.com/omniflow/quotad/internal/planlimits"
	"github.com/omniflow/quotad/internal/resource"
)

func TestAggregateHourlyIdempotent(t *testing.T) {
	memory := counter.NewMemoryStore(func() time.Time { return testNow })
	service, conn := openTestService(t, memory)
	ctx := context.Background()

	org := models.Organization{Name: "acme", PlanTier: planlimits.OrgTierTeam, Slug: "acme"}
	if errCreate := conn.Create(&org).Error; errCreate != nil {
		t.Fatalf("create org: %v", errCreate)
	}
	id := resource.Identity{UserID: 11, OrganizationID: &org.ID}

	service.TrackAPICall(ctx, id)
	service.TrackAPICall(ctx, id)
	service.TrackAPICall(ctx, id)
	service.TrackStorageDelta(ctx, id, 8*1024*1024)

	for run := 0; run < 2; run++ {
		processed, errRun := service.AggregateHourlyUsage(ctx)
		if errRun != nil {
			t.Fatalf("hourly aggregation run %d: %v", run, errRun)
		}
		if processed != 1 {
			t.Fatalf("processed = %d, want 1", processed)
		}
	}

	var record models.UsageHistoryRecord
	if errFind := conn.
		Where("owner_type = ? AND owner_id = ? AND period_type = ?",
			resource.OwnerOrganization, org.ID, models.PeriodHourly).
		Take(&record).Error; errFind != nil {
		t.Fatalf("load hourly record: %v", errFind)
	}
	if record.APICalls != 3 {
		t.Fatalf("hourly api_calls = %d, want 3 after reruns", record.APICalls)
	}
	if record.StorageMB != 8 {
		t.Fatalf("hourly storage_mb = %d, want 8", record.StorageMB)
	}

	var count int64
	if errCount := conn.Model(&models.UsageHistoryRecord{}).
		Where("period_type = ?", models.PeriodHourly).
		Count(&count).Error; errCount != nil {
		t.Fatalf("count hourly records: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("hourly rows = %d, want 1", count)
	}
}

func TestAggregateHourlyCoversPersonalUsers(t *testing.T) {
	memory := counter.NewMemoryStore(func() time.Time { return testNow })
	service, conn := openTestService(t, memory)
	ctx := context.Background()

	user := models.User{PlanTier: planlimits.TierFree, Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	service.TrackWorkflowRun(ctx, resource.Identity{UserID: user.ID})

	processed, errRun := service.AggregateHourlyUsage(ctx)
	if errRun != nil {
		t.Fatalf("hourly aggregation: %v", errRun)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}

	var record models.UsageHistoryRecord
	if errFind := conn.
		Where("owner_type = ? AND owner_id = ? AND period_type = ?",
			resource.OwnerUser, user.ID, models.PeriodHourly).
		Take(&record).Error; errFind != nil {
		t.Fatalf("load hourly record: %v", errFind)
	}
	if record.WorkflowRuns != 1 {
		t.Fatalf("workflow_runs = %d, want 1", record.WorkflowRuns)
	}
}

func TestAggregateDailyRollsUpHours(t *testing.T) {
	memory := counter.NewMemoryStore(func() time.Time { return testNow })
	service, conn := openTestService(t, memory)
	ctx := context.Background()
	dayBase := testNow.Truncate(24 * time.Hour)

	// Two earlier hours for the same organization owner.
	for i, seed := range []models.UsageHistoryRecord{
		{APICalls: 10, WorkflowRuns: 2, StorageMB: 40, Errors: 1},
		{APICalls: 5, WorkflowRuns: 1, StorageMB: 25},
	} {
		seed.OwnerType = resource.OwnerOrganization
		seed.OwnerID = 5
		seed.PeriodStart = dayBase.Add(time.Duration(i) * time.Hour)
		seed.PeriodType = models.PeriodHourly
		if errCreate := conn.Create(&seed).Error; errCreate != nil {
			t.Fatalf("seed hourly record: %v", errCreate)
		}
	}

	for run := 0; run < 2; run++ {
		processed, errRun := service.AggregateDailyUsage(ctx)
		if errRun != nil {
			t.Fatalf("daily aggregation run %d: %v", run, errRun)
		}
		if processed != 1 {
			t.Fatalf("processed = %d, want 1", processed)
		}
	}

	var daily models.UsageHistoryRecord
	if errFind := conn.
		Where("owner_type = ? AND owner_id = ? AND period_type = ?",
			resource.OwnerOrganization, uint64(5), models.PeriodDaily).
		Take(&daily).Error; errFind != nil {
		t.Fatalf("load daily record: %v", errFind)
	}
	if daily.APICalls != 15 || daily.WorkflowRuns != 3 || daily.Errors != 1 {
		t.Fatalf("daily record = %+v, want summed additive fields", daily)
	}
	// Storage is a gauge: the day records the peak, not the sum.
	if daily.StorageMB != 40 {
		t.Fatalf("daily storage_mb = %d, want 40", daily.StorageMB)
	}
	if !daily.PeriodStart.Equal(dayBase) {
		t.Fatalf("daily period start = %v, want %v", daily.PeriodStart, dayBase)
	}
}
