package usagetrack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omniflow/quotad/internal/counter"
	"github.com/omniflow/quotad/internal/models"
	"github.com/omniflow/quotad/internal/resource"
	"gorm.io/gorm/clause"
)

var historyConflictColumns = []clause.Column{
	{Name: "owner_type"}, {Name: "owner_id"},
	{Name: "period_start"}, {Name: "period_type"},
}

var historyValueColumns = []string{
	"api_calls", "workflow_runs", "plugin_executions",
	"storage_mb", "errors", "updated_at",
}

// owner identifies one usage-accounting owner.
type owner struct {
	ownerType string
	ownerID   uint64
}

// AggregateHourlyUsage persists the fast-store day counters of every
// organization and every personal (org-less) user into the current hour's
// history record. The hour's values are the day totals minus what earlier
// hours already recorded, so replaying the job is idempotent and daily
// sums stay correct. Returns the number of owners processed.
func (s *Service) AggregateHourlyUsage(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("usagetrack: no durable store")
	}
	now := s.nowFn().UTC()

	owners, errOwners := s.listOwners(ctx)
	if errOwners != nil {
		return 0, errOwners
	}

	processed := 0
	for _, current := range owners {
		totals, errRead := s.dayTotals(ctx, current, now)
		if errRead != nil {
			return processed, fmt.Errorf("usagetrack: read day counters for %s/%d: %w", current.ownerType, current.ownerID, errRead)
		}

		prior, errPrior := s.sumHourly(ctx, current, dayStart(now), hourStart(now))
		if errPrior != nil {
			return processed, errPrior
		}

		row := models.UsageHistoryRecord{
			OwnerType:        current.ownerType,
			OwnerID:          current.ownerID,
			PeriodStart:      hourStart(now),
			PeriodType:       models.PeriodHourly,
			APICalls:         clampZero(totals.APICalls - prior.APICalls),
			WorkflowRuns:     clampZero(totals.WorkflowRuns - prior.WorkflowRuns),
			PluginExecutions: clampZero(totals.PluginExecutions - prior.PluginExecutions),
			StorageMB:        totals.StorageMB, // gauge: current level, not a delta
			Errors:           clampZero(totals.Errors - prior.Errors),
		}
		if errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   historyConflictColumns,
			DoUpdates: clause.AssignmentColumns(historyValueColumns),
		}).Create(&row).Error; errUpsert != nil {
			return processed, fmt.Errorf("usagetrack: upsert hourly record: %w", errUpsert)
		}
		processed++
	}
	return processed, nil
}

// AggregateDailyUsage rolls today's hourly records up into one DAILY record
// per owner: additive fields sum, storage takes the day's maximum (it is a
// point-in-time gauge). The rollup record is replaced, not incremented, so
// reruns produce identical stored totals. Returns the number of owners
// processed.
func (s *Service) AggregateDailyUsage(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("usagetrack: no durable store")
	}
	now := s.nowFn().UTC()
	start := dayStart(now)
	end := start.Add(24 * time.Hour)

	var hourly []models.UsageHistoryRecord
	if errFind := s.db.WithContext(ctx).
		Where("period_type = ? AND period_start >= ? AND period_start < ?", models.PeriodHourly, start, end).
		Find(&hourly).Error; errFind != nil {
		return 0, fmt.Errorf("usagetrack: load hourly records: %w", errFind)
	}

	rollups := make(map[owner]*models.UsageHistoryRecord)
	for i := range hourly {
		record := &hourly[i]
		key := owner{ownerType: record.OwnerType, ownerID: record.OwnerID}
		daily := rollups[key]
		if daily == nil {
			daily = &models.UsageHistoryRecord{
				OwnerType:   record.OwnerType,
				OwnerID:     record.OwnerID,
				PeriodStart: start,
				PeriodType:  models.PeriodDaily,
			}
			rollups[key] = daily
		}
		daily.APICalls += record.APICalls
		daily.WorkflowRuns += record.WorkflowRuns
		daily.PluginExecutions += record.PluginExecutions
		daily.Errors += record.Errors
		if record.StorageMB > daily.StorageMB {
			daily.StorageMB = record.StorageMB
		}
	}

	processed := 0
	for _, daily := range rollups {
		if errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   historyConflictColumns,
			DoUpdates: clause.AssignmentColumns(historyValueColumns),
		}).Create(daily).Error; errUpsert != nil {
			return processed, fmt.Errorf("usagetrack: upsert daily record: %w", errUpsert)
		}
		processed++
	}
	return processed, nil
}

// listOwners enumerates all organizations plus all personal users.
func (s *Service) listOwners(ctx context.Context) ([]owner, error) {
	var orgIDs []uint64
	if errFind := s.db.WithContext(ctx).
		Model(&models.Organization{}).
		Order("id ASC").
		Pluck("id", &orgIDs).Error; errFind != nil {
		return nil, fmt.Errorf("usagetrack: list organizations: %w", errFind)
	}
	var userIDs []uint64
	if errFind := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("organization_id IS NULL").
		Order("id ASC").
		Pluck("id", &userIDs).Error; errFind != nil {
		return nil, fmt.Errorf("usagetrack: list personal users: %w", errFind)
	}

	owners := make([]owner, 0, len(orgIDs)+len(userIDs))
	for _, id := range orgIDs {
		owners = append(owners, owner{ownerType: resource.OwnerOrganization, ownerID: id})
	}
	for _, id := range userIDs {
		owners = append(owners, owner{ownerType: resource.OwnerUser, ownerID: id})
	}
	return owners, nil
}

// dayTotals reads the owner's five fast-store day counters.
func (s *Service) dayTotals(ctx context.Context, current owner, now time.Time) (Snapshot, error) {
	var totals Snapshot
	if s.counters == nil {
		return totals, counter.ErrUnavailable
	}
	reads := []struct {
		name   string
		target *int64
	}{
		{CounterAICalls, &totals.APICalls},
		{CounterWorkflowRuns, &totals.WorkflowRuns},
		{CounterPluginExecutions, &totals.PluginExecutions},
		{CounterStorageMB, &totals.StorageMB},
		{CounterErrors, &totals.Errors},
	}
	for _, read := range reads {
		value, errGet := s.counters.Get(ctx, counter.Key(read.name, current.ownerType, current.ownerID, now))
		if errGet != nil {
			return totals, errGet
		}
		*read.target = value
	}
	return totals, nil
}

// sumHourly sums the owner's hourly records in [start, end).
func (s *Service) sumHourly(ctx context.Context, current owner, start, end time.Time) (Snapshot, error) {
	type sums struct {
		APICalls         int64
		WorkflowRuns     int64
		PluginExecutions int64
		Errors           int64
	}
	var row sums
	if errScan := s.db.WithContext(ctx).
		Model(&models.UsageHistoryRecord{}).
		Select(
			"COALESCE(SUM(api_calls), 0) AS api_calls",
			"COALESCE(SUM(workflow_runs), 0) AS workflow_runs",
			"COALESCE(SUM(plugin_executions), 0) AS plugin_executions",
			"COALESCE(SUM(errors), 0) AS errors",
		).
		Where("owner_type = ? AND owner_id = ? AND period_type = ? AND period_start >= ? AND period_start < ?",
			current.ownerType, current.ownerID, models.PeriodHourly, start, end).
		Scan(&row).Error; errScan != nil {
		return Snapshot{}, fmt.Errorf("usagetrack: sum hourly records: %w", errScan)
	}
	return Snapshot{
		APICalls:         row.APICalls,
		WorkflowRuns:     row.WorkflowRuns,
		PluginExecutions: row.PluginExecutions,
		Errors:           row.Errors,
	}, nil
}

func clampZero(value int64) int64 {
	if value < 0 {
		return 0
	}
	return value
}
