// Package usagetrack maintains near-real-time usage counters in the fast
// store and mirrors them into durable hourly history. Tracking is
// best-effort: failures are logged and never surfaced, so telemetry cannot
// block the operation it decorates.
package usagetrack

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/omniflow/quotad/internal/counter"
	"github.com/omniflow/quotad/internal/models"
	"github.com/omniflow/quotad/internal/resource"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FastCounter is the fast-store surface the service needs.
type FastCounter interface {
	IncrBy(ctx context.Context, key string, n int64, expireAt time.Time) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}

// Daily counter names. The enforcement-kind names double as counter names
// so enforcement and telemetry read the same keys.
const (
	CounterAICalls          = string(resource.KindAICalls)
	CounterWorkflowRuns     = "workflow_runs"
	CounterPluginExecutions = "plugin_executions"
	CounterStorageMB        = string(resource.KindStorageMB)
	CounterErrors           = "errors"
)

// expirySafetyBuffer keeps day counters alive past midnight to absorb clock
// skew between writers.
const expirySafetyBuffer = 2 * time.Hour

const bytesPerMB = 1024 * 1024

// ErrNoFallback indicates the fast store is down and the resource has no
// durable read path.
var ErrNoFallback = errors.New("usagetrack: fast store unavailable and no durable fallback")

// Service tracks usage events and serves usage reads.
type Service struct {
	db       *gorm.DB
	counters FastCounter
	nowFn    func() time.Time
}

// NewService constructs a Service.
func NewService(db *gorm.DB, counters FastCounter, nowFn func() time.Time) *Service {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{db: db, counters: counters, nowFn: nowFn}
}

// Snapshot is the near-real-time usage view for one owner.
type Snapshot struct {
	APICalls         int64     `json:"api_calls"`
	WorkflowRuns     int64     `json:"workflow_runs"`
	PluginExecutions int64     `json:"plugin_executions"`
	StorageMB        int64     `json:"storage_mb"`
	Errors           int64     `json:"errors"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodType       string    `json:"period_type"`
}

// TrackAPICall records one API/AI call.
func (s *Service) TrackAPICall(ctx context.Context, id resource.Identity) {
	s.track(ctx, id, CounterAICalls, 1)
}

// TrackWorkflowRun records one workflow run.
func (s *Service) TrackWorkflowRun(ctx context.Context, id resource.Identity) {
	s.track(ctx, id, CounterWorkflowRuns, 1)
}

// TrackPluginExecution records one plugin execution.
func (s *Service) TrackPluginExecution(ctx context.Context, id resource.Identity) {
	s.track(ctx, id, CounterPluginExecutions, 1)
}

// TrackError records one failed operation.
func (s *Service) TrackError(ctx context.Context, id resource.Identity) {
	s.track(ctx, id, CounterErrors, 1)
}

// TrackStorageDelta records a storage change. The raw byte delta is rounded
// up to whole MB, and the counter never goes below zero: deletions are
// clamped in both stores, with a read-modify-write on the durable side so
// the clamp holds under concurrent decrements.
func (s *Service) TrackStorageDelta(ctx context.Context, id resource.Identity, deltaBytes int64) {
	if s == nil || deltaBytes == 0 {
		return
	}
	mb := bytesToMB(deltaBytes)
	now := s.nowFn().UTC()
	ownerType, ownerID := id.Owner()

	if s.counters != nil {
		key := counter.Key(CounterStorageMB, ownerType, ownerID, now)
		value, errIncr := s.counters.IncrBy(ctx, key, mb, dayExpiry(now))
		if errIncr != nil {
			log.WithError(errIncr).Warn("usagetrack: storage fast counter update failed")
		} else if value < 0 {
			if _, errClamp := s.counters.IncrBy(ctx, key, -value, dayExpiry(now)); errClamp != nil {
				log.WithError(errClamp).Warn("usagetrack: storage fast counter clamp failed")
			}
		}
	}

	if errDurable := s.applyStorageDelta(ctx, ownerType, ownerID, now, mb); errDurable != nil {
		log.WithError(errDurable).Warn("usagetrack: storage history update failed")
	}
}

// track increments the fast day counter and upsert-increments the hourly
// history record. Both sides are independent best-effort operations.
func (s *Service) track(ctx context.Context, id resource.Identity, counterName string, amount int64) {
	if s == nil || amount == 0 {
		return
	}
	now := s.nowFn().UTC()
	ownerType, ownerID := id.Owner()

	if s.counters != nil {
		key := counter.Key(counterName, ownerType, ownerID, now)
		if _, errIncr := s.counters.IncrBy(ctx, key, amount, dayExpiry(now)); errIncr != nil {
			log.WithError(errIncr).Warn("usagetrack: fast counter update failed")
		}
	}

	column, ok := durableColumn(counterName)
	if !ok {
		return
	}
	if errUpsert := s.incrementHourly(ctx, ownerType, ownerID, now, column, amount); errUpsert != nil {
		log.WithError(errUpsert).Warn("usagetrack: usage history update failed")
	}
}

// IncrementCounter adds amount to an arbitrary day counter and returns the
// post-increment value. The enforcement engine uses the return value as the
// authoritative post-increment usage for hard-capped decisions.
func (s *Service) IncrementCounter(ctx context.Context, id resource.Identity, counterName string, amount int64) (int64, error) {
	if s == nil || s.counters == nil {
		return 0, counter.ErrUnavailable
	}
	now := s.nowFn().UTC()
	ownerType, ownerID := id.Owner()
	key := counter.Key(counterName, ownerType, ownerID, now)
	return s.counters.IncrBy(ctx, key, amount, dayExpiry(now))
}

// CurrentUsage reads today's counter for a resource. When the fast store is
// unreachable it falls back to the current hour's durable record for
// resources that have one, trading recency for availability.
func (s *Service) CurrentUsage(ctx context.Context, id resource.Identity, counterName string) (int64, error) {
	if s == nil {
		return 0, counter.ErrUnavailable
	}
	now := s.nowFn().UTC()
	ownerType, ownerID := id.Owner()

	if s.counters != nil {
		value, errGet := s.counters.Get(ctx, counter.Key(counterName, ownerType, ownerID, now))
		if errGet == nil {
			return value, nil
		}
		if !errors.Is(errGet, counter.ErrUnavailable) {
			return 0, errGet
		}
	}

	if _, ok := durableColumn(counterName); !ok && counterName != CounterStorageMB {
		return 0, ErrNoFallback
	}
	record, errLoad := s.hourlyRecord(ctx, ownerType, ownerID, now)
	if errLoad != nil {
		return 0, errLoad
	}
	return recordValue(record, counterName), nil
}

// RealTimeUsage reads the five daily counters in parallel. On fast-store
// unavailability the whole snapshot is served from the current hour's
// durable record.
func (s *Service) RealTimeUsage(ctx context.Context, id resource.Identity) (Snapshot, error) {
	now := s.nowFn().UTC()
	ownerType, ownerID := id.Owner()
	snapshot := Snapshot{
		PeriodStart: dayStart(now),
		PeriodType:  models.PeriodDaily,
	}

	counterNames := []string{
		CounterAICalls, CounterWorkflowRuns, CounterPluginExecutions,
		CounterStorageMB, CounterErrors,
	}
	values := make([]int64, len(counterNames))
	errs := make([]error, len(counterNames))

	var wg sync.WaitGroup
	for i, name := range counterNames {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			if s.counters == nil {
				errs[i] = counter.ErrUnavailable
				return
			}
			values[i], errs[i] = s.counters.Get(ctx, counter.Key(name, ownerType, ownerID, now))
		}(i, name)
	}
	wg.Wait()

	for _, errGet := range errs {
		if errGet != nil {
			record, errLoad := s.hourlyRecord(ctx, ownerType, ownerID, now)
			if errLoad != nil {
				return Snapshot{}, errLoad
			}
			snapshot.APICalls = record.APICalls
			snapshot.WorkflowRuns = record.WorkflowRuns
			snapshot.PluginExecutions = record.PluginExecutions
			snapshot.StorageMB = record.StorageMB
			snapshot.Errors = record.Errors
			return snapshot, nil
		}
	}

	snapshot.APICalls = values[0]
	snapshot.WorkflowRuns = values[1]
	snapshot.PluginExecutions = values[2]
	snapshot.StorageMB = values[3]
	snapshot.Errors = values[4]
	return snapshot, nil
}

// incrementHourly upsert-increments one additive column of the current
// hour's history record.
func (s *Service) incrementHourly(ctx context.Context, ownerType string, ownerID uint64, now time.Time, column string, amount int64) error {
	if s.db == nil {
		return errors.New("usagetrack: no durable store")
	}
	row := models.UsageHistoryRecord{
		OwnerType:   ownerType,
		OwnerID:     ownerID,
		PeriodStart: hourStart(now),
		PeriodType:  models.PeriodHourly,
	}
	setRecordValue(&row, column, amount)

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "owner_type"}, {Name: "owner_id"},
			{Name: "period_start"}, {Name: "period_type"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			column:       gorm.Expr(column+" + ?", amount),
			"updated_at": now,
		}),
	}).Create(&row).Error
}

// applyStorageDelta applies a storage delta to the current hour's record
// with a read-modify-write so the zero clamp holds under concurrency.
func (s *Service) applyStorageDelta(ctx context.Context, ownerType string, ownerID uint64, now time.Time, deltaMB int64) error {
	if s.db == nil {
		return errors.New("usagetrack: no durable store")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.UsageHistoryRecord
		errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_type = ? AND owner_id = ? AND period_start = ? AND period_type = ?",
				ownerType, ownerID, hourStart(now), models.PeriodHourly).
			Take(&record).Error
		if errFind != nil {
			if !errors.Is(errFind, gorm.ErrRecordNotFound) {
				return errFind
			}
			record = models.UsageHistoryRecord{
				OwnerType:   ownerType,
				OwnerID:     ownerID,
				PeriodStart: hourStart(now),
				PeriodType:  models.PeriodHourly,
			}
		}
		record.StorageMB += deltaMB
		if record.StorageMB < 0 {
			record.StorageMB = 0
		}
		if record.ID == 0 {
			return tx.Create(&record).Error
		}
		return tx.Model(&models.UsageHistoryRecord{}).
			Where("id = ?", record.ID).
			Updates(map[string]any{"storage_mb": record.StorageMB, "updated_at": now}).Error
	})
}

func (s *Service) hourlyRecord(ctx context.Context, ownerType string, ownerID uint64, now time.Time) (models.UsageHistoryRecord, error) {
	var record models.UsageHistoryRecord
	if s.db == nil {
		return record, errors.New("usagetrack: no durable store")
	}
	errFind := s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND period_start = ? AND period_type = ?",
			ownerType, ownerID, hourStart(now), models.PeriodHourly).
		Take(&record).Error
	if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return record, errFind
	}
	return record, nil
}

// durableColumn maps a counter name to its hourly history column. Storage
// is handled separately as a gauge; instance-count resources (gateways,
// workflows, plugins) have no durable column.
func durableColumn(counterName string) (string, bool) {
	switch counterName {
	case CounterAICalls:
		return "api_calls", true
	case CounterWorkflowRuns:
		return "workflow_runs", true
	case CounterPluginExecutions:
		return "plugin_executions", true
	case CounterErrors:
		return "errors", true
	default:
		return "", false
	}
}

func recordValue(record models.UsageHistoryRecord, counterName string) int64 {
	switch counterName {
	case CounterAICalls:
		return record.APICalls
	case CounterWorkflowRuns:
		return record.WorkflowRuns
	case CounterPluginExecutions:
		return record.PluginExecutions
	case CounterStorageMB:
		return record.StorageMB
	case CounterErrors:
		return record.Errors
	default:
		return 0
	}
}

func setRecordValue(record *models.UsageHistoryRecord, column string, amount int64) {
	switch column {
	case "api_calls":
		record.APICalls = amount
	case "workflow_runs":
		record.WorkflowRuns = amount
	case "plugin_executions":
		record.PluginExecutions = amount
	case "errors":
		record.Errors = amount
	case "storage_mb":
		record.StorageMB = amount
	}
}

// bytesToMB converts a byte delta to whole MB, rounding the magnitude up
// and preserving sign.
func bytesToMB(deltaBytes int64) int64 {
	negative := deltaBytes < 0
	magnitude := deltaBytes
	if negative {
		magnitude = -magnitude
	}
	mb := (magnitude + bytesPerMB - 1) / bytesPerMB
	if negative {
		return -mb
	}
	return mb
}

func dayStart(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour)
}

func hourStart(now time.Time) time.Time {
	return now.UTC().Truncate(time.Hour)
}

// dayExpiry is the end of the current UTC day plus the safety buffer.
func dayExpiry(now time.Time) time.Time {
	return dayStart(now).Add(24*time.Hour + expirySafetyBuffer)
}
