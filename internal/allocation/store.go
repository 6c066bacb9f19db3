// Package allocation persists and validates the allocation hierarchy:
// department slices carved from an organization's plan pool, and member
// slices carved from a department's allocation. Validation and write run in
// one transaction under a parent row lock so concurrent sibling writes
// serialize and the sibling-sum invariant holds after every call.
package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/omniflow/quotad/internal/audit"
	"github.com/omniflow/quotad/internal/models"
	"github.com/omniflow/quotad/internal/planlimits"
	"github.com/omniflow/quotad/internal/resource"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns allocation reads, validated writes, and removal.
type Store struct {
	db       *gorm.DB
	recorder audit.Recorder
}

// NewStore constructs a Store.
func NewStore(db *gorm.DB, recorder audit.Recorder) *Store {
	return &Store{db: db, recorder: recorder}
}

// DeptAllocationInput is a partial update for a department allocation. Nil
// fields are left untouched on update and unset on create.
type DeptAllocationInput struct {
	Gateways   *int64
	Workflows  *int64
	Plugins    *int64
	AICalls    *int64
	StorageMB  *int64
	RAMMB      *int64
	CPUPercent *int64

	AllocMode   resource.AllocMode
	AllocatedBy uint64
}

func (in DeptAllocationInput) cap(kind resource.Kind) *int64 {
	switch kind {
	case resource.KindGateways:
		return in.Gateways
	case resource.KindWorkflows:
		return in.Workflows
	case resource.KindPlugins:
		return in.Plugins
	case resource.KindAICalls:
		return in.AICalls
	case resource.KindStorageMB:
		return in.StorageMB
	case resource.KindRAMMB:
		return in.RAMMB
	case resource.KindCPUPercent:
		return in.CPUPercent
	default:
		return nil
	}
}

// MemberAllocationInput is a partial update for a member allocation. Nil
// fields are left untouched on update and unset on create.
type MemberAllocationInput struct {
	Gateways  *int64
	Workflows *int64
	AICalls   *int64
	StorageMB *int64

	AllocMode   resource.AllocMode
	AllocatedBy uint64
}

func (in MemberAllocationInput) cap(kind resource.Kind) *int64 {
	switch kind {
	case resource.KindGateways:
		return in.Gateways
	case resource.KindWorkflows:
		return in.Workflows
	case resource.KindAICalls:
		return in.AICalls
	case resource.KindStorageMB:
		return in.StorageMB
	default:
		return nil
	}
}

// DeptCap returns a department allocation's cap for a resource, nil when
// the field inherits from the organization pool.
func DeptCap(rec *models.DeptAllocation, kind resource.Kind) *int64 {
	if rec == nil {
		return nil
	}
	switch kind {
	case resource.KindGateways:
		return rec.Gateways
	case resource.KindWorkflows:
		return rec.Workflows
	case resource.KindPlugins:
		return rec.Plugins
	case resource.KindAICalls:
		return rec.AICalls
	case resource.KindStorageMB:
		return rec.StorageMB
	case resource.KindRAMMB:
		return rec.RAMMB
	case resource.KindCPUPercent:
		return rec.CPUPercent
	default:
		return nil
	}
}

// MemberCap returns a member allocation's cap for a resource, nil when the
// field inherits from the department allocation.
func MemberCap(rec *models.MemberAllocation, kind resource.Kind) *int64 {
	if rec == nil {
		return nil
	}
	switch kind {
	case resource.KindGateways:
		return rec.Gateways
	case resource.KindWorkflows:
		return rec.Workflows
	case resource.KindAICalls:
		return rec.AICalls
	case resource.KindStorageMB:
		return rec.StorageMB
	default:
		return nil
	}
}

var deptAllocationColumns = []string{
	"gateways", "workflows", "plugins", "ai_calls", "storage_mb",
	"ram_mb", "cpu_percent", "alloc_mode", "allocated_by", "updated_at",
}

// SetDeptAllocation validates and upserts a department allocation. The
// sibling-sum check runs inside the writing transaction while the parent
// organization row is locked.
func (s *Store) SetDeptAllocation(ctx context.Context, orgID, deptID uint64, input DeptAllocationInput) (models.DeptAllocation, error) {
	if s == nil || s.db == nil {
		return models.DeptAllocation{}, fmt.Errorf("allocation: store not initialized")
	}

	var record models.DeptAllocation
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org models.Organization
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", orgID).
			Take(&org).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrOrganizationNotFound
			}
			return errFind
		}

		var dept models.Department
		if errFind := tx.Where("id = ? AND organization_id = ?", deptID, orgID).
			Take(&dept).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrDepartmentNotFound
			}
			return errFind
		}

		var siblings []models.DeptAllocation
		if errFind := tx.Where("organization_id = ? AND department_id <> ?", orgID, deptID).
			Find(&siblings).Error; errFind != nil {
			return errFind
		}

		pool, hasPool := planlimits.Organizational(org.PlanTier)

		var fieldErrs []FieldError
		for _, kind := range resource.Kinds() {
			proposed := input.cap(kind)
			if proposed == nil {
				continue
			}
			if *proposed < 0 {
				return fmt.Errorf("%w: %s", ErrNegativeCap, kind)
			}
			if !hasPool {
				continue
			}
			poolCap := pool.Cap(kind)
			if poolCap == planlimits.Unlimited {
				continue
			}
			var allocated int64
			for i := range siblings {
				if value := DeptCap(&siblings[i], kind); value != nil {
					allocated += *value
				}
			}
			if allocated+*proposed > poolCap {
				fieldErrs = append(fieldErrs, FieldError{
					Field:     kind,
					Allocated: allocated,
					Requested: *proposed,
					Available: poolCap - allocated,
				})
			}
		}
		if len(fieldErrs) > 0 {
			return &ValidationError{Fields: fieldErrs}
		}

		var existing models.DeptAllocation
		errFind := tx.Where("department_id = ?", deptID).Take(&existing).Error
		if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return errFind
		}

		record = existing
		record.ID = 0 // let the upsert resolve the row by department_id
		record.OrganizationID = orgID
		record.DepartmentID = deptID
		for _, kind := range resource.Kinds() {
			if proposed := input.cap(kind); proposed != nil {
				value := *proposed
				setDeptCap(&record, kind, &value)
			}
		}
		if mode, ok := resource.ParseAllocMode(string(input.AllocMode)); ok {
			record.AllocMode = string(mode)
		} else if record.AllocMode == "" {
			record.AllocMode = string(resource.ModeHardCap)
		}
		record.AllocatedBy = input.AllocatedBy

		if errUpsert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "department_id"}},
			DoUpdates: clause.AssignmentColumns(deptAllocationColumns),
		}).Create(&record).Error; errUpsert != nil {
			return fmt.Errorf("allocation: upsert department allocation: %w", errUpsert)
		}
		return nil
	})
	if errTx != nil {
		return models.DeptAllocation{}, errTx
	}

	s.record(ctx, audit.Event{
		Actor:     input.AllocatedBy,
		Action:    audit.ActionDeptAllocationSet,
		ScopeType: resource.OwnerDepartment,
		ScopeID:   deptID,
		Payload:   record,
	})
	return record, nil
}

var memberAllocationColumns = []string{
	"gateways", "workflows", "ai_calls", "storage_mb",
	"alloc_mode", "allocated_by", "updated_at",
}

// SetMemberAllocation validates and upserts a member allocation. The
// sibling-sum check runs against the department's allocation caps inside
// the writing transaction while the parent department row is locked.
// Departments without an allocation record are fully inherited and skip
// validation.
func (s *Store) SetMemberAllocation(ctx context.Context, deptID, userID uint64, input MemberAllocationInput) (models.MemberAllocation, error) {
	if s == nil || s.db == nil {
		return models.MemberAllocation{}, fmt.Errorf("allocation: store not initialized")
	}

	var record models.MemberAllocation
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dept models.Department
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", deptID).
			Take(&dept).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrDepartmentNotFound
			}
			return errFind
		}

		var deptAlloc models.DeptAllocation
		hasDeptAlloc := true
		if errFind := tx.Where("department_id = ?", deptID).Take(&deptAlloc).Error; errFind != nil {
			if !errors.Is(errFind, gorm.ErrRecordNotFound) {
				return errFind
			}
			hasDeptAlloc = false
		}

		var siblings []models.MemberAllocation
		if errFind := tx.Where("department_id = ? AND user_id <> ?", deptID, userID).
			Find(&siblings).Error; errFind != nil {
			return errFind
		}

		var fieldErrs []FieldError
		for _, kind := range resource.MemberKinds() {
			proposed := input.cap(kind)
			if proposed == nil {
				continue
			}
			if *proposed < 0 {
				return fmt.Errorf("%w: %s", ErrNegativeCap, kind)
			}
			if !hasDeptAlloc {
				continue
			}
			parentCap := DeptCap(&deptAlloc, kind)
			if parentCap == nil {
				continue
			}
			var allocated int64
			for i := range siblings {
				if value := MemberCap(&siblings[i], kind); value != nil {
					allocated += *value
				}
			}
			if allocated+*proposed > *parentCap {
				fieldErrs = append(fieldErrs, FieldError{
					Field:     kind,
					Allocated: allocated,
					Requested: *proposed,
					Available: *parentCap - allocated,
				})
			}
		}
		if len(fieldErrs) > 0 {
			return &ValidationError{Fields: fieldErrs}
		}

		var existing models.MemberAllocation
		errFind := tx.Where("department_id = ? AND user_id = ?", deptID, userID).Take(&existing).Error
		if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return errFind
		}

		record = existing
		record.ID = 0 // let the upsert resolve the row by (department_id, user_id)
		record.DepartmentID = deptID
		record.UserID = userID
		for _, kind := range resource.MemberKinds() {
			if proposed := input.cap(kind); proposed != nil {
				value := *proposed
				setMemberCap(&record, kind, &value)
			}
		}
		if mode, ok := resource.ParseAllocMode(string(input.AllocMode)); ok {
			record.AllocMode = string(mode)
		} else if record.AllocMode == "" {
			record.AllocMode = string(resource.ModeHardCap)
		}
		record.AllocatedBy = input.AllocatedBy

		if errUpsert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "department_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(memberAllocationColumns),
		}).Create(&record).Error; errUpsert != nil {
			return fmt.Errorf("allocation: upsert member allocation: %w", errUpsert)
		}
		return nil
	})
	if errTx != nil {
		return models.MemberAllocation{}, errTx
	}

	s.record(ctx, audit.Event{
		Actor:     input.AllocatedBy,
		Action:    audit.ActionMemberAllocationSet,
		ScopeType: resource.OwnerUser,
		ScopeID:   userID,
		Payload:   record,
	})
	return record, nil
}

// RemoveDeptAllocation deletes a department allocation, reverting the
// department to unconstrained inheritance from the organization pool.
// Existing usage counters are untouched.
func (s *Store) RemoveDeptAllocation(ctx context.Context, deptID, actor uint64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("allocation: store not initialized")
	}
	result := s.db.WithContext(ctx).Where("department_id = ?", deptID).Delete(&models.DeptAllocation{})
	if result.Error != nil {
		return fmt.Errorf("allocation: remove department allocation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDeptAllocationNotFound
	}
	s.record(ctx, audit.Event{
		Actor:     actor,
		Action:    audit.ActionDeptAllocationRemove,
		ScopeType: resource.OwnerDepartment,
		ScopeID:   deptID,
	})
	return nil
}

// RemoveMemberAllocation deletes a member allocation.
func (s *Store) RemoveMemberAllocation(ctx context.Context, deptID, userID, actor uint64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("allocation: store not initialized")
	}
	result := s.db.WithContext(ctx).
		Where("department_id = ? AND user_id = ?", deptID, userID).
		Delete(&models.MemberAllocation{})
	if result.Error != nil {
		return fmt.Errorf("allocation: remove member allocation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMemberAllocationNotFound
	}
	s.record(ctx, audit.Event{
		Actor:     actor,
		Action:    audit.ActionMemberAllocationRemove,
		ScopeType: resource.OwnerUser,
		ScopeID:   userID,
	})
	return nil
}

// GetDeptAllocation loads the allocation record for a department.
func (s *Store) GetDeptAllocation(ctx context.Context, deptID uint64) (models.DeptAllocation, error) {
	var record models.DeptAllocation
	if errFind := s.db.WithContext(ctx).Where("department_id = ?", deptID).Take(&record).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.DeptAllocation{}, ErrDeptAllocationNotFound
		}
		return models.DeptAllocation{}, errFind
	}
	return record, nil
}

// ListDeptAllocations loads all department allocations for an organization.
func (s *Store) ListDeptAllocations(ctx context.Context, orgID uint64) ([]models.DeptAllocation, error) {
	var records []models.DeptAllocation
	if errFind := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("department_id ASC").
		Find(&records).Error; errFind != nil {
		return nil, errFind
	}
	return records, nil
}

// GetMemberAllocation loads the allocation record for a (department, user) pair.
func (s *Store) GetMemberAllocation(ctx context.Context, deptID, userID uint64) (models.MemberAllocation, error) {
	var record models.MemberAllocation
	if errFind := s.db.WithContext(ctx).
		Where("department_id = ? AND user_id = ?", deptID, userID).
		Take(&record).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.MemberAllocation{}, ErrMemberAllocationNotFound
		}
		return models.MemberAllocation{}, errFind
	}
	return record, nil
}

// ListMemberAllocations loads all member allocations under a department.
func (s *Store) ListMemberAllocations(ctx context.Context, deptID uint64) ([]models.MemberAllocation, error) {
	var records []models.MemberAllocation
	if errFind := s.db.WithContext(ctx).
		Where("department_id = ?", deptID).
		Order("user_id ASC").
		Find(&records).Error; errFind != nil {
		return nil, errFind
	}
	return records, nil
}

// PoolRemaining reports how much of an organization's pool for a resource is
// still unallocated. Unlimited pools report planlimits.Unlimited.
func (s *Store) PoolRemaining(ctx context.Context, orgID uint64, kind resource.Kind) (int64, error) {
	var org models.Organization
	if errFind := s.db.WithContext(ctx).Where("id = ?", orgID).Take(&org).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, ErrOrganizationNotFound
		}
		return 0, errFind
	}
	pool, ok := planlimits.Organizational(org.PlanTier)
	if !ok {
		return planlimits.Unlimited, nil
	}
	poolCap := pool.Cap(kind)
	if poolCap == planlimits.Unlimited {
		return planlimits.Unlimited, nil
	}

	allocations, errList := s.ListDeptAllocations(ctx, orgID)
	if errList != nil {
		return 0, errList
	}
	var allocated int64
	for i := range allocations {
		if value := DeptCap(&allocations[i], kind); value != nil {
			allocated += *value
		}
	}
	return poolCap - allocated, nil
}

// record sends an audit event; failures never roll back the write.
func (s *Store) record(ctx context.Context, event audit.Event) {
	if s == nil || s.recorder == nil {
		return
	}
	if errRecord := s.recorder.Record(ctx, event); errRecord != nil {
		log.WithError(errRecord).Warn("allocation: audit record failed")
	}
}

func setDeptCap(rec *models.DeptAllocation, kind resource.Kind, value *int64) {
	switch kind {
	case resource.KindGateways:
		rec.Gateways = value
	case resource.KindWorkflows:
		rec.Workflows = value
	case resource.KindPlugins:
		rec.Plugins = value
	case resource.KindAICalls:
		rec.AICalls = value
	case resource.KindStorageMB:
		rec.StorageMB = value
	case resource.KindRAMMB:
		rec.RAMMB = value
	case resource.KindCPUPercent:
		rec.CPUPercent = value
	}
}

func setMemberCap(rec *models.MemberAllocation, kind resource.Kind, value *int64) {
	switch kind {
	case resource.KindGateways:
		rec.Gateways = value
	case resource.KindWorkflows:
		rec.Workflows = value
	case resource.KindAICalls:
		rec.AICalls = value
	case resource.KindStorageMB:
		rec.StorageMB = value
	}
}
