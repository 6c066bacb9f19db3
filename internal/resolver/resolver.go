// Package resolver walks the allocation hierarchy to produce the single
// effective limit applied to an identity for a resource: member allocation,
// then department allocation, then organization plan pool, then personal
// plan, then unlimited.
package resolver

import (
	"context"
	"errors"

	"github.com/omniflow/quotad/internal/allocation"
	"github.com/omniflow/quotad/internal/models"
	"github.com/omniflow/quotad/internal/planlimits"
	"github.com/omniflow/quotad/internal/resource"
	"gorm.io/gorm"
)

// Source names the hierarchy level an effective limit came from.
type Source string

// Hierarchy levels in precedence order.
const (
	SourceMember       Source = "member"
	SourceDepartment   Source = "department"
	SourceOrganization Source = "organization"
	SourcePlan         Source = "plan"
)

// Effective is the resolved limit for one (identity, resource) pair. A nil
// Limit means unlimited at the resolved level.
type Effective struct {
	Limit  *int64
	Source Source
	Mode   resource.AllocMode
}

// Unlimited reports whether the effective limit never blocks.
func (e Effective) Unlimited() bool {
	return e.Limit == nil || e.Mode == resource.ModeUnlimited
}

// Resolver resolves effective limits against the allocation tables and the
// static plan limit tables.
type Resolver struct {
	db *gorm.DB
}

// New constructs a Resolver.
func New(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// hierarchy is one identity's allocation context, loaded with a bounded
// number of round trips and shared across per-resource resolution.
type hierarchy struct {
	member   *models.MemberAllocation
	dept     *models.DeptAllocation
	orgPool  planlimits.Limits
	hasOrg   bool
	personal planlimits.Limits
	hasPlan  bool
}

// Resolve produces the effective limit for one resource.
func (r *Resolver) Resolve(ctx context.Context, id resource.Identity, kind resource.Kind) (Effective, error) {
	tree, errLoad := r.load(ctx, id)
	if errLoad != nil {
		return Effective{}, errLoad
	}
	return resolveKind(tree, kind), nil
}

// ResolveAll produces effective limits for every resource kind, sharing the
// allocation and plan lookups so backing-store round trips stay constant
// regardless of resource count.
func (r *Resolver) ResolveAll(ctx context.Context, id resource.Identity) (map[resource.Kind]Effective, error) {
	tree, errLoad := r.load(ctx, id)
	if errLoad != nil {
		return nil, errLoad
	}
	out := make(map[resource.Kind]Effective, len(resource.Kinds()))
	for _, kind := range resource.Kinds() {
		out[kind] = resolveKind(tree, kind)
	}
	return out, nil
}

func (r *Resolver) load(ctx context.Context, id resource.Identity) (hierarchy, error) {
	var tree hierarchy
	if r == nil || r.db == nil {
		return tree, errors.New("resolver: not initialized")
	}

	if id.DepartmentID != nil && *id.DepartmentID > 0 {
		var member models.MemberAllocation
		errFind := r.db.WithContext(ctx).
			Where("department_id = ? AND user_id = ?", *id.DepartmentID, id.UserID).
			Take(&member).Error
		if errFind == nil {
			tree.member = &member
		} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return tree, errFind
		}

		var dept models.DeptAllocation
		errFind = r.db.WithContext(ctx).
			Where("department_id = ?", *id.DepartmentID).
			Take(&dept).Error
		if errFind == nil {
			tree.dept = &dept
		} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return tree, errFind
		}
	}

	if id.OrganizationID != nil && *id.OrganizationID > 0 {
		var org models.Organization
		errFind := r.db.WithContext(ctx).
			Where("id = ?", *id.OrganizationID).
			Take(&org).Error
		if errFind == nil {
			tree.orgPool, tree.hasOrg = planlimits.Organizational(org.PlanTier)
		} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return tree, errFind
		}
	}

	tree.personal, tree.hasPlan = planlimits.Personal(id.PlanTier)
	return tree, nil
}

func resolveKind(tree hierarchy, kind resource.Kind) Effective {
	if value := allocation.MemberCap(tree.member, kind); value != nil {
		return Effective{
			Limit:  value,
			Source: SourceMember,
			Mode:   storedMode(tree.member.AllocMode),
		}
	}
	if value := allocation.DeptCap(tree.dept, kind); value != nil {
		return Effective{
			Limit:  value,
			Source: SourceDepartment,
			Mode:   storedMode(tree.dept.AllocMode),
		}
	}
	if tree.hasOrg {
		// Organizational plans do not hard-block by default.
		return Effective{
			Limit:  capLimit(tree.orgPool.Cap(kind)),
			Source: SourceOrganization,
			Mode:   resource.ModeSoftCap,
		}
	}
	if tree.hasPlan {
		// Personal plans enforce strictly.
		return Effective{
			Limit:  capLimit(tree.personal.Cap(kind)),
			Source: SourcePlan,
			Mode:   resource.ModeHardCap,
		}
	}
	return Effective{Source: SourcePlan, Mode: resource.ModeUnlimited}
}

// capLimit maps the unlimited sentinel to a nil limit.
func capLimit(value int64) *int64 {
	if value == planlimits.Unlimited {
		return nil
	}
	return &value
}

func storedMode(raw string) resource.AllocMode {
	if mode, ok := resource.ParseAllocMode(raw); ok {
		return mode
	}
	return resource.ModeHardCap
}
