package resolver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/omniflow/quotad/internal/allocation"
	"github.com/omniflow/quotad/internal/db"
	"github.com/omniflow/quotad/internal/models"
	"github.com/omniflow/quotad/internal/planlimits"
	"github.com/omniflow/quotad/internal/resource"
	"gorm.io/gorm"
)

func int64Ptr(v int64) *int64 { return &v }

func openTestResolver(t *testing.T) (*Resolver, *gorm.DB) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "resolver-test.db")
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return New(conn), conn
}

func seedHierarchy(t *testing.T, conn *gorm.DB) (orgID, deptID uint64) {
	t.Helper()
	org := models.Organization{Name: "acme", PlanTier: planlimits.OrgTierTeam, Slug: "acme"}
	if errCreate := conn.Create(&org).Error; errCreate != nil {
		t.Fatalf("create org: %v", errCreate)
	}
	dept := models.Department{OrganizationID: org.ID, Name: "eng"}
	if errCreate := conn.Create(&dept).Error; errCreate != nil {
		t.Fatalf("create dept: %v", errCreate)
	}
	return org.ID, dept.ID
}

func TestResolvePrecedence(t *testing.T) {
	res, conn := openTestResolver(t)
	ctx := context.Background()
	orgID, deptID := seedHierarchy(t, conn)

	store := allocation.NewStore(conn, nil)
	if _, errSet := store.SetDeptAllocation(ctx, orgID, deptID, allocation.DeptAllocationInput{
		AICalls:   int64Ptr(5000),
		AllocMode: resource.ModeHardCap,
	}); errSet != nil {
		t.Fatalf("dept allocation: %v", errSet)
	}
	if _, errSet := store.SetMemberAllocation(ctx, deptID, 42, allocation.MemberAllocationInput{
		AICalls:   int64Ptr(200),
		AllocMode: resource.ModeReserved,
	}); errSet != nil {
		t.Fatalf("member allocation: %v", errSet)
	}

	id := resource.Identity{
		UserID:         42,
		OrganizationID: &orgID,
		DepartmentID:   &deptID,
		PlanTier:       planlimits.TierFree,
	}

	// Member allocation wins for the allocated resource.
	eff, errResolve := res.Resolve(ctx, id, resource.KindAICalls)
	if errResolve != nil {
		t.Fatalf("resolve ai_calls: %v", errResolve)
	}
	if eff.Source != SourceMember || eff.Limit == nil || *eff.Limit != 200 {
		t.Fatalf("ai_calls effective = %+v, want member/200", eff)
	}
	if eff.Mode != resource.ModeReserved {
		t.Fatalf("ai_calls mode = %s, want RESERVED", eff.Mode)
	}

	// No member or dept cap for gateways: the org pool applies as soft cap.
	eff, errResolve = res.Resolve(ctx, id, resource.KindGateways)
	if errResolve != nil {
		t.Fatalf("resolve gateways: %v", errResolve)
	}
	if eff.Source != SourceOrganization || eff.Limit == nil || *eff.Limit != 10 {
		t.Fatalf("gateways effective = %+v, want organization/10", eff)
	}
	if eff.Mode != resource.ModeSoftCap {
		t.Fatalf("gateways mode = %s, want SOFT_CAP", eff.Mode)
	}
}

func TestResolveDeptBeforeOrg(t *testing.T) {
	res, conn := openTestResolver(t)
	ctx := context.Background()
	orgID, deptID := seedHierarchy(t, conn)

	store := allocation.NewStore(conn, nil)
	if _, errSet := store.SetDeptAllocation(ctx, orgID, deptID, allocation.DeptAllocationInput{
		Workflows: int64Ptr(30),
		AllocMode: resource.ModeHardCap,
	}); errSet != nil {
		t.Fatalf("dept allocation: %v", errSet)
	}

	id := resource.Identity{
		UserID:         7,
		OrganizationID: &orgID,
		DepartmentID:   &deptID,
	}
	eff, errResolve := res.Resolve(ctx, id, resource.KindWorkflows)
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if eff.Source != SourceDepartment || eff.Limit == nil || *eff.Limit != 30 {
		t.Fatalf("effective = %+v, want department/30", eff)
	}
	if eff.Mode != resource.ModeHardCap {
		t.Fatalf("mode = %s, want HARD_CAP", eff.Mode)
	}
}

func TestResolvePersonalPlan(t *testing.T) {
	res, _ := openTestResolver(t)
	ctx := context.Background()

	id := resource.Identity{UserID: 9, PlanTier: planlimits.TierFree}
	eff, errResolve := res.Resolve(ctx, id, resource.KindGateways)
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if eff.Source != SourcePlan || eff.Limit == nil || *eff.Limit != 1 {
		t.Fatalf("effective = %+v, want plan/1", eff)
	}
	if eff.Mode != resource.ModeHardCap {
		t.Fatalf("mode = %s, want HARD_CAP", eff.Mode)
	}
}

func TestResolveUnknownTierIsUnlimited(t *testing.T) {
	res, _ := openTestResolver(t)
	ctx := context.Background()

	id := resource.Identity{UserID: 9, PlanTier: "legacy-grandfathered"}
	eff, errResolve := res.Resolve(ctx, id, resource.KindAICalls)
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if !eff.Unlimited() {
		t.Fatalf("expected unlimited for unknown tier, got %+v", eff)
	}
}

func TestResolveAllCoversEveryKind(t *testing.T) {
	res, _ := openTestResolver(t)
	ctx := context.Background()

	all, errResolve := res.ResolveAll(ctx, resource.Identity{UserID: 3, PlanTier: planlimits.TierPro})
	if errResolve != nil {
		t.Fatalf("resolve all: %v", errResolve)
	}
	if len(all) != len(resource.Kinds()) {
		t.Fatalf("resolved %d kinds, want %d", len(all), len(resource.Kinds()))
	}
	eff := all[resource.KindStorageMB]
	if eff.Limit == nil || *eff.Limit != 5120 {
		t.Fatalf("storage effective = %+v, want plan/5120", eff)
	}
}
