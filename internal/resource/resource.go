package resource

import "strings"

// Kind identifies a quota-tracked resource.
type Kind string

// Resource kinds tracked by the allocation hierarchy.
const (
	// KindGateways counts gateway connections.
	KindGateways Kind = "gateways"
	// KindWorkflows counts workflow instances.
	KindWorkflows Kind = "workflows"
	// KindPlugins counts installed plugins (department-shared).
	KindPlugins Kind = "plugins"
	// KindAICalls counts API/AI calls per day.
	KindAICalls Kind = "ai_calls"
	// KindStorageMB is the storage pool size in whole megabytes.
	KindStorageMB Kind = "storage_mb"
	// KindRAMMB is the RAM pool size in megabytes (department-shared).
	KindRAMMB Kind = "ram_mb"
	// KindCPUPercent is the CPU pool share in percent (department-shared).
	KindCPUPercent Kind = "cpu_percent"
)

// Kinds returns all resource kinds in stable order.
func Kinds() []Kind {
	return []Kind{
		KindGateways,
		KindWorkflows,
		KindPlugins,
		KindAICalls,
		KindStorageMB,
		KindRAMMB,
		KindCPUPercent,
	}
}

// MemberKinds returns the resource kinds that can be allocated to a member.
// Plugins, RAM and CPU pools are shared at the department level and have no
// per-member slice.
func MemberKinds() []Kind {
	return []Kind{
		KindGateways,
		KindWorkflows,
		KindAICalls,
		KindStorageMB,
	}
}

// ParseKind normalizes a raw resource name into a Kind.
func ParseKind(raw string) (Kind, bool) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Kinds() {
		if kind == known {
			return kind, true
		}
	}
	return "", false
}

// AllocMode is the enforcement policy applied when usage reaches a limit.
type AllocMode string

// Allocation modes in increasing strictness.
const (
	// ModeUnlimited never blocks.
	ModeUnlimited AllocMode = "UNLIMITED"
	// ModeSoftCap allows over-limit operations but flags a warning.
	ModeSoftCap AllocMode = "SOFT_CAP"
	// ModeHardCap rejects over-limit operations.
	ModeHardCap AllocMode = "HARD_CAP"
	// ModeReserved rejects over-limit operations; the slice is guaranteed
	// to its owner and counts against nobody else.
	ModeReserved AllocMode = "RESERVED"
)

// ParseAllocMode normalizes a raw mode string into an AllocMode.
func ParseAllocMode(raw string) (AllocMode, bool) {
	mode := AllocMode(strings.ToUpper(strings.TrimSpace(raw)))
	switch mode {
	case ModeUnlimited, ModeSoftCap, ModeHardCap, ModeReserved:
		return mode, true
	}
	return "", false
}

// Identity is the caller-supplied identity context. Membership and
// authentication are resolved upstream; this subsystem trusts the values.
type Identity struct {
	UserID         uint64
	OrganizationID *uint64
	DepartmentID   *uint64
	PlanTier       string
}

// Owner returns the usage-accounting owner for the identity: the
// organization when present, otherwise the user.
func (id Identity) Owner() (ownerType string, ownerID uint64) {
	if id.OrganizationID != nil && *id.OrganizationID > 0 {
		return OwnerOrganization, *id.OrganizationID
	}
	return OwnerUser, id.UserID
}

// Owner types for usage accounting.
const (
	// OwnerOrganization scopes usage to an organization.
	OwnerOrganization = "organization"
	// OwnerDepartment scopes usage to a department.
	OwnerDepartment = "department"
	// OwnerUser scopes usage to a personal (org-less) user.
	OwnerUser = "user"
)
