package allocation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/omniflow/quotad/internal/resource"
)

// Lookup and input errors surfaced by the allocation store.
var (
	// ErrOrganizationNotFound indicates the referenced organization does not exist.
	ErrOrganizationNotFound = errors.New("allocation: organization not found")
	// ErrDepartmentNotFound indicates the referenced department does not exist.
	ErrDepartmentNotFound = errors.New("allocation: department not found")
	// ErrDeptAllocationNotFound indicates no allocation record exists for the department.
	ErrDeptAllocationNotFound = errors.New("allocation: department allocation not found")
	// ErrMemberAllocationNotFound indicates no allocation record exists for the member.
	ErrMemberAllocationNotFound = errors.New("allocation: member allocation not found")
	// ErrNegativeCap indicates a proposed cap is negative. Caps are
	// non-negative; leave a field unset to inherit from the parent.
	ErrNegativeCap = errors.New("allocation: cap must not be negative")
)

// FieldError describes one resource field whose proposed cap exceeds the
// parent pool.
type FieldError struct {
	Field     resource.Kind `json:"field"`     // Offending resource field.
	Allocated int64         `json:"allocated"` // Amount already allocated to siblings.
	Requested int64         `json:"requested"` // Amount requested for the target.
	Available int64         `json:"available"` // Amount still available in the parent pool.
}

// ValidationError carries per-field detail for an allocation write that
// would exceed its parent pool. It is surfaced to the caller and never
// retried.
type ValidationError struct {
	Fields []FieldError
}

// Error renders a summary naming each offending field.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "allocation: validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", field.Field, field.Requested, field.Available))
	}
	return "allocation: parent pool exceeded for " + strings.Join(parts, ", ")
}
