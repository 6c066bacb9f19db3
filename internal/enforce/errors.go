package enforce

import (
	"fmt"

	"github.com/omniflow/quotad/internal/resource"
)

// QuotaExceededError reports a denied operation under a hard-capped limit.
// It is surfaced as a 403-equivalent and never retried: retrying without
// changing current usage fails identically.
type QuotaExceededError struct {
	Resource resource.Kind
	Current  int64
	Limit    int64
}

// Error renders the denial with resource, current usage, and limit.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d of %d used", e.Resource, e.Current, e.Limit)
}
