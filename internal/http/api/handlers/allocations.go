package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/omniflow/quotad/internal/allocation"
	"github.com/omniflow/quotad/internal/planlimits"
	"github.com/omniflow/quotad/internal/resource"
)

// AllocationHandler manages department and member allocation endpoints.
type AllocationHandler struct {
	store *allocation.Store
}

// NewAllocationHandler constructs an AllocationHandler.
func NewAllocationHandler(store *allocation.Store) *AllocationHandler {
	return &AllocationHandler{store: store}
}

// deptAllocationRequest captures the payload for setting a department allocation.
type deptAllocationRequest struct {
	Gateways    *int64 `json:"gateways"`     // Gateway connection cap.
	Workflows   *int64 `json:"workflows"`    // Workflow cap.
	Plugins     *int64 `json:"plugins"`      // Plugin cap.
	AICalls     *int64 `json:"ai_calls"`     // Daily AI call cap.
	StorageMB   *int64 `json:"storage_mb"`   // Storage cap in MB.
	RAMMB       *int64 `json:"ram_mb"`       // RAM slice in MB.
	CPUPercent  *int64 `json:"cpu_percent"`  // CPU slice in percent.
	AllocMode   string `json:"alloc_mode"`   // Enforcement mode.
	AllocatedBy uint64 `json:"allocated_by"` // Acting administrator ID.
}

// memberAllocationRequest captures the payload for setting a member allocation.
type memberAllocationRequest struct {
	Gateways    *int64 `json:"gateways"`     // Gateway connection cap.
	Workflows   *int64 `json:"workflows"`    // Workflow cap.
	AICalls     *int64 `json:"ai_calls"`     // Daily AI call cap.
	StorageMB   *int64 `json:"storage_mb"`   // Storage cap in MB.
	AllocMode   string `json:"alloc_mode"`   // Enforcement mode.
	AllocatedBy uint64 `json:"allocated_by"` // Acting administrator ID.
}

// SetDept validates and upserts a department allocation.
func (h *AllocationHandler) SetDept(c *gin.Context) {
	orgID, okOrg := pathID(c, "orgID")
	deptID, okDept := pathID(c, "deptID")
	if !okOrg || !okDept {
		return
	}
	var body deptAllocationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	record, errSet := h.store.SetDeptAllocation(c.Request.Context(), orgID, deptID, allocation.DeptAllocationInput{
		Gateways:    body.Gateways,
		Workflows:   body.Workflows,
		Plugins:     body.Plugins,
		AICalls:     body.AICalls,
		StorageMB:   body.StorageMB,
		RAMMB:       body.RAMMB,
		CPUPercent:  body.CPUPercent,
		AllocMode:   resource.AllocMode(body.AllocMode),
		AllocatedBy: body.AllocatedBy,
	})
	if errSet != nil {
		writeAllocationError(c, errSet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocation": record})
}

// RemoveDept deletes a department allocation.
func (h *AllocationHandler) RemoveDept(c *gin.Context) {
	deptID, okDept := pathID(c, "deptID")
	if !okDept {
		return
	}
	actor := actorID(c)
	if errRemove := h.store.RemoveDeptAllocation(c.Request.Context(), deptID, actor); errRemove != nil {
		writeAllocationError(c, errRemove)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetMember validates and upserts a member allocation.
func (h *AllocationHandler) SetMember(c *gin.Context) {
	deptID, okDept := pathID(c, "deptID")
	userID, okUser := pathID(c, "userID")
	if !okDept || !okUser {
		return
	}
	var body memberAllocationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	record, errSet := h.store.SetMemberAllocation(c.Request.Context(), deptID, userID, allocation.MemberAllocationInput{
		Gateways:    body.Gateways,
		Workflows:   body.Workflows,
		AICalls:     body.AICalls,
		StorageMB:   body.StorageMB,
		AllocMode:   resource.AllocMode(body.AllocMode),
		AllocatedBy: body.AllocatedBy,
	})
	if errSet != nil {
		writeAllocationError(c, errSet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocation": record})
}

// RemoveMember deletes a member allocation.
func (h *AllocationHandler) RemoveMember(c *gin.Context) {
	deptID, okDept := pathID(c, "deptID")
	userID, okUser := pathID(c, "userID")
	if !okDept || !okUser {
		return
	}
	actor := actorID(c)
	if errRemove := h.store.RemoveMemberAllocation(c.Request.Context(), deptID, userID, actor); errRemove != nil {
		writeAllocationError(c, errRemove)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListByOrg returns an organization's department allocations plus the
// remaining pool per resource.
func (h *AllocationHandler) ListByOrg(c *gin.Context) {
	orgID, okOrg := pathID(c, "orgID")
	if !okOrg {
		return
	}
	ctx := c.Request.Context()

	records, errList := h.store.ListDeptAllocations(ctx, orgID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list allocations failed"})
		return
	}

	remaining := make(map[string]any, len(resource.Kinds()))
	for _, kind := range resource.Kinds() {
		value, errRemaining := h.store.PoolRemaining(ctx, orgID, kind)
		if errRemaining != nil {
			writeAllocationError(c, errRemaining)
			return
		}
		if value == planlimits.Unlimited {
			remaining[string(kind)] = nil
		} else {
			remaining[string(kind)] = value
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"allocations":    records,
		"pool_remaining": remaining,
	})
}

// ListMembers returns a department's member allocations.
func (h *AllocationHandler) ListMembers(c *gin.Context) {
	deptID, okDept := pathID(c, "deptID")
	if !okDept {
		return
	}
	records, errList := h.store.ListMemberAllocations(c.Request.Context(), deptID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list member allocations failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocations": records})
}

// writeAllocationError maps allocation store errors onto HTTP responses.
func writeAllocationError(c *gin.Context, err error) {
	var validationErr *allocation.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "allocation exceeds parent pool",
			"fields": validationErr.Fields,
		})
	case errors.Is(err, allocation.ErrOrganizationNotFound),
		errors.Is(err, allocation.ErrDepartmentNotFound),
		errors.Is(err, allocation.ErrDeptAllocationNotFound),
		errors.Is(err, allocation.ErrMemberAllocationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, allocation.ErrNegativeCap):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "allocation write failed"})
	}
}

// pathID parses a uint64 path parameter, writing a 400 on failure.
func pathID(c *gin.Context, name string) (uint64, bool) {
	raw := strings.TrimSpace(c.Param(name))
	parsed, errParse := strconv.ParseUint(raw, 10, 64)
	if errParse != nil || parsed == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return parsed, true
}

// actorID reads the acting administrator ID from the actor_id query value.
func actorID(c *gin.Context) uint64 {
	raw := strings.TrimSpace(c.Query("actor_id"))
	parsed, errParse := strconv.ParseUint(raw, 10, 64)
	if errParse != nil {
		return 0
	}
	return parsed
}
