package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/omniflow/quotad/internal/resource"
	"github.com/omniflow/quotad/internal/usagetrack"
)

// UsageHandler serves usage reads and event ingestion.
type UsageHandler struct {
	service *usagetrack.Service
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(service *usagetrack.Service) *UsageHandler {
	return &UsageHandler{service: service}
}

// Realtime returns the near-real-time usage snapshot for an identity.
func (h *UsageHandler) Realtime(c *gin.Context) {
	id, ok := queryIdentity(c)
	if !ok {
		return
	}
	snapshot, errRead := h.service.RealTimeUsage(c.Request.Context(), id)
	if errRead != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "usage store unavailable"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Usage event types accepted by TrackEvent.
const (
	eventAPICall         = "api_call"
	eventWorkflowRun     = "workflow_run"
	eventPluginExecution = "plugin_execution"
	eventError           = "error"
	eventStorageDelta    = "storage_delta"
)

// trackEventRequest captures the payload for one usage event.
type trackEventRequest struct {
	Identity   identityPayload `json:"identity"`    // Caller identity context.
	Type       string          `json:"type"`        // Event type.
	DeltaBytes int64           `json:"delta_bytes"` // Storage delta, storage_delta events only.
}

// TrackEvent records one usage event. Tracking is best-effort by contract,
// so the endpoint acknowledges with 202 even when a backend write failed.
func (h *UsageHandler) TrackEvent(c *gin.Context) {
	var body trackEventRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Identity.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing identity user_id"})
		return
	}
	ctx := c.Request.Context()
	id := body.Identity.identity()

	switch strings.ToLower(strings.TrimSpace(body.Type)) {
	case eventAPICall:
		h.service.TrackAPICall(ctx, id)
	case eventWorkflowRun:
		h.service.TrackWorkflowRun(ctx, id)
	case eventPluginExecution:
		h.service.TrackPluginExecution(ctx, id)
	case eventError:
		h.service.TrackError(ctx, id)
	case eventStorageDelta:
		h.service.TrackStorageDelta(ctx, id, body.DeltaBytes)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
		return
	}
	c.Status(http.StatusAccepted)
}

// queryIdentity parses an identity context from query parameters.
func queryIdentity(c *gin.Context) (resource.Identity, bool) {
	userID, errParse := strconv.ParseUint(strings.TrimSpace(c.Query("user_id")), 10, 64)
	if errParse != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return resource.Identity{}, false
	}
	id := resource.Identity{
		UserID:   userID,
		PlanTier: strings.TrimSpace(c.Query("plan_tier")),
	}
	if raw := strings.TrimSpace(c.Query("organization_id")); raw != "" {
		parsed, errOrg := strconv.ParseUint(raw, 10, 64)
		if errOrg != nil || parsed == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization_id"})
			return resource.Identity{}, false
		}
		id.OrganizationID = &parsed
	}
	if raw := strings.TrimSpace(c.Query("department_id")); raw != "" {
		parsed, errDept := strconv.ParseUint(raw, 10, 64)
		if errDept != nil || parsed == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid department_id"})
			return resource.Identity{}, false
		}
		id.DepartmentID = &parsed
	}
	return id, true
}
