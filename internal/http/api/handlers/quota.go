package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/omniflow/quotad/internal/counter"
	"github.com/omniflow/quotad/internal/enforce"
	"github.com/omniflow/quotad/internal/resource"
	"github.com/omniflow/quotad/internal/usagetrack"
)

// QuotaHandler serves quota check and enforcement endpoints.
type QuotaHandler struct {
	engine *enforce.Engine
}

// NewQuotaHandler constructs a QuotaHandler.
func NewQuotaHandler(engine *enforce.Engine) *QuotaHandler {
	return &QuotaHandler{engine: engine}
}

// identityPayload is the caller-supplied identity context.
type identityPayload struct {
	UserID         uint64  `json:"user_id"`         // Acting user ID.
	OrganizationID *uint64 `json:"organization_id"` // Organization context, optional.
	DepartmentID   *uint64 `json:"department_id"`   // Department context, optional.
	PlanTier       string  `json:"plan_tier"`       // Effective personal plan tier.
}

func (p identityPayload) identity() resource.Identity {
	return resource.Identity{
		UserID:         p.UserID,
		OrganizationID: p.OrganizationID,
		DepartmentID:   p.DepartmentID,
		PlanTier:       strings.TrimSpace(p.PlanTier),
	}
}

// quotaRequest captures the payload for quota decisions.
type quotaRequest struct {
	Identity identityPayload `json:"identity"` // Caller identity context.
	Resource string          `json:"resource"` // Resource kind name.
	Amount   int64           `json:"amount"`   // Requested units, defaults to 1.
}

// Check evaluates a quota decision without consuming usage.
func (h *QuotaHandler) Check(c *gin.Context) {
	body, kind, ok := bindQuotaRequest(c)
	if !ok {
		return
	}
	result, errCheck := h.engine.CheckQuota(c.Request.Context(), body.Identity.identity(), kind, body.Amount)
	if errCheck != nil {
		writeQuotaError(c, errCheck)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Enforce evaluates a quota decision and consumes the amount for
// hard-capped limits. Denials return 403 with structured detail.
func (h *QuotaHandler) Enforce(c *gin.Context) {
	body, kind, ok := bindQuotaRequest(c)
	if !ok {
		return
	}
	result, errEnforce := h.engine.EnforceQuota(c.Request.Context(), body.Identity.identity(), kind, body.Amount)
	if errEnforce != nil {
		var exceeded *enforce.QuotaExceededError
		if errors.As(errEnforce, &exceeded) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":    "quota exceeded",
				"resource": exceeded.Resource,
				"current":  exceeded.Current,
				"limit":    exceeded.Limit,
				"result":   result,
			})
			return
		}
		writeQuotaError(c, errEnforce)
		return
	}
	c.JSON(http.StatusOK, result)
}

func bindQuotaRequest(c *gin.Context) (quotaRequest, resource.Kind, bool) {
	var body quotaRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return body, "", false
	}
	if body.Identity.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing identity user_id"})
		return body, "", false
	}
	kind, okKind := resource.ParseKind(body.Resource)
	if !okKind {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown resource"})
		return body, "", false
	}
	return body, kind, true
}

func writeQuotaError(c *gin.Context, err error) {
	if errors.Is(err, counter.ErrUnavailable) || errors.Is(err, usagetrack.ErrNoFallback) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "usage store unavailable"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "quota check failed"})
}
