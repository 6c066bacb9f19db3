package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/omniflow/quotad/internal/db"
	"github.com/omniflow/quotad/internal/models"
	"gorm.io/gorm"
)

// AuditHandler serves the allocation audit trail.
type AuditHandler struct {
	db *gorm.DB
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(conn *gorm.DB) *AuditHandler {
	return &AuditHandler{db: conn}
}

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500
)

// List returns audit events newest first, filterable by action prefix,
// actor and scope.
func (h *AuditHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.AuditEvent{})

	if action := strings.TrimSpace(c.Query("action")); action != "" {
		pattern := db.NormalizeLikePattern(h.db, action+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "action"), pattern)
	}
	if raw := strings.TrimSpace(c.Query("actor_id")); raw != "" {
		actor, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid actor_id"})
			return
		}
		query = query.Where("actor = ?", actor)
	}
	if raw := strings.TrimSpace(c.Query("scope_id")); raw != "" {
		scopeID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scope_id"})
			return
		}
		query = query.Where("scope_id = ?", scopeID)
	}
	if scopeType := strings.TrimSpace(c.Query("scope_type")); scopeType != "" {
		query = query.Where("scope_type = ?", scopeType)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count audit events failed"})
		return
	}

	page, size := pagination(c)
	var events []models.AuditEvent
	if errFind := query.
		Order("id DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&events).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list audit events failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  total,
		"page":   page,
		"size":   size,
	})
}

// pagination reads page and size query values, applying defaults and caps.
func pagination(c *gin.Context) (int, int) {
	page := 1
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			page = parsed
		}
	}
	size := defaultAuditPageSize
	if raw := strings.TrimSpace(c.Query("size")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			size = parsed
		}
	}
	if size > maxAuditPageSize {
		size = maxAuditPageSize
	}
	return page, size
}
