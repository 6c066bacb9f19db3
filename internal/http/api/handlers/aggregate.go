package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/omniflow/quotad/internal/usagetrack"
	log "github.com/sirupsen/logrus"
)

// AggregateHandler exposes the rollup jobs to an external scheduler.
type AggregateHandler struct {
	service *usagetrack.Service
}

// NewAggregateHandler constructs an AggregateHandler.
func NewAggregateHandler(service *usagetrack.Service) *AggregateHandler {
	return &AggregateHandler{service: service}
}

// Hourly runs the hourly rollup and reports how many owners were processed.
func (h *AggregateHandler) Hourly(c *gin.Context) {
	processed, errRun := h.service.AggregateHourlyUsage(c.Request.Context())
	if errRun != nil {
		log.WithError(errRun).Warn("hourly aggregation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hourly aggregation failed", "processed": processed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

// Daily runs the daily rollup and reports how many owners were processed.
func (h *AggregateHandler) Daily(c *gin.Context) {
	processed, errRun := h.service.AggregateDailyUsage(c.Request.Context())
	if errRun != nil {
		log.WithError(errRun).Warn("daily aggregation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "daily aggregation failed", "processed": processed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}
