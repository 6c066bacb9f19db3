// Package api wires the HTTP surface: route registration and the
// service-auth middleware guarding it.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/omniflow/quotad/internal/allocation"
	"github.com/omniflow/quotad/internal/config"
	"github.com/omniflow/quotad/internal/enforce"
	"github.com/omniflow/quotad/internal/http/api/handlers"
	"github.com/omniflow/quotad/internal/usagetrack"
	"gorm.io/gorm"
)

// Deps carries the services the HTTP layer exposes.
type Deps struct {
	DB          *gorm.DB
	Allocations *allocation.Store
	Engine      *enforce.Engine
	Usage       *usagetrack.Service
	ServiceAuth config.ServiceAuthConfig
}

// RegisterRoutes registers all routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Check)

	authed := r.Group("/v0")
	authed.Use(serviceAuthMiddleware(deps.DB, deps.ServiceAuth))

	allocationHandler := handlers.NewAllocationHandler(deps.Allocations)
	authed.GET("/orgs/:orgID/allocations", allocationHandler.ListByOrg)
	authed.PUT("/orgs/:orgID/departments/:deptID/allocation", allocationHandler.SetDept)
	authed.DELETE("/departments/:deptID/allocation", allocationHandler.RemoveDept)
	authed.GET("/departments/:deptID/members/allocations", allocationHandler.ListMembers)
	authed.PUT("/departments/:deptID/members/:userID/allocation", allocationHandler.SetMember)
	authed.DELETE("/departments/:deptID/members/:userID/allocation", allocationHandler.RemoveMember)

	quotaHandler := handlers.NewQuotaHandler(deps.Engine)
	authed.POST("/quota/check", quotaHandler.Check)
	authed.POST("/quota/enforce", quotaHandler.Enforce)

	usageHandler := handlers.NewUsageHandler(deps.Usage)
	authed.GET("/usage/realtime", usageHandler.Realtime)
	authed.POST("/usage/events", usageHandler.TrackEvent)

	auditHandler := handlers.NewAuditHandler(deps.DB)
	authed.GET("/audit/events", auditHandler.List)

	aggregateHandler := handlers.NewAggregateHandler(deps.Usage)
	authed.POST("/internal/aggregate/hourly", aggregateHandler.Hourly)
	authed.POST("/internal/aggregate/daily", aggregateHandler.Daily)
}
