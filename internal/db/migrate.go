package db

import (
	"fmt"

	"github.com/omniflow/quotad/internal/models"
	"github.com/omniflow/quotad/internal/planlimits"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate applies the schema and reseeds the plan mirror tables when the
// static limit tables have advanced.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.Organization{},
		&models.Department{},
		&models.User{},
		&models.Plan{},
		&models.OrgPlan{},
		&models.DeptAllocation{},
		&models.MemberAllocation{},
		&models.UsageHistoryRecord{},
		&models.AuditEvent{},
		&models.ServiceToken{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := seedPlanTables(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// seedPlanTables upserts one row per plan tier from the in-code tables.
func seedPlanTables(conn *gorm.DB) error {
	planColumns := []string{
		"version", "gateways", "workflows", "plugins", "ai_calls",
		"storage_mb", "ram_mb", "cpu_percent", "updated_at",
	}

	for _, tier := range planlimits.PersonalTiers() {
		limits, ok := planlimits.Personal(tier)
		if !ok {
			continue
		}
		row := models.Plan{
			Tier:       tier,
			Version:    planlimits.TableVersion,
			Gateways:   limits.Gateways,
			Workflows:  limits.Workflows,
			Plugins:    limits.Plugins,
			AICalls:    limits.AICalls,
			StorageMB:  limits.StorageMB,
			RAMMB:      limits.RAMMB,
			CPUPercent: limits.CPUPercent,
		}
		if errUpsert := conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tier"}},
			DoUpdates: clause.AssignmentColumns(planColumns),
		}).Create(&row).Error; errUpsert != nil {
			return fmt.Errorf("db: seed plan %s: %w", tier, errUpsert)
		}
	}

	for _, tier := range planlimits.OrganizationalTiers() {
		limits, ok := planlimits.Organizational(tier)
		if !ok {
			continue
		}
		row := models.OrgPlan{
			Tier:       tier,
			Version:    planlimits.TableVersion,
			Gateways:   limits.Gateways,
			Workflows:  limits.Workflows,
			Plugins:    limits.Plugins,
			AICalls:    limits.AICalls,
			StorageMB:  limits.StorageMB,
			RAMMB:      limits.RAMMB,
			CPUPercent: limits.CPUPercent,
		}
		if errUpsert := conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tier"}},
			DoUpdates: clause.AssignmentColumns(planColumns),
		}).Create(&row).Error; errUpsert != nil {
			return fmt.Errorf("db: seed org plan %s: %w", tier, errUpsert)
		}
	}
	return nil
}
