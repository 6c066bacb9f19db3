// Package planlimits holds the static, versioned plan limit tables. The
// tables are immutable at runtime; only an identity's tier membership
// changes. Migrations mirror them into the plans tables for dashboards.
package planlimits

import (
	"strings"

	"github.com/omniflow/quotad/internal/resource"
)

// Unlimited is the sentinel cap meaning "no limit at this level".
const Unlimited int64 = -1

// TableVersion identifies the current revision of the limit tables.
const TableVersion = 4

// Personal plan tiers.
const (
	TierFree       = "FREE"
	TierPro        = "PRO"
	TierEnterprise = "ENTERPRISE"
)

// Organizational plan tiers.
const (
	OrgTierTeam       = "TEAM"
	OrgTierBusiness   = "BUSINESS"
	OrgTierEnterprise = "ENTERPRISE"
)

// Limits is a per-resource cap set for one plan tier.
type Limits struct {
	Gateways   int64
	Workflows  int64
	Plugins    int64
	AICalls    int64
	StorageMB  int64
	RAMMB      int64
	CPUPercent int64
}

// Cap returns the cap for a resource kind.
func (l Limits) Cap(kind resource.Kind) int64 {
	switch kind {
	case resource.KindGateways:
		return l.Gateways
	case resource.KindWorkflows:
		return l.Workflows
	case resource.KindPlugins:
		return l.Plugins
	case resource.KindAICalls:
		return l.AICalls
	case resource.KindStorageMB:
		return l.StorageMB
	case resource.KindRAMMB:
		return l.RAMMB
	case resource.KindCPUPercent:
		return l.CPUPercent
	default:
		return Unlimited
	}
}

var personalTables = map[string]Limits{
	TierFree: {
		Gateways:   1,
		Workflows:  5,
		Plugins:    2,
		AICalls:    100,
		StorageMB:  100,
		RAMMB:      256,
		CPUPercent: 25,
	},
	TierPro: {
		Gateways:   5,
		Workflows:  50,
		Plugins:    10,
		AICalls:    5000,
		StorageMB:  5120,
		RAMMB:      1024,
		CPUPercent: 100,
	},
	TierEnterprise: {
		Gateways:   Unlimited,
		Workflows:  Unlimited,
		Plugins:    Unlimited,
		AICalls:    Unlimited,
		StorageMB:  51200,
		RAMMB:      4096,
		CPUPercent: 200,
	},
}

var organizationalTables = map[string]Limits{
	OrgTierTeam: {
		Gateways:   10,
		Workflows:  100,
		Plugins:    20,
		AICalls:    20000,
		StorageMB:  20480,
		RAMMB:      4096,
		CPUPercent: 400,
	},
	OrgTierBusiness: {
		Gateways:   50,
		Workflows:  500,
		Plugins:    100,
		AICalls:    200000,
		StorageMB:  102400,
		RAMMB:      16384,
		CPUPercent: 1600,
	},
	OrgTierEnterprise: {
		Gateways:   Unlimited,
		Workflows:  Unlimited,
		Plugins:    Unlimited,
		AICalls:    Unlimited,
		StorageMB:  Unlimited,
		RAMMB:      65536,
		CPUPercent: 6400,
	},
}

// Personal returns the limit table for a personal plan tier.
func Personal(tier string) (Limits, bool) {
	limits, ok := personalTables[normalizeTier(tier)]
	return limits, ok
}

// Organizational returns the shared pool table for an organization plan tier.
func Organizational(tier string) (Limits, bool) {
	limits, ok := organizationalTables[normalizeTier(tier)]
	return limits, ok
}

// PersonalTiers lists the known personal tiers in stable order.
func PersonalTiers() []string {
	return []string{TierFree, TierPro, TierEnterprise}
}

// OrganizationalTiers lists the known organizational tiers in stable order.
func OrganizationalTiers() []string {
	return []string{OrgTierTeam, OrgTierBusiness, OrgTierEnterprise}
}

func normalizeTier(tier string) string {
	return strings.ToUpper(strings.TrimSpace(tier))
}
