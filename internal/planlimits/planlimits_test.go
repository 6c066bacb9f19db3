package planlimits

import (
	"testing"

	"github.com/omniflow/quotad/internal/resource"
)

func TestPersonalLookup(t *testing.T) {
	limits, ok := Personal("free")
	if !ok {
		t.Fatalf("expected FREE tier to exist")
	}
	if limits.Gateways != 1 {
		t.Fatalf("FREE gateways = %d, want 1", limits.Gateways)
	}
	if limits.AICalls != 100 {
		t.Fatalf("FREE ai_calls = %d, want 100", limits.AICalls)
	}

	if _, ok := Personal("  PRO "); !ok {
		t.Fatalf("expected tier normalization to accept padded input")
	}
	if _, ok := Personal("nonexistent"); ok {
		t.Fatalf("expected unknown tier to miss")
	}
}

func TestOrganizationalLookup(t *testing.T) {
	limits, ok := Organizational(OrgTierTeam)
	if !ok {
		t.Fatalf("expected TEAM tier to exist")
	}
	if limits.Gateways != 10 {
		t.Fatalf("TEAM gateways = %d, want 10", limits.Gateways)
	}

	enterprise, ok := Organizational(OrgTierEnterprise)
	if !ok {
		t.Fatalf("expected ENTERPRISE tier to exist")
	}
	if enterprise.Gateways != Unlimited || enterprise.StorageMB != Unlimited {
		t.Fatalf("expected ENTERPRISE gateways and storage to be unlimited")
	}
	if enterprise.RAMMB == Unlimited {
		t.Fatalf("expected ENTERPRISE ram to stay bounded")
	}
}

func TestCapByKind(t *testing.T) {
	limits, _ := Personal(TierPro)
	if got := limits.Cap(resource.KindWorkflows); got != 50 {
		t.Fatalf("PRO workflows cap = %d, want 50", got)
	}
	if got := limits.Cap(resource.Kind("unknown")); got != Unlimited {
		t.Fatalf("unknown kind cap = %d, want unlimited sentinel", got)
	}
}

func TestTierLists(t *testing.T) {
	for _, tier := range PersonalTiers() {
		if _, ok := Personal(tier); !ok {
			t.Fatalf("listed personal tier %q missing from table", tier)
		}
	}
	for _, tier := range OrganizationalTiers() {
		if _, ok := Organizational(tier); !ok {
			t.Fatalf("listed organizational tier %q missing from table", tier)
		}
	}
}
