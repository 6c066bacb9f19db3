// Package enforce composes the limit resolver and the usage counters to
// answer "is this operation allowed".
package enforce

import (
	"context"
	"fmt"

	"github.com/omniflow/quotad/internal/resolver"
	"github.com/omniflow/quotad/internal/resource"
	"github.com/omniflow/quotad/internal/usagetrack"
)

// Engine is the quota enforcement engine. It never mutates allocation
// state; the only writes it performs are fast-counter increments for
// hard-capped decisions.
type Engine struct {
	resolver *resolver.Resolver
	usage    *usagetrack.Service
}

// NewEngine constructs an Engine.
func NewEngine(res *resolver.Resolver, usage *usagetrack.Service) *Engine {
	return &Engine{resolver: res, usage: usage}
}

// Result is the outcome of a quota decision.
type Result struct {
	Allowed   bool               `json:"allowed"`
	LimitType resolver.Source    `json:"limit_type"`
	AllocMode resource.AllocMode `json:"alloc_mode"`
	Current   int64              `json:"current"`
	Limit     *int64             `json:"limit"`
	Message   string             `json:"message,omitempty"`
	IsWarning bool               `json:"is_warning,omitempty"`
	// Counted reports that EnforceQuota already consumed the requested
	// amount; callers must not track the same unit again.
	Counted bool `json:"counted,omitempty"`
}

// CheckQuota evaluates a request against the effective limit without
// mutating any state.
func (e *Engine) CheckQuota(ctx context.Context, id resource.Identity, kind resource.Kind, amount int64) (Result, error) {
	if amount <= 0 {
		amount = 1
	}
	eff, errResolve := e.resolver.Resolve(ctx, id, kind)
	if errResolve != nil {
		return Result{}, errResolve
	}

	result := Result{
		Allowed:   true,
		LimitType: eff.Source,
		AllocMode: eff.Mode,
		Limit:     eff.Limit,
	}

	current, errUsage := e.usage.CurrentUsage(ctx, id, string(kind))
	if errUsage != nil {
		if eff.Unlimited() {
			// No limit to compare against; usage is informational only.
			return result, nil
		}
		return Result{}, errUsage
	}
	result.Current = current

	if eff.Unlimited() {
		return result, nil
	}

	limit := *eff.Limit
	if current+amount <= limit {
		return result, nil
	}

	switch eff.Mode {
	case resource.ModeSoftCap:
		result.IsWarning = true
		result.Message = fmt.Sprintf("usage %d exceeds the %s limit of %d for %s", current+amount, eff.Source, limit, kind)
	case resource.ModeHardCap, resource.ModeReserved:
		result.Allowed = false
		result.Message = fmt.Sprintf("quota exceeded for %s: %d of %d used", kind, current, limit)
	}
	return result, nil
}

// EnforceQuota checks the request and, for hard-capped limits, consumes the
// amount atomically: the fast-store increment's return value is the
// post-increment usage, closing most of the check-then-act race window. A
// denied request is compensated and reported as *QuotaExceededError; it is
// a business-rule rejection and must not be retried.
func (e *Engine) EnforceQuota(ctx context.Context, id resource.Identity, kind resource.Kind, amount int64) (Result, error) {
	if amount <= 0 {
		amount = 1
	}
	eff, errResolve := e.resolver.Resolve(ctx, id, kind)
	if errResolve != nil {
		return Result{}, errResolve
	}

	hardCapped := (eff.Mode == resource.ModeHardCap || eff.Mode == resource.ModeReserved) && !eff.Unlimited()
	if !hardCapped {
		return e.CheckQuota(ctx, id, kind, amount)
	}
	limit := *eff.Limit

	newValue, errIncr := e.usage.IncrementCounter(ctx, id, string(kind), amount)
	if errIncr != nil {
		// Fast store down: degrade to read-then-check.
		result, errCheck := e.CheckQuota(ctx, id, kind, amount)
		if errCheck != nil {
			return Result{}, errCheck
		}
		if !result.Allowed {
			return result, &QuotaExceededError{Resource: kind, Current: result.Current, Limit: limit}
		}
		return result, nil
	}

	result := Result{
		LimitType: eff.Source,
		AllocMode: eff.Mode,
		Current:   newValue,
		Limit:     eff.Limit,
	}
	if newValue > limit {
		if _, errComp := e.usage.IncrementCounter(ctx, id, string(kind), -amount); errComp != nil {
			// The counter now over-reports by amount until day expiry.
			result.Message = "quota increment compensation failed"
		}
		result.Current = newValue - amount
		result.Allowed = false
		if result.Message == "" {
			result.Message = fmt.Sprintf("quota exceeded for %s: %d of %d used", kind, result.Current, limit)
		}
		return result, &QuotaExceededError{Resource: kind, Current: result.Current, Limit: limit}
	}
	result.Allowed = true
	result.Counted = true
	return result, nil
}
