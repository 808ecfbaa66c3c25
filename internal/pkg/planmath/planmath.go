package planmath

import (
	"strings"
	"time"

	"github.com/erpeaz/siteboard/app/models"
)

// TrialDays is the fixed trial period granted to every new site.
const TrialDays = 14

const (
	PlanBasic        = "basic"
	PlanProfessional = "professional"
	PlanPremium      = "premium"
	PlanUltimate     = "ultimate"
	PlanEnterprise   = "enterprise"
)

// NormalizePlan maps any upstream spelling of a plan key to the canonical
// lowercase form. Unknown values fall back to basic.
func NormalizePlan(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case PlanProfessional:
		return PlanProfessional
	case PlanPremium:
		return PlanPremium
	case PlanUltimate:
		return PlanUltimate
	case PlanEnterprise:
		return PlanEnterprise
	default:
		return PlanBasic
	}
}

// IsKnownPlan reports whether plan is one of the five supported plan keys.
func IsKnownPlan(plan string) bool {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case PlanBasic, PlanProfessional, PlanPremium, PlanUltimate, PlanEnterprise:
		return true
	default:
		return false
	}
}

// PlanMonths returns the billing cycle length for a plan key. Basic runs on a
// 6 month cycle, every other plan on 12 months.
func PlanMonths(plan string) int {
	if NormalizePlan(plan) == PlanBasic {
		return 6
	}
	return 12
}

// PlanMonthlyPrice returns the fixed monthly list price for a plan. Used only
// for revenue projections, never for billing itself.
func PlanMonthlyPrice(plan string) int {
	switch NormalizePlan(plan) {
	case PlanProfessional:
		return 99
	case PlanPremium:
		return 149
	case PlanUltimate:
		return 199
	case PlanEnterprise:
		return 299
	default:
		return 49
	}
}

// ComputeTrialEnd returns createdAt plus the trial period. A trialDays value
// of zero or less falls back to the default 14 days.
func ComputeTrialEnd(createdAt time.Time, trialDays int) time.Time {
	if trialDays <= 0 {
		trialDays = TrialDays
	}
	return createdAt.AddDate(0, 0, trialDays)
}

// ComputeExpiry returns the plan expiry for a given trial end.
func ComputeExpiry(trialEnd time.Time, plan string) time.Time {
	return trialEnd.AddDate(0, PlanMonths(plan), 0)
}

// DaysRemaining returns the number of whole days between now and expiry,
// comparing calendar dates only so the value does not flicker across a single
// day as time-of-day advances. Zero means expiry is today, negative means it
// is in the past.
func DaysRemaining(expiry, now time.Time) int {
	end := dateOnly(expiry)
	start := dateOnly(now)
	return int(end.Sub(start) / (24 * time.Hour))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Resolution carries the effective trial/expiry dates for a site. Nil dates
// mean the inputs were missing or unparseable.
type Resolution struct {
	TrialEnd     *time.Time
	Expiry       *time.Time
	DaysToExpiry *int
	Expired      bool
}

// Resolve computes the effective expiry for a site. A persisted subscription
// record always wins; the computed fallback from createdAt is used only while
// no subscription has been initialized for the site yet.
func Resolve(createdAt *time.Time, plan string, sub *models.SiteSubscription, now time.Time) Resolution {
	var res Resolution

	if sub != nil {
		trialEnd := sub.TrialEndAt
		expiry := sub.ExpiryAt
		res.TrialEnd = &trialEnd
		res.Expiry = &expiry
	} else if createdAt != nil {
		trialEnd := ComputeTrialEnd(*createdAt, TrialDays)
		expiry := ComputeExpiry(trialEnd, plan)
		res.TrialEnd = &trialEnd
		res.Expiry = &expiry
	}

	if res.Expiry != nil {
		days := DaysRemaining(*res.Expiry, now)
		res.DaysToExpiry = &days
		res.Expired = days < 0
	}
	return res
}
