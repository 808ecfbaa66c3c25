package upstream

import (
	"strings"
	"time"
)

// Site is the canonical shape every upstream site payload is normalized into
// at the ingestion boundary. Downstream code never sees the upstream field
// aliases.
type Site struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Plan       string     `json:"plan"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	TrialStart *time.Time `json:"trial_start,omitempty"`
	TrialDays  int        `json:"trial_days"`
	Users      int        `json:"users"`
}

// ExpiredPlan is one externally reported expired plan entry.
type ExpiredPlan struct {
	SiteID    string     `json:"site_id"`
	SiteName  string     `json:"site_name"`
	Plan      string     `json:"plan"`
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
}

// rawSite captures every field alias the upstream has been observed to use.
type rawSite struct {
	MongoID    string      `json:"_id"`
	ID         string      `json:"id"`
	SiteID     string      `json:"siteId"`
	Name       string      `json:"name"`
	SiteName   string      `json:"siteName"`
	Plan       string      `json:"plan"`
	CreatedAt  string      `json:"created_at"`
	CreatedAt2 string      `json:"createdAt"`
	TrialStart string      `json:"trialStart"`
	TrialDays  *int        `json:"trialDays"`
	Users      interface{} `json:"user"`
}

type rawExpiredPlan struct {
	SiteID    string `json:"siteId"`
	SiteID2   string `json:"site_id"`
	MongoID   string `json:"_id"`
	SiteName  string `json:"siteName"`
	Name      string `json:"name"`
	Plan      string `json:"plan"`
	ExpiredAt string `json:"expiredAt"`
	Expired2  string `json:"expired_at"`
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDate returns nil for missing or unparseable values; derived dates stay
// nil downstream instead of erroring.
func parseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (r rawSite) normalize() Site {
	trialDays := 14
	if r.TrialDays != nil && *r.TrialDays > 0 {
		trialDays = *r.TrialDays
	}

	users := 0
	switch v := r.Users.(type) {
	case float64:
		users = int(v)
	case int:
		users = v
	}

	return Site{
		ID:         firstNonEmpty(r.MongoID, r.ID, r.SiteID),
		Name:       firstNonEmpty(r.Name, r.SiteName),
		Plan:       strings.TrimSpace(r.Plan),
		CreatedAt:  parseDate(firstNonEmpty(r.CreatedAt, r.CreatedAt2)),
		TrialStart: parseDate(r.TrialStart),
		TrialDays:  trialDays,
		Users:      users,
	}
}

func normalizeSites(raw []rawSite) []Site {
	sites := make([]Site, 0, len(raw))
	for _, r := range raw {
		s := r.normalize()
		if s.ID == "" {
			continue
		}
		sites = append(sites, s)
	}
	return sites
}

func normalizeExpiredPlans(raw []rawExpiredPlan) []ExpiredPlan {
	plans := make([]ExpiredPlan, 0, len(raw))
	for _, r := range raw {
		p := ExpiredPlan{
			SiteID:    firstNonEmpty(r.SiteID, r.SiteID2, r.MongoID),
			SiteName:  firstNonEmpty(r.SiteName, r.Name),
			Plan:      strings.TrimSpace(r.Plan),
			ExpiredAt: parseDate(firstNonEmpty(r.ExpiredAt, r.Expired2)),
		}
		if p.SiteID == "" {
			continue
		}
		plans = append(plans, p)
	}
	return plans
}
