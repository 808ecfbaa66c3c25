package controllers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/erpeaz/siteboard/app/repository"
	"github.com/erpeaz/siteboard/internal/pkg/cache"
	"github.com/erpeaz/siteboard/internal/pkg/planmath"
	"github.com/erpeaz/siteboard/internal/pkg/upstream"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const (
	siteListCacheKey = "upstream:sites"
	siteListCacheTTL = 60 * time.Second
)

// siteView is the dashboard-facing site shape: the normalized upstream
// payload enriched with the effective subscription window.
type siteView struct {
	upstream.Site
	PlanKey         string     `json:"plan_key"`
	MonthlyPrice    int        `json:"monthly_price"`
	HasSubscription bool       `json:"has_subscription"`
	TrialEndAt      *time.Time `json:"trial_end_at,omitempty"`
	ExpiryAt        *time.Time `json:"expiry_at,omitempty"`
	DaysToExpiry    *int       `json:"days_to_expiry,omitempty"`
	IsExpired       bool       `json:"is_expired"`
}

func fetchSitesCached(c *fiber.Ctx) ([]upstream.Site, error) {
	if raw, err := cache.Get(siteListCacheKey); err == nil && raw != "" {
		var sites []upstream.Site
		if err := json.Unmarshal([]byte(raw), &sites); err == nil {
			return sites, nil
		}
	}

	sites, err := upstreamClient.FetchSites(c.UserContext())
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(sites); err == nil {
		if err := cache.Set(siteListCacheKey, raw, siteListCacheTTL); err != nil {
			log.Warnf("failed to cache upstream site list: %v", err)
		}
	}
	return sites, nil
}

func buildSiteView(site upstream.Site, now time.Time) siteView {
	plan := planmath.NormalizePlan(site.Plan)

	sub, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetBySiteID(site.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("subscription lookup for site %s failed: %v", site.ID, err)
		sub = nil
	}
	if sub != nil {
		plan = sub.PlanKey
	}

	res := planmath.Resolve(site.CreatedAt, plan, sub, now)
	return siteView{
		Site:            site,
		PlanKey:         plan,
		MonthlyPrice:    planmath.PlanMonthlyPrice(plan),
		HasSubscription: sub != nil,
		TrialEndAt:      res.TrialEnd,
		ExpiryAt:        res.Expiry,
		DaysToExpiry:    res.DaysToExpiry,
		IsExpired:       res.Expired,
	}
}

// HandleListSites proxies the external site list, enriched with effective
// trial/expiry data.
func HandleListSites(c *fiber.Ctx) error {
	sites, err := fetchSitesCached(c)
	if err != nil {
		log.Errorf("site list fetch failed: %v", err)
		return errorJSON(c, fiber.StatusBadGateway, "Failed to fetch site data")
	}

	now := time.Now()
	views := make([]siteView, 0, len(sites))
	for _, site := range sites {
		views = append(views, buildSiteView(site, now))
	}
	return c.JSON(fiber.Map{"data": views})
}

// HandleGetSite returns one site from the upstream list.
func HandleGetSite(c *fiber.Ctx) error {
	siteID := c.Params("siteId")

	sites, err := fetchSitesCached(c)
	if err != nil {
		log.Errorf("site list fetch failed: %v", err)
		return errorJSON(c, fiber.StatusBadGateway, "Failed to fetch site data")
	}

	for _, site := range sites {
		if site.ID == siteID {
			view := buildSiteView(site, time.Now())
			return c.JSON(fiber.Map{"data": view})
		}
	}
	return errorJSON(c, fiber.StatusNotFound, "Site not found")
}
