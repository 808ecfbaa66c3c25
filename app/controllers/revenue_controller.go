package controllers

import (
	"strconv"
	"time"

	"github.com/erpeaz/siteboard/app/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// fiscalRange returns the Indian fiscal year window: Apr 1 of the start year
// to Apr 1 of the following year (exclusive).
func fiscalRange(startYear int) (time.Time, time.Time) {
	start := time.Date(startYear, time.April, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(startYear+1, time.April, 1, 0, 0, 0, 0, time.UTC)
	return start, end
}

// HandleRevenueSummary returns a site's received revenue: total, trailing 30
// days and the monthly series.
func HandleRevenueSummary(c *fiber.Ctx) error {
	siteID := c.Params("siteId")
	from := parseDateQuery(c, "from")
	to := parseDateQuery(c, "to")

	repo := repository.GetGlobalFactory().GetExpenseRepository()
	total, err := repo.RevenueTotal(siteID, from, to)
	if err != nil {
		log.Errorf("revenue total failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load revenue summary")
	}

	monthly, err := repo.RevenueMonthly(siteID, from, to)
	if err != nil {
		log.Errorf("revenue monthly failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load revenue summary")
	}

	since30 := time.Now().AddDate(0, 0, -30)
	if from != nil && from.After(since30) {
		since30 = *from
	}
	last30, err := repo.RevenueTotal(siteID, &since30, to)
	if err != nil {
		log.Errorf("revenue 30 day window failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load revenue summary")
	}

	return c.JSON(fiber.Map{
		"site_id":    siteID,
		"total":      total,
		"last30Days": last30,
		"monthly":    monthly,
	})
}

// HandleRevenueFYSummary returns a site's received revenue for one fiscal
// year (fyStart=2024 means FY 2024-25).
func HandleRevenueFYSummary(c *fiber.Ctx) error {
	siteID := c.Params("siteId")
	fyStart, err := strconv.Atoi(c.Query("fyStart"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "fyStart query param required (e.g. 2024)")
	}
	start, endEx := fiscalRange(fyStart)
	// Revenue range queries are inclusive; step just inside the window end.
	endIncl := endEx.Add(-time.Second)

	repo := repository.GetGlobalFactory().GetExpenseRepository()
	total, err := repo.RevenueTotal(siteID, &start, &endIncl)
	if err != nil {
		log.Errorf("fy revenue total failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load fiscal revenue summary")
	}
	monthly, err := repo.RevenueMonthly(siteID, &start, &endIncl)
	if err != nil {
		log.Errorf("fy revenue monthly failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load fiscal revenue summary")
	}

	return c.JSON(fiber.Map{
		"site_id":     siteID,
		"fyStartYear": fyStart,
		"range": fiber.Map{
			"start":        start.Format(time.RFC3339),
			"endExclusive": endEx.Format(time.RFC3339),
		},
		"total":   total,
		"monthly": monthly,
	})
}

// HandleRevenueTransactions pages through a site's received payments.
func HandleRevenueTransactions(c *fiber.Ctx) error {
	siteID := c.Params("siteId")
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	skip, _ := strconv.Atoi(c.Query("skip", "0"))
	from := parseDateQuery(c, "from")
	to := parseDateQuery(c, "to")

	items, total, err := repository.GetGlobalFactory().GetExpenseRepository().
		RevenueTransactions(siteID, from, to, limit, skip)
	if err != nil {
		log.Errorf("revenue transactions failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load revenue transactions")
	}

	return c.JSON(fiber.Map{
		"site_id": siteID,
		"total":   total,
		"count":   len(items),
		"items":   items,
	})
}

// HandleRevenueFYOverview aggregates received revenue across all sites for
// one fiscal year.
func HandleRevenueFYOverview(c *fiber.Ctx) error {
	fyStart, err := strconv.Atoi(c.Query("fyStart"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "fyStart query param required (e.g. 2024)")
	}
	start, endEx := fiscalRange(fyStart)

	grand, sites, monthly, err := repository.GetGlobalFactory().GetExpenseRepository().
		FiscalOverview(start, endEx)
	if err != nil {
		log.Errorf("fy overview failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load fiscal overview")
	}

	return c.JSON(fiber.Map{
		"fyStartYear": fyStart,
		"range": fiber.Map{
			"start":        start.Format(time.RFC3339),
			"endExclusive": endEx.Format(time.RFC3339),
		},
		"grandTotal": grand,
		"sites":      sites,
		"monthly":    monthly,
	})
}
