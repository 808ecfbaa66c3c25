package repository

import (
	"time"

	"github.com/erpeaz/siteboard/app/models"
	"gorm.io/gorm"
)

// expenseRepository implements the ExpenseRepository interface
type expenseRepository struct {
	db *gorm.DB
}

// NewExpenseRepository creates a new expense repository instance
func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) Create(e *models.Expense) error {
	return r.db.Create(e).Error
}

func (r *expenseRepository) GetByID(id uint) (*models.Expense, error) {
	var e models.Expense
	err := r.db.First(&e, id).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *expenseRepository) Update(e *models.Expense) error {
	return r.db.Save(e).Error
}

func (r *expenseRepository) Delete(id uint) error {
	res := r.db.Delete(&models.Expense{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *expenseRepository) ListBySite(siteID string) ([]models.Expense, error) {
	var items []models.Expense
	err := r.db.Where("site_id = ?", siteID).
		Order("date DESC, created_at DESC").Find(&items).Error
	return items, err
}

func (r *expenseRepository) SummaryBySite(siteID string) (map[string]KindSummary, error) {
	type row struct {
		Kind  string
		Total float64
		Count int64
	}
	var rows []row
	err := r.db.Model(&models.Expense{}).
		Select("kind, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("site_id = ?", siteID).
		Group("kind").Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summary := map[string]KindSummary{
		models.ExpenseKindReceived: {},
		models.ExpenseKindPlanned:  {},
		models.ExpenseKindDue:      {},
	}
	for _, r := range rows {
		summary[r.Kind] = KindSummary{Total: r.Total, Count: r.Count}
	}
	return summary, nil
}

// revenueQuery scopes to received expenses for one site within an optional
// inclusive date range.
func (r *expenseRepository) revenueQuery(siteID string, from, to *time.Time) *gorm.DB {
	q := r.db.Model(&models.Expense{}).
		Where("site_id = ? AND kind = ?", siteID, models.ExpenseKindReceived)
	if from != nil {
		q = q.Where("date >= ?", *from)
	}
	if to != nil {
		q = q.Where("date <= ?", *to)
	}
	return q
}

func (r *expenseRepository) RevenueTotal(siteID string, from, to *time.Time) (float64, error) {
	var total float64
	err := r.revenueQuery(siteID, from, to).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
	return total, err
}

func (r *expenseRepository) RevenueMonthly(siteID string, from, to *time.Time) ([]MonthlyTotal, error) {
	var rows []MonthlyTotal
	err := r.revenueQuery(siteID, from, to).
		Select("YEAR(date) AS year, MONTH(date) AS month, COALESCE(SUM(amount), 0) AS total").
		Group("YEAR(date), MONTH(date)").
		Order("year, month").Scan(&rows).Error
	return rows, err
}

func (r *expenseRepository) RevenueTransactions(siteID string, from, to *time.Time, limit, offset int) ([]models.Expense, float64, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var items []models.Expense
	err := r.revenueQuery(siteID, from, to).
		Order("date DESC").Offset(offset).Limit(limit).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	total, err := r.RevenueTotal(siteID, from, to)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// FiscalOverview aggregates received revenue across all sites for a fiscal
// window, joining seen-site snapshots for display names.
func (r *expenseRepository) FiscalOverview(from, toExclusive time.Time) (float64, []SiteTotal, []MonthlyTotal, error) {
	base := r.db.Model(&models.Expense{}).
		Where("kind = ? AND date >= ? AND date < ?", models.ExpenseKindReceived, from, toExclusive)

	var grand float64
	if err := base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(amount), 0)").Scan(&grand).Error; err != nil {
		return 0, nil, nil, err
	}

	var sites []SiteTotal
	err := r.db.Model(&models.Expense{}).
		Select("expenses.site_id AS site_id, COALESCE(JSON_UNQUOTE(JSON_EXTRACT(site_snapshots.snapshot, '$.name')), '') AS site_name, COALESCE(SUM(expenses.amount), 0) AS total").
		Joins("LEFT JOIN site_snapshots ON site_snapshots.site_id = expenses.site_id").
		Where("expenses.kind = ? AND expenses.date >= ? AND expenses.date < ?", models.ExpenseKindReceived, from, toExclusive).
		Group("expenses.site_id, site_snapshots.snapshot").
		Order("total DESC").Scan(&sites).Error
	if err != nil {
		return 0, nil, nil, err
	}

	var monthly []MonthlyTotal
	err = r.db.Model(&models.Expense{}).
		Select("YEAR(date) AS year, MONTH(date) AS month, COALESCE(SUM(amount), 0) AS total").
		Where("kind = ? AND date >= ? AND date < ?", models.ExpenseKindReceived, from, toExclusive).
		Group("YEAR(date), MONTH(date)").
		Order("year, month").Scan(&monthly).Error
	if err != nil {
		return 0, nil, nil, err
	}

	return grand, sites, monthly, nil
}
