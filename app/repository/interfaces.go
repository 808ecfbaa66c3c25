package repository

import (
	"time"

	"github.com/erpeaz/siteboard/app/models"
)

// UserRepository defines the interface for admin user database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	UpdateLastLogin(id uint, at time.Time) error
}

// SubscriptionRepository defines the interface for site subscription operations
type SubscriptionRepository interface {
	Create(sub *models.SiteSubscription) error
	GetBySiteID(siteID string) (*models.SiteSubscription, error)
	ExistsBySiteID(siteID string) (bool, error)
	Update(sub *models.SiteSubscription) error
}

// SnapshotRepository defines the interface for seen-site snapshot operations
type SnapshotRepository interface {
	// CreateIfAbsent inserts the snapshot unless one already exists for the
	// site. Returns true when a new row was created.
	CreateIfAbsent(snap *models.SiteSnapshot) (bool, error)
	GetBySiteID(siteID string) (*models.SiteSnapshot, error)
	Count() (int64, error)
}

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	Create(n *models.Notification) error
	List(unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(id uint) (*models.Notification, error)
	MarkAllRead() error
	// ExistsWithMeta reports whether a notification with the given site,
	// event type and exact meta key/values has already been emitted. This is
	// the query half of the job's query-then-insert dedup pattern.
	ExistsWithMeta(siteID, eventType string, meta map[string]string) (bool, error)
}

// TrialAlertRepository tracks the last notified trial bucket per site
type TrialAlertRepository interface {
	GetBySiteID(siteID string) (*models.TrialAlertState, error)
	Upsert(state *models.TrialAlertState) error
}

// MonthlyTotal is one month's received revenue.
type MonthlyTotal struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Total float64 `json:"total"`
}

// SiteTotal is one site's received revenue over a range.
type SiteTotal struct {
	SiteID   string  `json:"site_id"`
	SiteName string  `json:"site_name"`
	Total    float64 `json:"total"`
}

// KindSummary aggregates expenses of a single kind.
type KindSummary struct {
	Total float64 `json:"total"`
	Count int64   `json:"count"`
}

// ExpenseRepository defines the interface for expense and revenue operations
type ExpenseRepository interface {
	Create(e *models.Expense) error
	GetByID(id uint) (*models.Expense, error)
	Update(e *models.Expense) error
	Delete(id uint) error
	ListBySite(siteID string) ([]models.Expense, error)
	SummaryBySite(siteID string) (map[string]KindSummary, error)
	// Revenue helpers operate on received expenses only.
	RevenueTotal(siteID string, from, to *time.Time) (float64, error)
	RevenueMonthly(siteID string, from, to *time.Time) ([]MonthlyTotal, error)
	RevenueTransactions(siteID string, from, to *time.Time, limit, offset int) ([]models.Expense, float64, error)
	FiscalOverview(from, toExclusive time.Time) (float64, []SiteTotal, []MonthlyTotal, error)
}
