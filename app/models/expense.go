package models

import "time"

const (
	// ExpenseKindReceived keeps the original dashboard's wire spelling so
	// existing clients keep working.
	ExpenseKindReceived = "recieved"
	ExpenseKindPlanned  = "planned"
	ExpenseKindDue      = "due"
)

type Expense struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SiteID    string    `gorm:"type:varchar(64);not null;index" json:"site_id"`
	Amount    float64   `gorm:"not null" json:"amount" validate:"gte=0"`
	Kind      string    `gorm:"type:varchar(20);not null;index" json:"kind" validate:"oneof=recieved planned due"`
	Note      string    `gorm:"type:varchar(500)" json:"note"`
	Date      time.Time `gorm:"not null;index" json:"date"`
	CreatedBy uint      `gorm:"index" json:"created_by,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
