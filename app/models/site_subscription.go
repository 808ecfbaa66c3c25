package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	RenewalEventRenew      = "RENEW"
	RenewalEventPlanChange = "PLAN_CHANGE"
)

// RenewalEvent is one append-only entry in a subscription's renewal history.
type RenewalEvent struct {
	Type        string    `json:"type"`
	Months      int       `json:"months"`
	OldExpiryAt time.Time `json:"old_expiry_at"`
	NewExpiryAt time.Time `json:"new_expiry_at"`
	Actor       string    `json:"actor"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RenewalHistory is stored as a JSON column.
type RenewalHistory []RenewalEvent

func (h RenewalHistory) Value() (driver.Value, error) {
	if h == nil {
		h = RenewalHistory{}
	}
	return json.Marshal(h)
}

func (h *RenewalHistory) Scan(value interface{}) error {
	if value == nil {
		*h = RenewalHistory{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported renewal history column type %T", value)
	}
	if len(raw) == 0 {
		*h = RenewalHistory{}
		return nil
	}
	return json.Unmarshal(raw, h)
}

// SiteSubscription is the persisted subscription state for one external site.
// trial_end_at is always start_at + 14 days; expiry_at never precedes it.
type SiteSubscription struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	SiteID         string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"site_id"`
	PlanKey        string         `gorm:"type:varchar(32);not null" json:"plan_key" validate:"oneof=basic professional premium ultimate enterprise"`
	StartAt        time.Time      `gorm:"not null" json:"start_at"`
	TrialEndAt     time.Time      `gorm:"not null" json:"trial_end_at"`
	ExpiryAt       time.Time      `gorm:"not null;index" json:"expiry_at"`
	RenewedAt      *time.Time     `gorm:"type:timestamp;default:null" json:"renewed_at,omitempty"`
	RenewalHistory RenewalHistory `gorm:"type:json" json:"renewal_history"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
