package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventSiteCreated      = "site_created"
	EventTrialEnding      = "trial_ending"
	EventTrialEnded       = "trial_ended"
	EventBasicPlanEnding  = "basic_plan_ending"
	EventBasicPlanExpired = "basic_plan_expired"
	EventPlanExpired      = "plan_expired"
)

const (
	SeveritySuccess = "success"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// NotificationMeta holds free-form event context (dedup bucket, expiry date,
// days left, plan), stored as a JSON column.
type NotificationMeta map[string]interface{}

func (m NotificationMeta) Value() (driver.Value, error) {
	if m == nil {
		m = NotificationMeta{}
	}
	return json.Marshal(m)
}

func (m *NotificationMeta) Scan(value interface{}) error {
	if value == nil {
		*m = NotificationMeta{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported notification meta column type %T", value)
	}
	if len(raw) == 0 {
		*m = NotificationMeta{}
		return nil
	}
	return json.Unmarshal(raw, m)
}

type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	EventType string           `gorm:"type:varchar(50);not null;index" json:"event_type" validate:"oneof=site_created trial_ending trial_ended basic_plan_ending basic_plan_expired plan_expired"`
	SiteID    string           `gorm:"type:varchar(64);index" json:"site_id"`
	SiteName  string           `gorm:"type:varchar(200)" json:"site_name"`
	Severity  string           `gorm:"type:varchar(20);not null" json:"severity" validate:"oneof=success info warning error"`
	Title     string           `gorm:"type:varchar(200)" json:"title"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	Read      bool             `gorm:"default:false;index" json:"read"`
	Meta      NotificationMeta `gorm:"type:json" json:"meta"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}
