package models

import "time"

// SiteSnapshot records the first-observed payload of an external site. It is
// never updated after creation and exists purely so the reconcile job can tell
// new sites from ones it has already seen.
type SiteSnapshot struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SiteID    string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"site_id"`
	Snapshot  string    `gorm:"type:json" json:"snapshot"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
