package models

import "time"

const (
	TrialBucketEnding = "ending"
	TrialBucketEnded  = "ended"
)

// TrialAlertState remembers the last trial bucket a site was notified about,
// so trial alerts fire once per transition instead of on every tick. The
// trial end date is part of the key: if the trial window moves, alerts for
// the new window fire again.
type TrialAlertState struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SiteID     string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"site_id"`
	Bucket     string    `gorm:"type:varchar(20);not null" json:"bucket"`
	TrialEndAt time.Time `gorm:"not null" json:"trial_end_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
