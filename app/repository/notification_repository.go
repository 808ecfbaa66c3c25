package repository

import (
	"fmt"

	"github.com/erpeaz/siteboard/app/models"
	"gorm.io/gorm"
)

// notificationRepository implements the NotificationRepository interface
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository instance
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

func (r *notificationRepository) List(unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := r.db.Order("created_at DESC").Limit(limit)
	if unreadOnly {
		q = q.Where("`read` = ?", false)
	}
	var items []models.Notification
	err := q.Find(&items).Error
	return items, err
}

func (r *notificationRepository) MarkRead(id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.First(&n, id).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&n).Update("read", true).Error; err != nil {
		return nil, err
	}
	n.Read = true
	return &n, nil
}

func (r *notificationRepository) MarkAllRead() error {
	return r.db.Model(&models.Notification{}).Where("`read` = ?", false).Update("read", true).Error
}

// ExistsWithMeta matches meta keys via JSON_EXTRACT so the dedup key of the
// reconcile job (site, event type, expiry date, bucket/plan) stays queryable
// without extra columns.
func (r *notificationRepository) ExistsWithMeta(siteID, eventType string, meta map[string]string) (bool, error) {
	q := r.db.Model(&models.Notification{}).
		Where("site_id = ? AND event_type = ?", siteID, eventType)
	for key, val := range meta {
		q = q.Where(fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(meta, '$.%s')) = ?", key), val)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}
