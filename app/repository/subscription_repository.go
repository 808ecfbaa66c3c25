package repository

import (
	"github.com/erpeaz/siteboard/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(sub *models.SiteSubscription) error {
	return r.db.Create(sub).Error
}

func (r *subscriptionRepository) GetBySiteID(siteID string) (*models.SiteSubscription, error) {
	var sub models.SiteSubscription
	err := r.db.Where("site_id = ?", siteID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) ExistsBySiteID(siteID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.SiteSubscription{}).Where("site_id = ?", siteID).Count(&count).Error
	return count > 0, err
}

func (r *subscriptionRepository) Update(sub *models.SiteSubscription) error {
	return r.db.Save(sub).Error
}
