package repository

import (
	"github.com/erpeaz/siteboard/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// snapshotRepository implements the SnapshotRepository interface
type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new snapshot repository instance
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// CreateIfAbsent relies on the unique site_id index: a concurrent insert of
// the same site becomes a no-op instead of an error, so overlapping ticks
// cannot double-report a new site.
func (r *snapshotRepository) CreateIfAbsent(snap *models.SiteSnapshot) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "site_id"}},
		DoNothing: true,
	}).Create(snap)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *snapshotRepository) GetBySiteID(siteID string) (*models.SiteSnapshot, error) {
	var snap models.SiteSnapshot
	err := r.db.Where("site_id = ?", siteID).First(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *snapshotRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.SiteSnapshot{}).Count(&count).Error
	return count, err
}
