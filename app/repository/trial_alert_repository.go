package repository

import (
	"github.com/erpeaz/siteboard/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// trialAlertRepository implements the TrialAlertRepository interface
type trialAlertRepository struct {
	db *gorm.DB
}

// NewTrialAlertRepository creates a new trial alert repository instance
func NewTrialAlertRepository(db *gorm.DB) TrialAlertRepository {
	return &trialAlertRepository{db: db}
}

func (r *trialAlertRepository) GetBySiteID(siteID string) (*models.TrialAlertState, error) {
	var state models.TrialAlertState
	err := r.db.Where("site_id = ?", siteID).First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *trialAlertRepository) Upsert(state *models.TrialAlertState) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "site_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"bucket",
			"trial_end_at",
			"updated_at",
		}),
	}).Create(state).Error
}
