package service

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Julianb233/acre-notebook-lm/internal/model"
)

// SyncStatusService persists the last known sync outcome per source.
type SyncStatusService struct {
	db *gorm.DB
}

// NewSyncStatusService creates the sync status service.
func NewSyncStatusService(db *gorm.DB) *SyncStatusService {
	return &SyncStatusService{db: db}
}

// Upsert overwrites the status row for one (partner, base) source.
// Only the latest snapshot is kept; per-run history is not retained.
func (s *SyncStatusService) Upsert(status *model.SyncStatus) error {
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "partner_id"}, {Name: "base_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"success", "total_records", "table_count", "first_error", "finished_at", "updated_at",
		}),
	}).Create(status).Error
}

// Get returns the last sync status for one source, or nil when none exists.
func (s *SyncStatusService) Get(partnerID, baseID string) (*model.SyncStatus, error) {
	var status model.SyncStatus
	err := s.db.Where("partner_id = ? AND base_id = ?", partnerID, baseID).First(&status).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}
