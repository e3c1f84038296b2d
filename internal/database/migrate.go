package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Julianb233/acre-notebook-lm/internal/model"
)

// AutoMigrate migrates all table schemas.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.DocumentChunk{},
		&model.MeetingChunk{},
		&model.SyncedRecord{},
		&model.SyncStatus{},
		&model.WebhookLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	return nil
}
