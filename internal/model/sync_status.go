package model

import "time"

// SyncStatus is the last known sync outcome for one source.
// A single row per (partner_id, base_id) is overwritten on every run;
// per-run history is not retained.
type SyncStatus struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	PartnerID    string    `json:"partner_id" gorm:"size:64;uniqueIndex:idx_sync_status_source"`
	BaseID       string    `json:"base_id" gorm:"size:64;uniqueIndex:idx_sync_status_source"`
	Success      bool      `json:"success"`
	TotalRecords int       `json:"total_records"`
	TableCount   int       `json:"table_count"`
	FirstError   string    `json:"first_error" gorm:"type:text"`
	FinishedAt   time.Time `json:"finished_at"`
}

// TableName sets the table name.
func (SyncStatus) TableName() string {
	return "sync_status"
}
