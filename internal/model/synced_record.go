package model

import "time"

// SyncedRecord is a row pulled from the external tabular source.
// The natural key (external_id, base_id, table_id) is unique, so re-syncing
// the same external record updates in place instead of duplicating.
type SyncedRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	PartnerID       string    `json:"partner_id" gorm:"size:64;index"`
	ExternalID      string    `json:"external_id" gorm:"size:64;uniqueIndex:idx_synced_records_natural_key"`
	BaseID          string    `json:"base_id" gorm:"size:64;uniqueIndex:idx_synced_records_natural_key"`
	TableID         string    `json:"table_id" gorm:"size:64;uniqueIndex:idx_synced_records_natural_key"`
	SourceTableName string    `json:"table_name" gorm:"column:table_name;size:128;index"`
	Fields          string    `json:"fields" gorm:"type:json"`    // raw field map from the source
	Content         string    `json:"content" gorm:"type:text"`   // flattened "key: value" lines used for embedding and excerpting
	Embedding       string    `json:"embedding" gorm:"type:text"`
	EmbeddingModel  string    `json:"embedding_model" gorm:"size:64"`
	CreatedAtSource time.Time `json:"created_at_source"`
	SyncedAt        time.Time `json:"synced_at"`
}

// TableName sets the table name.
func (SyncedRecord) TableName() string {
	return "synced_records"
}
