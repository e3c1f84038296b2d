package model

import "time"

// MeetingChunk is one retrievable slice of a synced meeting transcript.
type MeetingChunk struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	PartnerID      string    `json:"partner_id" gorm:"size:64;index"`
	MeetingID      string    `json:"meeting_id" gorm:"size:64;index"`
	MeetingTitle   string    `json:"meeting_title" gorm:"size:255"`
	ChunkIndex     int       `json:"chunk_index"`
	Timestamp      string    `json:"timestamp" gorm:"size:20"` // position in the recording, e.g. "00:14:32"
	Content        string    `json:"content" gorm:"type:text"`
	Embedding      string    `json:"embedding" gorm:"type:text"`
	EmbeddingModel string    `json:"embedding_model" gorm:"size:64"`
}

// TableName sets the table name.
func (MeetingChunk) TableName() string {
	return "meeting_chunks"
}
