package model

import "time"

// DocumentChunk is one retrievable slice of an uploaded document.
type DocumentChunk struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	PartnerID      string    `json:"partner_id" gorm:"size:64;index"`
	DocumentID     string    `json:"document_id" gorm:"size:64;index"`
	DocumentName   string    `json:"document_name" gorm:"size:255"`
	ChunkIndex     int       `json:"chunk_index"`
	PageNumber     int       `json:"page_number"` // 0 when the extractor gave no page info
	Content        string    `json:"content" gorm:"type:text"`
	Embedding      string    `json:"embedding" gorm:"type:text"` // JSON-encoded vector
	EmbeddingModel string    `json:"embedding_model" gorm:"size:64"`
	EditURL        string    `json:"edit_url" gorm:"size:512"`
}

// TableName sets the table name.
func (DocumentChunk) TableName() string {
	return "document_chunks"
}
