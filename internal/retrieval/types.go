package retrieval

import "time"

// Source types for the three corpora.
const (
	SourceDocument = "document"
	SourceMeeting  = "meeting"
	SourceTabular  = "tabular"
)

// RankedChunk is one retrieval candidate with its similarity to the query.
// Similarity is directly comparable across corpora because every chunk is
// embedded with the same model.
type RankedChunk struct {
	ChunkID     string    `json:"chunk_id"`
	SourceType  string    `json:"source_type"`
	SourceID    string    `json:"source_id"`
	SourceName  string    `json:"source_name"`
	Content     string    `json:"content"`
	Similarity  float64   `json:"similarity"`
	ChunkIndex  int       `json:"chunk_index"`
	PageNumber  int       `json:"page_number,omitempty"` // documents
	Timestamp   string    `json:"timestamp,omitempty"`   // meetings
	FieldKey    string    `json:"field_key,omitempty"`   // tabular records
	LastUpdated time.Time `json:"last_updated"`
	EditURL     string    `json:"edit_url,omitempty"`
}

// Options controls one retrieval.
type Options struct {
	TopK                int      // default 5
	SimilarityThreshold float64  // chunks at or below are discarded
	SourceFilter        []string // document id allow-list, document corpus only
	PartnerID           string   // tenant scope, required
	MaxContextTokens    int      // default 4000, counted as content length / 4
}

// Result is the assembled outcome of one retrieval. Chunks holds exactly the
// candidates included in Context, so citations stay consistent with what the
// model actually saw.
type Result struct {
	Chunks  []RankedChunk `json:"chunks"`
	Context string        `json:"context"`
}
