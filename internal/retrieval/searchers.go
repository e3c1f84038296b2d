package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"gorm.io/gorm"

	"github.com/Julianb233/acre-notebook-lm/internal/model"
)

// documentSearcher searches uploaded document chunks.
type documentSearcher struct {
	db *gorm.DB
}

func (s *documentSearcher) Name() string { return SourceDocument }

func (s *documentSearcher) Search(ctx context.Context, queryVector []float64, opts Options) ([]RankedChunk, error) {
	query := s.db.WithContext(ctx).
		Where("partner_id = ? AND embedding != ''", opts.PartnerID)

	// The source filter is a document id allow-list and applies to this corpus only.
	if len(opts.SourceFilter) > 0 {
		query = query.Where("document_id IN ?", opts.SourceFilter)
	}

	var chunks []model.DocumentChunk
	if err := query.Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("failed to load document chunks: %w", err)
	}

	var results []RankedChunk
	for i := range chunks {
		similarity, ok := scoreEmbedding(queryVector, chunks[i].Embedding, opts.SimilarityThreshold)
		if !ok {
			continue
		}

		results = append(results, RankedChunk{
			ChunkID:     "doc-" + strconv.FormatUint(uint64(chunks[i].ID), 10),
			SourceType:  SourceDocument,
			SourceID:    chunks[i].DocumentID,
			SourceName:  chunks[i].DocumentName,
			Content:     chunks[i].Content,
			Similarity:  similarity,
			ChunkIndex:  chunks[i].ChunkIndex,
			PageNumber:  chunks[i].PageNumber,
			LastUpdated: chunks[i].UpdatedAt,
			EditURL:     chunks[i].EditURL,
		})
	}

	return results, nil
}

// meetingSearcher searches meeting transcript chunks.
type meetingSearcher struct {
	db *gorm.DB
}

func (s *meetingSearcher) Name() string { return SourceMeeting }

func (s *meetingSearcher) Search(ctx context.Context, queryVector []float64, opts Options) ([]RankedChunk, error) {
	var chunks []model.MeetingChunk
	if err := s.db.WithContext(ctx).
		Where("partner_id = ? AND embedding != ''", opts.PartnerID).
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("failed to load meeting chunks: %w", err)
	}

	var results []RankedChunk
	for i := range chunks {
		similarity, ok := scoreEmbedding(queryVector, chunks[i].Embedding, opts.SimilarityThreshold)
		if !ok {
			continue
		}

		results = append(results, RankedChunk{
			ChunkID:     "meeting-" + strconv.FormatUint(uint64(chunks[i].ID), 10),
			SourceType:  SourceMeeting,
			SourceID:    chunks[i].MeetingID,
			SourceName:  chunks[i].MeetingTitle,
			Content:     chunks[i].Content,
			Similarity:  similarity,
			ChunkIndex:  chunks[i].ChunkIndex,
			Timestamp:   chunks[i].Timestamp,
			LastUpdated: chunks[i].UpdatedAt,
		})
	}

	return results, nil
}

// tabularSearcher searches records synced from the tabular source.
type tabularSearcher struct {
	db *gorm.DB
}

func (s *tabularSearcher) Name() string { return SourceTabular }

func (s *tabularSearcher) Search(ctx context.Context, queryVector []float64, opts Options) ([]RankedChunk, error) {
	var records []model.SyncedRecord
	if err := s.db.WithContext(ctx).
		Where("partner_id = ? AND embedding != ''", opts.PartnerID).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load synced records: %w", err)
	}

	var results []RankedChunk
	for i := range records {
		similarity, ok := scoreEmbedding(queryVector, records[i].Embedding, opts.SimilarityThreshold)
		if !ok {
			continue
		}

		results = append(results, RankedChunk{
			ChunkID:     "record-" + records[i].ExternalID,
			SourceType:  SourceTabular,
			SourceID:    records[i].ExternalID,
			SourceName:  records[i].SourceTableName,
			Content:     records[i].Content,
			Similarity:  similarity,
			FieldKey:    primaryFieldKey(records[i].Fields),
			LastUpdated: records[i].UpdatedAt,
		})
	}

	return results, nil
}

// scoreEmbedding parses a stored vector and scores it against the query.
// Results at or below the threshold are discarded.
func scoreEmbedding(queryVector []float64, stored string, threshold float64) (float64, bool) {
	var chunkVector []float64
	if err := json.Unmarshal([]byte(stored), &chunkVector); err != nil {
		logx.Warn("Failed to parse stored embedding: %v", err)
		return 0, false
	}

	similarity := cosineSimilarity(queryVector, chunkVector)
	if similarity <= threshold {
		return 0, false
	}

	return similarity, true
}

// primaryFieldKey returns the first field key in sorted order, used as the
// citation location for tabular records.
func primaryFieldKey(fieldsJSON string) string {
	var fields map[string]any
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil || len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys[0]
}
