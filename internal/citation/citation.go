// Package citation turns ranked retrieval chunks into user-facing provenance
// records. Citations are derived per query and never persisted.
package citation

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Julianb233/acre-notebook-lm/internal/retrieval"
)

// excerptLen is how much chunk content a citation shows.
const excerptLen = 200

// Relevance bands. Non-binding UI hints, kept available to non-UI callers.
const (
	LabelHighMatch    = "high match"    // similarity >= 0.9
	LabelGoodMatch    = "good match"    // similarity >= 0.8
	LabelRelevant     = "relevant"      // similarity >= 0.7
	LabelPartialMatch = "partial match" // below 0.7
)

// Confidence levels.
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// SourceCitation points an answer back at the chunk that grounded it.
type SourceCitation struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	SourceName     string    `json:"source_name"`
	SourceID       string    `json:"source_id"`
	Location       string    `json:"location"`
	Excerpt        string    `json:"excerpt"`
	RelevanceScore float64   `json:"relevance_score"`
	RelevanceLabel string    `json:"relevance_label"`
	LastUpdated    time.Time `json:"last_updated"`
	EditURL        string    `json:"edit_url,omitempty"`
}

// ConfidenceScore summarizes how well one answer is grounded.
type ConfidenceScore struct {
	Level             string  `json:"level"`
	Score             float64 `json:"score"`
	SupportingSources int     `json:"supporting_sources"`
	Explanation       string  `json:"explanation"`
}

// BuildCitations maps each included chunk to a citation.
func BuildCitations(chunks []retrieval.RankedChunk) []SourceCitation {
	citations := make([]SourceCitation, 0, len(chunks))

	for _, chunk := range chunks {
		citations = append(citations, SourceCitation{
			ID:             chunk.ChunkID,
			Type:           chunk.SourceType,
			SourceName:     chunk.SourceName,
			SourceID:       chunk.SourceID,
			Location:       location(chunk),
			Excerpt:        excerpt(chunk.Content),
			RelevanceScore: chunk.Similarity,
			RelevanceLabel: RelevanceLabel(chunk.Similarity),
			LastUpdated:    chunk.LastUpdated,
			EditURL:        chunk.EditURL,
		})
	}

	return citations
}

// BuildConfidence derives the confidence score from one answer's citations.
// The explanation is deterministic: the same citation set always produces the
// same string.
func BuildConfidence(citations []SourceCitation) ConfidenceScore {
	var maxScore float64
	for _, c := range citations {
		if c.RelevanceScore > maxScore {
			maxScore = c.RelevanceScore
		}
	}

	level := LevelLow
	switch {
	case len(citations) >= 2 && maxScore >= 0.85:
		level = LevelHigh
	case maxScore >= 0.7:
		level = LevelMedium
	}

	return ConfidenceScore{
		Level:             level,
		Score:             maxScore,
		SupportingSources: len(citations),
		Explanation:       explain(citations),
	}
}

// RelevanceLabel maps a similarity to its band.
func RelevanceLabel(similarity float64) string {
	switch {
	case similarity >= 0.9:
		return LabelHighMatch
	case similarity >= 0.8:
		return LabelGoodMatch
	case similarity >= 0.7:
		return LabelRelevant
	default:
		return LabelPartialMatch
	}
}

// location renders where inside the source the chunk came from.
func location(chunk retrieval.RankedChunk) string {
	switch chunk.SourceType {
	case retrieval.SourceDocument:
		if chunk.PageNumber > 0 {
			return fmt.Sprintf("page %d", chunk.PageNumber)
		}
	case retrieval.SourceMeeting:
		if chunk.Timestamp != "" {
			return chunk.Timestamp
		}
	case retrieval.SourceTabular:
		if chunk.FieldKey != "" {
			return "field: " + chunk.FieldKey
		}
	}
	return fmt.Sprintf("chunk %d", chunk.ChunkIndex)
}

// excerpt returns up to excerptLen bytes of content, cut on a rune boundary.
func excerpt(content string) string {
	if len(content) <= excerptLen {
		return content
	}
	cut := excerptLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

// explain names the number and type mix of supporting sources.
func explain(citations []SourceCitation) string {
	if len(citations) == 0 {
		return "no supporting sources found"
	}

	counts := make(map[string]int)
	for _, c := range citations {
		counts[c.Type]++
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%d %s", counts[t], t))
	}

	return fmt.Sprintf("%d supporting source(s): %s", len(citations), strings.Join(parts, ", "))
}
