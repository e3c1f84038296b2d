package server

import (
	"net/http"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/gin-gonic/gin"

	"github.com/Julianb233/acre-notebook-lm/internal/citation"
	"github.com/Julianb233/acre-notebook-lm/internal/retrieval"
)

// SearchHandler exposes cross-source retrieval with citations.
type SearchHandler struct {
	engine           *retrieval.Engine
	defaultThreshold float64
}

// NewSearchHandler creates the search handler. engine may be nil when the
// embedding provider is disabled; searches then degrade to no grounding.
func NewSearchHandler(engine *retrieval.Engine, defaultThreshold float64) *SearchHandler {
	return &SearchHandler{
		engine:           engine,
		defaultThreshold: defaultThreshold,
	}
}

// RegisterRoutes registers routes.
func (h *SearchHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/search", h.Search)
}

// searchRequest is one retrieval request.
type searchRequest struct {
	Query               string   `json:"query" binding:"required"`
	PartnerID           string   `json:"partner_id" binding:"required"`
	TopK                int      `json:"top_k"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	SourceFilter        []string `json:"source_filter"`
	MaxContextTokens    int      `json:"max_context_tokens"`
}

// searchResponse carries the assembled context with its provenance.
type searchResponse struct {
	Context    string                    `json:"context"`
	Citations  []citation.SourceCitation `json:"citations"`
	Confidence citation.ConfidenceScore  `json:"confidence"`
	Grounded   bool                      `json:"grounded"`
}

// Search runs one retrieval. A retrieval failure degrades to an ungrounded
// response instead of failing the request, so the chat flow keeps working.
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "error": err.Error()})
		return
	}

	threshold := h.defaultThreshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}

	if h.engine == nil {
		c.JSON(http.StatusOK, gin.H{"code": 200, "data": ungrounded()})
		return
	}

	result, err := h.engine.Retrieve(c.Request.Context(), req.Query, retrieval.Options{
		TopK:                req.TopK,
		SimilarityThreshold: threshold,
		SourceFilter:        req.SourceFilter,
		PartnerID:           req.PartnerID,
		MaxContextTokens:    req.MaxContextTokens,
	})
	if err != nil {
		logx.Warn("Retrieval failed, answering without grounding: %v", err)
		c.JSON(http.StatusOK, gin.H{"code": 200, "data": ungrounded()})
		return
	}

	citations := citation.BuildCitations(result.Chunks)

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": searchResponse{
			Context:    result.Context,
			Citations:  citations,
			Confidence: citation.BuildConfidence(citations),
			Grounded:   len(citations) > 0,
		},
	})
}

// ungrounded is the degraded "no grounding found" response.
func ungrounded() searchResponse {
	return searchResponse{
		Citations:  []citation.SourceCitation{},
		Confidence: citation.BuildConfidence(nil),
		Grounded:   false,
	}
}
