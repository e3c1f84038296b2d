package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Julianb233/acre-notebook-lm/internal/service"
	"github.com/Julianb233/acre-notebook-lm/internal/sync"
)

// SyncHandler exposes tabular source sync operations.
type SyncHandler struct {
	engine        *sync.Engine
	status        *service.SyncStatusService
	defaultBaseID string
}

// NewSyncHandler creates the sync handler.
func NewSyncHandler(engine *sync.Engine, status *service.SyncStatusService, defaultBaseID string) *SyncHandler {
	return &SyncHandler{
		engine:        engine,
		status:        status,
		defaultBaseID: defaultBaseID,
	}
}

// RegisterRoutes registers routes.
func (h *SyncHandler) RegisterRoutes(r *gin.RouterGroup) {
	sg := r.Group("/sync")
	{
		sg.POST("/airtable", h.RunSync)
		sg.GET("/status", h.GetStatus)
		sg.POST("/airtable/reembed", h.Reembed)
		sg.POST("/airtable/push", h.Push)
		sg.DELETE("/airtable/records", h.DeleteRecords)
	}
}

// syncRequest starts one sync run.
type syncRequest struct {
	PartnerID string   `json:"partner_id" binding:"required"`
	BaseID    string   `json:"base_id"`
	Tables    []string `json:"tables"`
}

// RunSync pulls the tabular source into the local store and returns the
// structured per-table summary, so operators can see exactly which tables and
// records need attention.
func (h *SyncHandler) RunSync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "error": err.Error()})
		return
	}

	baseID := req.BaseID
	if baseID == "" {
		baseID = h.defaultBaseID
	}

	result, err := h.engine.SyncBase(c.Request.Context(), req.PartnerID, baseID, req.Tables...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": result,
	})
}

// GetStatus returns the last known sync outcome for one source.
func (h *SyncHandler) GetStatus(c *gin.Context) {
	partnerID := c.Query("partner_id")
	baseID := c.Query("base_id")
	if baseID == "" {
		baseID = h.defaultBaseID
	}

	status, err := h.status.Get(partnerID, baseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "error": err.Error()})
		return
	}
	if status == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "error": "no sync has run for this source"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": status,
	})
}

// reembedRequest regenerates embeddings for one table.
type reembedRequest struct {
	PartnerID string `json:"partner_id" binding:"required"`
	BaseID    string `json:"base_id"`
	Table     string `json:"table" binding:"required"`
}

// Reembed regenerates embeddings for one table's synced records.
func (h *SyncHandler) Reembed(c *gin.Context) {
	var req reembedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "error": err.Error()})
		return
	}

	baseID := req.BaseID
	if baseID == "" {
		baseID = h.defaultBaseID
	}

	result, err := h.engine.ReembedTable(c.Request.Context(), req.PartnerID, baseID, req.Table)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": result,
	})
}

// Push creates or updates one record in the external source.
func (h *SyncHandler) Push(c *gin.Context) {
	var req sync.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "error": err.Error()})
		return
	}

	if req.BaseID == "" {
		req.BaseID = h.defaultBaseID
	}

	result := h.engine.PushRecord(c.Request.Context(), &req)

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": result,
	})
}

// DeleteRecords removes all synced records of one table.
func (h *SyncHandler) DeleteRecords(c *gin.Context) {
	partnerID := c.Query("partner_id")
	baseID := c.Query("base_id")
	table := c.Query("table")
	if baseID == "" {
		baseID = h.defaultBaseID
	}
	if partnerID == "" || table == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "error": "partner_id and table are required"})
		return
	}

	deleted, err := h.engine.DeleteTableRecords(c.Request.Context(), partnerID, baseID, table)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": gin.H{"deleted": deleted},
	})
}
