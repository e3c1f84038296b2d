package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Julianb233/acre-notebook-lm/internal/model"
	"github.com/Julianb233/acre-notebook-lm/internal/service"
	"github.com/Julianb233/acre-notebook-lm/internal/webhook"
)

// WebhookHandler exposes manual event dispatch and the delivery audit trail.
type WebhookHandler struct {
	dispatcher *webhook.Dispatcher
	logs       *service.WebhookLogService
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(dispatcher *webhook.Dispatcher, logs *service.WebhookLogService) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		logs:       logs,
	}
}

// RegisterRoutes registers routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	wg := r.Group("/webhooks")
	{
		wg.POST("/trigger", h.Trigger)
		wg.GET("/logs", h.ListLogs)
	}
}

// triggerRequest dispatches one event; data is decoded per event type.
type triggerRequest struct {
	Type      string          `json:"type" binding:"required"`
	PartnerID string          `json:"partner_id" binding:"required"`
	Data      json.RawMessage `json:"data"`
}

// Trigger dispatches one event to the automation endpoint.
func (h *WebhookHandler) Trigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "error": err.Error()})
		return
	}

	data, err := decodeEventData(webhook.EventType(req.Type), req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "error": err.Error()})
		return
	}

	result := h.dispatcher.Trigger(c.Request.Context(), &webhook.Event{
		Type:      webhook.EventType(req.Type),
		PartnerID: req.PartnerID,
		Data:      data,
	})

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": result,
	})
}

// ListLogs returns the delivery audit trail, newest first.
func (h *WebhookHandler) ListLogs(c *gin.Context) {
	eventType := c.Query("event_type")
	status := c.Query("status")
	pageNum, _ := strconv.Atoi(c.DefaultQuery("page_num", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	logs, total, err := h.logs.List(eventType, status, pageSize, (pageNum-1)*pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "error": err.Error()})
		return
	}

	totalPage := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPage++
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": model.ListResponse{
			Items: logs,
			PageInfo: &model.PageInfo{
				PageNum:   pageNum,
				PageSize:  pageSize,
				Total:     int(total),
				TotalPage: totalPage,
			},
		},
	})
}

// decodeEventData parses the loose data bag into the typed variant for the
// event type, keeping the wire contract stable while the payloads stay typed.
func decodeEventData(eventType webhook.EventType, raw json.RawMessage) (webhook.EventData, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var (
		data webhook.EventData
		err  error
	)

	switch eventType {
	case webhook.EventNewDocument:
		var d webhook.NewDocumentData
		err = json.Unmarshal(raw, &d)
		data = d
	case webhook.EventChatQuery:
		var d webhook.ChatQueryData
		err = json.Unmarshal(raw, &d)
		data = d
	case webhook.EventContentGenerated:
		var d webhook.ContentGeneratedData
		err = json.Unmarshal(raw, &d)
		data = d
	case webhook.EventMeetingSynced:
		var d webhook.MeetingSyncedData
		err = json.Unmarshal(raw, &d)
		data = d
	case webhook.EventAirtableUpdated:
		var d webhook.AirtableUpdatedData
		err = json.Unmarshal(raw, &d)
		data = d
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	if err != nil {
		return nil, fmt.Errorf("invalid event data: %w", err)
	}
	return data, nil
}
