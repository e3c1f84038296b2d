package service

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Julianb233/acre-notebook-lm/internal/model"
)

// WebhookLogService persists the outbound delivery audit trail.
type WebhookLogService struct {
	db *gorm.DB
}

// NewWebhookLogService creates the webhook log service.
func NewWebhookLogService(db *gorm.DB) *WebhookLogService {
	return &WebhookLogService{db: db}
}

// Create appends one delivery outcome row.
func (s *WebhookLogService) Create(log *model.WebhookLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	return s.db.Create(log).Error
}

// List returns delivery logs filtered by event type and status, newest first.
func (s *WebhookLogService) List(eventType, status string, limit, offset int) ([]model.WebhookLog, int64, error) {
	query := s.db.Model(&model.WebhookLog{})

	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []model.WebhookLog
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	return logs, total, err
}
