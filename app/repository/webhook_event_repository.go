package repository

import (
	"github.com/ucanapp/melibroker/app/models"
	"gorm.io/gorm"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// Create persists a freshly received event
func (r *webhookEventRepository) Create(event *models.WebhookEvent) error {
	return r.db.Create(event).Error
}

// MarkProcessed stores the fetched payload and flips the event to processed.
// Any error from an earlier attempt is cleared; processed and error never
// coexist from the same attempt.
func (r *webhookEventRepository) MarkProcessed(id uint, payload string) error {
	updates := map[string]interface{}{
		"processed": true,
		"payload":   payload,
		"error":     "",
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// MarkFailed records the failure description and leaves the event unprocessed
func (r *webhookEventRepository) MarkFailed(id uint, processingError string) error {
	updates := map[string]interface{}{
		"processed": false,
		"error":     processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// ListByUserID returns a newest-first page of events for a user
func (r *webhookEventRepository) ListByUserID(userID string, limit, skip int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(skip).
		Find(&events).Error
	return events, err
}

// CountByUserID returns the total number of events stored for a user
func (r *webhookEventRepository) CountByUserID(userID string) (int64, error) {
	var total int64
	err := r.db.Model(&models.WebhookEvent{}).Where("user_id = ?", userID).Count(&total).Error
	return total, err
}
