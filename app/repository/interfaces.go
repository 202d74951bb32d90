package repository

import (
	"github.com/ucanapp/melibroker/app/models"
	"gorm.io/gorm"
)

// TokenRepository defines the persistence contract for OAuth token records.
// Upsert is atomic per user_id: concurrent writes for the same user serialize
// on the unique index, the stored row always reflects exactly one write.
type TokenRepository interface {
	Upsert(token *models.UserToken) error
	GetByUserID(userID string) (*models.UserToken, error)
}

// WebhookEventRepository defines the persistence contract for notification
// deliveries. Events are append-only in identity; only the processing fields
// (processed/payload/error) mutate after creation.
type WebhookEventRepository interface {
	Create(event *models.WebhookEvent) error
	MarkProcessed(id uint, payload string) error
	MarkFailed(id uint, processingError string) error
	ListByUserID(userID string, limit, skip int) ([]models.WebhookEvent, error)
	CountByUserID(userID string) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Token        TokenRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Token:        NewTokenRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
