package repository

import (
	"github.com/ucanapp/melibroker/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tokenRepository implements the TokenRepository interface
type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository instance
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

// Upsert inserts or overwrites the token record for token.UserID. The
// ON CONFLICT clause keys on the unique user_id index so both token fields,
// scope and lifetime are replaced in a single statement.
func (r *tokenRepository) Upsert(token *models.UserToken) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token",
			"refresh_token",
			"scope",
			"expires_in",
			"updated_at",
		}),
	}).Create(token).Error; err != nil {
		return err
	}

	// Ensure ID and timestamps are populated after upsert.
	return r.db.Where("user_id = ?", token.UserID).First(token).Error
}

// GetByUserID retrieves the token record for a user
func (r *tokenRepository) GetByUserID(userID string) (*models.UserToken, error) {
	var token models.UserToken
	err := r.db.Where("user_id = ?", userID).First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}
