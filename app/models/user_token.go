package models

import "time"

// UserToken stores the MercadoLibre OAuth token pair for one external seller
// account. There is exactly one row per user_id; re-authorization and refresh
// both overwrite it in place. Access and refresh token are always written
// together so a rotated refresh token can never be paired with a stale access
// token.
type UserToken struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(64);uniqueIndex:ux_user_tokens_user_id;not null" json:"user_id"`
	AccessToken  string    `gorm:"type:text;not null" json:"-"`
	RefreshToken string    `gorm:"type:text;not null" json:"-"`
	Scope        string    `gorm:"type:varchar(255)" json:"scope"`
	ExpiresIn    int       `gorm:"not null" json:"expires_in"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
