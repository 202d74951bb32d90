package models

import "time"

// WebhookEvent records one MercadoLibre notification delivery. The row is
// written before any resource fetch so every delivery is durable even when
// processing fails afterwards. Processed and Error are mutually exclusive for
// a given attempt: a successful fetch clears Error, a failed one leaves
// Processed false.
type WebhookEvent struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Topic         string     `gorm:"type:varchar(100);not null;index" json:"topic"`
	UserID        string     `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Resource      string     `gorm:"type:varchar(500);not null" json:"resource"`
	ApplicationID string     `gorm:"type:varchar(64)" json:"application_id"`
	Attempts      int        `json:"attempts"`
	Sent          *time.Time `gorm:"type:timestamp;default:null" json:"sent,omitempty"`
	Received      time.Time  `gorm:"type:timestamp;not null" json:"received"`
	Processed     bool       `gorm:"default:false;index" json:"processed"`
	Payload       string     `gorm:"type:longtext" json:"payload,omitempty"`
	Error         string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
