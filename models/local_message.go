package models

import "time"

// LocalMessage is a message kept on this node because the backend refused it.
type LocalMessage struct {
	ID              string    `gorm:"type:varchar(64);primaryKey"`
	ConversationKey string    `gorm:"type:varchar(512);index;not null"`
	Payload         []byte    `gorm:"not null"`
	Attempts        int       `gorm:"not null;default:0"`
	LastError       string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time
}
