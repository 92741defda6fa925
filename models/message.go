package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MessageType string

const (
	MessageSupplierToAdmin MessageType = "supplier_to_admin"
	MessageAdminToSupplier MessageType = "admin_to_supplier"
)

// ConversationMessageTypes are the message types a conversation channel listens for.
var ConversationMessageTypes = []MessageType{MessageSupplierToAdmin, MessageAdminToSupplier}

// MessageTypeFor returns the direction of a message written by role.
func MessageTypeFor(role Role) MessageType {
	if role == RoleAdmin {
		return MessageAdminToSupplier
	}
	return MessageSupplierToAdmin
}

type Message struct {
	ID             string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	EventID        string         `gorm:"type:varchar(64);not null;index:idx_messages_event" json:"event_id"`
	Sender         string         `gorm:"type:varchar(255);not null;index" json:"sender"`
	Receiver       string         `gorm:"type:varchar(255);not null;index" json:"receiver"`
	SupplierEmail  string         `gorm:"type:varchar(255);index" json:"supplier_email"`
	AdminID        string         `gorm:"type:varchar(64);index" json:"admin_id"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	Timestamp      time.Time      `gorm:"not null;index:idx_messages_event" json:"timestamp"`
	MessageType    MessageType    `gorm:"type:varchar(32);not null" json:"message_type"`
	Metadata       datatypes.JSON `json:"metadata"`
	NotificationID *string        `gorm:"type:varchar(64)" json:"notification_id"`
	SenderType     Role           `gorm:"type:varchar(16)" json:"sender_type"`
	IsRead         bool           `gorm:"default:false" json:"is_read"`
	CreatedAt      time.Time      `json:"created_at"`
}

type MessageMetadata struct {
	Sender    string    `json:"sender"`
	EventName string    `json:"event_name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (m Message) RecordID() string { return m.ID }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}

// MustJSON encodes v for a datatypes.JSON column. Values that cannot be
// encoded produce an empty column.
func MustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
