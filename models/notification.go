package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationConnectionRequest   NotificationType = "connection_request"
	NotificationConnectionAccepted  NotificationType = "connection_accepted"
	NotificationConnectionDeclined  NotificationType = "connection_declined"
	NotificationEventOpportunity    NotificationType = "event_opportunity"
	NotificationInvitation          NotificationType = "invitation"
	NotificationApplication         NotificationType = "application"
	NotificationApplicationAccepted NotificationType = "application_accepted"
	NotificationTaskAssignment      NotificationType = "task_assignment"
	NotificationNewMessage          NotificationType = "new_message"
	NotificationAdminOnly           NotificationType = "admin_only"
)

const (
	StatusUnread = "unread"
	StatusRead   = "read"
)

type Notification struct {
	ID                  string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	Type                *string        `gorm:"type:varchar(64);index" json:"type"`
	Content             *string        `gorm:"type:text" json:"content"`
	Metadata            datatypes.JSON `json:"metadata"`
	AdminUserID         string         `gorm:"type:varchar(64);index" json:"admin_user_id"`
	UserID              string         `gorm:"type:varchar(64)" json:"user_id"`
	SupplierEmail       string         `gorm:"type:varchar(255);index" json:"supplier_email"`
	EventID             string         `gorm:"type:varchar(64)" json:"event_id"`
	ConnectionRequestID string         `gorm:"type:varchar(64)" json:"connection_request_id"`
	Status              string         `gorm:"type:varchar(16);not null;default:'unread'" json:"status"`
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`

	Body      Content        `gorm:"-" json:"-"`
	Meta      map[string]any `gorm:"-" json:"-"`
	EventName string         `gorm:"-" json:"event_name,omitempty"`
}

func (n Notification) RecordID() string { return n.ID }

// Kind returns the notification type, or "" for legacy rows without one.
func (n Notification) Kind() NotificationType {
	if n.Type == nil {
		return ""
	}
	return NotificationType(*n.Type)
}

func (n Notification) Unread() bool { return n.Status != StatusRead }

// MetaString returns a metadata field as text.
func (n Notification) MetaString(name string) string {
	return stringField(n.Meta, name)
}

// Ingest resolves the content and metadata columns into their parsed forms.
// It runs after every query and must be called on rows decoded from payloads.
func (n *Notification) Ingest() {
	n.Body = ParseContent(n.Content)
	n.Meta = nil
	if len(n.Metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(n.Metadata, &meta); err == nil {
			n.Meta = meta
		}
	}
}

func (n *Notification) AfterFind(tx *gorm.DB) error {
	n.Ingest()
	return nil
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = StatusUnread
	}
	return nil
}

// NewMessageMetadata is stored on new_message notifications.
type NewMessageMetadata struct {
	Sender         string    `json:"sender"`
	SenderType     Role      `json:"sender_type"`
	EventID        string    `json:"event_id"`
	EventName      string    `json:"event_name,omitempty"`
	MessagePreview string    `json:"message_preview"`
	Timestamp      time.Time `json:"timestamp"`
}

func StringPtr(s string) *string { return &s }
