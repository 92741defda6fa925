package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/citada/supplier-portal/models"
)

// Status is reported to a channel's subscribe callback.
type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusClosed       Status = "CLOSED"
)

// Event names carried on channel broadcasts.
const (
	EventNewMessage = "new_message"
	EventSnapshot   = "snapshot"
)

var (
	ErrHubClosed = errors.New("realtime hub closed")
	ErrNotJoined = errors.New("channel is not subscribed")
)

// ChangeEvent is one committed row change. Exactly one of Message or
// Notification is set for the tables the hub knows about.
type ChangeEvent struct {
	Table        string               `json:"table"`
	Action       string               `json:"action"`
	RecordID     string               `json:"record_id"`
	Message      *models.Message      `json:"message,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
	At           time.Time            `json:"at"`
}

// ChangeFilter selects change events. Empty fields match anything.
type ChangeFilter struct {
	Table         string
	Actions       []string
	EventID       string
	MessageTypes  []models.MessageType
	AdminUserID   string
	SupplierEmail string
}

func (f ChangeFilter) Match(ev ChangeEvent) bool {
	if f.Table != "" && f.Table != ev.Table {
		return false
	}
	if len(f.Actions) > 0 && !slices.Contains(f.Actions, ev.Action) {
		return false
	}
	switch {
	case ev.Message != nil:
		m := ev.Message
		if f.EventID != "" && m.EventID != f.EventID {
			return false
		}
		if len(f.MessageTypes) > 0 && !slices.Contains(f.MessageTypes, m.MessageType) {
			return false
		}
		if f.SupplierEmail != "" && models.NormalizeEmail(m.SupplierEmail) != models.NormalizeEmail(f.SupplierEmail) {
			return false
		}
	case ev.Notification != nil:
		n := ev.Notification
		if f.EventID != "" && n.EventID != f.EventID {
			return false
		}
		if f.AdminUserID != "" && n.AdminUserID != f.AdminUserID {
			return false
		}
		if f.SupplierEmail != "" && models.NormalizeEmail(n.SupplierEmail) != models.NormalizeEmail(f.SupplierEmail) {
			return false
		}
	}
	return true
}

// BroadcastEvent is an ephemeral payload sent on a named channel.
type BroadcastEvent struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

// Channel is a named subscription. Handlers are registered before Subscribe.
type Channel interface {
	Name() string
	OnChange(filter ChangeFilter, fn func(ChangeEvent)) Channel
	OnBroadcast(event string, fn func(BroadcastEvent)) Channel
	Subscribe(fn func(Status, error)) error
	Send(ctx context.Context, event string, payload any) error
}

// Client opens and releases channels.
type Client interface {
	Channel(name string) Channel
	RemoveChannel(ch Channel) error
}
