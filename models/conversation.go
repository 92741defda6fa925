package models

import "fmt"

// ConversationKey scopes a message thread. It is derived, never persisted.
type ConversationKey struct {
	EventID       string `json:"event_id"`
	AdminID       string `json:"admin_id"`
	SupplierEmail string `json:"supplier_email"`
}

func (k ConversationKey) Valid() bool {
	return k.EventID != "" && k.AdminID != "" && k.SupplierEmail != ""
}

// ChannelName is the realtime channel every view of this conversation joins.
func (k ConversationKey) ChannelName() string {
	return fmt.Sprintf("messages:%s:%s:%s", k.EventID, k.AdminID, NormalizeEmail(k.SupplierEmail))
}

// String is the key the offline store files messages under.
func (k ConversationKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.EventID, k.AdminID, NormalizeEmail(k.SupplierEmail))
}

// ConversationSummary is one entry of the conversation directory.
type ConversationSummary struct {
	Key           ConversationKey `json:"key"`
	EventName     string          `json:"event_name"`
	CounterpartID string          `json:"counterpart_id"`
	Counterpart   string          `json:"counterpart"`
}
