package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/citada/supplier-portal/models"
)

const (
	defaultNotificationText = "New notification"
	defaultMessageText      = "New message"
	legacySupplierPrefix    = "New message from supplier:"
)

var opportunityNamePattern = regexp.MustCompile(`available:\s*(.+)$`)

// RenderedNotification is a notification together with the text shown to the viewer.
type RenderedNotification struct {
	models.Notification
	Text string `json:"text"`
	Age  string `json:"age,omitempty"`
}

// IsVisible reports whether the viewer sees n at all. It is exactly the
// condition under which RenderText returns ok.
func IsVisible(n models.Notification, viewer models.Session) bool {
	_, ok := RenderText(n, viewer)
	return ok
}

// RenderText returns the display text of n for the viewer, or ok=false when
// the notification is hidden from them.
func RenderText(n models.Notification, viewer models.Session) (string, bool) {
	body := n.Body
	if body.IsAbsent() && n.Content != nil {
		body = models.ParseContent(n.Content)
	}

	switch n.Kind() {
	case "":
		if !viewer.IsAdmin() {
			return "", false
		}
		return appliedText(n), true

	case models.NotificationTaskAssignment:
		if viewer.IsAdmin() {
			return "", false
		}
		return "You have been assigned a new task for this event.", true

	case models.NotificationEventOpportunity:
		if viewer.IsAdmin() {
			return "", false
		}
		return orDefault(rawText(body), "New event opportunity available"), true

	case models.NotificationInvitation:
		if viewer.IsAdmin() {
			return "", false
		}
		if name := opportunityName(n, body); name != "" {
			return "New event opportunity added: " + name, true
		}
		return "New event opportunity added", true

	case models.NotificationApplicationAccepted:
		if viewer.IsAdmin() {
			return "", false
		}
		if text := rawText(body); text != "" {
			return text, true
		}
		return fmt.Sprintf("Your application for event %q has been accepted", eventLabel(n, "Unknown event")), true

	case models.NotificationAdminOnly:
		if !viewer.IsAdmin() {
			return "", false
		}
		return orDefault(rawText(body), defaultNotificationText), true

	case models.NotificationApplication:
		if viewer.IsAdmin() {
			return appliedText(n), true
		}
		return orDefault(rawText(body), defaultNotificationText), true

	case models.NotificationConnectionRequest:
		if !viewer.IsSupplier() || models.NormalizeEmail(n.SupplierEmail) != viewer.NormalizedEmail() {
			return "", false
		}
		return connectionText(body, "requester_name", "Someone", "invited you to connect"), true

	case models.NotificationConnectionAccepted, models.NotificationConnectionDeclined:
		if !viewer.IsAdmin() || n.AdminUserID == "" || n.AdminUserID != viewer.UserID {
			return "", false
		}
		verb := "has accepted your connection request"
		if n.Kind() == models.NotificationConnectionDeclined {
			verb = "has declined your connection request"
		}
		return connectionText(body, "supplier_name", "Supplier", verb), true

	case models.NotificationNewMessage:
		sender, ok := messageSenderRole(n, body)
		if !ok || sender == viewer.Role {
			return "", false
		}
		text := orDefault(contentText(body), defaultMessageText)
		if sender == models.RoleSupplier && strings.Contains(text, legacySupplierPrefix) {
			if from := n.MetaString("sender"); from != "" && !strings.EqualFold(from, n.SupplierEmail) {
				rest := strings.TrimSpace(strings.SplitN(text, legacySupplierPrefix, 2)[1])
				text = fmt.Sprintf("New message from %s: %s", from, rest)
			}
		}
		return text, true

	default:
		return orDefault(rawText(body), defaultNotificationText), true
	}
}

// FilterVisible renders the notifications the viewer may see, keeping order.
func FilterVisible(list []models.Notification, viewer models.Session) []RenderedNotification {
	out := make([]RenderedNotification, 0, len(list))
	for _, n := range list {
		if text, ok := RenderText(n, viewer); ok {
			out = append(out, RenderedNotification{Notification: n, Text: text})
		}
	}
	return out
}

// UnreadCount counts unread notifications the viewer can see.
func UnreadCount(list []models.Notification, viewer models.Session) int {
	count := 0
	for _, n := range list {
		if n.Unread() && IsVisible(n, viewer) {
			count++
		}
	}
	return count
}

// messageSenderRole resolves who wrote a new_message notification: an explicit
// sender_type first, then which identity columns are filled, then legacy text.
func messageSenderRole(n models.Notification, body models.Content) (models.Role, bool) {
	for _, raw := range []string{n.MetaString("sender_type"), body.Field("sender_type")} {
		if role := models.Role(strings.ToLower(strings.TrimSpace(raw))); role.Valid() {
			return role, true
		}
	}

	switch {
	case n.AdminUserID != "" && n.UserID == "" && n.SupplierEmail != "":
		return models.RoleAdmin, true
	case n.UserID != "" && n.AdminUserID != "":
		return models.RoleSupplier, true
	}

	text := strings.ToLower(contentText(body))
	switch {
	case strings.Contains(text, "from supplier"):
		return models.RoleSupplier, true
	case strings.Contains(text, "from admin"):
		return models.RoleAdmin, true
	}
	return "", false
}

func appliedText(n models.Notification) string {
	return "New supplier has applied to " + eventLabel(n, "this event")
}

func eventLabel(n models.Notification, fallback string) string {
	switch {
	case n.EventName != "":
		return n.EventName
	case n.EventID != "":
		return "Event ID: " + n.EventID
	default:
		return fallback
	}
}

func opportunityName(n models.Notification, body models.Content) string {
	if n.EventName != "" {
		return n.EventName
	}
	if m := opportunityNamePattern.FindStringSubmatch(contentText(body)); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// connectionText renders connection notifications: an explicit message wins,
// then the named party, then raw plain text.
func connectionText(body models.Content, nameField, fallbackName, verb string) string {
	switch {
	case body.IsStructured():
		if msg := body.Field("message"); msg != "" {
			return msg
		}
		return orDefault(body.Field(nameField), fallbackName) + " " + verb
	case body.IsPlain() && !body.LooksLikeJSON():
		return body.Text
	default:
		return fallbackName + " " + verb
	}
}

// contentText is the displayable text of a body: plain text as is, the
// message field of a structured body, or "".
func contentText(body models.Content) string {
	switch {
	case body.IsPlain():
		return body.Text
	case body.IsStructured():
		return body.Field("message")
	default:
		return ""
	}
}

// rawText is contentText, falling back to the stored column for a structured
// body that carries no message field.
func rawText(body models.Content) string {
	if text := contentText(body); strings.TrimSpace(text) != "" {
		return text
	}
	if body.IsStructured() {
		return body.Text
	}
	return ""
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
