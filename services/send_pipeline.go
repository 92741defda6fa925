package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/realtime"
	"github.com/citada/supplier-portal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	notificationPreviewLen = 50
	metadataPreviewLen     = 100
	defaultBroadcastWait   = 2 * time.Second
)

// SnapshotSink receives the optimistic and reconciled state of a conversation.
type SnapshotSink interface {
	Append(msg models.Message)
	Replace(msgs []models.Message)
}

type SendOutcome string

const (
	OutcomeDelivered SendOutcome = "delivered"
	OutcomeOffline   SendOutcome = "offline"
)

type SendResult struct {
	Message      models.Message       `json:"message"`
	Notification *models.Notification `json:"notification,omitempty"`
	Outcome      SendOutcome          `json:"outcome"`
	// Err is the failure that forced an offline outcome.
	Err error `json:"-"`
}

type FlushResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// SendPipeline writes a chat message and its notification, then lets the
// conversation catch up. Failures on the write path park the message in the
// offline store instead of losing it.
type SendPipeline struct {
	Auth             Authenticator
	Messages         MessageStore
	Notifications    NotificationStore
	Profiles         ProfileStore
	Events           EventStore
	Offline          OfflineStore
	Realtime         realtime.Client
	BroadcastTimeout time.Duration
	Now              func() time.Time
}

// Send runs the pipeline. The returned error is reserved for invalid input;
// backend failures come back as an offline SendResult.
func (p *SendPipeline) Send(ctx context.Context, session models.Session, key models.ConversationKey, authorDisplayName, content string, sink SnapshotSink) (SendResult, error) {
	if strings.TrimSpace(content) == "" {
		return SendResult{}, ErrEmptyContent
	}
	if !key.Valid() {
		return SendResult{}, ErrInvalidKey
	}
	if !session.Role.Valid() {
		return SendResult{}, ErrInvalidSession
	}

	at := p.now()
	ident, err := p.currentUser(ctx)
	if err != nil {
		draft := draftMessage(session, models.Identity{UserID: session.UserID, Email: session.Email}, key, content, at)
		return p.fallback(ctx, key, draft, sink, err), nil
	}

	msg, notif, err := p.write(ctx, session, *ident, key, authorDisplayName, content, at)
	if err != nil {
		return p.fallback(ctx, key, msg, sink, err), nil
	}

	if sink != nil {
		sink.Append(msg)
	}
	p.broadcast(ctx, key, msg)
	p.reconcile(ctx, session, key, sink)

	utils.InfoLogger.WithFields(logrus.Fields{
		"message_id":      msg.ID,
		"notification_id": notif.ID,
		"event_id":        key.EventID,
		"sender_type":     session.Role,
	}).Info("message sent")
	return SendResult{Message: msg, Notification: notif, Outcome: OutcomeDelivered}, nil
}

// FlushOffline replays this sender's parked messages for a conversation.
// Rows leave the offline store only once their message write succeeds.
func (p *SendPipeline) FlushOffline(ctx context.Context, session models.Session, key models.ConversationKey, sink SnapshotSink) (FlushResult, error) {
	var res FlushResult
	if p.Offline == nil {
		return res, nil
	}
	if !key.Valid() {
		return res, ErrInvalidKey
	}
	ident, err := p.currentUser(ctx)
	if err != nil {
		return res, err
	}
	pending, err := p.Offline.List(ctx, key)
	if err != nil {
		return res, err
	}

	sender := senderIdentity(session.Role, *ident)
	var last models.Message
	for _, local := range pending {
		if !strings.EqualFold(local.Sender, sender) {
			res.Skipped++
			continue
		}
		msg, _, err := p.write(ctx, session, *ident, key, "", local.Content, local.Timestamp)
		if err != nil {
			res.Failed++
			if rerr := p.Offline.RecordFailure(ctx, local.ID, err); rerr != nil {
				utils.ErrorLogger.Printf("Error recording offline failure for %s: %v", local.ID, rerr)
			}
			continue
		}
		if err := p.Offline.Remove(ctx, local.ID); err != nil {
			utils.ErrorLogger.Printf("Error removing flushed offline message %s: %v", local.ID, err)
		}
		last = msg
		res.Sent++
	}

	if res.Sent > 0 {
		p.broadcast(ctx, key, last)
		p.reconcile(ctx, session, key, sink)
	}
	utils.InfoLogger.Printf("Offline flush for %s: sent=%d failed=%d skipped=%d", key, res.Sent, res.Failed, res.Skipped)
	return res, nil
}

// currentUser resolves the caller. A missing authenticator or identity is
// ErrNotAuthenticated; backend errors are wrapped into it.
func (p *SendPipeline) currentUser(ctx context.Context) (*models.Identity, error) {
	if p.Auth == nil {
		return nil, ErrNotAuthenticated
	}
	ident, err := p.Auth.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if ident == nil {
		return nil, ErrNotAuthenticated
	}
	return ident, nil
}

// write performs the critical path: notification first, then the message
// that references it. A message failure leaves the notification behind.
func (p *SendPipeline) write(ctx context.Context, session models.Session, ident models.Identity, key models.ConversationKey, authorDisplayName, content string, at time.Time) (models.Message, *models.Notification, error) {
	msg := draftMessage(session, ident, key, content, at)
	display := p.displayName(ctx, session, ident, authorDisplayName)
	eventName := p.eventName(ctx, key.EventID)

	notif := &models.Notification{
		Type:          models.StringPtr(string(models.NotificationNewMessage)),
		Content:       models.StringPtr(fmt.Sprintf("New message from %s: %s", display, preview(content, notificationPreviewLen))),
		AdminUserID:   key.AdminID,
		SupplierEmail: models.NormalizeEmail(key.SupplierEmail),
		EventID:       key.EventID,
		Status:        models.StatusUnread,
		Metadata: models.MustJSON(models.NewMessageMetadata{
			Sender:         msg.Sender,
			SenderType:     session.Role,
			EventID:        key.EventID,
			EventName:      eventName,
			MessagePreview: truncate(content, metadataPreviewLen),
			Timestamp:      at,
		}),
	}
	if session.IsSupplier() {
		notif.UserID = key.AdminID
	}
	if err := p.Notifications.CreateNotification(ctx, notif); err != nil {
		return msg, nil, fmt.Errorf("%w: %v", ErrNotificationWriteFailed, err)
	}
	notif.Ingest()

	msg.NotificationID = &notif.ID
	msg.Metadata = models.MustJSON(models.MessageMetadata{
		Sender:    msg.Sender,
		EventName: eventName,
		Timestamp: at,
	})
	if err := p.Messages.CreateMessage(ctx, &msg); err != nil {
		utils.ErrorLogger.Printf("Message write failed, notification %s left without message", notif.ID)
		return msg, notif, fmt.Errorf("%w: %v", ErrMessageWriteFailed, err)
	}
	return msg, notif, nil
}

func (p *SendPipeline) fallback(ctx context.Context, key models.ConversationKey, msg models.Message, sink SnapshotSink, cause error) SendResult {
	msg.ID = fmt.Sprintf("local-%d-%s", msg.Timestamp.UnixMilli(), uuid.NewString()[:8])
	msg.NotificationID = nil

	utils.ErrorLogger.WithFields(logrus.Fields{
		"event_id": key.EventID,
		"local_id": msg.ID,
	}).Error(cause)

	if p.Offline != nil {
		if err := p.Offline.Save(context.WithoutCancel(ctx), key, msg); err != nil {
			utils.ErrorLogger.Printf("Error saving offline message %s: %v", msg.ID, err)
			cause = errors.Join(cause, err)
		}
	}
	if sink != nil {
		sink.Append(msg)
	}
	return SendResult{Message: msg, Outcome: OutcomeOffline, Err: cause}
}

func (p *SendPipeline) broadcast(ctx context.Context, key models.ConversationKey, msg models.Message) {
	if p.Realtime == nil {
		return
	}
	wait := p.BroadcastTimeout
	if wait <= 0 {
		wait = defaultBroadcastWait
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := p.sendOnChannel(ctx, key.ChannelName(), msg); err != nil {
		utils.ErrorLogger.WithField("channel", key.ChannelName()).Error(fmt.Errorf("%w: %v", ErrBroadcastFailed, err))
	}
}

// sendOnChannel joins a short-lived channel, sends one event and leaves.
func (p *SendPipeline) sendOnChannel(ctx context.Context, name string, msg models.Message) error {
	ch := p.Realtime.Channel(name)
	defer p.Realtime.RemoveChannel(ch)

	joined := make(chan error, 1)
	if err := ch.Subscribe(func(st realtime.Status, err error) {
		var result error
		if st != realtime.StatusSubscribed {
			result = fmt.Errorf("channel %s: %v", st, err)
		}
		select {
		case joined <- result:
		default:
		}
	}); err != nil {
		return err
	}

	select {
	case err := <-joined:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return ch.Send(ctx, realtime.EventNewMessage, msg)
}

func (p *SendPipeline) reconcile(ctx context.Context, session models.Session, key models.ConversationKey, sink SnapshotSink) {
	if sink == nil {
		return
	}
	msgs, err := loadConversation(ctx, p.Messages, p.Offline, key, session)
	if err != nil {
		utils.ErrorLogger.Printf("Reconciliation fetch failed for %s: %v", key, err)
		return
	}
	sink.Replace(msgs)
}

func (p *SendPipeline) displayName(ctx context.Context, session models.Session, ident models.Identity, fallback string) string {
	if p.Profiles != nil && ident.Email != "" {
		profile, err := p.Profiles.ProfileByEmail(ctx, ident.Email)
		if err != nil {
			utils.ErrorLogger.Printf("Error loading profile for %s: %v", ident.Email, err)
		} else if profile != nil {
			if name := profile.DisplayName(); name != "" {
				return name
			}
		}
	}
	if strings.TrimSpace(fallback) != "" {
		return fallback
	}
	return session.Role.Label()
}

func (p *SendPipeline) eventName(ctx context.Context, eventID string) string {
	if p.Events == nil {
		return ""
	}
	event, err := p.Events.EventByID(ctx, eventID)
	if err != nil || event == nil {
		return ""
	}
	return event.Name
}

func (p *SendPipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func draftMessage(session models.Session, ident models.Identity, key models.ConversationKey, content string, at time.Time) models.Message {
	sender := senderIdentity(session.Role, ident)
	receiver := models.NormalizeEmail(key.SupplierEmail)
	if session.IsSupplier() {
		receiver = key.AdminID
	}
	return models.Message{
		EventID:       key.EventID,
		Sender:        sender,
		Receiver:      receiver,
		SupplierEmail: models.NormalizeEmail(key.SupplierEmail),
		AdminID:       key.AdminID,
		Content:       content,
		Timestamp:     at,
		MessageType:   models.MessageTypeFor(session.Role),
		SenderType:    session.Role,
	}
}

func sessionSender(session models.Session) string {
	return senderIdentity(session.Role, models.Identity{UserID: session.UserID, Email: session.Email})
}

// senderIdentity is how a role signs its messages: suppliers by email,
// admins by user id.
func senderIdentity(role models.Role, ident models.Identity) string {
	if role == models.RoleSupplier {
		return models.NormalizeEmail(ident.Email)
	}
	return ident.UserID
}

func truncate(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}

// preview truncates and marks the cut with an ellipsis.
func preview(content string, limit int) string {
	if short := truncate(content, limit); short != content {
		return short + "..."
	}
	return content
}
