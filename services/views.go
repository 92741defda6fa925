package services

import (
	"context"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/realtime"
)

// ConversationView is one open conversation: a live snapshot of its messages
// and a send path that writes through that same snapshot.
type ConversationView struct {
	Key     models.ConversationKey
	Session models.Session

	manager  *SubscriptionManager[models.Message]
	pipeline *SendPipeline
}

// OpenConversationView starts syncing key. onSnapshot receives every new
// snapshot until Close returns.
func OpenConversationView(ctx context.Context, client realtime.Client, conversations *ConversationService, pipeline *SendPipeline, cfg SubscriptionConfig, session models.Session, key models.ConversationKey, onSnapshot func([]models.Message)) (*ConversationView, error) {
	if !key.Valid() {
		return nil, ErrInvalidKey
	}
	manager := NewSubscriptionManager(client, conversations.Topic(key), conversations.Fetcher(session, key), cfg, onSnapshot)
	if err := manager.Start(ctx); err != nil {
		return nil, err
	}
	return &ConversationView{Key: key, Session: session, manager: manager, pipeline: pipeline}, nil
}

func (v *ConversationView) Send(ctx context.Context, authorDisplayName, content string) (SendResult, error) {
	return v.pipeline.Send(ctx, v.Session, v.Key, authorDisplayName, content, v.manager)
}

func (v *ConversationView) FlushOffline(ctx context.Context) (FlushResult, error) {
	return v.pipeline.FlushOffline(ctx, v.Session, v.Key, v.manager)
}

func (v *ConversationView) Snapshot() []models.Message {
	return v.manager.Snapshot()
}

func (v *ConversationView) State() SubscriptionState {
	return v.manager.State()
}

func (v *ConversationView) Close() {
	v.manager.Close()
}

// NotificationBell keeps a viewer's notification feed live.
type NotificationBell struct {
	Session models.Session

	manager       *SubscriptionManager[models.Notification]
	notifications *NotificationService
}

func OpenNotificationBell(ctx context.Context, client realtime.Client, notifications *NotificationService, cfg SubscriptionConfig, viewer models.Session, onFeed func(NotificationFeed)) (*NotificationBell, error) {
	if !viewer.Role.Valid() {
		return nil, ErrInvalidSession
	}
	fetch := func(ctx context.Context) ([]models.Notification, error) {
		return notifications.Load(ctx, viewer)
	}
	manager := NewSubscriptionManager(client, notifications.Topic(viewer), fetch, cfg, func(rows []models.Notification) {
		if onFeed != nil {
			onFeed(BuildFeed(rows, viewer, notifications.now()))
		}
	})
	if err := manager.Start(ctx); err != nil {
		return nil, err
	}
	return &NotificationBell{Session: viewer, manager: manager, notifications: notifications}, nil
}

func (b *NotificationBell) Feed() NotificationFeed {
	return BuildFeed(b.manager.Snapshot(), b.Session, b.notifications.now())
}

func (b *NotificationBell) Close() {
	b.manager.Close()
}
