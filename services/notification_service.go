package services

import (
	"context"
	"fmt"
	"time"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/realtime"
	"github.com/citada/supplier-portal/utils"
)

const defaultNotificationLimit = 50

type NotificationFeed struct {
	Notifications []RenderedNotification `json:"notifications"`
	UnreadCount   int                    `json:"unread_count"`
}

type NotificationService struct {
	Store NotificationStore
	Limit int
	Now   func() time.Time
}

func NewNotificationService(store NotificationStore) *NotificationService {
	return &NotificationService{Store: store, Limit: defaultNotificationLimit}
}

// Load returns the raw rows addressed to the viewer, newest first.
func (s *NotificationService) Load(ctx context.Context, viewer models.Session) ([]models.Notification, error) {
	if !viewer.Role.Valid() {
		return nil, ErrInvalidSession
	}
	limit := s.Limit
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	rows, err := s.Store.NotificationsFor(ctx, viewer, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return Dedupe(rows), nil
}

// List is the notification center: visible rows rendered for the viewer plus
// the unread badge.
func (s *NotificationService) List(ctx context.Context, viewer models.Session) (NotificationFeed, error) {
	rows, err := s.Load(ctx, viewer)
	if err != nil {
		return NotificationFeed{}, err
	}
	return BuildFeed(rows, viewer, s.now()), nil
}

func (s *NotificationService) MarkRead(ctx context.Context, viewer models.Session, id string) error {
	n, err := s.Store.MarkNotificationRead(ctx, viewer, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	utils.InfoLogger.Printf("Notification %s marked as read", id)
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, viewer models.Session) (int64, error) {
	n, err := s.Store.MarkAllNotificationsRead(ctx, viewer)
	if err != nil {
		return 0, err
	}
	utils.InfoLogger.Printf("Marked %d notifications as read", n)
	return n, nil
}

// Topic is the channel a notification bell listens on.
func (s *NotificationService) Topic(viewer models.Session) Topic {
	filter := realtime.ChangeFilter{Table: "notifications"}
	name := "notifications:" + string(viewer.Role) + ":"
	if viewer.IsAdmin() {
		filter.AdminUserID = viewer.UserID
		name += viewer.UserID
	} else {
		filter.SupplierEmail = viewer.NormalizedEmail()
		name += viewer.NormalizedEmail()
	}
	return Topic{Channel: name, Filter: filter}
}

func (s *NotificationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// BuildFeed applies the visibility rules to rows. Suppliers also get a
// relative age on each entry.
func BuildFeed(rows []models.Notification, viewer models.Session, now time.Time) NotificationFeed {
	visible := FilterVisible(rows, viewer)
	unread := 0
	for i := range visible {
		if visible[i].Unread() {
			unread++
		}
		if viewer.IsSupplier() {
			visible[i].Age = RelativeTime(visible[i].CreatedAt, now)
		}
	}
	return NotificationFeed{Notifications: visible, UnreadCount: unread}
}

func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}
