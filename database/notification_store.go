package database

import (
	"context"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/utils"
	"gorm.io/gorm"
)

// Types an admin never receives and types a supplier never receives; the
// visibility rules still run on whatever comes back.
var (
	adminExcludedTypes = []string{
		string(models.NotificationTaskAssignment),
		string(models.NotificationEventOpportunity),
		string(models.NotificationApplicationAccepted),
	}
	supplierExcludedTypes = []string{
		string(models.NotificationConnectionAccepted),
		string(models.NotificationConnectionDeclined),
	}
)

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.db(ctx).Create(n).Error
}

// NotificationsFor returns the newest rows addressed to the viewer with event
// names resolved.
func (s *Store) NotificationsFor(ctx context.Context, viewer models.Session, limit int) ([]models.Notification, error) {
	q := s.addressedTo(s.db(ctx), viewer)
	if viewer.IsAdmin() {
		q = q.Where("(type IS NULL OR type NOT IN ?)", adminExcludedTypes)
	} else {
		q = q.Where("type IS NOT NULL").Where("type NOT IN ?", supplierExcludedTypes)
	}

	var rows []models.Notification
	if err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	if err := s.resolveEventNames(ctx, rows); err != nil {
		utils.ErrorLogger.Printf("Error resolving event names: %v", err)
	}
	return rows, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, viewer models.Session, id string) (int64, error) {
	var n models.Notification
	ok, err := first(s.addressedTo(s.db(ctx), viewer).Where("id = ?", id), &n)
	if err != nil || !ok {
		return 0, err
	}
	if err := s.db(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("status", models.StatusRead).Error; err != nil {
		return 0, err
	}
	return 1, nil
}

// MarkAllNotificationsRead flips every unread row addressed to the viewer.
// When the bulk update is rejected the rows are updated one at a time.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, viewer models.Session) (int64, error) {
	res := s.addressedTo(s.db(ctx).Model(&models.Notification{}), viewer).
		Where("status = ?", models.StatusUnread).
		Update("status", models.StatusRead)
	if res.Error == nil {
		return res.RowsAffected, nil
	}
	utils.ErrorLogger.Printf("Bulk mark-as-read failed, updating individually: %v", res.Error)

	var ids []string
	if err := s.addressedTo(s.db(ctx).Model(&models.Notification{}), viewer).
		Where("status = ?", models.StatusUnread).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	var updated int64
	for _, id := range ids {
		if err := s.db(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("status", models.StatusRead).Error; err != nil {
			utils.ErrorLogger.Printf("Error marking notification %s as read: %v", id, err)
			continue
		}
		updated++
	}
	return updated, nil
}

func (s *Store) addressedTo(q *gorm.DB, viewer models.Session) *gorm.DB {
	if viewer.IsAdmin() {
		return q.Where("admin_user_id = ?", viewer.UserID)
	}
	return q.Where("LOWER(supplier_email) = ?", viewer.NormalizedEmail())
}

func (s *Store) resolveEventNames(ctx context.Context, rows []models.Notification) error {
	var ids []string
	seen := make(map[string]struct{})
	for _, n := range rows {
		if n.EventID == "" {
			continue
		}
		if _, ok := seen[n.EventID]; !ok {
			seen[n.EventID] = struct{}{}
			ids = append(ids, n.EventID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	events, err := s.EventsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(events))
	for _, e := range events {
		names[e.ID] = e.Name
	}
	for i := range rows {
		rows[i].EventName = names[rows[i].EventID]
	}
	return nil
}
