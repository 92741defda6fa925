package database

import (
	"context"

	"github.com/citada/supplier-portal/models"
	"gorm.io/gorm"
)

// Store is the relational backend of the portal.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx)
}

// first loads one row into dest, reporting false when nothing matched.
func first(q *gorm.DB, dest interface{}) (bool, error) {
	res := q.Limit(1).Find(dest)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ---------------------------------------------------------------- messages

func (s *Store) ConversationMessages(ctx context.Context, key models.ConversationKey) ([]models.Message, error) {
	supplier := models.NormalizeEmail(key.SupplierEmail)
	var msgs []models.Message
	err := s.db(ctx).
		Where("event_id = ?", key.EventID).
		Where("(supplier_email = ? OR sender = ? OR receiver = ?)", supplier, supplier, supplier).
		Order("timestamp ASC").
		Find(&msgs).Error
	return msgs, err
}

func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.db(ctx).Create(msg).Error
}

// ---------------------------------------------------------------- profiles

func (s *Store) ProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	ok, err := first(s.db(ctx).Where("LOWER(email) = ?", models.NormalizeEmail(email)), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	ok, err := first(s.db(ctx).Where("id = ?", id), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// ---------------------------------------------------------------- events

func (s *Store) EventByID(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	ok, err := first(s.db(ctx).Where("id = ?", id), &e)
	if err != nil || !ok {
		return nil, err
	}
	return &e, nil
}

func (s *Store) EventsByIDs(ctx context.Context, ids []string) ([]models.Event, error) {
	var events []models.Event
	if len(ids) == 0 {
		return events, nil
	}
	err := s.db(ctx).Where("id IN ?", ids).Find(&events).Error
	return events, err
}

func (s *Store) EventsByAdmin(ctx context.Context, adminID string) ([]models.Event, error) {
	var events []models.Event
	err := s.db(ctx).Where("admin_id = ?", adminID).Order("created_at DESC").Find(&events).Error
	return events, err
}

// ---------------------------------------------------------------- invites

func (s *Store) InvitesForSupplier(ctx context.Context, email string) ([]models.Invite, error) {
	var invites []models.Invite
	err := s.db(ctx).
		Where("LOWER(supplier_email) = ?", models.NormalizeEmail(email)).
		Order("created_at DESC").
		Find(&invites).Error
	return invites, err
}

func (s *Store) InvitesForEvents(ctx context.Context, eventIDs []string) ([]models.Invite, error) {
	var invites []models.Invite
	if len(eventIDs) == 0 {
		return invites, nil
	}
	err := s.db(ctx).Where("event_id IN ?", eventIDs).Order("created_at DESC").Find(&invites).Error
	return invites, err
}

// ---------------------------------------------------------------- connection requests

func (s *Store) ConnectionRequestByID(ctx context.Context, id string) (*models.ConnectionRequest, error) {
	var r models.ConnectionRequest
	ok, err := first(s.db(ctx).Where("id = ?", id), &r)
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

func (s *Store) UpdateConnectionRequestStatus(ctx context.Context, id, status string) error {
	return s.db(ctx).Model(&models.ConnectionRequest{}).Where("id = ?", id).Update("status", status).Error
}

// ---------------------------------------------------------------- roster

func (s *Store) TeamMembers(ctx context.Context, table, ownerID string) ([]models.TeamMember, error) {
	var members []models.TeamMember
	err := s.db(ctx).Table(table).Where("user_id = ?", ownerID).Order("created_at ASC").Find(&members).Error
	return members, err
}

func (s *Store) CreateTeamMember(ctx context.Context, table string, member *models.TeamMember) error {
	return s.db(ctx).Table(table).Create(member).Error
}

func (s *Store) DeleteTeamMember(ctx context.Context, table, ownerID, id string) (int64, error) {
	res := s.db(ctx).Table(table).Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.TeamMember{})
	return res.RowsAffected, res.Error
}
