package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/utils"
)

// Roster splits a team into contacts entered by hand and connections the
// system established.
type Roster struct {
	Manual      []models.TeamMember `json:"manual"`
	Connections []models.TeamMember `json:"connections"`
}

type RosterService struct {
	Store RosterStore
}

func NewRosterService(store RosterStore) *RosterService {
	return &RosterService{Store: store}
}

func (s *RosterService) List(ctx context.Context, viewer models.Session) (Roster, error) {
	if !viewer.Role.Valid() {
		return Roster{}, ErrInvalidSession
	}
	members, err := s.Store.TeamMembers(ctx, models.RosterTable(viewer.Role), viewer.UserID)
	if err != nil {
		return Roster{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	roster := Roster{Manual: []models.TeamMember{}, Connections: []models.TeamMember{}}
	for _, m := range members {
		if m.IsConnection() {
			roster.Connections = append(roster.Connections, m)
		} else {
			roster.Manual = append(roster.Manual, m)
		}
	}
	return roster, nil
}

// Add stores a manually entered contact. Emails are unique per roster.
func (s *RosterService) Add(ctx context.Context, viewer models.Session, name, email string) (*models.TeamMember, error) {
	if !viewer.Role.Valid() {
		return nil, ErrInvalidSession
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidMember)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address %q", ErrInvalidMember, email)
	}
	return s.add(ctx, models.RosterTable(viewer.Role), viewer.UserID, name, email, nil)
}

func (s *RosterService) Remove(ctx context.Context, viewer models.Session, id string) error {
	if !viewer.Role.Valid() {
		return ErrInvalidSession
	}
	n, err := s.Store.DeleteTeamMember(ctx, models.RosterTable(viewer.Role), viewer.UserID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	utils.InfoLogger.Printf("Team member %s removed from %s", id, models.RosterTable(viewer.Role))
	return nil
}

// connect records a system-established connection, skipping existing emails.
func (s *RosterService) connect(ctx context.Context, table, ownerID, name, email, adminEmail string) error {
	if email == "" {
		return nil
	}
	if name == "" {
		name = email
	}
	_, err := s.add(ctx, table, ownerID, name, email, &adminEmail)
	if errors.Is(err, ErrDuplicateMember) {
		return nil
	}
	return err
}

func (s *RosterService) add(ctx context.Context, table, ownerID, name, email string, adminEmail *string) (*models.TeamMember, error) {
	email = models.NormalizeEmail(email)
	existing, err := s.Store.TeamMembers(ctx, table, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	for _, m := range existing {
		if models.NormalizeEmail(m.Email) == email {
			return nil, ErrDuplicateMember
		}
	}

	member := &models.TeamMember{OwnerID: ownerID, Name: name, Email: email, AdminEmail: adminEmail}
	if err := s.Store.CreateTeamMember(ctx, table, member); err != nil {
		return nil, err
	}
	utils.InfoLogger.Printf("Team member %s added to %s", member.Email, table)
	return member, nil
}
