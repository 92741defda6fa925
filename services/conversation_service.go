package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/realtime"
	"github.com/citada/supplier-portal/utils"
)

const (
	eventLookupChunk     = 10
	defaultOrganizerName = "Event Organizer"
)

type ConversationService struct {
	Messages MessageStore
	Offline  OfflineStore
	Events   EventStore
	Invites  InviteStore
	Profiles ProfileStore
}

// ResolveKey builds the conversation key for the viewer. Suppliers talk to the
// admin owning the event; admins name the supplier and must own the event.
func (s *ConversationService) ResolveKey(ctx context.Context, viewer models.Session, eventID, supplierEmail string) (models.ConversationKey, error) {
	if eventID == "" {
		return models.ConversationKey{}, ErrInvalidKey
	}
	event, err := s.Events.EventByID(ctx, eventID)
	if err != nil {
		return models.ConversationKey{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if event == nil {
		return models.ConversationKey{}, ErrNotFound
	}

	switch viewer.Role {
	case models.RoleSupplier:
		return models.ConversationKey{
			EventID:       event.ID,
			AdminID:       event.AdminID,
			SupplierEmail: viewer.NormalizedEmail(),
		}, nil
	case models.RoleAdmin:
		if strings.TrimSpace(supplierEmail) == "" {
			return models.ConversationKey{}, ErrInvalidKey
		}
		if event.AdminID != viewer.UserID {
			return models.ConversationKey{}, ErrForbidden
		}
		return models.ConversationKey{
			EventID:       event.ID,
			AdminID:       viewer.UserID,
			SupplierEmail: models.NormalizeEmail(supplierEmail),
		}, nil
	default:
		return models.ConversationKey{}, ErrInvalidSession
	}
}

// Load returns the conversation snapshot including the viewer's parked
// offline messages.
func (s *ConversationService) Load(ctx context.Context, viewer models.Session, key models.ConversationKey) ([]models.Message, error) {
	return loadConversation(ctx, s.Messages, s.Offline, key, viewer)
}

func (s *ConversationService) Fetcher(viewer models.Session, key models.ConversationKey) FetchFunc[models.Message] {
	return func(ctx context.Context) ([]models.Message, error) {
		return s.Load(ctx, viewer, key)
	}
}

// Topic listens for inserted messages of this conversation and for peers'
// new_message broadcasts.
func (s *ConversationService) Topic(key models.ConversationKey) Topic {
	return Topic{
		Channel: key.ChannelName(),
		Filter: realtime.ChangeFilter{
			Table:         "messages",
			Actions:       []string{models.ActionInsert},
			EventID:       key.EventID,
			MessageTypes:  models.ConversationMessageTypes,
			SupplierEmail: key.SupplierEmail,
		},
		BroadcastEvent: realtime.EventNewMessage,
	}
}

// Directory lists the conversations the viewer can open.
func (s *ConversationService) Directory(ctx context.Context, viewer models.Session) ([]models.ConversationSummary, error) {
	switch viewer.Role {
	case models.RoleSupplier:
		return s.supplierDirectory(ctx, viewer)
	case models.RoleAdmin:
		return s.adminDirectory(ctx, viewer)
	default:
		return nil, ErrInvalidSession
	}
}

func (s *ConversationService) supplierDirectory(ctx context.Context, viewer models.Session) ([]models.ConversationSummary, error) {
	invites, err := s.Invites.InvitesForSupplier(ctx, viewer.NormalizedEmail())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, inv := range invites {
		if _, ok := seen[inv.EventID]; ok {
			continue
		}
		seen[inv.EventID] = struct{}{}
		ids = append(ids, inv.EventID)
	}

	events := make(map[string]models.Event, len(ids))
	for start := 0; start < len(ids); start += eventLookupChunk {
		end := min(start+eventLookupChunk, len(ids))
		chunk, err := s.Events.EventsByIDs(ctx, ids[start:end])
		if err != nil {
			utils.ErrorLogger.Printf("Error fetching events chunk %d-%d: %v", start, end, err)
			continue
		}
		for _, e := range chunk {
			events[e.ID] = e
		}
	}

	organizers := make(map[string]string)
	out := make([]models.ConversationSummary, 0, len(ids))
	for _, id := range ids {
		event, ok := events[id]
		name := event.Name
		if !ok || name == "" {
			name = placeholderEventName(id)
		}
		adminID := event.AdminID
		if adminID == "" {
			adminID = invitingAdmin(invites, id)
		}
		if _, ok := organizers[adminID]; !ok {
			organizers[adminID] = s.organizerName(ctx, adminID)
		}
		out = append(out, models.ConversationSummary{
			Key:           models.ConversationKey{EventID: id, AdminID: adminID, SupplierEmail: viewer.NormalizedEmail()},
			EventName:     name,
			CounterpartID: adminID,
			Counterpart:   organizers[adminID],
		})
	}
	return out, nil
}

func (s *ConversationService) adminDirectory(ctx context.Context, viewer models.Session) ([]models.ConversationSummary, error) {
	events, err := s.Events.EventsByAdmin(ctx, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if len(events) == 0 {
		return []models.ConversationSummary{}, nil
	}
	names := make(map[string]string, len(events))
	ids := make([]string, 0, len(events))
	for _, e := range events {
		names[e.ID] = e.Name
		ids = append(ids, e.ID)
	}

	invites, err := s.Invites.InvitesForEvents(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	out := make([]models.ConversationSummary, 0, len(invites))
	seen := make(map[models.ConversationKey]struct{})
	for _, inv := range invites {
		key := models.ConversationKey{EventID: inv.EventID, AdminID: viewer.UserID, SupplierEmail: models.NormalizeEmail(inv.SupplierEmail)}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		name := names[inv.EventID]
		if name == "" {
			name = placeholderEventName(inv.EventID)
		}
		counterpart := inv.SupplierName
		if counterpart == "" {
			counterpart = key.SupplierEmail
		}
		out = append(out, models.ConversationSummary{
			Key:           key,
			EventName:     name,
			CounterpartID: key.SupplierEmail,
			Counterpart:   counterpart,
		})
	}
	return out, nil
}

func (s *ConversationService) organizerName(ctx context.Context, adminID string) string {
	if adminID == "" || s.Profiles == nil {
		return defaultOrganizerName
	}
	profile, err := s.Profiles.ProfileByID(ctx, adminID)
	if err != nil || profile == nil {
		return defaultOrganizerName
	}
	switch {
	case profile.CompanyName != "":
		return profile.CompanyName
	case profile.FullName != "":
		return profile.FullName
	default:
		return defaultOrganizerName
	}
}

func placeholderEventName(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("Event (%s...)", short)
}

func invitingAdmin(invites []models.Invite, eventID string) string {
	for _, inv := range invites {
		if inv.EventID == eventID && inv.InvitedByAdminID != "" {
			return inv.InvitedByAdminID
		}
	}
	return ""
}
