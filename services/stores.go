package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/utils"
)

// The interfaces below are the backend collaborators the portal needs. Lookups
// by id return (nil, nil) when the row does not exist.

type Authenticator interface {
	CurrentUser(ctx context.Context) (*models.Identity, error)
}

type MessageStore interface {
	ConversationMessages(ctx context.Context, key models.ConversationKey) ([]models.Message, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	NotificationsFor(ctx context.Context, viewer models.Session, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, viewer models.Session, id string) (int64, error)
	MarkAllNotificationsRead(ctx context.Context, viewer models.Session) (int64, error)
}

type ProfileStore interface {
	ProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	ProfileByID(ctx context.Context, id string) (*models.Profile, error)
}

type EventStore interface {
	EventByID(ctx context.Context, id string) (*models.Event, error)
	EventsByIDs(ctx context.Context, ids []string) ([]models.Event, error)
	EventsByAdmin(ctx context.Context, adminID string) ([]models.Event, error)
}

type InviteStore interface {
	InvitesForSupplier(ctx context.Context, email string) ([]models.Invite, error)
	InvitesForEvents(ctx context.Context, eventIDs []string) ([]models.Invite, error)
}

type ConnectionRequestStore interface {
	ConnectionRequestByID(ctx context.Context, id string) (*models.ConnectionRequest, error)
	UpdateConnectionRequestStatus(ctx context.Context, id, status string) error
}

type RosterStore interface {
	TeamMembers(ctx context.Context, table, ownerID string) ([]models.TeamMember, error)
	CreateTeamMember(ctx context.Context, table string, member *models.TeamMember) error
	DeleteTeamMember(ctx context.Context, table, ownerID, id string) (int64, error)
}

// OfflineStore keeps messages the backend refused, keyed by conversation.
type OfflineStore interface {
	Save(ctx context.Context, key models.ConversationKey, msg models.Message) error
	List(ctx context.Context, key models.ConversationKey) ([]models.Message, error)
	Remove(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, cause error) error
}

// loadConversation fetches the server copy of a conversation and merges in
// the viewer's own messages still waiting in the offline store, ordered by
// timestamp. Parked rows of other senders never reached the server and stay
// hidden.
func loadConversation(ctx context.Context, messages MessageStore, offline OfflineStore, key models.ConversationKey, viewer models.Session) ([]models.Message, error) {
	rows, err := messages.ConversationMessages(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	out := Dedupe(rows)
	if offline != nil {
		local, err := offline.List(ctx, key)
		if err != nil {
			utils.ErrorLogger.Printf("Error reading offline messages for %s: %v", key, err)
		} else {
			own := local[:0]
			for _, m := range local {
				if strings.EqualFold(m.Sender, sessionSender(viewer)) {
					own = append(own, m)
				}
			}
			out = Normalize(out, own)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out, nil
}
