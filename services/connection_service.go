package services

import (
	"context"
	"fmt"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/utils"
)

type ConnectionService struct {
	Requests      ConnectionRequestStore
	Notifications NotificationStore
	Profiles      ProfileStore
	Roster        *RosterService
}

// Respond lets a supplier accept or decline a pending request addressed to
// them. The requesting admin is notified either way; accepting also adds each
// side to the other's roster.
func (s *ConnectionService) Respond(ctx context.Context, viewer models.Session, requestID string, accept bool) (*models.ConnectionRequest, error) {
	if !viewer.IsSupplier() {
		return nil, ErrForbidden
	}
	req, err := s.Requests.ConnectionRequestByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if req == nil || models.NormalizeEmail(req.SupplierEmail) != viewer.NormalizedEmail() {
		return nil, ErrNotFound
	}
	if req.Status != models.RequestPending {
		return nil, ErrRequestNotPending
	}

	status, kind, verb := models.RequestDeclined, models.NotificationConnectionDeclined, "declined"
	if accept {
		status, kind, verb = models.RequestAccepted, models.NotificationConnectionAccepted, "accepted"
	}
	if err := s.Requests.UpdateConnectionRequestStatus(ctx, req.ID, status); err != nil {
		return nil, err
	}
	req.Status = status

	supplierName := s.supplierName(ctx, viewer)
	content := string(models.MustJSON(map[string]string{
		"supplier_name":  supplierName,
		"supplier_email": viewer.NormalizedEmail(),
		"message":        fmt.Sprintf("%s has %s your connection request", supplierName, verb),
	}))
	notif := &models.Notification{
		Type:                models.StringPtr(string(kind)),
		Content:             &content,
		AdminUserID:         req.RequesterID,
		SupplierEmail:       viewer.NormalizedEmail(),
		ConnectionRequestID: req.ID,
		Status:              models.StatusUnread,
	}
	if err := s.Notifications.CreateNotification(ctx, notif); err != nil {
		utils.ErrorLogger.Printf("Error notifying admin %s about request %s: %v", req.RequesterID, req.ID, err)
	}

	if accept && s.Roster != nil {
		if err := s.Roster.connect(ctx, models.TableLiaisons, viewer.UserID, req.RequesterName, req.RequesterEmail, req.RequesterEmail); err != nil {
			utils.ErrorLogger.Printf("Error adding liaison for request %s: %v", req.ID, err)
		}
		if err := s.Roster.connect(ctx, models.TablePlanners, req.RequesterID, supplierName, viewer.NormalizedEmail(), req.RequesterEmail); err != nil {
			utils.ErrorLogger.Printf("Error adding planner for request %s: %v", req.ID, err)
		}
	}

	utils.InfoLogger.Printf("Connection request %s %s by %s", req.ID, verb, viewer.NormalizedEmail())
	return req, nil
}

func (s *ConnectionService) supplierName(ctx context.Context, viewer models.Session) string {
	if s.Profiles != nil {
		profile, err := s.Profiles.ProfileByEmail(ctx, viewer.NormalizedEmail())
		if err == nil && profile != nil {
			return profile.PersonName()
		}
	}
	return viewer.NormalizedEmail()
}
