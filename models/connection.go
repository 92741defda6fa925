package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

type ConnectionRequest struct {
	ID             string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	RequesterID    string    `gorm:"type:varchar(64);index;not null" json:"requester_id"`
	RequesterName  string    `gorm:"type:varchar(255)" json:"requester_name"`
	RequesterEmail string    `gorm:"type:varchar(255)" json:"requester_email"`
	SupplierID     string    `gorm:"type:varchar(64);index" json:"supplier_id"`
	SupplierEmail  string    `gorm:"type:varchar(255);index;not null" json:"supplier_email"`
	Status         string    `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (r *ConnectionRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = RequestPending
	}
	return nil
}

// Roster tables. Suppliers keep liaisons, admins keep planners; both share
// the TeamMember shape.
const (
	TableLiaisons = "liaisons"
	TablePlanners = "planners"
)

// RosterTable returns the roster table owned by role.
func RosterTable(role Role) string {
	if role == RoleAdmin {
		return TablePlanners
	}
	return TableLiaisons
}

// TeamMember is a roster entry. AdminEmail is set on connections the system
// established and empty on contacts entered by hand.
type TeamMember struct {
	ID         string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	OwnerID    string    `gorm:"column:user_id;type:varchar(64);not null" json:"owner_id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Email      string    `gorm:"type:varchar(255);not null" json:"email"`
	AdminEmail *string   `gorm:"type:varchar(255)" json:"admin_email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (m TeamMember) IsConnection() bool {
	return m.AdminEmail != nil && *m.AdminEmail != ""
}

func (m *TeamMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
