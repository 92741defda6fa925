package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Profile struct {
	ID          string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Email       string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FullName    string    `gorm:"type:varchar(255)" json:"full_name"`
	CompanyName string    `gorm:"type:varchar(255)" json:"company_name"`
	UserType    Role      `gorm:"type:varchar(16)" json:"user_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DisplayName prefers the company, then the person, then the address.
func (p Profile) DisplayName() string {
	switch {
	case p.CompanyName != "":
		return p.CompanyName
	case p.FullName != "":
		return p.FullName
	default:
		return p.Email
	}
}

// PersonName prefers the person over the company.
func (p Profile) PersonName() string {
	switch {
	case p.FullName != "":
		return p.FullName
	case p.CompanyName != "":
		return p.CompanyName
	default:
		return p.Email
	}
}

type Event struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	AdminID   string    `gorm:"type:varchar(64);index" json:"admin_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Invite struct {
	ID               string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	EventID          string    `gorm:"type:varchar(64);index;not null" json:"event_id"`
	SupplierEmail    string    `gorm:"type:varchar(255);index;not null" json:"supplier_email"`
	SupplierName     string    `gorm:"type:varchar(255)" json:"supplier_name"`
	InvitedByAdminID string    `gorm:"type:varchar(64)" json:"invited_by_admin_id"`
	CreatedAt        time.Time `json:"created_at"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

func (i *Invite) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
