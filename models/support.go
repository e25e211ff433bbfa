package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HelpRequestStatus string

const (
	HelpOpen       HelpRequestStatus = "open"
	HelpInProgress HelpRequestStatus = "in_progress"
	HelpResolved   HelpRequestStatus = "resolved"
)

type HelpRequest struct {
	ID            string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string            `json:"user_id" gorm:"not null;index"`
	Subject       string            `json:"subject" gorm:"not null"`
	Message       string            `json:"message" gorm:"type:text;not null"`
	Status        HelpRequestStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	AdminResponse *string           `json:"admin_response,omitempty" gorm:"type:text"`

	Timestamps
}

func (h *HelpRequest) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Status == "" {
		h.Status = HelpOpen
	}
	return nil
}

// AdminMessage is a notice shown to one user, or to everyone when TargetUserID is nil.
type AdminMessage struct {
	ID           string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title        string  `json:"title" gorm:"not null"`
	Message      string  `json:"message" gorm:"type:text;not null"`
	Type         string  `json:"type" gorm:"type:varchar(16);not null"`
	IsActive     bool    `json:"is_active" gorm:"not null"`
	TargetUserID *string `json:"target_user_id,omitempty" gorm:"index"`

	Timestamps
}

func (m *AdminMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
