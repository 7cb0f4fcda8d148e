package models

import (
	"time"

	"gorm.io/datatypes"
)

type ReconciliationStatus string

const (
	// ReconciliationNeedsCompletion marks a placeholder profile created by a
	// sweep whose academic data must be completed by an administrator.
	ReconciliationNeedsCompletion ReconciliationStatus = "needs_completion"
	// ReconciliationFailed marks an identity the sweep could not mirror.
	ReconciliationFailed ReconciliationStatus = "failed"
	// ReconciliationResolved is set once an authoritative update replaced the
	// placeholder.
	ReconciliationResolved ReconciliationStatus = "resolved"
)

func (s ReconciliationStatus) IsValid() bool {
	switch s {
	case ReconciliationNeedsCompletion, ReconciliationFailed, ReconciliationResolved:
		return true
	}
	return false
}

// ReconciliationRecord is written by the reconciliation sweep for every
// identity it could not mirror from authoritative data.
type ReconciliationRecord struct {
	ID          uint                 `json:"id" gorm:"primaryKey"`
	ExternalID  string               `json:"external_id" gorm:"not null;size:255;index"`
	Username    string               `json:"username" gorm:"size:255"`
	Role        Role                 `json:"role" gorm:"size:20"`
	Status      ReconciliationStatus `json:"status" gorm:"size:30;index"`
	Reason      string               `json:"reason" gorm:"size:500"`
	Details     datatypes.JSON       `json:"details,omitempty" gorm:"type:jsonb"`
	PriorityVer int                  `json:"priority_version"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	ResolvedAt  *time.Time           `json:"resolved_at,omitempty"`
}

func (ReconciliationRecord) TableName() string {
	return "reconciliation_records"
}
