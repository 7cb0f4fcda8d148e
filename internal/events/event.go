package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	IdentityProvisioned            EventType = "identity.provisioned"
	IdentityUpdated                EventType = "identity.updated"
	IdentityDeprovisioned          EventType = "identity.deprovisioned"
	IdentitySyncCompleted          EventType = "identity.sync_completed"
	IdentityReconciliationRequired EventType = "identity.reconciliation_required"
)

const (
	eventSource  = "academic-service"
	eventVersion = "1.0"
)

// Event is the envelope published for every identity lifecycle change.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func NewEvent(eventType EventType, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
