package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeAssignmentsCreated Type = "assignments_created"
	TypeArtifactUploaded   Type = "artifact_uploaded"
)

// Event carries identifiers only, not full state.
// Subscribers fetch fresh status from the artifact service.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      Type      `json:"type"`
	Worker    string    `json:"worker,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func New(eventType Type, worker, filename string) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Worker:    worker,
		Filename:  filename,
		Timestamp: time.Now().UTC(),
	}
}
