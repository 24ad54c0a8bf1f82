// Package store mirrors the rendered status board to Redis and carries board
// mutation events over Redis Pub/Sub.
//
// Only the rendered board text is kept. It is the same text posted to the
// transcript channel and serves as a second seed source when that message
// cannot be read back.
package store

import (
	"fmt"

	"github.com/google/uuid"
)

// EventKind names a board mutation.
type EventKind string

const (
	EventStarted        EventKind = "started"
	EventChallengeAdded EventKind = "challenge_added"
	EventSolved         EventKind = "solved"
	EventAssigned       EventKind = "assigned"
	EventUnassigned     EventKind = "unassigned"
	EventVulnAdded      EventKind = "vuln_added"
	EventVulnPatched    EventKind = "vuln_patched"
	EventVulnExploited  EventKind = "vuln_exploited"
	EventArchived       EventKind = "archived"
	EventNuked          EventKind = "nuked"
)

// Event describes one successful board mutation.
type Event struct {
	ID          string    `json:"id"`                  // UUID
	Kind        EventKind `json:"kind"`                // What happened
	Category    string    `json:"category,omitempty"`  // Board category, if any
	Challenge   string    `json:"challenge,omitempty"` // Challenge name, if any
	Vuln        string    `json:"vuln,omitempty"`      // Vulnerability name, AD only
	Player      string    `json:"player,omitempty"`    // Assigned/unassigned player
	Detail      string    `json:"detail,omitempty"`    // Free text (mode, archive name, ...)
	Actor       string    `json:"actor"`               // Who issued the command
	CreatedAtMs int64     `json:"created_at_ms"`       // Unix milliseconds
}

// Validate checks if the Event has valid field values.
func (e *Event) Validate() error {
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("invalid event ID: not a valid UUID")
	}
	if err := e.Kind.Validate(); err != nil {
		return fmt.Errorf("invalid kind: %w", err)
	}
	if e.Actor == "" {
		return fmt.Errorf("actor cannot be empty")
	}
	return nil
}

// Validate checks if the EventKind is a valid enum value.
func (k EventKind) Validate() error {
	switch k {
	case EventStarted, EventChallengeAdded, EventSolved, EventAssigned, EventUnassigned,
		EventVulnAdded, EventVulnPatched, EventVulnExploited, EventArchived, EventNuked:
		return nil
	default:
		return fmt.Errorf("unknown event kind: %q", k)
	}
}
