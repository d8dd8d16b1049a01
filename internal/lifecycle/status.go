// Package lifecycle defines the offer/application → engagement state machine
// shared by internships and mentorships.
//
// Valid proposal status graph:
//
//	PENDING ──► ACCEPTED
//	   │
//	   ├──────► REJECTED
//	   │
//	   └──────► WITHDRAWN
//
// ACCEPTED, REJECTED and WITHDRAWN are terminal states.
package lifecycle

import "fmt"

// Status values mirror the status CHECK constraint on the proposal tables.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusAccepted, StatusRejected, StatusWithdrawn},
	// ACCEPTED, REJECTED and WITHDRAWN are terminal, no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusAccepted, StatusRejected, StatusWithdrawn:
		return st, nil
	}
	return "", fmt.Errorf("unknown proposal status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state, no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}

// EngagementStatus values. Engagements are created active; nothing in this
// package moves them further.
type EngagementStatus string

const (
	EngagementActive     EngagementStatus = "active"
	EngagementCompleted  EngagementStatus = "completed"
	EngagementTerminated EngagementStatus = "terminated"
	EngagementArchived   EngagementStatus = "archived"
)

// ParseEngagementStatus converts a raw string to an EngagementStatus.
func ParseEngagementStatus(s string) (EngagementStatus, error) {
	st := EngagementStatus(s)
	switch st {
	case EngagementActive, EngagementCompleted, EngagementTerminated, EngagementArchived:
		return st, nil
	}
	return "", fmt.Errorf("unknown engagement status %q", s)
}
