package lifecycle

import (
	"context"
	"time"
)

// Event types. Each one is published on a channel of the same name.
const (
	EventProposalCreated   = "EVENT_PROPOSAL_CREATED"
	EventProposalAccepted  = "EVENT_PROPOSAL_ACCEPTED"
	EventProposalRejected  = "EVENT_PROPOSAL_REJECTED"
	EventProposalWithdrawn = "EVENT_PROPOSAL_WITHDRAWN"
	EventListingToggled    = "EVENT_LISTING_TOGGLED"
)

// Event describes a committed transition. Delivery is best-effort and never
// affects the outcome of the transition itself.
type Event struct {
	Type         string       `json:"type"`
	Domain       Domain       `json:"domain"`
	ListingID    int64        `json:"listingId"`
	ProposalKind ProposalKind `json:"proposalKind,omitempty"`
	ProposalID   int64        `json:"proposalId,omitempty"`
	StudentID    int64        `json:"studentId,omitempty"`
	EngagementID int64        `json:"engagementId,omitempty"`
	ActorID      int64        `json:"actorId"`
	Active       *bool        `json:"active,omitempty"`
	At           time.Time    `json:"at"`
}

// Publisher delivers events to interested parties (notification fan-out,
// gateway SSE).
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Recorder receives one observation per attempted transition.
type Recorder interface {
	Transition(d Domain, kind, action, outcome string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

type nopRecorder struct{}

func (nopRecorder) Transition(Domain, string, string, string) {}
