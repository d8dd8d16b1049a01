package lifecycle

import (
	"context"
	"time"
)

// Reader is the read model used by the service and by reporting jobs.
// Every method hides soft-deleted listings and the proposals and engagements
// hanging off them.
type Reader interface {
	GetListing(ctx context.Context, d Domain, id int64) (*Listing, error)
	ListListings(ctx context.Context, d Domain, f ListingFilter) ([]Listing, error)
	// GetProposal loads a proposal together with its listing.
	GetProposal(ctx context.Context, d Domain, k ProposalKind, id int64) (*Proposal, *Listing, error)
	ListProposals(ctx context.Context, d Domain, k ProposalKind, f Scope) ([]Proposal, error)
	EngagementExists(ctx context.Context, d Domain, listingID, studentID int64) (bool, error)
	GetEngagement(ctx context.Context, d Domain, id int64) (*Engagement, error)
	ListEngagements(ctx context.Context, d Domain, f Scope) ([]Engagement, error)
	GetResume(ctx context.Context, id int64) (*Resume, error)
	CapacityDrift(ctx context.Context, d Domain) ([]CapacityDrift, error)
}

// Tx is a unit of work. Writes are visible to later calls on the same Tx and
// become durable only when the function passed to Store.WithinTx returns nil.
type Tx interface {
	Reader

	// LockListing reads a listing and holds a row lock until the end of the
	// transaction.
	LockListing(ctx context.Context, d Domain, id int64) (*Listing, error)
	InsertListing(ctx context.Context, l *Listing) error
	UpdateListing(ctx context.Context, l *Listing) error
	SoftDeleteListing(ctx context.Context, d Domain, id int64, at time.Time) error
	// ToggleListingActive flips is_active and returns the new value.
	ToggleListingActive(ctx context.Context, d Domain, id int64) (bool, error)
	// DecrementRemainingSlots consumes one slot of a bounded listing. It
	// reports false, and leaves the counter at zero, when no slot was left.
	DecrementRemainingSlots(ctx context.Context, d Domain, id int64) (remaining int, ok bool, err error)

	// InsertProposal returns ErrDuplicate when (listing, student) already has
	// a proposal of the same kind.
	InsertProposal(ctx context.Context, p *Proposal) error
	// ResolveProposal moves a pending proposal to status. It reports false when
	// the proposal was no longer pending. A nil respondedAt leaves the column
	// untouched.
	ResolveProposal(ctx context.Context, d Domain, k ProposalKind, id int64, status Status, respondedAt *time.Time) (bool, error)

	// InsertEngagement returns ErrDuplicate when (listing, student) is already
	// engaged. That constraint is the authoritative guard.
	InsertEngagement(ctx context.Context, e *Engagement) error

	InsertResume(ctx context.Context, r *Resume) error
	// AttachResume binds an unattached resume owned by studentID to an
	// application. It reports false when no such resume exists.
	AttachResume(ctx context.Context, resumeID, studentID, applicationID int64) (bool, error)
}

// Store runs units of work and serves reads outside of them.
type Store interface {
	Reader
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Scope restricts proposal and engagement listings to one party. Exactly one
// of the fields is non-zero.
type Scope struct {
	AlumnusID int64
	StudentID int64
}

// ScopeFor returns the visibility scope of a caller.
func ScopeFor(c Caller) Scope {
	if c.Role == RoleAlumnus {
		return Scope{AlumnusID: c.ProfileID}
	}
	return Scope{StudentID: c.ProfileID}
}

// ListingFilter narrows ListListings. A zero OwnerID lists every visible
// listing; ActiveOnly hides inactive ones.
type ListingFilter struct {
	OwnerID    int64
	ActiveOnly bool
}
