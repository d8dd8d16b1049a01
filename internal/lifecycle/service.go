package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ─── Service ─────────────────────────────────────────────────────────────────

// Service encapsulates the engagement lifecycle for every domain.
// HTTP and gRPC both call into it.
type Service struct {
	store          Store
	events         Publisher
	metrics        Recorder
	log            *zap.Logger
	now            func() time.Time
	strictCapacity bool
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event publisher. The default drops events.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

// WithRecorder sets the transition metrics recorder.
func WithRecorder(r Recorder) Option { return func(s *Service) { s.metrics = r } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithStrictCapacity makes an accept on an exhausted listing fail with
// CodeInvalidState instead of absorbing the missing slot.
func WithStrictCapacity(strict bool) Option {
	return func(s *Service) { s.strictCapacity = strict }
}

// NewService returns a configured Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		events:  nopPublisher{},
		metrics: nopRecorder{},
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Action is a caller-triggered transition on a pending proposal.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionWithdraw Action = "withdraw"
)

// AcceptResult identifies the engagement created by an accept.
// RemainingSlots is nil for unbounded listings.
type AcceptResult struct {
	Engagement     *Engagement
	RemainingSlots *int
}

// ─── Validation gate ─────────────────────────────────────────────────────────

// gate loads a proposal with its listing and enforces the preconditions every
// transition shares: it exists, the status graph allows moving it to `to`,
// and its listing is active.
func (s *Service) gate(ctx context.Context, tx Tx, d Domain, k ProposalKind, id int64, to Status) (*Proposal, *Listing, error) {
	p, l, err := tx.GetProposal(ctx, d, k, id)
	if errors.Is(err, ErrNotExist) {
		return nil, nil, newError(CodeNotFound, k.title()+" not found.")
	}
	if err != nil {
		return nil, nil, internal("load "+string(k), err)
	}
	if !IsTransitionAllowed(p.Status, to) {
		return nil, nil, newError(CodeInvalidState, fmt.Sprintf("%s has already been %s.", k.title(), p.Status))
	}
	if !l.IsActive {
		return nil, nil, newError(CodeInvalidState, fmt.Sprintf("%s is not active.", d))
	}
	return p, l, nil
}

// authorize checks that c has standing to perform a on p. The counterparty
// accepts or rejects; the initiator withdraws.
func authorize(c Caller, a Action, p *Proposal, l *Listing) error {
	want := p.Kind.Counterparty()
	if a == ActionWithdraw {
		want = p.Kind.Initiator()
	}
	ok := c.Role == want
	if ok && want == RoleAlumnus {
		ok = l.OwnerID == c.ProfileID
	}
	if ok && want == RoleStudent {
		ok = p.StudentID == c.ProfileID
	}
	if !ok {
		return newError(CodeForbidden, fmt.Sprintf("You are not authorized to %s this %s %s.", a, p.Domain, p.Kind))
	}
	return nil
}

func alreadyEngaged(k ProposalKind, d Domain) error {
	if k == KindOffer {
		return newError(CodeConflict, fmt.Sprintf("You are already engaged in this %s.", d))
	}
	return newError(CodeConflict, fmt.Sprintf("This student is already engaged in this %s.", d))
}

// ─── Transitions ─────────────────────────────────────────────────────────────

// Accept turns a pending proposal into an engagement. The engagement insert,
// the status flip and the slot decrement commit together or not at all.
func (s *Service) Accept(ctx context.Context, c Caller, d Domain, k ProposalKind, id int64) (*AcceptResult, error) {
	var (
		res AcceptResult
		p   *Proposal
	)
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		var (
			l   *Listing
			err error
		)
		p, l, err = s.gate(ctx, tx, d, k, id, StatusAccepted)
		if err != nil {
			return err
		}
		if err := authorize(c, ActionAccept, p, l); err != nil {
			return err
		}

		// Fast path for a readable error; the insert below is what actually
		// decides a race.
		exists, err := tx.EngagementExists(ctx, d, l.ID, p.StudentID)
		if err != nil {
			return internal("check engagement", err)
		}
		if exists {
			return alreadyEngaged(k, d)
		}

		// The listing may have been deleted since the gate read it.
		locked, err := tx.LockListing(ctx, d, l.ID)
		if errors.Is(err, ErrNotExist) {
			return newError(CodeNotFound, fmt.Sprintf("%s not found.", d))
		}
		if err != nil {
			return internal("lock "+string(d), err)
		}

		e := &Engagement{
			Domain:    d,
			ListingID: l.ID,
			StudentID: p.StudentID,
			AlumnusID: locked.OwnerID,
			Source:    sourceFor(p),
			Status:    EngagementActive,
		}
		if err := tx.InsertEngagement(ctx, e); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return alreadyEngaged(k, d)
			}
			return internal("create engagement", err)
		}

		now := s.now().UTC()
		ok, err := tx.ResolveProposal(ctx, d, k, p.ID, StatusAccepted, &now)
		if err != nil {
			return internal("accept "+string(k), err)
		}
		if !ok {
			return newError(CodeInvalidState, fmt.Sprintf("%s is no longer pending.", k.title()))
		}

		if locked.Bounded() {
			remaining, ok, err := tx.DecrementRemainingSlots(ctx, d, locked.ID)
			if err != nil {
				return internal("decrement slots", err)
			}
			if !ok && s.strictCapacity {
				return newError(CodeInvalidState, fmt.Sprintf("%s has no remaining slots.", d))
			}
			res.RemainingSlots = &remaining
		}
		res.Engagement = e
		return nil
	})
	s.metrics.Transition(d, string(k), string(ActionAccept), outcome(err))
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Event{
		Type:         EventProposalAccepted,
		Domain:       d,
		ListingID:    res.Engagement.ListingID,
		ProposalKind: k,
		ProposalID:   p.ID,
		StudentID:    p.StudentID,
		EngagementID: res.Engagement.ID,
		ActorID:      c.ProfileID,
	})
	return &res, nil
}

// Reject closes a pending proposal on behalf of its counterparty.
func (s *Service) Reject(ctx context.Context, c Caller, d Domain, k ProposalKind, id int64) (*Proposal, error) {
	return s.resolve(ctx, c, d, k, id, ActionReject)
}

// Withdraw closes a pending proposal on behalf of its initiator. Unlike
// accept and reject it does not stamp responded_at.
func (s *Service) Withdraw(ctx context.Context, c Caller, d Domain, k ProposalKind, id int64) (*Proposal, error) {
	return s.resolve(ctx, c, d, k, id, ActionWithdraw)
}

func (s *Service) resolve(ctx context.Context, c Caller, d Domain, k ProposalKind, id int64, a Action) (*Proposal, error) {
	to, eventType := StatusRejected, EventProposalRejected
	if a == ActionWithdraw {
		to, eventType = StatusWithdrawn, EventProposalWithdrawn
	}

	var p *Proposal
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		var (
			l   *Listing
			err error
		)
		p, l, err = s.gate(ctx, tx, d, k, id, to)
		if err != nil {
			return err
		}
		if err := authorize(c, a, p, l); err != nil {
			return err
		}

		var respondedAt *time.Time
		if a == ActionReject {
			now := s.now().UTC()
			respondedAt = &now
		}
		ok, err := tx.ResolveProposal(ctx, d, k, p.ID, to, respondedAt)
		if err != nil {
			return internal(string(a)+" "+string(k), err)
		}
		if !ok {
			return newError(CodeInvalidState, fmt.Sprintf("%s is no longer pending.", k.title()))
		}
		p.Status = to
		if respondedAt != nil {
			p.RespondedAt = respondedAt
		}
		return nil
	})
	s.metrics.Transition(d, string(k), string(a), outcome(err))
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Event{
		Type:         eventType,
		Domain:       d,
		ListingID:    p.ListingID,
		ProposalKind: k,
		ProposalID:   p.ID,
		StudentID:    p.StudentID,
		ActorID:      c.ProfileID,
	})
	return p, nil
}

// ToggleActive flips a listing's is_active flag and returns the new value.
// Existing proposals are left alone; the gate blocks transitions on them
// while the listing is inactive.
func (s *Service) ToggleActive(ctx context.Context, c Caller, d Domain, listingID int64) (bool, error) {
	var active bool
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		l, err := tx.LockListing(ctx, d, listingID)
		if errors.Is(err, ErrNotExist) {
			return newError(CodeNotFound, fmt.Sprintf("%s not found.", d))
		}
		if err != nil {
			return internal("lock "+string(d), err)
		}
		if err := requireOwner(c, l); err != nil {
			return err
		}
		active, err = tx.ToggleListingActive(ctx, d, listingID)
		if err != nil {
			return internal("toggle "+string(d), err)
		}
		return nil
	})
	s.metrics.Transition(d, "listing", "toggle", outcome(err))
	if err != nil {
		return false, err
	}

	s.publish(ctx, Event{
		Type:      EventListingToggled,
		Domain:    d,
		ListingID: listingID,
		ActorID:   c.ProfileID,
		Active:    &active,
	})
	return active, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func requireOwner(c Caller, l *Listing) error {
	if c.Role != RoleAlumnus || l.OwnerID != c.ProfileID {
		return newError(CodeForbidden, fmt.Sprintf("You are not authorized to manage this %s.", l.Domain))
	}
	return nil
}

func requireRole(c Caller, r Role, what string) error {
	if c.Role != r {
		return newError(CodeForbidden, fmt.Sprintf("Only a %s may %s.", r, what))
	}
	return nil
}

// publish delivers e after commit. Failures are logged, never returned.
func (s *Service) publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("publish event failed",
			zap.String("type", e.Type),
			zap.String("domain", string(e.Domain)),
			zap.Int64("listingId", e.ListingID),
			zap.Error(err),
		)
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(CodeOf(err))
}
