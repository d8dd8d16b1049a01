package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ─── Listings ────────────────────────────────────────────────────────────────

// NewListing describes a listing to create. RequireResume defaults to true
// for internships when nil.
type NewListing struct {
	Title              string
	Description        string
	Category           string
	WorkMode           WorkMode
	EngagementType     EngagementType
	Location           string
	Industry           string
	SkillsRequired     []string
	DurationWeeks      *int
	StartDate          *time.Time
	EndDate            *time.Time
	IsPaid             bool
	Stipend            *float64
	AvailableSlots     *int
	RequireResume      *bool
	RequireCoverLetter bool
}

// CreateListing stores a new active listing owned by the calling alumnus.
func (s *Service) CreateListing(ctx context.Context, c Caller, d Domain, in NewListing) (*Listing, error) {
	if err := requireRole(c, RoleAlumnus, "create a "+string(d)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, newError(CodeValidation, "title is required")
	}
	if in.AvailableSlots != nil && *in.AvailableSlots < 0 {
		return nil, newError(CodeValidation, "available_slots must not be negative")
	}

	requireResume := true
	if in.RequireResume != nil {
		requireResume = *in.RequireResume
	}
	l := &Listing{
		Domain:             d,
		OwnerID:            c.ProfileID,
		Title:              in.Title,
		Description:        in.Description,
		Category:           in.Category,
		WorkMode:           in.WorkMode,
		EngagementType:     in.EngagementType,
		Location:           in.Location,
		Industry:           in.Industry,
		SkillsRequired:     append([]string(nil), in.SkillsRequired...),
		DurationWeeks:      in.DurationWeeks,
		StartDate:          in.StartDate,
		EndDate:            in.EndDate,
		IsPaid:             in.IsPaid,
		Stipend:            in.Stipend,
		IsActive:           true,
		AvailableSlots:     in.AvailableSlots,
		RequireResume:      requireResume,
		RequireCoverLetter: in.RequireCoverLetter,
	}
	l.applyDomain()
	if err := l.validate(); err != nil {
		return nil, err
	}
	l.normalizeSlots()

	err := s.store.WithinTx(ctx, func(tx Tx) error {
		return tx.InsertListing(ctx, l)
	})
	if err != nil {
		return nil, internal("create "+string(d), err)
	}
	return l, nil
}

// GetListing returns a visible listing. Any authenticated caller may read it.
func (s *Service) GetListing(ctx context.Context, d Domain, id int64) (*Listing, error) {
	l, err := s.store.GetListing(ctx, d, id)
	if errors.Is(err, ErrNotExist) {
		return nil, newError(CodeNotFound, fmt.Sprintf("%s not found.", d))
	}
	if err != nil {
		return nil, internal("load "+string(d), err)
	}
	return l, nil
}

// ListListings returns the caller's own listings for an alumnus, and every
// active listing for a student.
func (s *Service) ListListings(ctx context.Context, c Caller, d Domain) ([]Listing, error) {
	f := ListingFilter{ActiveOnly: true}
	if c.Role == RoleAlumnus {
		f = ListingFilter{OwnerID: c.ProfileID}
	}
	items, err := s.store.ListListings(ctx, d, f)
	if err != nil {
		return nil, internal("list "+d.Plural(), err)
	}
	return items, nil
}

// UpdateListing applies a partial update on behalf of the owner.
func (s *Service) UpdateListing(ctx context.Context, c Caller, d Domain, id int64, patch ListingPatch) (*Listing, error) {
	var out *Listing
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		l, err := tx.LockListing(ctx, d, id)
		if errors.Is(err, ErrNotExist) {
			return newError(CodeNotFound, fmt.Sprintf("%s not found.", d))
		}
		if err != nil {
			return internal("lock "+string(d), err)
		}
		if err := requireOwner(c, l); err != nil {
			return err
		}

		if patch.Title != nil {
			if strings.TrimSpace(*patch.Title) == "" {
				return newError(CodeValidation, "title must not be empty")
			}
			l.Title = *patch.Title
		}
		patch.apply(l)
		switch {
		case patch.ClearSlots:
			l.AvailableSlots = nil
		case patch.AvailableSlots != nil:
			if *patch.AvailableSlots < 0 {
				return newError(CodeValidation, "available_slots must not be negative")
			}
			avail := *patch.AvailableSlots
			l.AvailableSlots = &avail
		}
		l.applyDomain()
		if err := l.validate(); err != nil {
			return err
		}
		l.normalizeSlots()

		if err := tx.UpdateListing(ctx, l); err != nil {
			return internal("update "+string(d), err)
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// apply copies the descriptive fields of p onto l. Title and slots carry
// their own rules and are handled by UpdateListing.
func (p ListingPatch) apply(l *Listing) {
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Category != nil {
		l.Category = *p.Category
	}
	if p.WorkMode != nil {
		l.WorkMode = *p.WorkMode
	}
	if p.EngagementType != nil {
		l.EngagementType = *p.EngagementType
	}
	if p.Location != nil {
		l.Location = *p.Location
	}
	if p.Industry != nil {
		l.Industry = *p.Industry
	}
	if p.SkillsRequired != nil {
		l.SkillsRequired = append([]string(nil), (*p.SkillsRequired)...)
	}
	if p.DurationWeeks != nil {
		l.DurationWeeks = p.DurationWeeks
	}
	if p.StartDate != nil {
		l.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		l.EndDate = p.EndDate
	}
	if p.IsPaid != nil {
		l.IsPaid = *p.IsPaid
		if !l.IsPaid && p.Stipend == nil {
			l.Stipend = nil
		}
	}
	if p.Stipend != nil {
		l.Stipend = p.Stipend
	}
	if p.RequireResume != nil {
		l.RequireResume = *p.RequireResume
	}
	if p.RequireCoverLetter != nil {
		l.RequireCoverLetter = *p.RequireCoverLetter
	}
}

// DeleteListing soft-deletes a listing. Its proposals and engagements stop
// being visible through every read path.
func (s *Service) DeleteListing(ctx context.Context, c Caller, d Domain, id int64) error {
	return s.store.WithinTx(ctx, func(tx Tx) error {
		l, err := tx.LockListing(ctx, d, id)
		if errors.Is(err, ErrNotExist) {
			return newError(CodeNotFound, fmt.Sprintf("%s not found.", d))
		}
		if err != nil {
			return internal("lock "+string(d), err)
		}
		if err := requireOwner(c, l); err != nil {
			return err
		}
		if err := tx.SoftDeleteListing(ctx, d, id, s.now().UTC()); err != nil {
			return internal("delete "+string(d), err)
		}
		return nil
	})
}

// ─── Proposals ───────────────────────────────────────────────────────────────

// CreateOffer records a pending offer from the listing owner to a student.
func (s *Service) CreateOffer(ctx context.Context, c Caller, d Domain, listingID, studentID int64) (*Proposal, error) {
	if err := requireRole(c, RoleAlumnus, "send offers"); err != nil {
		return nil, err
	}
	if studentID <= 0 {
		return nil, newError(CodeValidation, "student_id is required")
	}

	p := &Proposal{
		Domain:    d,
		Kind:      KindOffer,
		ListingID: listingID,
		StudentID: studentID,
		Status:    StatusPending,
	}
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		l, err := s.openListing(ctx, tx, d, listingID)
		if err != nil {
			return err
		}
		if err := requireOwner(c, l); err != nil {
			return err
		}
		if !l.IsActive {
			return newError(CodeInvalidState, fmt.Sprintf("This %s is inactive. You cannot send new offers.", d))
		}
		if err := tx.InsertProposal(ctx, p); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return newError(CodeConflict, fmt.Sprintf("You have already offered this %s.", d))
			}
			return internal("create offer", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Event{
		Type:         EventProposalCreated,
		Domain:       d,
		ListingID:    listingID,
		ProposalKind: KindOffer,
		ProposalID:   p.ID,
		StudentID:    studentID,
		ActorID:      c.ProfileID,
	})
	return p, nil
}

const errResumeUnavailable = "resume not found or already attached to an application"

// NewApplication describes an application to submit.
type NewApplication struct {
	ListingID   int64
	CoverLetter *string
	ResumeID    *int64
}

// CreateApplication records a pending application from the calling student.
// A resume, when given, must belong to the student and not be attached to
// another application; it is attached in the same transaction.
func (s *Service) CreateApplication(ctx context.Context, c Caller, d Domain, in NewApplication) (*Proposal, error) {
	if err := requireRole(c, RoleStudent, "apply"); err != nil {
		return nil, err
	}

	p := &Proposal{
		Domain:      d,
		Kind:        KindApplication,
		ListingID:   in.ListingID,
		StudentID:   c.ProfileID,
		Status:      StatusPending,
		CoverLetter: in.CoverLetter,
		ResumeID:    in.ResumeID,
	}
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		l, err := s.openListing(ctx, tx, d, in.ListingID)
		if err != nil {
			return err
		}
		if !l.IsActive {
			return newError(CodeInvalidState, fmt.Sprintf("This %s is no longer active.", d))
		}
		if needsCoverLetter(l) && (in.CoverLetter == nil || strings.TrimSpace(*in.CoverLetter) == "") {
			return newError(CodeValidation, fmt.Sprintf("A cover letter is required to apply for this %s.", d))
		}
		if l.RequireResume && in.ResumeID == nil {
			return newError(CodeValidation, fmt.Sprintf("You must upload a resume before applying for this %s.", d))
		}
		if in.ResumeID != nil {
			r, err := tx.GetResume(ctx, *in.ResumeID)
			if err != nil && !errors.Is(err, ErrNotExist) {
				return internal("load resume", err)
			}
			if r == nil || r.StudentID != c.ProfileID || r.ApplicationID != nil {
				return newError(CodeValidation, errResumeUnavailable)
			}
		}
		if err := tx.InsertProposal(ctx, p); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return newError(CodeConflict, fmt.Sprintf("You have already applied for this %s.", d))
			}
			return internal("create application", err)
		}
		if in.ResumeID != nil {
			ok, err := tx.AttachResume(ctx, *in.ResumeID, c.ProfileID, p.ID)
			if err != nil {
				return internal("attach resume", err)
			}
			if !ok {
				return newError(CodeValidation, errResumeUnavailable)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Event{
		Type:         EventProposalCreated,
		Domain:       d,
		ListingID:    in.ListingID,
		ProposalKind: KindApplication,
		ProposalID:   p.ID,
		StudentID:    c.ProfileID,
		ActorID:      c.ProfileID,
	})
	return p, nil
}

// needsCoverLetter reports whether applications to l must carry a cover
// letter. Mentorship applications always do.
func needsCoverLetter(l *Listing) bool {
	return l.Domain == DomainMentorship || l.RequireCoverLetter
}

func (s *Service) openListing(ctx context.Context, tx Tx, d Domain, id int64) (*Listing, error) {
	l, err := tx.GetListing(ctx, d, id)
	if errors.Is(err, ErrNotExist) {
		return nil, newError(CodeNotFound, fmt.Sprintf("%s not found.", d))
	}
	if err != nil {
		return nil, internal("load "+string(d), err)
	}
	return l, nil
}

// GetProposal returns a proposal visible to the caller: an alumnus sees
// proposals on their own listings, a student sees their own.
func (s *Service) GetProposal(ctx context.Context, c Caller, d Domain, k ProposalKind, id int64) (*Proposal, error) {
	p, l, err := s.store.GetProposal(ctx, d, k, id)
	if errors.Is(err, ErrNotExist) {
		return nil, newError(CodeNotFound, k.title()+" not found.")
	}
	if err != nil {
		return nil, internal("load "+string(k), err)
	}
	visible := (c.Role == RoleAlumnus && l.OwnerID == c.ProfileID) ||
		(c.Role == RoleStudent && p.StudentID == c.ProfileID)
	if !visible {
		return nil, newError(CodeNotFound, k.title()+" not found.")
	}
	return p, nil
}

// ListProposals returns the proposals of kind k visible to the caller, newest
// first.
func (s *Service) ListProposals(ctx context.Context, c Caller, d Domain, k ProposalKind) ([]Proposal, error) {
	items, err := s.store.ListProposals(ctx, d, k, ScopeFor(c))
	if err != nil {
		return nil, internal("list "+string(k)+"s", err)
	}
	return items, nil
}

// ─── Engagements ─────────────────────────────────────────────────────────────

// GetEngagement returns an engagement the caller is party to.
func (s *Service) GetEngagement(ctx context.Context, c Caller, d Domain, id int64) (*Engagement, error) {
	e, err := s.store.GetEngagement(ctx, d, id)
	if errors.Is(err, ErrNotExist) {
		return nil, newError(CodeNotFound, "Engagement not found.")
	}
	if err != nil {
		return nil, internal("load engagement", err)
	}
	visible := (c.Role == RoleAlumnus && e.AlumnusID == c.ProfileID) ||
		(c.Role == RoleStudent && e.StudentID == c.ProfileID)
	if !visible {
		return nil, newError(CodeNotFound, "Engagement not found.")
	}
	return e, nil
}

// ListEngagements returns the engagements the caller is party to.
func (s *Service) ListEngagements(ctx context.Context, c Caller, d Domain) ([]Engagement, error) {
	items, err := s.store.ListEngagements(ctx, d, ScopeFor(c))
	if err != nil {
		return nil, internal("list engagements", err)
	}
	return items, nil
}

// ─── Resumes ─────────────────────────────────────────────────────────────────

// RegisterResume stores a resume reference produced by the file store.
func (s *Service) RegisterResume(ctx context.Context, c Caller, url string) (*Resume, error) {
	if err := requireRole(c, RoleStudent, "upload a resume"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(url) == "" {
		return nil, newError(CodeValidation, "Resume not provided")
	}
	r := &Resume{StudentID: c.ProfileID, URL: url}
	if err := s.store.WithinTx(ctx, func(tx Tx) error {
		return tx.InsertResume(ctx, r)
	}); err != nil {
		return nil, internal("store resume", err)
	}
	return r, nil
}
