package lifecycle

import (
	"fmt"
	"time"
)

// ─── Domains & parties ───────────────────────────────────────────────────────

// Domain selects which family of listings a call operates on. Both domains
// share one state machine; only storage and wording differ.
type Domain string

const (
	DomainInternship Domain = "internship"
	DomainMentorship Domain = "mentorship"
)

// Domains lists every supported domain, in a stable order.
var Domains = []Domain{DomainInternship, DomainMentorship}

// ParseDomain converts a raw string to a Domain.
func ParseDomain(s string) (Domain, error) {
	d := Domain(s)
	switch d {
	case DomainInternship, DomainMentorship:
		return d, nil
	}
	return "", fmt.Errorf("unknown domain %q", s)
}

// Plural is the collection name used in routes ("internships").
func (d Domain) Plural() string { return string(d) + "s" }

// Role is the caller's platform role, as asserted by the identity provider.
type Role string

const (
	RoleAlumnus Role = "alumnus"
	RoleStudent Role = "student"
)

// ParseRole converts a raw string to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	switch r {
	case RoleAlumnus, RoleStudent:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Caller is the authenticated party behind a request. ProfileID references
// the alumni or student profile matching Role. It is trusted as given.
type Caller struct {
	Role      Role
	ProfileID int64
}

// ProposalKind distinguishes the two entry points into an engagement.
type ProposalKind string

const (
	KindOffer       ProposalKind = "offer"       // alumnus → student
	KindApplication ProposalKind = "application" // student → alumnus
)

// ParseProposalKind converts a raw string to a ProposalKind.
func ParseProposalKind(s string) (ProposalKind, error) {
	k := ProposalKind(s)
	switch k {
	case KindOffer, KindApplication:
		return k, nil
	}
	return "", fmt.Errorf("unknown proposal kind %q", s)
}

// Initiator is the role that creates (and may withdraw) a proposal of kind k.
func (k ProposalKind) Initiator() Role {
	if k == KindOffer {
		return RoleAlumnus
	}
	return RoleStudent
}

// Counterparty is the role that may accept or reject a proposal of kind k.
func (k ProposalKind) Counterparty() Role {
	if k == KindOffer {
		return RoleStudent
	}
	return RoleAlumnus
}

func (k ProposalKind) title() string {
	if k == KindOffer {
		return "Offer"
	}
	return "Application"
}

// ─── Listing ─────────────────────────────────────────────────────────────────

// WorkMode is where the work of a listing happens.
type WorkMode string

const (
	WorkRemote WorkMode = "Remote"
	WorkHybrid WorkMode = "Hybrid"
	WorkOnsite WorkMode = "Onsite"
)

// ParseWorkMode converts a raw string to a WorkMode. The empty string is
// accepted and means "not stated".
func ParseWorkMode(s string) (WorkMode, error) {
	m := WorkMode(s)
	switch m {
	case "", WorkRemote, WorkHybrid, WorkOnsite:
		return m, nil
	}
	return "", fmt.Errorf("unknown work mode %q", s)
}

// EngagementType is the time commitment an internship asks for.
type EngagementType string

const (
	EngagementFullTime EngagementType = "Full-time"
	EngagementPartTime EngagementType = "Part-time"
	EngagementContract EngagementType = "Contract"
)

// ParseEngagementType converts a raw string to an EngagementType. The empty
// string is accepted.
func ParseEngagementType(s string) (EngagementType, error) {
	t := EngagementType(s)
	switch t {
	case "", EngagementFullTime, EngagementPartTime, EngagementContract:
		return t, nil
	}
	return "", fmt.Errorf("unknown engagement type %q", s)
}

// Listing is an internship or mentorship opportunity owned by an alumnus.
// AvailableSlots and RemainingSlots are both nil when capacity is unbounded.
//
// EngagementType, Industry, Location, IsPaid, Stipend and the two Require
// flags only apply to internships; Category only applies to mentorships.
type Listing struct {
	ID                 int64
	Domain             Domain
	OwnerID            int64
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
	IsActive           bool
	AvailableSlots     *int
	RemainingSlots     *int
	RequireResume      bool
	RequireCoverLetter bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}

// applyDomain clears the attributes that do not exist in l's domain and
// fills the mentorship work-mode default.
func (l *Listing) applyDomain() {
	switch l.Domain {
	case DomainInternship:
		l.Category = ""
	case DomainMentorship:
		l.EngagementType = ""
		l.Location = ""
		l.Industry = ""
		l.IsPaid = false
		l.Stipend = nil
		l.RequireResume = false
		l.RequireCoverLetter = false
		if l.WorkMode == "" {
			l.WorkMode = WorkRemote
		}
	}
	if l.SkillsRequired == nil {
		l.SkillsRequired = []string{}
	}
}

// validate checks the descriptive attributes of l.
func (l *Listing) validate() error {
	if _, err := ParseWorkMode(string(l.WorkMode)); err != nil {
		return newError(CodeValidation, "work_mode must be one of Remote, Hybrid, Onsite")
	}
	if _, err := ParseEngagementType(string(l.EngagementType)); err != nil {
		return newError(CodeValidation, "engagement_type must be one of Full-time, Part-time, Contract")
	}
	if l.DurationWeeks != nil && *l.DurationWeeks < 0 {
		return newError(CodeValidation, "duration_weeks must not be negative")
	}
	if l.StartDate != nil && l.EndDate != nil && l.EndDate.Before(*l.StartDate) {
		return newError(CodeValidation, "end_date must not be before start_date")
	}
	if l.Stipend != nil {
		if *l.Stipend < 0 {
			return newError(CodeValidation, "stipend must not be negative")
		}
		if !l.IsPaid {
			return newError(CodeValidation, "stipend requires is_paid")
		}
	}
	return nil
}

// Bounded reports whether the listing has a capacity limit.
func (l *Listing) Bounded() bool { return l.AvailableSlots != nil }

// Visible is false once the listing has been soft-deleted.
func (l *Listing) Visible() bool { return l.DeletedAt == nil }

// normalizeSlots applies the first-save default (remaining = available) and
// keeps remaining within available.
func (l *Listing) normalizeSlots() {
	if l.AvailableSlots == nil {
		l.RemainingSlots = nil
		return
	}
	avail := *l.AvailableSlots
	if l.RemainingSlots == nil || *l.RemainingSlots > avail {
		l.RemainingSlots = &avail
	}
}

// DecrementSlots consumes one slot. It returns the remaining count and whether
// the counter changed. Unbounded listings and exhausted listings are left
// untouched; exhaustion is absorbed rather than reported as an error.
func (l *Listing) DecrementSlots() (remaining int, changed bool) {
	if !l.Bounded() || l.RemainingSlots == nil {
		return 0, false
	}
	if *l.RemainingSlots > 0 {
		n := *l.RemainingSlots - 1
		l.RemainingSlots = &n
		return n, true
	}
	return 0, false
}

// ListingPatch carries a partial listing update. Nil fields are left alone.
// ClearSlots makes the listing unbounded and wins over AvailableSlots.
type ListingPatch struct {
	Title              *string
	Description        *string
	Category           *string
	WorkMode           *WorkMode
	EngagementType     *EngagementType
	Location           *string
	Industry           *string
	SkillsRequired     *[]string
	DurationWeeks      *int
	StartDate          *time.Time
	EndDate            *time.Time
	IsPaid             *bool
	Stipend            *float64
	AvailableSlots     *int
	ClearSlots         bool
	RequireResume      *bool
	RequireCoverLetter *bool
}

// ─── Proposals ───────────────────────────────────────────────────────────────

// Proposal is an Offer or an Application. ResumeID and CoverLetter are only
// meaningful for applications.
type Proposal struct {
	ID          int64
	Domain      Domain
	Kind        ProposalKind
	ListingID   int64
	StudentID   int64
	Status      Status
	CoverLetter *string
	ResumeID    *int64
	RespondedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Resume is an uploaded resume reference. The URL is opaque to this package.
type Resume struct {
	ID            int64
	StudentID     int64
	URL           string
	ApplicationID *int64
	UploadedAt    time.Time
}

// ─── Engagement ──────────────────────────────────────────────────────────────

// SourceKind is the persisted discriminator of a Source.
type SourceKind string

const (
	SourceOffer       SourceKind = "offer"
	SourceApplication SourceKind = "application"
	SourceRequest     SourceKind = "request"
)

// Source identifies the proposal an engagement originated from. It is a
// closed set: OfferRef, ApplicationRef and RequestRef.
type Source interface {
	Kind() SourceKind
	ID() int64
	isSource()
}

type OfferRef struct{ OfferID int64 }
type ApplicationRef struct{ ApplicationID int64 }

// RequestRef points at a direct mentorship request. Nothing creates one yet;
// it exists so stored rows with source "request" still decode.
type RequestRef struct{ RequestID int64 }

func (r OfferRef) Kind() SourceKind       { return SourceOffer }
func (r OfferRef) ID() int64              { return r.OfferID }
func (OfferRef) isSource()                {}
func (r ApplicationRef) Kind() SourceKind { return SourceApplication }
func (r ApplicationRef) ID() int64        { return r.ApplicationID }
func (ApplicationRef) isSource()          {}
func (r RequestRef) Kind() SourceKind     { return SourceRequest }
func (r RequestRef) ID() int64            { return r.RequestID }
func (RequestRef) isSource()              {}

// DecodeSource rebuilds a Source from its stored (kind, id) pair.
func DecodeSource(kind string, id int64) (Source, error) {
	switch SourceKind(kind) {
	case SourceOffer:
		return OfferRef{OfferID: id}, nil
	case SourceApplication:
		return ApplicationRef{ApplicationID: id}, nil
	case SourceRequest:
		return RequestRef{RequestID: id}, nil
	}
	return nil, fmt.Errorf("unknown engagement source %q", kind)
}

func sourceFor(p *Proposal) Source {
	if p.Kind == KindOffer {
		return OfferRef{OfferID: p.ID}
	}
	return ApplicationRef{ApplicationID: p.ID}
}

// Engagement is the committed relationship between a student and a listing.
// At most one exists per (listing, student).
type Engagement struct {
	ID        int64
	Domain    Domain
	ListingID int64
	StudentID int64
	AlumnusID int64
	Source    Source
	Status    EngagementStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CapacityDrift compares a bounded listing's slot counter with the number of
// engagements actually recorded against it.
type CapacityDrift struct {
	Domain    Domain
	ListingID int64
	Available int
	Remaining int
	Engaged   int
}

// Drifted reports whether the consumed slots disagree with the engagement
// count. Overbooked listings always drift.
func (c CapacityDrift) Drifted() bool {
	return c.Available-c.Remaining != c.Engaged
}

// Overbooked reports whether more students are engaged than slots exist.
func (c CapacityDrift) Overbooked() bool {
	return c.Engaged > c.Available
}
