package httpapi

import (
	"time"

	"alumnet/engagement-service/internal/lifecycle"
)

// ─── Request bodies ──────────────────────────────────────────────────────────

// dateLayout is the wire format of start_date and end_date.
const dateLayout = "2006-01-02"

type createListingRequest struct {
	Title              string   `json:"title" validate:"required,max=255"`
	Description        string   `json:"description" validate:"max=5000"`
	Category           string   `json:"category" validate:"max=100"`
	WorkMode           string   `json:"work_mode" validate:"omitempty,oneof=Remote Hybrid Onsite"`
	EngagementType     string   `json:"engagement_type" validate:"omitempty,oneof=Full-time Part-time Contract"`
	Location           string   `json:"location" validate:"max=255"`
	Industry           string   `json:"industry" validate:"max=100"`
	SkillsRequired     []string `json:"skills_required" validate:"omitempty,max=50,dive,required,max=100"`
	DurationWeeks      *int     `json:"duration_weeks" validate:"omitempty,min=0"`
	StartDate          *string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate            *string  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	IsPaid             bool     `json:"is_paid"`
	Stipend            *float64 `json:"stipend" validate:"omitempty,min=0"`
	AvailableSlots     *int     `json:"available_slots" validate:"omitempty,min=0"`
	RequireResume      *bool    `json:"require_resume"`
	RequireCoverLetter bool     `json:"require_cover_letter"`
}

func (r createListingRequest) listing() (lifecycle.NewListing, error) {
	start, err := parseDate(r.StartDate)
	if err != nil {
		return lifecycle.NewListing{}, err
	}
	end, err := parseDate(r.EndDate)
	if err != nil {
		return lifecycle.NewListing{}, err
	}
	return lifecycle.NewListing{
		Title:              r.Title,
		Description:        r.Description,
		Category:           r.Category,
		WorkMode:           lifecycle.WorkMode(r.WorkMode),
		EngagementType:     lifecycle.EngagementType(r.EngagementType),
		Location:           r.Location,
		Industry:           r.Industry,
		SkillsRequired:     r.SkillsRequired,
		DurationWeeks:      r.DurationWeeks,
		StartDate:          start,
		EndDate:            end,
		IsPaid:             r.IsPaid,
		Stipend:            r.Stipend,
		AvailableSlots:     r.AvailableSlots,
		RequireResume:      r.RequireResume,
		RequireCoverLetter: r.RequireCoverLetter,
	}, nil
}

type updateListingRequest struct {
	Title              *string   `json:"title" validate:"omitempty,max=255"`
	Description        *string   `json:"description" validate:"omitempty,max=5000"`
	Category           *string   `json:"category" validate:"omitempty,max=100"`
	WorkMode           *string   `json:"work_mode" validate:"omitempty,oneof=Remote Hybrid Onsite"`
	EngagementType     *string   `json:"engagement_type" validate:"omitempty,oneof=Full-time Part-time Contract"`
	Location           *string   `json:"location" validate:"omitempty,max=255"`
	Industry           *string   `json:"industry" validate:"omitempty,max=100"`
	SkillsRequired     *[]string `json:"skills_required" validate:"omitempty,max=50,dive,required,max=100"`
	DurationWeeks      *int      `json:"duration_weeks" validate:"omitempty,min=0"`
	StartDate          *string   `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate            *string   `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	IsPaid             *bool     `json:"is_paid"`
	Stipend            *float64  `json:"stipend" validate:"omitempty,min=0"`
	AvailableSlots     *int      `json:"available_slots" validate:"omitempty,min=0"`
	Unbounded          bool      `json:"unbounded"`
	RequireResume      *bool     `json:"require_resume"`
	RequireCoverLetter *bool     `json:"require_cover_letter"`
}

func (r updateListingRequest) patch() (lifecycle.ListingPatch, error) {
	start, err := parseDate(r.StartDate)
	if err != nil {
		return lifecycle.ListingPatch{}, err
	}
	end, err := parseDate(r.EndDate)
	if err != nil {
		return lifecycle.ListingPatch{}, err
	}
	p := lifecycle.ListingPatch{
		Title:              r.Title,
		Description:        r.Description,
		Category:           r.Category,
		Location:           r.Location,
		Industry:           r.Industry,
		SkillsRequired:     r.SkillsRequired,
		DurationWeeks:      r.DurationWeeks,
		StartDate:          start,
		EndDate:            end,
		IsPaid:             r.IsPaid,
		Stipend:            r.Stipend,
		AvailableSlots:     r.AvailableSlots,
		ClearSlots:         r.Unbounded,
		RequireResume:      r.RequireResume,
		RequireCoverLetter: r.RequireCoverLetter,
	}
	if r.WorkMode != nil {
		m := lifecycle.WorkMode(*r.WorkMode)
		p.WorkMode = &m
	}
	if r.EngagementType != nil {
		t := lifecycle.EngagementType(*r.EngagementType)
		p.EngagementType = &t
	}
	return p, nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

type createOfferRequest struct {
	ListingID int64 `json:"listing_id" validate:"required,gt=0"`
	StudentID int64 `json:"student_id" validate:"required,gt=0"`
}

type createApplicationRequest struct {
	ListingID   int64   `json:"listing_id" validate:"required,gt=0"`
	CoverLetter *string `json:"cover_letter" validate:"omitempty,max=10000"`
	ResumeID    *int64  `json:"resume_id" validate:"omitempty,gt=0"`
}

type uploadResumeRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// ─── Response shapes ─────────────────────────────────────────────────────────

type listingResponse struct {
	ID                 int64     `json:"id"`
	OwnerID            int64     `json:"owner_id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Category           string    `json:"category,omitempty"`
	WorkMode           string    `json:"work_mode,omitempty"`
	EngagementType     string    `json:"engagement_type,omitempty"`
	Location           string    `json:"location,omitempty"`
	Industry           string    `json:"industry,omitempty"`
	SkillsRequired     []string  `json:"skills_required"`
	DurationWeeks      *int      `json:"duration_weeks"`
	StartDate          *string   `json:"start_date"`
	EndDate            *string   `json:"end_date"`
	IsPaid             bool      `json:"is_paid"`
	Stipend            *float64  `json:"stipend"`
	IsActive           bool      `json:"is_active"`
	AvailableSlots     *int      `json:"available_slots"`
	RemainingSlots     *int      `json:"remaining_slots"`
	RequireResume      bool      `json:"require_resume"`
	RequireCoverLetter bool      `json:"require_cover_letter"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toListing(l *lifecycle.Listing) listingResponse {
	skills := l.SkillsRequired
	if skills == nil {
		skills = []string{}
	}
	return listingResponse{
		ID:                 l.ID,
		OwnerID:            l.OwnerID,
		Title:              l.Title,
		Description:        l.Description,
		Category:           l.Category,
		WorkMode:           string(l.WorkMode),
		EngagementType:     string(l.EngagementType),
		Location:           l.Location,
		Industry:           l.Industry,
		SkillsRequired:     skills,
		DurationWeeks:      l.DurationWeeks,
		StartDate:          formatDate(l.StartDate),
		EndDate:            formatDate(l.EndDate),
		IsPaid:             l.IsPaid,
		Stipend:            l.Stipend,
		IsActive:           l.IsActive,
		AvailableSlots:     l.AvailableSlots,
		RemainingSlots:     l.RemainingSlots,
		RequireResume:      l.RequireResume,
		RequireCoverLetter: l.RequireCoverLetter,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}

type proposalResponse struct {
	ID          int64      `json:"id"`
	Kind        string     `json:"kind"`
	ListingID   int64      `json:"listing_id"`
	StudentID   int64      `json:"student_id"`
	Status      string     `json:"status"`
	CoverLetter *string    `json:"cover_letter,omitempty"`
	ResumeID    *int64     `json:"resume_id,omitempty"`
	RespondedAt *time.Time `json:"responded_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toProposal(p *lifecycle.Proposal) proposalResponse {
	return proposalResponse{
		ID:          p.ID,
		Kind:        string(p.Kind),
		ListingID:   p.ListingID,
		StudentID:   p.StudentID,
		Status:      string(p.Status),
		CoverLetter: p.CoverLetter,
		ResumeID:    p.ResumeID,
		RespondedAt: p.RespondedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type sourceResponse struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

type engagementResponse struct {
	ID        int64          `json:"id"`
	ListingID int64          `json:"listing_id"`
	StudentID int64          `json:"student_id"`
	AlumnusID int64          `json:"alumnus_id"`
	Source    sourceResponse `json:"source"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func toEngagement(e *lifecycle.Engagement) engagementResponse {
	return engagementResponse{
		ID:        e.ID,
		ListingID: e.ListingID,
		StudentID: e.StudentID,
		AlumnusID: e.AlumnusID,
		Source:    sourceResponse{Kind: string(e.Source.Kind()), ID: e.Source.ID()},
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

type acceptResponse struct {
	Detail         string `json:"detail"`
	EngagementID   int64  `json:"engagement_id"`
	RemainingSlots *int   `json:"remaining_slots,omitempty"`
}

type resumeResponse struct {
	ResumeID   int64     `json:"resume_id"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func mapSlice[T, R any](in []T, f func(*T) R) []R {
	out := make([]R, 0, len(in))
	for i := range in {
		out = append(out, f(&in[i]))
	}
	return out
}
