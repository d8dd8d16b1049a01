// Package store provides lifecycle.Store implementations: Postgres for
// production and Memory for tests and local runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"alumnet/engagement-service/internal/lifecycle"
)

// uniqueViolation is the SQLSTATE raised by a UNIQUE constraint.
const uniqueViolation = "23505"

// tables names the relations backing one domain. Both domains share one
// column layout.
type tables struct {
	listings     string
	offers       string
	applications string
	engagements  string
}

var domainTables = map[lifecycle.Domain]tables{
	lifecycle.DomainInternship: {
		listings:     "internships",
		offers:       "internship_offers",
		applications: "internship_applications",
		engagements:  "internship_engagements",
	},
	lifecycle.DomainMentorship: {
		listings:     "mentorships",
		offers:       "mentorship_offers",
		applications: "mentorship_applications",
		engagements:  "mentorship_engagements",
	},
}

func tablesFor(d lifecycle.Domain) (tables, error) {
	t, ok := domainTables[d]
	if !ok {
		return tables{}, fmt.Errorf("no tables for domain %q", d)
	}
	return t, nil
}

func (t tables) proposals(k lifecycle.ProposalKind) string {
	if k == lifecycle.KindOffer {
		return t.offers
	}
	return t.applications
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements lifecycle.Store on a pgx connection pool.
type Postgres struct {
	queries
	pool *pgxpool.Pool
}

// NewPostgres returns a Store backed by pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{queries: queries{q: pool}, pool: pool}
}

// WithinTx implements lifecycle.Store. The transaction commits when fn
// returns nil and rolls back otherwise.
func (p *Postgres) WithinTx(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{queries{q: tx}})
	})
}

func classify(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return lifecycle.ErrNotExist
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", lifecycle.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// ─── Reads ───────────────────────────────────────────────────────────────────

type queries struct {
	q querier
}

const listingColumns = `l.id, l.owner_id, l.title, l.description, l.category,
	l.work_mode, l.engagement_type, l.location, l.industry, l.skills_required,
	l.duration_weeks, l.start_date, l.end_date, l.is_paid, l.stipend::float8,
	l.is_active, l.available_slots, l.remaining_slots,
	l.require_resume, l.require_cover_letter,
	l.created_at, l.updated_at, l.deleted_at`

// listingDest returns scan targets matching listingColumns. The two string
// enums are scanned through their own types.
func listingDest(l *lifecycle.Listing, workMode, engagementType *string) []any {
	return []any{
		&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.Category,
		workMode, engagementType, &l.Location, &l.Industry, &l.SkillsRequired,
		&l.DurationWeeks, &l.StartDate, &l.EndDate, &l.IsPaid, &l.Stipend,
		&l.IsActive, &l.AvailableSlots, &l.RemainingSlots,
		&l.RequireResume, &l.RequireCoverLetter,
		&l.CreatedAt, &l.UpdatedAt, &l.DeletedAt,
	}
}

func scanListing(row pgx.Row, d lifecycle.Domain) (*lifecycle.Listing, error) {
	l := lifecycle.Listing{Domain: d}
	var workMode, engagementType string
	if err := row.Scan(listingDest(&l, &workMode, &engagementType)...); err != nil {
		return nil, classify(err)
	}
	l.WorkMode = lifecycle.WorkMode(workMode)
	l.EngagementType = lifecycle.EngagementType(engagementType)
	return &l, nil
}

func (r queries) GetListing(ctx context.Context, d lifecycle.Domain, id int64) (*lifecycle.Listing, error) {
	t, err := tablesFor(d)
	if err != nil {
		return nil, err
	}
	return scanListing(r.q.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s l WHERE l.id = $1 AND l.deleted_at IS NULL`, listingColumns, t.listings),
		id,
	), d)
}

func (r queries) ListListings(ctx context.Context, d lifecycle.Domain, f lifecycle.ListingFilter) ([]lifecycle.Listing, error) {
	t, err := tablesFor(d)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s l
		 WHERE l.deleted_at IS NULL
		   AND ($1::bigint = 0 OR l.owner_id = $1)
		   AND (NOT $2::boolean OR l.is_active)
		 ORDER BY l.created_at DESC, l.id DESC`, listingColumns, t.listings),
		f.OwnerID, f.ActiveOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("listListings query: %w", err)
	}
	defer rows.Close()

	items := make([]lifecycle.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows, d)
		if err != nil {
			return nil, fmt.Errorf("listListings scan: %w", err)
		}
		items = append(items, *l)
	}
	return items, rows.Err()
}

func proposalColumns(k lifecycle.ProposalKind) string {
	if k == lifecycle.KindOffer {
		return `p.id, p.listing_id, p.student_id, p.status, NULL::text, NULL::bigint,
			p.responded_at, p.created_at, p.updated_at`
	}
	return `p.id, p.listing_id, p.student_id, p.status, p.cover_letter, p.resume_id,
		p.responded_at, p.created_at, p.updated_at`
}

func scanProposal(row pgx.Row, d lifecycle.Domain, k lifecycle.ProposalKind, extra ...any) (*lifecycle.Proposal, error) {
	p := lifecycle.Proposal{Domain: d, Kind: k}
	var status string
	dest := append([]any{
		&p.ID, &p.ListingID, &p.StudentID, &status, &p.CoverLetter, &p.ResumeID,
		&p.RespondedAt, &p.CreatedAt, &p.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, classify(err)
	}
	st, err := lifecycle.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	p.Status = st
	return &p, nil
}

func (r queries) GetProposal(ctx context.Context, d lifecycle.Domain, k lifecycle.ProposalKind, id int64) (*lifecycle.Proposal, *lifecycle.Listing, error) {
	t, err := tablesFor(d)
	if err != nil {
		return nil, nil, err
	}
	l := lifecycle.Listing{Domain: d}
	var workMode, engagementType string
	p, err := scanProposal(r.q.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s, %s
		 FROM %s p
		 JOIN %s l ON l.id = p.listing_id
		 WHERE p.id = $1 AND l.deleted_at IS NULL`,
			proposalColumns(k), listingColumns, t.proposals(k), t.listings),
		id,
	), d, k, listingDest(&l, &workMode, &engagementType)...)
	if err != nil {
		return nil, nil, err
	}
	l.WorkMode = lifecycle.WorkMode(workMode)
	l.EngagementType = lifecycle.EngagementType(engagementType)
	return p, &l, nil
}

func (r queries) ListProposals(ctx context.Context, d lifecycle.Domain, k lifecycle.ProposalKind, f lifecycle.Scope) ([]lifecycle.Proposal, error) {
	t, err := tablesFor(d)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx,
		fmt.Sprintf(`SELECT %s
		 FROM %s p
		 JOIN %s l ON l.id = p.listing_id
		 WHERE l.deleted_at IS NULL
		   AND ($1::bigint = 0 OR l.owner_id = $1)
		   AND ($2::bigint = 0 OR p.student_id = $2)
		 ORDER BY p.created_at DESC, p.id DESC`,
			proposalColumns(k), t.proposals(k), t.listings),
		f.AlumnusID, f.StudentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listProposals query: %w", err)
	}
	defer rows.Close()

	items := make([]lifecycle.Proposal, 0)
	for rows.Next() {
		p, err := scanProposal(rows, d, k)
		if err != nil {
			return nil, fmt.Errorf("listProposals scan: %w", err)
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

func (r queries) EngagementExists(ctx context.Context, d lifecycle.Domain, listingID, studentID int64) (bool, error) {
	t, err := tablesFor(d)
	if err != nil {
		return false, err
	}
	var exists bool
	err = r.q.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE listing_id = $1 AND student_id = $2)`, t.engagements),
		listingID, studentID,
	).Scan(&exists)
	return exists, err
}

const engagementColumns = `e.id, e.listing_id, e.student_id, e.alumnus_id,
	e.source_kind, e.source_id, e.status, e.created_at, e.updated_at`

func scanEngagement(row pgx.Row, d lifecycle.Domain) (*lifecycle.Engagement, error) {
	e := lifecycle.Engagement{Domain: d}
	var (
		sourceKind, status string
		sourceID           int64
	)
	if err := row.Scan(
		&e.ID, &e.ListingID, &e.StudentID, &e.AlumnusID,
		&sourceKind, &sourceID, &status, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, classify(err)
	}
	src, err := lifecycle.DecodeSource(sourceKind, sourceID)
	if err != nil {
		return nil, err
	}
	st, err := lifecycle.ParseEngagementStatus(status)
	if err != nil {
		return nil, err
	}
	e.Source, e.Status = src, st
	return &e, nil
}

func (r queries) GetEngagement(ctx context.Context, d lifecycle.Domain, id int64) (*lifecycle.Engagement, error) {
	t, err := tablesFor(d)
	if err != nil {
		return nil, err
	}
	return scanEngagement(r.q.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s e
		 JOIN %s l ON l.id = e.listing_id
		 WHERE e.id = $1 AND l.deleted_at IS NULL`, engagementColumns, t.engagements, t.listings),
		id,
	), d)
}

func (r queries) ListEngagements(ctx context.Context, d lifecycle.Domain, f lifecycle.Scope) ([]lifecycle.Engagement, error) {
	t, err := tablesFor(d)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s e
		 JOIN %s l ON l.id = e.listing_id
		 WHERE l.deleted_at IS NULL
		   AND ($1::bigint = 0 OR e.alumnus_id = $1)
		   AND ($2::bigint = 0 OR e.student_id = $2)
		 ORDER BY e.created_at DESC, e.id DESC`, engagementColumns, t.engagements, t.listings),
		f.AlumnusID, f.StudentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listEngagements query: %w", err)
	}
	defer rows.Close()

	items := make([]lifecycle.Engagement, 0)
	for rows.Next() {
		e, err := scanEngagement(rows, d)
		if err != nil {
			return nil, fmt.Errorf("listEngagements scan: %w", err)
		}
		items = append(items, *e)
	}
	return items, rows.Err()
}

func (r queries) GetResume(ctx context.Context, id int64) (*lifecycle.Resume, error) {
	var res lifecycle.Resume
	err := r.q.QueryRow(ctx,
		`SELECT id, student_id, url, application_id, uploaded_at FROM application_resumes WHERE id = $1`,
		id,
	).Scan(&res.ID, &res.StudentID, &res.URL, &res.ApplicationID, &res.UploadedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &res, nil
}

func (r queries) CapacityDrift(ctx context.Context, d lifecycle.Domain) ([]lifecycle.CapacityDrift, error) {
	t, err := tablesFor(d)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx,
		fmt.Sprintf(`SELECT l.id, l.available_slots, l.remaining_slots, COUNT(e.id)
		 FROM %s l
		 LEFT JOIN %s e ON e.listing_id = l.id
		 WHERE l.deleted_at IS NULL
		   AND l.available_slots IS NOT NULL
		   AND l.remaining_slots IS NOT NULL
		 GROUP BY l.id, l.available_slots, l.remaining_slots
		 ORDER BY l.id`, t.listings, t.engagements),
	)
	if err != nil {
		return nil, fmt.Errorf("capacityDrift query: %w", err)
	}
	defer rows.Close()

	items := make([]lifecycle.CapacityDrift, 0)
	for rows.Next() {
		c := lifecycle.CapacityDrift{Domain: d}
		var engaged int64
		if err := rows.Scan(&c.ListingID, &c.Available, &c.Remaining, &engaged); err != nil {
			return nil, fmt.Errorf("capacityDrift scan: %w", err)
		}
		c.Engaged = int(engaged)
		items = append(items, c)
	}
	return items, rows.Err()
}

// ─── Writes ──────────────────────────────────────────────────────────────────

// skills keeps skills_required a non-NULL array.
func skills(l *lifecycle.Listing) []string {
	if l.SkillsRequired == nil {
		return []string{}
	}
	return l.SkillsRequired
}

type pgTx struct {
	queries
}

func (t *pgTx) LockListing(ctx context.Context, d lifecycle.Domain, id int64) (*lifecycle.Listing, error) {
	tb, err := tablesFor(d)
	if err != nil {
		return nil, err
	}
	return scanListing(t.q.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s l WHERE l.id = $1 AND l.deleted_at IS NULL FOR UPDATE`, listingColumns, tb.listings),
		id,
	), d)
}

func (t *pgTx) InsertListing(ctx context.Context, l *lifecycle.Listing) error {
	tb, err := tablesFor(l.Domain)
	if err != nil {
		return err
	}
	err = t.q.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (owner_id, title, description, category,
		                work_mode, engagement_type, location, industry, skills_required,
		                duration_weeks, start_date, end_date, is_paid, stipend,
		                is_active, available_slots, remaining_slots,
		                require_resume, require_cover_letter)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 RETURNING id, created_at, updated_at`, tb.listings),
		l.OwnerID, l.Title, l.Description, l.Category,
		string(l.WorkMode), string(l.EngagementType), l.Location, l.Industry, skills(l),
		l.DurationWeeks, l.StartDate, l.EndDate, l.IsPaid, l.Stipend,
		l.IsActive, l.AvailableSlots, l.RemainingSlots,
		l.RequireResume, l.RequireCoverLetter,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insertListing: %w", classify(err))
	}
	return nil
}

func (t *pgTx) UpdateListing(ctx context.Context, l *lifecycle.Listing) error {
	tb, err := tablesFor(l.Domain)
	if err != nil {
		return err
	}
	err = t.q.QueryRow(ctx,
		fmt.Sprintf(`UPDATE %s
		 SET title = $1, description = $2, category = $3,
		     work_mode = $4, engagement_type = $5, location = $6, industry = $7,
		     skills_required = $8, duration_weeks = $9, start_date = $10, end_date = $11,
		     is_paid = $12, stipend = $13, available_slots = $14, remaining_slots = $15,
		     require_resume = $16, require_cover_letter = $17, updated_at = NOW()
		 WHERE id = $18 AND deleted_at IS NULL
		 RETURNING updated_at`, tb.listings),
		l.Title, l.Description, l.Category,
		string(l.WorkMode), string(l.EngagementType), l.Location, l.Industry,
		skills(l), l.DurationWeeks, l.StartDate, l.EndDate,
		l.IsPaid, l.Stipend, l.AvailableSlots, l.RemainingSlots,
		l.RequireResume, l.RequireCoverLetter, l.ID,
	).Scan(&l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updateListing: %w", classify(err))
	}
	return nil
}

func (t *pgTx) SoftDeleteListing(ctx context.Context, d lifecycle.Domain, id int64, at time.Time) error {
	tb, err := tablesFor(d)
	if err != nil {
		return err
	}
	tag, err := t.q.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET deleted_at = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`, tb.listings),
		at, id,
	)
	if err != nil {
		return fmt.Errorf("softDeleteListing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotExist
	}
	return nil
}

func (t *pgTx) ToggleListingActive(ctx context.Context, d lifecycle.Domain, id int64) (bool, error) {
	tb, err := tablesFor(d)
	if err != nil {
		return false, err
	}
	var active bool
	err = t.q.QueryRow(ctx,
		fmt.Sprintf(`UPDATE %s SET is_active = NOT is_active, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING is_active`, tb.listings),
		id,
	).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("toggleListingActive: %w", classify(err))
	}
	return active, nil
}

func (t *pgTx) DecrementRemainingSlots(ctx context.Context, d lifecycle.Domain, id int64) (int, bool, error) {
	tb, err := tablesFor(d)
	if err != nil {
		return 0, false, err
	}
	var remaining int
	err = t.q.QueryRow(ctx,
		fmt.Sprintf(`UPDATE %s
		 SET remaining_slots = remaining_slots - 1, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL AND remaining_slots > 0
		 RETURNING remaining_slots`, tb.listings),
		id,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("decrementRemainingSlots: %w", err)
	}
	return remaining, true, nil
}

func (t *pgTx) InsertProposal(ctx context.Context, p *lifecycle.Proposal) error {
	tb, err := tablesFor(p.Domain)
	if err != nil {
		return err
	}
	var row pgx.Row
	if p.Kind == lifecycle.KindOffer {
		row = t.q.QueryRow(ctx,
			fmt.Sprintf(`INSERT INTO %s (listing_id, student_id, status)
			 VALUES ($1, $2, $3)
			 RETURNING id, created_at, updated_at`, tb.offers),
			p.ListingID, p.StudentID, string(p.Status),
		)
	} else {
		row = t.q.QueryRow(ctx,
			fmt.Sprintf(`INSERT INTO %s (listing_id, student_id, status, cover_letter, resume_id)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at, updated_at`, tb.applications),
			p.ListingID, p.StudentID, string(p.Status), p.CoverLetter, p.ResumeID,
		)
	}
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("insertProposal: %w", classify(err))
	}
	return nil
}

func (t *pgTx) ResolveProposal(ctx context.Context, d lifecycle.Domain, k lifecycle.ProposalKind, id int64, status lifecycle.Status, respondedAt *time.Time) (bool, error) {
	tb, err := tablesFor(d)
	if err != nil {
		return false, err
	}
	tag, err := t.q.Exec(ctx,
		fmt.Sprintf(`UPDATE %s
		 SET status = $1,
		     responded_at = COALESCE($2::timestamptz, responded_at),
		     updated_at = NOW()
		 WHERE id = $3 AND status = 'pending'`, tb.proposals(k)),
		string(status), respondedAt, id,
	)
	if err != nil {
		return false, fmt.Errorf("resolveProposal: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) InsertEngagement(ctx context.Context, e *lifecycle.Engagement) error {
	tb, err := tablesFor(e.Domain)
	if err != nil {
		return err
	}
	err = t.q.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (listing_id, student_id, alumnus_id, source_kind, source_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`, tb.engagements),
		e.ListingID, e.StudentID, e.AlumnusID,
		string(e.Source.Kind()), e.Source.ID(), string(e.Status),
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insertEngagement: %w", classify(err))
	}
	return nil
}

func (t *pgTx) InsertResume(ctx context.Context, r *lifecycle.Resume) error {
	err := t.q.QueryRow(ctx,
		`INSERT INTO application_resumes (student_id, url)
		 VALUES ($1, $2)
		 RETURNING id, uploaded_at`,
		r.StudentID, r.URL,
	).Scan(&r.ID, &r.UploadedAt)
	if err != nil {
		return fmt.Errorf("insertResume: %w", classify(err))
	}
	return nil
}

func (t *pgTx) AttachResume(ctx context.Context, resumeID, studentID, applicationID int64) (bool, error) {
	tag, err := t.q.Exec(ctx,
		`UPDATE application_resumes
		 SET application_id = $1
		 WHERE id = $2 AND student_id = $3 AND application_id IS NULL`,
		applicationID, resumeID, studentID,
	)
	if err != nil {
		return false, fmt.Errorf("attachResume: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
