package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"alumnet/engagement-service/internal/lifecycle"
)

// Memory is an in-process lifecycle.Store. Transactions run one at a time
// against a copy of the state that replaces the committed state only when the
// unit of work succeeds, so a failed accept leaves nothing behind. Unique
// constraints match the Postgres schema.
type Memory struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{state: newMemState(), now: time.Now}
}

type proposalKey struct {
	domain lifecycle.Domain
	kind   lifecycle.ProposalKind
	id     int64
}

type memState struct {
	seq         int64
	listings    map[int64]lifecycle.Listing
	proposals   map[proposalKey]lifecycle.Proposal
	engagements map[int64]lifecycle.Engagement
	resumes     map[int64]lifecycle.Resume
}

func newMemState() *memState {
	return &memState{
		listings:    map[int64]lifecycle.Listing{},
		proposals:   map[proposalKey]lifecycle.Proposal{},
		engagements: map[int64]lifecycle.Engagement{},
		resumes:     map[int64]lifecycle.Resume{},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		seq:         s.seq,
		listings:    make(map[int64]lifecycle.Listing, len(s.listings)),
		proposals:   make(map[proposalKey]lifecycle.Proposal, len(s.proposals)),
		engagements: make(map[int64]lifecycle.Engagement, len(s.engagements)),
		resumes:     make(map[int64]lifecycle.Resume, len(s.resumes)),
	}
	for k, v := range s.listings {
		c.listings[k] = copyListing(v)
	}
	for k, v := range s.proposals {
		c.proposals[k] = v
	}
	for k, v := range s.engagements {
		c.engagements[k] = v
	}
	for k, v := range s.resumes {
		c.resumes[k] = v
	}
	return c
}

func (s *memState) nextID() int64 {
	s.seq++
	return s.seq
}

// WithinTx implements lifecycle.Store.
func (m *Memory) WithinTx(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(&memTx{memReader{state: work}, m.now}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *Memory) reader() memReader {
	return memReader{state: m.state}
}

func (m *Memory) GetListing(ctx context.Context, d lifecycle.Domain, id int64) (*lifecycle.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().GetListing(ctx, d, id)
}

func (m *Memory) ListListings(ctx context.Context, d lifecycle.Domain, f lifecycle.ListingFilter) ([]lifecycle.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().ListListings(ctx, d, f)
}

func (m *Memory) GetProposal(ctx context.Context, d lifecycle.Domain, k lifecycle.ProposalKind, id int64) (*lifecycle.Proposal, *lifecycle.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().GetProposal(ctx, d, k, id)
}

func (m *Memory) ListProposals(ctx context.Context, d lifecycle.Domain, k lifecycle.ProposalKind, f lifecycle.Scope) ([]lifecycle.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().ListProposals(ctx, d, k, f)
}

func (m *Memory) EngagementExists(ctx context.Context, d lifecycle.Domain, listingID, studentID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().EngagementExists(ctx, d, listingID, studentID)
}

func (m *Memory) GetEngagement(ctx context.Context, d lifecycle.Domain, id int64) (*lifecycle.Engagement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().GetEngagement(ctx, d, id)
}

func (m *Memory) ListEngagements(ctx context.Context, d lifecycle.Domain, f lifecycle.Scope) ([]lifecycle.Engagement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().ListEngagements(ctx, d, f)
}

func (m *Memory) GetResume(ctx context.Context, id int64) (*lifecycle.Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().GetResume(ctx, id)
}

func (m *Memory) CapacityDrift(ctx context.Context, d lifecycle.Domain) ([]lifecycle.CapacityDrift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().CapacityDrift(ctx, d)
}

// ─── Reads ───────────────────────────────────────────────────────────────────

type memReader struct {
	state *memState
}

func (r memReader) visibleListing(d lifecycle.Domain, id int64) (lifecycle.Listing, bool) {
	l, ok := r.state.listings[id]
	if !ok || l.Domain != d || !l.Visible() {
		return lifecycle.Listing{}, false
	}
	return l, true
}

func (r memReader) GetListing(_ context.Context, d lifecycle.Domain, id int64) (*lifecycle.Listing, error) {
	l, ok := r.visibleListing(d, id)
	if !ok {
		return nil, lifecycle.ErrNotExist
	}
	out := copyListing(l)
	return &out, nil
}

func (r memReader) ListListings(_ context.Context, d lifecycle.Domain, f lifecycle.ListingFilter) ([]lifecycle.Listing, error) {
	items := make([]lifecycle.Listing, 0)
	for _, l := range r.state.listings {
		if l.Domain != d || !l.Visible() {
			continue
		}
		if f.OwnerID != 0 && l.OwnerID != f.OwnerID {
			continue
		}
		if f.ActiveOnly && !l.IsActive {
			continue
		}
		items = append(items, copyListing(l))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

func (r memReader) GetProposal(_ context.Context, d lifecycle.Domain, k lifecycle.ProposalKind, id int64) (*lifecycle.Proposal, *lifecycle.Listing, error) {
	p, ok := r.state.proposals[proposalKey{d, k, id}]
	if !ok {
		return nil, nil, lifecycle.ErrNotExist
	}
	l, ok := r.visibleListing(d, p.ListingID)
	if !ok {
		return nil, nil, lifecycle.ErrNotExist
	}
	lc := copyListing(l)
	return &p, &lc, nil
}

func (r memReader) ListProposals(_ context.Context, d lifecycle.Domain, k lifecycle.ProposalKind, f lifecycle.Scope) ([]lifecycle.Proposal, error) {
	items := make([]lifecycle.Proposal, 0)
	for key, p := range r.state.proposals {
		if key.domain != d || key.kind != k {
			continue
		}
		l, ok := r.visibleListing(d, p.ListingID)
		if !ok {
			continue
		}
		if f.AlumnusID != 0 && l.OwnerID != f.AlumnusID {
			continue
		}
		if f.StudentID != 0 && p.StudentID != f.StudentID {
			continue
		}
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

func (r memReader) EngagementExists(_ context.Context, d lifecycle.Domain, listingID, studentID int64) (bool, error) {
	for _, e := range r.state.engagements {
		if e.Domain == d && e.ListingID == listingID && e.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (r memReader) GetEngagement(_ context.Context, d lifecycle.Domain, id int64) (*lifecycle.Engagement, error) {
	e, ok := r.state.engagements[id]
	if !ok || e.Domain != d {
		return nil, lifecycle.ErrNotExist
	}
	if _, ok := r.visibleListing(d, e.ListingID); !ok {
		return nil, lifecycle.ErrNotExist
	}
	return &e, nil
}

func (r memReader) ListEngagements(_ context.Context, d lifecycle.Domain, f lifecycle.Scope) ([]lifecycle.Engagement, error) {
	items := make([]lifecycle.Engagement, 0)
	for _, e := range r.state.engagements {
		if e.Domain != d {
			continue
		}
		if _, ok := r.visibleListing(d, e.ListingID); !ok {
			continue
		}
		if f.AlumnusID != 0 && e.AlumnusID != f.AlumnusID {
			continue
		}
		if f.StudentID != 0 && e.StudentID != f.StudentID {
			continue
		}
		items = append(items, e)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

func (r memReader) GetResume(_ context.Context, id int64) (*lifecycle.Resume, error) {
	res, ok := r.state.resumes[id]
	if !ok {
		return nil, lifecycle.ErrNotExist
	}
	return &res, nil
}

func (r memReader) CapacityDrift(_ context.Context, d lifecycle.Domain) ([]lifecycle.CapacityDrift, error) {
	engaged := map[int64]int{}
	for _, e := range r.state.engagements {
		if e.Domain == d {
			engaged[e.ListingID]++
		}
	}
	items := make([]lifecycle.CapacityDrift, 0)
	for _, l := range r.state.listings {
		if l.Domain != d || !l.Visible() || !l.Bounded() || l.RemainingSlots == nil {
			continue
		}
		items = append(items, lifecycle.CapacityDrift{
			Domain:    d,
			ListingID: l.ID,
			Available: *l.AvailableSlots,
			Remaining: *l.RemainingSlots,
			Engaged:   engaged[l.ID],
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ListingID < items[j].ListingID })
	return items, nil
}

// ─── Writes ──────────────────────────────────────────────────────────────────

type memTx struct {
	memReader
	now func() time.Time
}

func (t *memTx) LockListing(ctx context.Context, d lifecycle.Domain, id int64) (*lifecycle.Listing, error) {
	// The store-wide lock held by WithinTx already serialises writers.
	return t.GetListing(ctx, d, id)
}

func (t *memTx) InsertListing(_ context.Context, l *lifecycle.Listing) error {
	now := t.now().UTC()
	l.ID = t.state.nextID()
	l.CreatedAt, l.UpdatedAt = now, now
	t.state.listings[l.ID] = copyListing(*l)
	return nil
}

func (t *memTx) UpdateListing(_ context.Context, l *lifecycle.Listing) error {
	if _, ok := t.visibleListing(l.Domain, l.ID); !ok {
		return lifecycle.ErrNotExist
	}
	l.UpdatedAt = t.now().UTC()
	t.state.listings[l.ID] = copyListing(*l)
	return nil
}

func (t *memTx) SoftDeleteListing(_ context.Context, d lifecycle.Domain, id int64, at time.Time) error {
	l, ok := t.visibleListing(d, id)
	if !ok {
		return lifecycle.ErrNotExist
	}
	l.DeletedAt = &at
	t.state.listings[id] = l
	return nil
}

func (t *memTx) ToggleListingActive(_ context.Context, d lifecycle.Domain, id int64) (bool, error) {
	l, ok := t.visibleListing(d, id)
	if !ok {
		return false, lifecycle.ErrNotExist
	}
	l.IsActive = !l.IsActive
	l.UpdatedAt = t.now().UTC()
	t.state.listings[id] = l
	return l.IsActive, nil
}

func (t *memTx) DecrementRemainingSlots(_ context.Context, d lifecycle.Domain, id int64) (int, bool, error) {
	l, ok := t.visibleListing(d, id)
	if !ok {
		return 0, false, lifecycle.ErrNotExist
	}
	l = copyListing(l)
	remaining, changed := l.DecrementSlots()
	if !changed {
		return 0, false, nil
	}
	l.UpdatedAt = t.now().UTC()
	t.state.listings[id] = l
	return remaining, true, nil
}

func (t *memTx) InsertProposal(_ context.Context, p *lifecycle.Proposal) error {
	for key, other := range t.state.proposals {
		if key.domain == p.Domain && key.kind == p.Kind &&
			other.ListingID == p.ListingID && other.StudentID == p.StudentID {
			return lifecycle.ErrDuplicate
		}
	}
	now := t.now().UTC()
	p.ID = t.state.nextID()
	p.CreatedAt, p.UpdatedAt = now, now
	t.state.proposals[proposalKey{p.Domain, p.Kind, p.ID}] = *p
	return nil
}

func (t *memTx) ResolveProposal(_ context.Context, d lifecycle.Domain, k lifecycle.ProposalKind, id int64, status lifecycle.Status, respondedAt *time.Time) (bool, error) {
	key := proposalKey{d, k, id}
	p, ok := t.state.proposals[key]
	if !ok || p.Status != lifecycle.StatusPending {
		return false, nil
	}
	p.Status = status
	if respondedAt != nil {
		at := *respondedAt
		p.RespondedAt = &at
	}
	p.UpdatedAt = t.now().UTC()
	t.state.proposals[key] = p
	return true, nil
}

func (t *memTx) InsertEngagement(_ context.Context, e *lifecycle.Engagement) error {
	exists, _ := t.EngagementExists(context.Background(), e.Domain, e.ListingID, e.StudentID)
	if exists {
		return lifecycle.ErrDuplicate
	}
	now := t.now().UTC()
	e.ID = t.state.nextID()
	e.CreatedAt, e.UpdatedAt = now, now
	t.state.engagements[e.ID] = *e
	return nil
}

func (t *memTx) InsertResume(_ context.Context, r *lifecycle.Resume) error {
	r.ID = t.state.nextID()
	r.UploadedAt = t.now().UTC()
	t.state.resumes[r.ID] = *r
	return nil
}

func (t *memTx) AttachResume(_ context.Context, resumeID, studentID, applicationID int64) (bool, error) {
	r, ok := t.state.resumes[resumeID]
	if !ok || r.StudentID != studentID || r.ApplicationID != nil {
		return false, nil
	}
	r.ApplicationID = &applicationID
	t.state.resumes[resumeID] = r
	return true, nil
}

func copyListing(l lifecycle.Listing) lifecycle.Listing {
	if l.AvailableSlots != nil {
		v := *l.AvailableSlots
		l.AvailableSlots = &v
	}
	if l.RemainingSlots != nil {
		v := *l.RemainingSlots
		l.RemainingSlots = &v
	}
	if l.DeletedAt != nil {
		v := *l.DeletedAt
		l.DeletedAt = &v
	}
	if l.DurationWeeks != nil {
		v := *l.DurationWeeks
		l.DurationWeeks = &v
	}
	if l.StartDate != nil {
		v := *l.StartDate
		l.StartDate = &v
	}
	if l.EndDate != nil {
		v := *l.EndDate
		l.EndDate = &v
	}
	if l.Stipend != nil {
		v := *l.Stipend
		l.Stipend = &v
	}
	if l.SkillsRequired != nil {
		l.SkillsRequired = append([]string{}, l.SkillsRequired...)
	}
	return l
}
