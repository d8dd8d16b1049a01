package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"alumnet/engagement-service/internal/lifecycle"
)

// runContract exercises behaviour every lifecycle.Store must share. newStore
// must return an empty store.
func runContract(t *testing.T, newStore func(t *testing.T) lifecycle.Store) {
	t.Run("ProposalUniquePerListingAndStudent", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)
		l := insertListing(t, st, lifecycle.DomainInternship, nil)

		insert := func(k lifecycle.ProposalKind) error {
			return st.WithinTx(ctx, func(tx lifecycle.Tx) error {
				return tx.InsertProposal(ctx, &lifecycle.Proposal{
					Domain: l.Domain, Kind: k, ListingID: l.ID, StudentID: 1, Status: lifecycle.StatusPending,
				})
			})
		}
		if err := insert(lifecycle.KindOffer); err != nil {
			t.Fatalf("first offer: %v", err)
		}
		if err := insert(lifecycle.KindOffer); !errors.Is(err, lifecycle.ErrDuplicate) {
			t.Fatalf("second offer err = %v, want ErrDuplicate", err)
		}
		if err := insert(lifecycle.KindApplication); err != nil {
			t.Fatalf("application alongside offer: %v", err)
		}
	})

	t.Run("EngagementUniquePerListingAndStudent", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)
		l := insertListing(t, st, lifecycle.DomainMentorship, nil)

		insert := func(src lifecycle.Source) error {
			return st.WithinTx(ctx, func(tx lifecycle.Tx) error {
				return tx.InsertEngagement(ctx, &lifecycle.Engagement{
					Domain: l.Domain, ListingID: l.ID, StudentID: 5, AlumnusID: l.OwnerID,
					Source: src, Status: lifecycle.EngagementActive,
				})
			})
		}
		if err := insert(lifecycle.OfferRef{OfferID: 1}); err != nil {
			t.Fatalf("first engagement: %v", err)
		}
		if err := insert(lifecycle.ApplicationRef{ApplicationID: 2}); !errors.Is(err, lifecycle.ErrDuplicate) {
			t.Fatalf("second engagement err = %v, want ErrDuplicate", err)
		}
		exists, err := st.EngagementExists(ctx, l.Domain, l.ID, 5)
		if err != nil || !exists {
			t.Fatalf("EngagementExists = %v, %v", exists, err)
		}
	})

	t.Run("RollbackDiscardsWrites", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)
		l := insertListing(t, st, lifecycle.DomainInternship, intp(2))
		boom := errors.New("boom")

		err := st.WithinTx(ctx, func(tx lifecycle.Tx) error {
			if _, _, err := tx.DecrementRemainingSlots(ctx, l.Domain, l.ID); err != nil {
				return err
			}
			if _, err := tx.ToggleListingActive(ctx, l.Domain, l.ID); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("WithinTx err = %v, want boom", err)
		}
		got, err := st.GetListing(ctx, l.Domain, l.ID)
		if err != nil {
			t.Fatalf("GetListing: %v", err)
		}
		if *got.RemainingSlots != 2 || !got.IsActive {
			t.Errorf("listing changed after rollback: remaining=%d active=%v", *got.RemainingSlots, got.IsActive)
		}
	})

	t.Run("ResolveProposalOnlyFromPending", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)
		l := insertListing(t, st, lifecycle.DomainInternship, nil)
		p := &lifecycle.Proposal{
			Domain: l.Domain, Kind: lifecycle.KindApplication, ListingID: l.ID, StudentID: 3, Status: lifecycle.StatusPending,
		}
		mustTx(t, st, func(tx lifecycle.Tx) error { return tx.InsertProposal(ctx, p) })

		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		resolve := func(s lifecycle.Status, at *time.Time) bool {
			var ok bool
			mustTx(t, st, func(tx lifecycle.Tx) error {
				var err error
				ok, err = tx.ResolveProposal(ctx, l.Domain, p.Kind, p.ID, s, at)
				return err
			})
			return ok
		}
		if !resolve(lifecycle.StatusRejected, &at) {
			t.Fatal("first resolve should succeed")
		}
		if resolve(lifecycle.StatusAccepted, nil) {
			t.Fatal("second resolve should report no pending row")
		}
		got, _, err := st.GetProposal(ctx, l.Domain, p.Kind, p.ID)
		if err != nil {
			t.Fatalf("GetProposal: %v", err)
		}
		if got.Status != lifecycle.StatusRejected || got.RespondedAt == nil || !got.RespondedAt.Equal(at) {
			t.Errorf("got %s / %v", got.Status, got.RespondedAt)
		}
	})

	t.Run("SoftDeleteHidesListing", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)
		l := insertListing(t, st, lifecycle.DomainInternship, nil)
		mustTx(t, st, func(tx lifecycle.Tx) error {
			return tx.SoftDeleteListing(ctx, l.Domain, l.ID, time.Now().UTC())
		})
		if _, err := st.GetListing(ctx, l.Domain, l.ID); !errors.Is(err, lifecycle.ErrNotExist) {
			t.Errorf("GetListing err = %v, want ErrNotExist", err)
		}
		items, err := st.ListListings(ctx, l.Domain, lifecycle.ListingFilter{OwnerID: l.OwnerID})
		if err != nil || len(items) != 0 {
			t.Errorf("ListListings = %d items, %v", len(items), err)
		}
		// Domains do not see each other's rows.
		if _, err := st.GetListing(ctx, lifecycle.DomainMentorship, l.ID); !errors.Is(err, lifecycle.ErrNotExist) {
			t.Errorf("cross-domain GetListing err = %v", err)
		}
	})

	t.Run("CapacityDrift", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)
		d := lifecycle.DomainInternship
		bounded := insertListing(t, st, d, intp(1))
		insertListing(t, st, d, nil)

		for _, student := range []int64{1, 2} {
			mustTx(t, st, func(tx lifecycle.Tx) error {
				return tx.InsertEngagement(ctx, &lifecycle.Engagement{
					Domain: d, ListingID: bounded.ID, StudentID: student, AlumnusID: bounded.OwnerID,
					Source: lifecycle.OfferRef{OfferID: student}, Status: lifecycle.EngagementActive,
				})
			})
		}
		mustTx(t, st, func(tx lifecycle.Tx) error {
			_, _, err := tx.DecrementRemainingSlots(ctx, d, bounded.ID)
			return err
		})

		items, err := st.CapacityDrift(ctx, d)
		if err != nil {
			t.Fatalf("CapacityDrift: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("CapacityDrift = %d items, want 1 bounded listing", len(items))
		}
		c := items[0]
		if c.ListingID != bounded.ID || c.Available != 1 || c.Remaining != 0 || c.Engaged != 2 || !c.Overbooked() {
			t.Errorf("drift = %+v", c)
		}
	})

	t.Run("DecrementStopsAtZero", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)
		d := lifecycle.DomainMentorship
		bounded := insertListing(t, st, d, intp(1))
		open := insertListing(t, st, d, nil)

		decrement := func(id int64) (int, bool) {
			var (
				remaining int
				ok        bool
			)
			mustTx(t, st, func(tx lifecycle.Tx) error {
				var err error
				remaining, ok, err = tx.DecrementRemainingSlots(ctx, d, id)
				return err
			})
			return remaining, ok
		}
		if rem, ok := decrement(bounded.ID); !ok || rem != 0 {
			t.Fatalf("first decrement = (%d, %v), want (0, true)", rem, ok)
		}
		if rem, ok := decrement(bounded.ID); ok || rem != 0 {
			t.Errorf("exhausted decrement = (%d, %v), want (0, false)", rem, ok)
		}
		if _, ok := decrement(open.ID); ok {
			t.Error("unbounded listing must not decrement")
		}
		got, err := st.GetListing(ctx, d, bounded.ID)
		if err != nil || got.RemainingSlots == nil || *got.RemainingSlots != 0 {
			t.Errorf("GetListing = %+v, %v", got, err)
		}
	})

	t.Run("ListingDetailsPersist", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)
		start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
		stipend := 1500.5
		l := &lifecycle.Listing{
			Domain:             lifecycle.DomainInternship,
			OwnerID:            100,
			Title:              "Payments intern",
			WorkMode:           lifecycle.WorkHybrid,
			EngagementType:     lifecycle.EngagementPartTime,
			Location:           "Lagos",
			Industry:           "Fintech",
			SkillsRequired:     []string{"go", "sql"},
			DurationWeeks:      intp(12),
			StartDate:          &start,
			EndDate:            &end,
			IsPaid:             true,
			Stipend:            &stipend,
			IsActive:           true,
			RequireResume:      true,
			RequireCoverLetter: true,
		}
		mustTx(t, st, func(tx lifecycle.Tx) error { return tx.InsertListing(ctx, l) })

		got, err := st.GetListing(ctx, l.Domain, l.ID)
		if err != nil {
			t.Fatalf("GetListing: %v", err)
		}
		if got.WorkMode != lifecycle.WorkHybrid || got.EngagementType != lifecycle.EngagementPartTime ||
			got.Location != "Lagos" || got.Industry != "Fintech" || len(got.SkillsRequired) != 2 ||
			got.DurationWeeks == nil || *got.DurationWeeks != 12 || !got.IsPaid ||
			got.Stipend == nil || *got.Stipend != stipend || !got.RequireResume || !got.RequireCoverLetter {
			t.Errorf("listing = %+v", got)
		}
		if got.StartDate == nil || !got.StartDate.Equal(start) || got.EndDate == nil || !got.EndDate.Equal(end) {
			t.Errorf("dates = %v / %v, want %s / %s", got.StartDate, got.EndDate, start, end)
		}
	})

	t.Run("AttachResumeOnce", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)
		r := &lifecycle.Resume{StudentID: 9, URL: "https://files.example/cv.pdf"}
		mustTx(t, st, func(tx lifecycle.Tx) error { return tx.InsertResume(ctx, r) })

		l := insertListing(t, st, lifecycle.DomainInternship, nil)
		var apps [2]*lifecycle.Proposal
		for i := range apps {
			apps[i] = &lifecycle.Proposal{
				Domain: l.Domain, Kind: lifecycle.KindApplication, ListingID: l.ID,
				StudentID: int64(9 + i), Status: lifecycle.StatusPending,
			}
			mustTx(t, st, func(tx lifecycle.Tx) error { return tx.InsertProposal(ctx, apps[i]) })
		}

		attach := func(studentID, appID int64) bool {
			var ok bool
			mustTx(t, st, func(tx lifecycle.Tx) error {
				var err error
				ok, err = tx.AttachResume(ctx, r.ID, studentID, appID)
				return err
			})
			return ok
		}
		if attach(10, apps[1].ID) {
			t.Error("another student's resume must not attach")
		}
		if !attach(9, apps[0].ID) {
			t.Fatal("owner attach should succeed")
		}
		if attach(9, apps[0].ID) {
			t.Error("resume must attach only once")
		}
		got, err := st.GetResume(ctx, r.ID)
		if err != nil || got.ApplicationID == nil || *got.ApplicationID != apps[0].ID {
			t.Errorf("GetResume = %+v, %v", got, err)
		}
	})
}

func intp(v int) *int { return &v }

func mustTx(t *testing.T, st lifecycle.Store, fn func(tx lifecycle.Tx) error) {
	t.Helper()
	if err := st.WithinTx(context.Background(), fn); err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
}

func insertListing(t *testing.T, st lifecycle.Store, d lifecycle.Domain, slots *int) *lifecycle.Listing {
	t.Helper()
	l := &lifecycle.Listing{
		Domain:         d,
		OwnerID:        100,
		Title:          "Platform " + string(d),
		IsActive:       true,
		AvailableSlots: slots,
	}
	if slots != nil {
		l.RemainingSlots = intp(*slots)
	}
	mustTx(t, st, func(tx lifecycle.Tx) error { return tx.InsertListing(context.Background(), l) })
	return l
}
