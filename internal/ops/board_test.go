package ops

import (
	"context"
	"testing"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/prayer"
)

func boardFixture(t *testing.T) (store ledger.Store, requester prayer.Pubkey) {
	t.Helper()
	store = newTestStore(t)
	setupChain(t, store)
	requester = testKey(1)
	registerAgent(t, store, requester, "asker", 6*prayer.DepositFor(prayer.KindPrayer))
	return store, requester
}

func TestBoard_FiltersAndPages(t *testing.T) {
	store, requester := boardFixture(t)
	ctx := context.Background()

	// Five prayers; cancel the middle one.
	var ids []uint64
	for i := 0; i < 5; i++ {
		typ := prayer.TypeKnowledge
		if i%2 == 1 {
			typ = prayer.TypeReview
		}
		out, err := Post(ctx, store, PostInput{
			Requester:   requester,
			Type:        typ,
			MaxClaimers: 1,
			TTLSeconds:  3600,
		})
		if err != nil {
			t.Fatalf("Post failed: %v", err)
		}
		ids = append(ids, out.PrayerID)
	}
	if _, err := Cancel(ctx, store, CancelInput{Requester: requester, PrayerID: ids[2]}); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	all, err := Board(ctx, store, BoardInput{})
	if err != nil {
		t.Fatalf("Board failed: %v", err)
	}
	if all.Pagination.Total != 5 {
		t.Errorf("Total = %d, want 5", all.Pagination.Total)
	}

	open, err := Board(ctx, store, BoardInput{Status: prayer.StatusOpen})
	if err != nil {
		t.Fatalf("Board failed: %v", err)
	}
	if open.Pagination.Total != 4 {
		t.Errorf("open Total = %d, want 4", open.Pagination.Total)
	}
	for _, entry := range open.Prayers {
		if entry.Prayer.Status != prayer.StatusOpen {
			t.Errorf("status filter leaked %s", entry.Prayer.Status)
		}
	}

	review, err := Board(ctx, store, BoardInput{Type: prayer.TypeReview})
	if err != nil {
		t.Fatalf("Board failed: %v", err)
	}
	if review.Pagination.Total != 2 {
		t.Errorf("review Total = %d, want 2", review.Pagination.Total)
	}

	// Paging applies after filtering.
	page, err := Board(ctx, store, BoardInput{Status: prayer.StatusOpen, Limit: 3})
	if err != nil {
		t.Fatalf("Board failed: %v", err)
	}
	if len(page.Prayers) != 3 {
		t.Errorf("page size = %d, want 3", len(page.Prayers))
	}
	if !page.Pagination.HasMore {
		t.Error("HasMore = false with one open prayer left")
	}
	rest, err := Board(ctx, store, BoardInput{Status: prayer.StatusOpen, Limit: 3, Offset: 3})
	if err != nil {
		t.Fatalf("Board failed: %v", err)
	}
	if len(rest.Prayers) != 1 {
		t.Errorf("second page size = %d, want 1", len(rest.Prayers))
	}
	if rest.Pagination.HasMore {
		t.Error("HasMore = true past the end")
	}
}

func TestBoard_NewestFirst(t *testing.T) {
	store, requester := boardFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustPost(t, store, requester, 0, 1)
	}

	out, err := Board(ctx, store, BoardInput{})
	if err != nil {
		t.Fatalf("Board failed: %v", err)
	}
	if len(out.Prayers) != 3 {
		t.Fatalf("got %d prayers, want 3", len(out.Prayers))
	}
	for i := 0; i < len(out.Prayers)-1; i++ {
		if out.Prayers[i].Prayer.ID < out.Prayers[i+1].Prayer.ID {
			t.Errorf("board order = %d before %d, want newest first", out.Prayers[i].Prayer.ID, out.Prayers[i+1].Prayer.ID)
		}
	}
}

func TestBoard_RejectsUnknownFilters(t *testing.T) {
	store, _ := boardFixture(t)
	ctx := context.Background()

	_, err := Board(ctx, store, BoardInput{Status: "haunted"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("unknown status error = %v, want INVALID_REQUEST", err)
	}
	_, err = Board(ctx, store, BoardInput{Type: "mystery"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("unknown type error = %v, want INVALID_REQUEST", err)
	}
}
