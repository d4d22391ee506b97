package ops

import (
	"context"
	"testing"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/prayer"
)

func TestPost_HappyPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	setupChain(t, store)

	requester := testKey(1)
	deposit := prayer.DepositFor(prayer.KindPrayer)
	registerAgent(t, store, requester, "asker", 5000+deposit)

	out, err := Post(ctx, store, PostInput{
		Requester:   requester,
		Type:        prayer.TypeCompute,
		ContentHash: prayer.Hash{9},
		Bounty:      5000,
		MaxClaimers: 3,
		TTLSeconds:  600,
	})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	if out.PrayerID != 0 {
		t.Errorf("PrayerID = %d, want 0", out.PrayerID)
	}
	if out.Address != prayer.PrayerAddress(0) {
		t.Errorf("Address mismatch for prayer 0")
	}
	rec := out.Prayer
	if rec.Status != prayer.StatusOpen {
		t.Errorf("Status = %s, want open", rec.Status)
	}
	if rec.Bounty != 5000 || rec.MaxClaimers != 3 || rec.NumClaimers != 0 {
		t.Errorf("record = bounty %d, max %d, num %d; want 5000, 3, 0", rec.Bounty, rec.MaxClaimers, rec.NumClaimers)
	}
	if rec.ExpiresAt != rec.CreatedAt+600 {
		t.Errorf("ExpiresAt = %d, want CreatedAt+600 = %d", rec.ExpiresAt, rec.CreatedAt+600)
	}
	if rec.Answerer != nil || rec.AnswerHash != nil {
		t.Error("answer fields set on a fresh prayer")
	}

	// Bounty and deposit left the wallet together.
	if balance := walletBalance(t, store, requester); balance != 0 {
		t.Errorf("requester balance = %d, want 0", balance)
	}

	if posted := getAgent(t, store, requester).PrayersPosted; posted != 1 {
		t.Errorf("PrayersPosted = %d, want 1", posted)
	}
}

func TestPost_IDsIncrease(t *testing.T) {
	store := newTestStore(t)
	setupChain(t, store)

	requester := testKey(1)
	registerAgent(t, store, requester, "asker", 3*prayer.DepositFor(prayer.KindPrayer))

	for want := uint64(0); want < 3; want++ {
		id := mustPost(t, store, requester, 0, 1)
		if id != want {
			t.Errorf("prayer id = %d, want %d", id, want)
		}
	}

	stats, err := Stats(context.Background(), store)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Chain.TotalPrayers != 3 {
		t.Errorf("TotalPrayers = %d, want 3", stats.Chain.TotalPrayers)
	}
}

func TestPost_Unregistered(t *testing.T) {
	store := newTestStore(t)
	setupChain(t, store)

	requester := testKey(1)
	mustAirdrop(t, store, requester, prayer.DepositFor(prayer.KindPrayer))

	_, err := Post(context.Background(), store, PostInput{
		Requester:   requester,
		Type:        prayer.TypeKnowledge,
		MaxClaimers: 1,
		TTLSeconds:  60,
	})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unregistered Post error = %v, want NOT_FOUND", err)
	}
}

func TestPost_Validation(t *testing.T) {
	store := newTestStore(t)
	setupChain(t, store)
	ctx := context.Background()

	requester := testKey(1)
	registerAgent(t, store, requester, "asker", prayer.DepositFor(prayer.KindPrayer))

	base := PostInput{
		Requester:   requester,
		Type:        prayer.TypeKnowledge,
		MaxClaimers: 1,
		TTLSeconds:  60,
	}

	in := base
	in.MaxClaimers = 0
	if _, err := Post(ctx, store, in); !errors.Is(err, errors.ErrInvalidMaxClaimers) {
		t.Errorf("max_claimers 0 error = %v, want INVALID_MAX_CLAIMERS", err)
	}
	in = base
	in.MaxClaimers = prayer.MaxClaimersLimit + 1
	if _, err := Post(ctx, store, in); !errors.Is(err, errors.ErrInvalidMaxClaimers) {
		t.Errorf("max_claimers 11 error = %v, want INVALID_MAX_CLAIMERS", err)
	}

	in = base
	in.TTLSeconds = 0
	if _, err := Post(ctx, store, in); !errors.Is(err, errors.ErrInvalidTTL) {
		t.Errorf("ttl 0 error = %v, want INVALID_TTL", err)
	}
	in = base
	in.TTLSeconds = prayer.MaxTTLSeconds + 1
	if _, err := Post(ctx, store, in); !errors.Is(err, errors.ErrInvalidTTL) {
		t.Errorf("ttl over max error = %v, want INVALID_TTL", err)
	}

	in = base
	in.Type = "mystery"
	if _, err := Post(ctx, store, in); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("unknown type error = %v, want INVALID_REQUEST", err)
	}
}

func TestPost_InsufficientFunds(t *testing.T) {
	store := newTestStore(t)
	setupChain(t, store)

	requester := testKey(1)
	// Enough for the deposit, not for deposit plus bounty.
	registerAgent(t, store, requester, "asker", prayer.DepositFor(prayer.KindPrayer))

	_, err := Post(context.Background(), store, PostInput{
		Requester:   requester,
		Type:        prayer.TypeKnowledge,
		Bounty:      1,
		MaxClaimers: 1,
		TTLSeconds:  60,
	})
	if !errors.Is(err, errors.ErrInsufficientFunds) {
		t.Errorf("underfunded Post error = %v, want INSUFFICIENT_FUNDS", err)
	}

	// The id counter must not burn on failure.
	stats, err := Stats(context.Background(), store)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Chain.TotalPrayers != 0 {
		t.Errorf("TotalPrayers = %d, want 0 after failed post", stats.Chain.TotalPrayers)
	}
}
