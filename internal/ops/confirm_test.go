package ops

import (
	"context"
	"testing"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// confirmFixture runs a prayer to Fulfilled with the given bounty and
// claimers, all of whom claimed. The first claimer answers.
func confirmFixture(t *testing.T, bounty uint64, claimerBytes []byte) (store ledger.Store, requester prayer.Pubkey, claimers []prayer.Pubkey, id uint64) {
	t.Helper()
	store = newTestStore(t)
	setupChain(t, store)

	requester = testKey(1)
	registerAgent(t, store, requester, "asker", prayer.DepositFor(prayer.KindPrayer)+bounty)
	id = mustPost(t, store, requester, bounty, len(claimerBytes))

	for _, b := range claimerBytes {
		c := testKey(b)
		registerAgent(t, store, c, "worker", prayer.DepositFor(prayer.KindClaim))
		mustClaim(t, store, c, id)
		claimers = append(claimers, c)
	}
	mustAnswer(t, store, claimers[0], id)
	return store, requester, claimers, id
}

func TestConfirm_SoloClaimer(t *testing.T) {
	store, requester, claimers, id := confirmFixture(t, 5000, []byte{2})
	ctx := context.Background()

	out, err := Confirm(ctx, store, ConfirmInput{
		Requester: requester,
		PrayerID:  id,
		Claimers:  claimers,
	})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if out.Prayer.Status != prayer.StatusConfirmed {
		t.Errorf("Status = %s, want confirmed", out.Prayer.Status)
	}
	if out.PerClaimer != 5000 || out.TotalPaid != 5000 || out.Remainder != 0 {
		t.Errorf("payout = %d each, %d total, %d left; want 5000, 5000, 0", out.PerClaimer, out.TotalPaid, out.Remainder)
	}
	if balance := walletBalance(t, store, claimers[0]); balance != 5000 {
		t.Errorf("claimer balance = %d, want 5000", balance)
	}

	agent := getAgent(t, store, claimers[0])
	if agent.PrayersConfirmed != 1 {
		t.Errorf("PrayersConfirmed = %d, want 1", agent.PrayersConfirmed)
	}
	if agent.Reputation != prayer.AnswerReputation+prayer.ConfirmReputation {
		t.Errorf("Reputation = %d, want %d", agent.Reputation, prayer.AnswerReputation+prayer.ConfirmReputation)
	}
}

func TestConfirm_FloorRemainderStays(t *testing.T) {
	store, requester, claimers, id := confirmFixture(t, 10, []byte{2, 3, 4})

	out, err := Confirm(context.Background(), store, ConfirmInput{
		Requester: requester,
		PrayerID:  id,
		Claimers:  claimers,
	})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if out.PerClaimer != 3 {
		t.Errorf("PerClaimer = %d, want 3", out.PerClaimer)
	}
	if out.TotalPaid != 9 {
		t.Errorf("TotalPaid = %d, want 9", out.TotalPaid)
	}
	if out.Remainder != 1 {
		t.Errorf("Remainder = %d, want 1", out.Remainder)
	}
	for _, c := range claimers {
		if balance := walletBalance(t, store, c); balance != 3 {
			t.Errorf("claimer %s balance = %d, want 3", c.Short(), balance)
		}
	}
}

func TestConfirm_ZeroBounty(t *testing.T) {
	store, requester, claimers, id := confirmFixture(t, 0, []byte{2})

	out, err := Confirm(context.Background(), store, ConfirmInput{
		Requester: requester,
		PrayerID:  id,
		Claimers:  claimers,
	})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if out.TotalPaid != 0 {
		t.Errorf("TotalPaid = %d, want 0", out.TotalPaid)
	}
	if out.Prayer.Status != prayer.StatusConfirmed {
		t.Errorf("Status = %s, want confirmed", out.Prayer.Status)
	}
}

func TestConfirm_DedupsClaimerList(t *testing.T) {
	store, requester, claimers, id := confirmFixture(t, 6000, []byte{2, 3})

	// Listing the same claimer twice must not pay twice.
	out, err := Confirm(context.Background(), store, ConfirmInput{
		Requester: requester,
		PrayerID:  id,
		Claimers:  []prayer.Pubkey{claimers[0], claimers[0], claimers[1]},
	})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if out.TotalPaid != 6000 {
		t.Errorf("TotalPaid = %d, want 6000", out.TotalPaid)
	}
	if balance := walletBalance(t, store, claimers[0]); balance != 3000 {
		t.Errorf("duplicated claimer balance = %d, want 3000", balance)
	}
}

func TestConfirm_UnknownClaimerFailsAtomically(t *testing.T) {
	store, requester, claimers, id := confirmFixture(t, 6000, []byte{2, 3})

	_, err := Confirm(context.Background(), store, ConfirmInput{
		Requester: requester,
		PrayerID:  id,
		Claimers:  []prayer.Pubkey{claimers[0], testKey(9)},
	})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown claimer error = %v, want NOT_FOUND", err)
	}

	// No partial payout, no status change.
	if balance := walletBalance(t, store, claimers[0]); balance != 0 {
		t.Errorf("claimer paid %d despite failed confirm", balance)
	}
	if rec := getPrayer(t, store, id); rec.Status != prayer.StatusFulfilled {
		t.Errorf("Status = %s after failed confirm, want fulfilled", rec.Status)
	}
}

func TestConfirm_ShortListLeavesRest(t *testing.T) {
	store, requester, claimers, id := confirmFixture(t, 9000, []byte{2, 3, 4})

	// Paying only one of three: that one gets the per-claimer share, the
	// rest stays in the record.
	out, err := Confirm(context.Background(), store, ConfirmInput{
		Requester: requester,
		PrayerID:  id,
		Claimers:  claimers[:1],
	})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if out.PerClaimer != 3000 || out.TotalPaid != 3000 || out.Remainder != 6000 {
		t.Errorf("payout = %d/%d/%d, want 3000/3000/6000", out.PerClaimer, out.TotalPaid, out.Remainder)
	}
}

func TestConfirm_StateAndAuth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	setupChain(t, store)

	requester, claimer := testKey(1), testKey(2)
	registerAgent(t, store, requester, "asker", prayer.DepositFor(prayer.KindPrayer))
	registerAgent(t, store, claimer, "worker", prayer.DepositFor(prayer.KindClaim))
	id := mustPost(t, store, requester, 0, 2)

	// Not yet fulfilled.
	_, err := Confirm(ctx, store, ConfirmInput{Requester: requester, PrayerID: id})
	if !errors.Is(err, errors.ErrNotFulfilled) {
		t.Errorf("early confirm error = %v, want NOT_FULFILLED", err)
	}

	mustClaim(t, store, claimer, id)
	mustAnswer(t, store, claimer, id)

	_, err = Confirm(ctx, store, ConfirmInput{Requester: claimer, PrayerID: id})
	if !errors.Is(err, errors.ErrNotRequester) {
		t.Errorf("impostor confirm error = %v, want NOT_REQUESTER", err)
	}

	// Confirming twice fails on status.
	if _, err := Confirm(ctx, store, ConfirmInput{Requester: requester, PrayerID: id, Claimers: []prayer.Pubkey{claimer}}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	_, err = Confirm(ctx, store, ConfirmInput{Requester: requester, PrayerID: id, Claimers: []prayer.Pubkey{claimer}})
	if !errors.Is(err, errors.ErrNotFulfilled) {
		t.Errorf("double confirm error = %v, want NOT_FULFILLED", err)
	}
}
