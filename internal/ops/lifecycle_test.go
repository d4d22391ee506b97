package ops

import (
	"context"
	"testing"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// TestLifecycle_BountySplitThreeWays walks a prayer from post to close with
// three claimers sharing a 30,000,000 unit bounty, checking wallet movement
// and unit conservation at every transition.
func TestLifecycle_BountySplitThreeWays(t *testing.T) {
	store := newTestStore(t)
	setupChain(t, store)
	ctx := context.Background()

	const bounty = 30_000_000
	requester := testKey(1)
	claimers := []prayer.Pubkey{testKey(2), testKey(3), testKey(4)}

	registerAgent(t, store, requester, "asker", prayer.DepositFor(prayer.KindPrayer)+bounty)
	for i, c := range claimers {
		registerAgent(t, store, c, []string{"ada", "bel", "cyr"}[i], prayer.DepositFor(prayer.KindClaim))
	}

	minted := prayer.DepositFor(prayer.KindChain) +
		4*prayer.DepositFor(prayer.KindAgent) +
		prayer.DepositFor(prayer.KindPrayer) + bounty +
		3*prayer.DepositFor(prayer.KindClaim)
	checkUnits := func(step string) {
		t.Helper()
		if got := ledgerUnits(t, store); got != minted {
			t.Fatalf("units after %s = %d, want %d", step, got, minted)
		}
	}
	checkUnits("setup")

	id := mustPost(t, store, requester, bounty, 3)
	if got := walletBalance(t, store, requester); got != 0 {
		t.Errorf("requester balance after post = %d, want 0", got)
	}
	checkUnits("post")

	for i, c := range claimers {
		mustClaim(t, store, c, id)
		rec := getPrayer(t, store, id)
		wantStatus := prayer.StatusOpen
		if i == 2 {
			wantStatus = prayer.StatusActive
		}
		if rec.Status != wantStatus {
			t.Errorf("status after claim %d = %s, want %s", i+1, rec.Status, wantStatus)
		}
	}
	checkUnits("claims")

	// Requester hands the task detail to one claimer before the answer.
	if _, err := Deliver(ctx, store, DeliverInput{
		Requester:        requester,
		PrayerID:         id,
		Claimer:          claimers[0],
		EncryptedContent: sealedBlob(128),
	}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	checkUnits("deliver")

	mustAnswer(t, store, claimers[1], id)
	checkUnits("answer")

	confirm, err := Confirm(ctx, store, ConfirmInput{
		Requester: requester,
		PrayerID:  id,
		Claimers:  claimers,
	})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if confirm.PerClaimer != 10_000_000 {
		t.Errorf("PerClaimer = %d, want 10000000", confirm.PerClaimer)
	}
	if confirm.TotalPaid != bounty {
		t.Errorf("TotalPaid = %d, want %d", confirm.TotalPaid, bounty)
	}
	if confirm.Remainder != 0 {
		t.Errorf("Remainder = %d, want 0", confirm.Remainder)
	}
	for _, c := range claimers {
		if got := walletBalance(t, store, c); got != 10_000_000 {
			t.Errorf("claimer %s balance = %d, want 10000000", c.Short(), got)
		}
	}
	checkUnits("confirm")

	// The answerer earned both awards; the others only held slots.
	answerer := getAgent(t, store, claimers[1])
	if answerer.Reputation != prayer.AnswerReputation+prayer.ConfirmReputation {
		t.Errorf("answerer reputation = %d, want %d", answerer.Reputation, prayer.AnswerReputation+prayer.ConfirmReputation)
	}
	if answerer.PrayersAnswered != 1 || answerer.PrayersConfirmed != 1 {
		t.Errorf("answerer counters = %d/%d, want 1/1", answerer.PrayersAnswered, answerer.PrayersConfirmed)
	}
	if rep := getAgent(t, store, claimers[0]).Reputation; rep != 0 {
		t.Errorf("bystander reputation = %d, want 0", rep)
	}

	closed, err := Close(ctx, store, CloseInput{
		Requester: requester,
		PrayerID:  id,
		Claimers:  claimers,
	})
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if closed.Returned != prayer.DepositFor(prayer.KindPrayer) {
		t.Errorf("Returned = %d, want %d", closed.Returned, prayer.DepositFor(prayer.KindPrayer))
	}
	if closed.ClaimsSwept != 3 {
		t.Errorf("ClaimsSwept = %d, want 3", closed.ClaimsSwept)
	}
	checkUnits("close")

	if got := walletBalance(t, store, requester); got != prayer.DepositFor(prayer.KindPrayer) {
		t.Errorf("requester final balance = %d, want %d", got, prayer.DepositFor(prayer.KindPrayer))
	}
	for _, c := range claimers {
		want := 10_000_000 + prayer.DepositFor(prayer.KindClaim)
		if got := walletBalance(t, store, c); got != want {
			t.Errorf("claimer %s final balance = %d, want %d", c.Short(), got, want)
		}
	}
}

// TestLifecycle_SingleSlotZeroBounty covers the degenerate prayer: one slot,
// nothing escrowed. Confirmation still moves status and reputation even
// though no units change hands.
func TestLifecycle_SingleSlotZeroBounty(t *testing.T) {
	store := newTestStore(t)
	setupChain(t, store)
	ctx := context.Background()

	requester := testKey(1)
	winner := testKey(2)
	latecomer := testKey(3)
	registerAgent(t, store, requester, "asker", prayer.DepositFor(prayer.KindPrayer))
	registerAgent(t, store, winner, "winner", prayer.DepositFor(prayer.KindClaim))
	registerAgent(t, store, latecomer, "late", prayer.DepositFor(prayer.KindClaim))

	minted := prayer.DepositFor(prayer.KindChain) +
		3*prayer.DepositFor(prayer.KindAgent) +
		prayer.DepositFor(prayer.KindPrayer) +
		2*prayer.DepositFor(prayer.KindClaim)

	id := mustPost(t, store, requester, 0, 1)
	mustClaim(t, store, winner, id)

	if rec := getPrayer(t, store, id); rec.Status != prayer.StatusActive {
		t.Errorf("status after fill = %s, want %s", rec.Status, prayer.StatusActive)
	}
	if _, err := Claim(ctx, store, ClaimInput{Claimer: latecomer, PrayerID: id}); !errors.Is(err, errors.ErrNotOpen) {
		t.Errorf("second claim error = %v, want NOT_OPEN", err)
	}

	mustAnswer(t, store, winner, id)
	confirm, err := Confirm(ctx, store, ConfirmInput{
		Requester: requester,
		PrayerID:  id,
		Claimers:  []prayer.Pubkey{winner},
	})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if confirm.PerClaimer != 0 || confirm.TotalPaid != 0 {
		t.Errorf("payout = %d/%d, want 0/0", confirm.PerClaimer, confirm.TotalPaid)
	}
	if got := walletBalance(t, store, winner); got != 0 {
		t.Errorf("winner balance after confirm = %d, want 0", got)
	}
	if rep := getAgent(t, store, winner).Reputation; rep != prayer.AnswerReputation+prayer.ConfirmReputation {
		t.Errorf("winner reputation = %d, want %d", rep, prayer.AnswerReputation+prayer.ConfirmReputation)
	}

	if _, err := Close(ctx, store, CloseInput{
		Requester: requester,
		PrayerID:  id,
		Claimers:  []prayer.Pubkey{winner},
	}); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := walletBalance(t, store, winner); got != prayer.DepositFor(prayer.KindClaim) {
		t.Errorf("winner final balance = %d, want %d", got, prayer.DepositFor(prayer.KindClaim))
	}
	if got := ledgerUnits(t, store); got != minted {
		t.Errorf("units after close = %d, want %d", got, minted)
	}
}
