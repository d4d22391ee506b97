package ops

import (
	"bytes"
	"context"
	"testing"

	"github.com/iamoberlin/chorus/internal/crypto"
	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// deliverFixture posts a two-slot prayer and claims one slot.
func deliverFixture(t *testing.T) (store ledger.Store, requester, claimer prayer.Pubkey, id uint64) {
	t.Helper()
	store = newTestStore(t)
	setupChain(t, store)
	requester, claimer = testKey(1), testKey(2)
	registerAgent(t, store, requester, "asker", prayer.DepositFor(prayer.KindPrayer))
	registerAgent(t, store, claimer, "worker", prayer.DepositFor(prayer.KindClaim))
	id = mustPost(t, store, requester, 0, 2)
	mustClaim(t, store, claimer, id)
	return store, requester, claimer, id
}

func TestDeliver_HappyPath(t *testing.T) {
	store, requester, claimer, id := deliverFixture(t)
	ctx := context.Background()

	blob := sealedBlob(200)
	out, err := Deliver(ctx, store, DeliverInput{
		Requester:        requester,
		PrayerID:         id,
		Claimer:          claimer,
		EncryptedContent: blob,
	})
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if !out.Delivered {
		t.Error("Delivered = false, want true")
	}

	got, err := ShowClaim(ctx, store, ShowClaimInput{PrayerID: id, Claimer: claimer})
	if err != nil {
		t.Fatalf("ShowClaim failed: %v", err)
	}
	if !got.Claim.ContentDelivered {
		t.Error("ContentDelivered = false after deliver")
	}
	if !bytes.Equal(got.Claim.EncryptedContent, blob) {
		t.Error("stored blob does not match delivered blob")
	}
}

func TestDeliver_OncePerClaimer(t *testing.T) {
	store, requester, claimer, id := deliverFixture(t)
	ctx := context.Background()

	in := DeliverInput{Requester: requester, PrayerID: id, Claimer: claimer, EncryptedContent: sealedBlob(10)}
	if _, err := Deliver(ctx, store, in); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	_, err := Deliver(ctx, store, in)
	if !errors.Is(err, errors.ErrAlreadyDelivered) {
		t.Errorf("second deliver error = %v, want ALREADY_DELIVERED", err)
	}
}

func TestDeliver_NotRequester(t *testing.T) {
	store, _, claimer, id := deliverFixture(t)

	_, err := Deliver(context.Background(), store, DeliverInput{
		Requester:        claimer,
		PrayerID:         id,
		Claimer:          claimer,
		EncryptedContent: sealedBlob(10),
	})
	if !errors.Is(err, errors.ErrNotRequester) {
		t.Errorf("impostor deliver error = %v, want NOT_REQUESTER", err)
	}
}

func TestDeliver_MissingClaim(t *testing.T) {
	store, requester, _, id := deliverFixture(t)

	_, err := Deliver(context.Background(), store, DeliverInput{
		Requester:        requester,
		PrayerID:         id,
		Claimer:          testKey(9),
		EncryptedContent: sealedBlob(10),
	})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("deliver to non-claimer error = %v, want NOT_FOUND", err)
	}
}

func TestDeliver_OutsideWorkingWindow(t *testing.T) {
	store, requester, claimer, id := deliverFixture(t)
	mustAnswer(t, store, claimer, id)

	_, err := Deliver(context.Background(), store, DeliverInput{
		Requester:        requester,
		PrayerID:         id,
		Claimer:          claimer,
		EncryptedContent: sealedBlob(10),
	})
	if !errors.Is(err, errors.ErrNotClaimed) {
		t.Errorf("deliver on fulfilled prayer error = %v, want NOT_CLAIMED", err)
	}
}

func TestDeliver_PayloadBounds(t *testing.T) {
	store, requester, claimer, id := deliverFixture(t)
	ctx := context.Background()

	_, err := Deliver(ctx, store, DeliverInput{
		Requester: requester,
		PrayerID:  id,
		Claimer:   claimer,
	})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty payload error = %v, want INVALID_REQUEST", err)
	}

	_, err = Deliver(ctx, store, DeliverInput{
		Requester:        requester,
		PrayerID:         id,
		Claimer:          claimer,
		EncryptedContent: sealedBlob(crypto.TransportBudget + 1),
	})
	if !errors.Is(err, errors.ErrPayloadTooLarge) {
		t.Errorf("oversize payload error = %v, want PAYLOAD_TOO_LARGE", err)
	}

	// Exactly at the budget is fine.
	if _, err := Deliver(ctx, store, DeliverInput{
		Requester:        requester,
		PrayerID:         id,
		Claimer:          claimer,
		EncryptedContent: sealedBlob(crypto.TransportBudget),
	}); err != nil {
		t.Errorf("budget-size payload failed: %v", err)
	}
}
