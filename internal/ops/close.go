package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/metrics"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// CloseInput contains parameters for the Close operation.
type CloseInput struct {
	Requester prayer.Pubkey
	PrayerID  uint64

	// Claimers lists claim records to sweep along with the prayer. Claims
	// outlive confirm as payout-set proof and cannot be unclaimed from a
	// terminal status, so close is where their deposits go home. Every
	// entry must hold a claim or the whole call fails; surfaces derive
	// the list from the journal.
	Claimers []prayer.Pubkey
}

// CloseOutput contains the result of the Close operation.
type CloseOutput struct {
	PrayerID         uint64 `json:"prayer_id"`
	Returned         uint64 `json:"returned"`
	ClaimsSwept      int    `json:"claims_swept"`
	DepositsReturned uint64 `json:"deposits_returned"`
}

// Close destroys a confirmed or cancelled prayer, returning the record's
// remaining balance (storage deposit plus any split remainder) to the
// requester and each swept claim's deposit to its claimer. Expiry never
// makes a prayer closable; a stuck prayer is recovered by reaping stale
// claims, cancelling, then closing.
func Close(ctx context.Context, store ledger.Store, input CloseInput) (out *CloseOutput, err error) {
	defer func() { metrics.ObserveTransition("close", err) }()

	if input.Requester.IsZero() {
		return nil, errors.NewInvalidRequest("requester wallet is required")
	}

	var disbursed uint64

	err = store.Update(ctx, func(tx ledger.Tx) error {
		rec, prayerAcct, err := loadPrayer(ctx, tx, input.PrayerID)
		if err != nil {
			return err
		}

		if rec.Requester != input.Requester {
			return errors.NewNotRequester()
		}
		if !rec.Status.Terminal() {
			return errors.NewCannotClose(string(rec.Status))
		}

		var depositsReturned uint64
		claimers := dedupKeys(input.Claimers)
		for _, c := range claimers {
			claim, claimAcct, err := loadClaim(ctx, tx, input.PrayerID, c)
			if err != nil {
				return err
			}
			if err := creditWallet(ctx, tx, claim.Claimer, claimAcct.Balance); err != nil {
				return err
			}
			if err := tx.DeleteAccount(ctx, claimAcct.Address); err != nil {
				return errors.NewInternal(err)
			}
			depositsReturned += claimAcct.Balance
		}

		returned := prayerAcct.Balance
		if err := creditWallet(ctx, tx, input.Requester, returned); err != nil {
			return err
		}
		if err := tx.DeleteAccount(ctx, prayerAcct.Address); err != nil {
			return errors.NewInternal(err)
		}

		payload := struct {
			Requester        prayer.Pubkey   `json:"requester"`
			Status           prayer.Status   `json:"status"`
			Returned         uint64          `json:"returned"`
			ClaimersSwept    []prayer.Pubkey `json:"claimers_swept,omitempty"`
			DepositsReturned uint64          `json:"deposits_returned,omitempty"`
		}{input.Requester, rec.Status, returned, claimers, depositsReturned}
		if err := appendEvent(ctx, tx, ledger.EventPrayerClosed, &input.PrayerID, payload); err != nil {
			return err
		}

		disbursed = returned + depositsReturned
		out = &CloseOutput{
			PrayerID:         input.PrayerID,
			Returned:         returned,
			ClaimsSwept:      len(claimers),
			DepositsReturned: depositsReturned,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddDisbursed(disbursed)
	return out, nil
}
