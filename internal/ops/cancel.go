package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/metrics"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// CancelInput contains parameters for the Cancel operation.
type CancelInput struct {
	Requester prayer.Pubkey
	PrayerID  uint64
}

// CancelOutput contains the result of the Cancel operation.
type CancelOutput struct {
	Prayer   *prayer.PrayerRecord `json:"prayer"`
	Refunded uint64               `json:"refunded"`
}

// Cancel withdraws an open prayer with no live claims and refunds the full
// bounty to the requester. The storage deposit stays in the record until
// close.
func Cancel(ctx context.Context, store ledger.Store, input CancelInput) (out *CancelOutput, err error) {
	defer func() { metrics.ObserveTransition("cancel", err) }()

	if input.Requester.IsZero() {
		return nil, errors.NewInvalidRequest("requester wallet is required")
	}

	var refunded uint64

	err = store.Update(ctx, func(tx ledger.Tx) error {
		rec, prayerAcct, err := loadPrayer(ctx, tx, input.PrayerID)
		if err != nil {
			return err
		}

		if rec.Status != prayer.StatusOpen {
			return errors.NewCannotCancel(string(rec.Status))
		}
		if rec.NumClaimers != 0 {
			return errors.NewHasClaimers(rec.NumClaimers)
		}
		if rec.Requester != input.Requester {
			return errors.NewNotRequester()
		}

		refunded = rec.Bounty
		if refunded > 0 {
			if err := creditWallet(ctx, tx, input.Requester, refunded); err != nil {
				return err
			}
			prayerAcct.Balance -= refunded
		}

		rec.Status = prayer.StatusCancelled
		if err := saveRecord(ctx, tx, prayerAcct, rec); err != nil {
			return err
		}

		payload := struct {
			Requester prayer.Pubkey `json:"requester"`
			Refunded  uint64        `json:"refunded"`
		}{input.Requester, refunded}
		if err := appendEvent(ctx, tx, ledger.EventPrayerCancelled, &input.PrayerID, payload); err != nil {
			return err
		}

		out = &CancelOutput{Prayer: rec, Refunded: refunded}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddDisbursed(refunded)
	return out, nil
}
