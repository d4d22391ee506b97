package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/metrics"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// DeliverInput contains parameters for the Deliver operation.
type DeliverInput struct {
	Requester        prayer.Pubkey
	PrayerID         uint64
	Claimer          prayer.Pubkey
	EncryptedContent []byte
}

// DeliverOutput contains the result of the Deliver operation.
type DeliverOutput struct {
	PrayerID  uint64        `json:"prayer_id"`
	Claimer   prayer.Pubkey `json:"claimer"`
	Delivered bool          `json:"delivered"`
}

// Deliver stores a sealed content blob on one claimer's claim record, once.
// Each claimer gets its own blob sealed to its own key; the engine checks
// only presence and size, never the contents.
func Deliver(ctx context.Context, store ledger.Store, input DeliverInput) (out *DeliverOutput, err error) {
	defer func() { metrics.ObserveTransition("deliver", err) }()

	if input.Requester.IsZero() {
		return nil, errors.NewInvalidRequest("requester wallet is required")
	}
	if input.Claimer.IsZero() {
		return nil, errors.NewInvalidRequest("claimer wallet is required")
	}
	if err := prayer.ValidateSealedPayload(input.EncryptedContent); err != nil {
		return nil, err
	}

	err = store.Update(ctx, func(tx ledger.Tx) error {
		rec, _, err := loadPrayer(ctx, tx, input.PrayerID)
		if err != nil {
			return err
		}

		if !rec.Status.Workable() {
			return errors.NewNotClaimed(string(rec.Status))
		}
		if rec.Requester != input.Requester {
			return errors.NewNotRequester()
		}

		claim, claimAcct, err := loadClaim(ctx, tx, input.PrayerID, input.Claimer)
		if err != nil {
			return err
		}
		if claim.ContentDelivered {
			return errors.NewAlreadyDelivered(input.PrayerID, input.Claimer.String())
		}

		claim.ContentDelivered = true
		claim.EncryptedContent = input.EncryptedContent
		if err := saveRecord(ctx, tx, claimAcct, claim); err != nil {
			return err
		}

		payload := struct {
			Requester prayer.Pubkey `json:"requester"`
			Claimer   prayer.Pubkey `json:"claimer"`
			Bytes     int           `json:"bytes"`
		}{input.Requester, input.Claimer, len(input.EncryptedContent)}
		if err := appendEvent(ctx, tx, ledger.EventContentDelivered, &input.PrayerID, payload); err != nil {
			return err
		}

		out = &DeliverOutput{PrayerID: input.PrayerID, Claimer: input.Claimer, Delivered: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
