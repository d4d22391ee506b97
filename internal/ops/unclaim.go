package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/config"
	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/metrics"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// UnclaimInput contains parameters for the Unclaim operation.
type UnclaimInput struct {
	// Caller removes the claim: the claimer itself at any time, or anyone
	// once the claim is stale.
	Caller prayer.Pubkey

	PrayerID uint64

	// Claimer identifies whose claim to remove.
	Claimer prayer.Pubkey
}

// UnclaimOutput contains the result of the Unclaim operation.
type UnclaimOutput struct {
	PrayerID        uint64               `json:"prayer_id"`
	Claimer         prayer.Pubkey        `json:"claimer"`
	Reaped          bool                 `json:"reaped"`
	DepositReturned uint64               `json:"deposit_returned"`
	Prayer          *prayer.PrayerRecord `json:"prayer"`
}

// Unclaim removes a claim and returns its storage deposit to the claimer
// wallet, whoever called. A freed slot reopens an Active prayer. Reaping
// stale claims is how anyone can unstick a prayer whose claimers went
// silent.
func Unclaim(ctx context.Context, store ledger.Store, cfg *config.Config, input UnclaimInput) (out *UnclaimOutput, err error) {
	defer func() { metrics.ObserveTransition("unclaim", err) }()

	if input.Caller.IsZero() {
		return nil, errors.NewInvalidRequest("caller wallet is required")
	}
	if input.Claimer.IsZero() {
		return nil, errors.NewInvalidRequest("claimer wallet is required")
	}

	timeout := int64(prayer.ClaimTimeoutSeconds)
	if cfg != nil && cfg.ClaimTimeoutSecs > 0 {
		timeout = cfg.ClaimTimeoutSecs
	}

	var returned uint64

	err = store.Update(ctx, func(tx ledger.Tx) error {
		rec, prayerAcct, err := loadPrayer(ctx, tx, input.PrayerID)
		if err != nil {
			return err
		}

		if !rec.Status.Workable() {
			return errors.NewNotClaimed(string(rec.Status))
		}

		claim, claimAcct, err := loadClaim(ctx, tx, input.PrayerID, input.Claimer)
		if err != nil {
			return err
		}

		isClaimer := claim.Claimer == input.Caller
		stale := claim.Stale(now(), timeout)
		if !isClaimer && !stale {
			return errors.NewNotClaimer()
		}

		returned = claimAcct.Balance
		if err := creditWallet(ctx, tx, claim.Claimer, returned); err != nil {
			return err
		}
		if err := tx.DeleteAccount(ctx, claimAcct.Address); err != nil {
			return errors.NewInternal(err)
		}

		rec.NumClaimers--
		if rec.Status == prayer.StatusActive {
			rec.Status = prayer.StatusOpen
		}
		if err := saveRecord(ctx, tx, prayerAcct, rec); err != nil {
			return err
		}

		payload := struct {
			Caller      prayer.Pubkey `json:"caller"`
			Claimer     prayer.Pubkey `json:"claimer"`
			NumClaimers int           `json:"num_claimers"`
			Reaped      bool          `json:"reaped"`
		}{input.Caller, claim.Claimer, rec.NumClaimers, !isClaimer}
		if err := appendEvent(ctx, tx, ledger.EventClaimRemoved, &input.PrayerID, payload); err != nil {
			return err
		}

		out = &UnclaimOutput{
			PrayerID:        input.PrayerID,
			Claimer:         claim.Claimer,
			Reaped:          !isClaimer,
			DepositReturned: returned,
			Prayer:          rec,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddDisbursed(returned)
	return out, nil
}
