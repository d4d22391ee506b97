package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/metrics"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// ClaimInput contains parameters for the Claim operation.
type ClaimInput struct {
	Claimer  prayer.Pubkey
	PrayerID uint64
}

// ClaimOutput contains the result of the Claim operation.
type ClaimOutput struct {
	Address prayer.Address       `json:"address"`
	Claim   *prayer.ClaimRecord  `json:"claim"`
	Prayer  *prayer.PrayerRecord `json:"prayer"`
	Deposit uint64               `json:"deposit"`
}

// Claim takes a slot on an open prayer. The claimer pays the claim record's
// storage deposit and the prayer flips to Active when the last slot fills.
// A full prayer reads as Active, so a racing claimer sees NotOpen rather
// than a capacity error. Expiry is never checked here.
func Claim(ctx context.Context, store ledger.Store, input ClaimInput) (out *ClaimOutput, err error) {
	defer func() { metrics.ObserveTransition("claim", err) }()

	if input.Claimer.IsZero() {
		return nil, errors.NewInvalidRequest("claimer wallet is required")
	}

	addr := prayer.ClaimAddress(input.PrayerID, input.Claimer)
	deposit := prayer.DepositFor(prayer.KindClaim)

	err = store.Update(ctx, func(tx ledger.Tx) error {
		rec, prayerAcct, err := loadPrayer(ctx, tx, input.PrayerID)
		if err != nil {
			return err
		}

		if rec.Status != prayer.StatusOpen {
			return errors.NewNotOpen(string(rec.Status))
		}
		if rec.Requester == input.Claimer {
			return errors.NewCannotClaimOwn()
		}
		if _, _, err := loadAgent(ctx, tx, input.Claimer); err != nil {
			return err
		}
		exists, err := recordExists(ctx, tx, addr)
		if err != nil {
			return err
		}
		if exists {
			return errors.NewAlreadyClaimed(input.PrayerID, input.Claimer.String())
		}

		if err := debitWallet(ctx, tx, input.Claimer, deposit); err != nil {
			return err
		}

		claim := &prayer.ClaimRecord{
			PrayerID:  input.PrayerID,
			Claimer:   input.Claimer,
			ClaimedAt: now(),
		}
		if _, err := createRecord(ctx, tx, addr, prayer.KindClaim, deposit, claim); err != nil {
			return err
		}

		rec.NumClaimers++
		if rec.NumClaimers >= rec.MaxClaimers {
			rec.Status = prayer.StatusActive
		}
		if err := saveRecord(ctx, tx, prayerAcct, rec); err != nil {
			return err
		}

		payload := struct {
			Claimer     prayer.Pubkey `json:"claimer"`
			NumClaimers int           `json:"num_claimers"`
			MaxClaimers int           `json:"max_claimers"`
		}{input.Claimer, rec.NumClaimers, rec.MaxClaimers}
		if err := appendEvent(ctx, tx, ledger.EventPrayerClaimed, &input.PrayerID, payload); err != nil {
			return err
		}

		out = &ClaimOutput{Address: addr, Claim: claim, Prayer: rec, Deposit: deposit}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddEscrowed(deposit)
	return out, nil
}
