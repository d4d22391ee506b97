package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/metrics"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// ConfirmInput contains parameters for the Confirm operation.
type ConfirmInput struct {
	Requester prayer.Pubkey
	PrayerID  uint64

	// Claimers is the payout set. Completeness is the caller's
	// responsibility; every entry must hold a live claim or the whole
	// call fails.
	Claimers []prayer.Pubkey
}

// ConfirmOutput contains the result of the Confirm operation.
type ConfirmOutput struct {
	Prayer     *prayer.PrayerRecord `json:"prayer"`
	PerClaimer uint64               `json:"per_claimer"`
	TotalPaid  uint64               `json:"total_paid"`
	Claimers   []prayer.Pubkey      `json:"claimers"`
	Remainder  uint64               `json:"remainder"`
}

// Confirm accepts a fulfilled answer and splits the bounty. Each supplied
// claimer is verified against a live claim record, then paid
// floor(bounty / num_claimers); the floor remainder stays in the record
// until close. The answerer earns the confirmation reputation bonus. Claim
// records survive confirm as proof of payout-set membership.
func Confirm(ctx context.Context, store ledger.Store, input ConfirmInput) (out *ConfirmOutput, err error) {
	defer func() { metrics.ObserveTransition("confirm", err) }()

	if input.Requester.IsZero() {
		return nil, errors.NewInvalidRequest("requester wallet is required")
	}

	var distributed uint64

	err = store.Update(ctx, func(tx ledger.Tx) error {
		rec, prayerAcct, err := loadPrayer(ctx, tx, input.PrayerID)
		if err != nil {
			return err
		}

		if rec.Status != prayer.StatusFulfilled {
			return errors.NewNotFulfilled(string(rec.Status))
		}
		if rec.Requester != input.Requester {
			return errors.NewNotRequester()
		}

		claimers := dedupKeys(input.Claimers)
		for _, c := range claimers {
			if _, _, err := loadClaim(ctx, tx, input.PrayerID, c); err != nil {
				return err
			}
		}

		var per uint64
		if rec.Bounty > 0 && rec.NumClaimers > 0 {
			per = rec.Bounty / uint64(rec.NumClaimers)
		}

		// Verified claimers hold live claims, so the dedup'd set never
		// outnumbers num_claimers and the payout never exceeds the bounty.
		for _, c := range claimers {
			if per == 0 {
				break
			}
			if err := creditWallet(ctx, tx, c, per); err != nil {
				return err
			}
			distributed += per
		}
		prayerAcct.Balance -= distributed

		rec.Status = prayer.StatusConfirmed
		if err := saveRecord(ctx, tx, prayerAcct, rec); err != nil {
			return err
		}

		if rec.Answerer == nil {
			return errors.NewInternal(nil)
		}
		agent, agentAcct, err := loadAgent(ctx, tx, *rec.Answerer)
		if err != nil {
			return err
		}
		agent.PrayersConfirmed++
		agent.Reputation += prayer.ConfirmReputation
		if err := saveRecord(ctx, tx, agentAcct, agent); err != nil {
			return err
		}

		payload := struct {
			Requester  prayer.Pubkey   `json:"requester"`
			Answerer   prayer.Pubkey   `json:"answerer"`
			Claimers   []prayer.Pubkey `json:"claimers"`
			PerClaimer uint64          `json:"per_claimer"`
			TotalPaid  uint64          `json:"total_paid"`
		}{input.Requester, *rec.Answerer, claimers, per, distributed}
		if err := appendEvent(ctx, tx, ledger.EventPrayerConfirmed, &input.PrayerID, payload); err != nil {
			return err
		}

		out = &ConfirmOutput{
			Prayer:     rec,
			PerClaimer: per,
			TotalPaid:  distributed,
			Claimers:   claimers,
			Remainder:  rec.Bounty - distributed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddDisbursed(distributed)
	return out, nil
}

// dedupKeys drops repeated wallets, keeping first-seen order.
func dedupKeys(keys []prayer.Pubkey) []prayer.Pubkey {
	seen := make(map[prayer.Pubkey]bool, len(keys))
	result := make([]prayer.Pubkey, 0, len(keys))
	for _, k := range keys {
		if k.IsZero() || seen[k] {
			continue
		}
		seen[k] = true
		result = append(result, k)
	}
	return result
}
