package ops

import (
	"context"
	"encoding/json"

	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// ShowInput contains parameters for the Show operation.
type ShowInput struct {
	PrayerID uint64
}

// ShowOutput contains the result of the Show operation.
type ShowOutput struct {
	Address prayer.Address       `json:"address"`
	Prayer  *prayer.PrayerRecord `json:"prayer"`
	Expired bool                 `json:"expired"`
	Claims  []prayer.ClaimRecord `json:"claims"`
}

// Show loads one prayer and its live claims. Claim addresses embed the
// claimer identity, so without a reverse index the live set is rebuilt by
// replaying the prayer's journal: claims added minus claims removed.
func Show(ctx context.Context, store ledger.Store, input ShowInput) (*ShowOutput, error) {
	var out *ShowOutput
	err := store.View(ctx, func(tx ledger.Tx) error {
		rec, _, err := loadPrayer(ctx, tx, input.PrayerID)
		if err != nil {
			return err
		}

		claimers, err := liveClaimers(ctx, tx, input.PrayerID)
		if err != nil {
			return err
		}
		claims := make([]prayer.ClaimRecord, 0, len(claimers))
		for _, c := range claimers {
			claim, _, err := loadClaim(ctx, tx, input.PrayerID, c)
			if err != nil {
				continue
			}
			claims = append(claims, *claim)
		}

		out = &ShowOutput{
			Address: prayer.PrayerAddress(input.PrayerID),
			Prayer:  rec,
			Expired: rec.Expired(now()),
			Claims:  claims,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ShowClaimInput contains parameters for the ShowClaim operation.
type ShowClaimInput struct {
	PrayerID uint64
	Claimer  prayer.Pubkey
}

// ShowClaimOutput contains the result of the ShowClaim operation.
type ShowClaimOutput struct {
	Address prayer.Address      `json:"address"`
	Claim   *prayer.ClaimRecord `json:"claim"`
}

// ShowClaim loads one claim record by (prayer, claimer).
func ShowClaim(ctx context.Context, store ledger.Store, input ShowClaimInput) (*ShowClaimOutput, error) {
	var out *ShowClaimOutput
	err := store.View(ctx, func(tx ledger.Tx) error {
		claim, _, err := loadClaim(ctx, tx, input.PrayerID, input.Claimer)
		if err != nil {
			return err
		}
		out = &ShowClaimOutput{
			Address: prayer.ClaimAddress(input.PrayerID, input.Claimer),
			Claim:   claim,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// liveClaimers replays a prayer's journal in timeline order and returns the
// wallets whose claims are still standing.
func liveClaimers(ctx context.Context, tx ledger.Tx, prayerID uint64) ([]prayer.Pubkey, error) {
	events, err := tx.Events(ctx, ledger.EventQuery{PrayerID: &prayerID, Ascending: true})
	if err != nil {
		return nil, err
	}

	// A wallet can unclaim and claim again, so order tracks first
	// appearance while live tracks the current state.
	live := make(map[prayer.Pubkey]bool)
	appeared := make(map[prayer.Pubkey]bool)
	var order []prayer.Pubkey
	for _, ev := range events {
		switch ev.Kind {
		case ledger.EventPrayerClaimed, ledger.EventClaimRemoved:
		default:
			continue
		}
		var p struct {
			Claimer prayer.Pubkey `json:"claimer"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			continue
		}
		if ev.Kind == ledger.EventPrayerClaimed {
			live[p.Claimer] = true
			if !appeared[p.Claimer] {
				appeared[p.Claimer] = true
				order = append(order, p.Claimer)
			}
		} else {
			delete(live, p.Claimer)
		}
	}

	claimers := make([]prayer.Pubkey, 0, len(live))
	for _, c := range order {
		if live[c] {
			claimers = append(claimers, c)
		}
	}
	return claimers, nil
}
