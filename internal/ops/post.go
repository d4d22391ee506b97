package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/metrics"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// PostInput contains parameters for the Post operation.
type PostInput struct {
	Requester   prayer.Pubkey
	Type        prayer.PrayerType
	ContentHash prayer.Hash
	Bounty      uint64
	MaxClaimers int
	TTLSeconds  int64
}

// PostOutput contains the result of the Post operation.
type PostOutput struct {
	PrayerID uint64               `json:"prayer_id"`
	Address  prayer.Address       `json:"address"`
	Prayer   *prayer.PrayerRecord `json:"prayer"`
	Deposit  uint64               `json:"deposit"`
}

// Post creates a prayer in Open. The id comes from the chain counter, and
// bounty plus storage deposit move from the requester's wallet into the
// record in the same transaction that assigns the id. The TTL only sets the
// advisory expires_at; surfaces that want a default fill TTLSeconds before
// calling.
func Post(ctx context.Context, store ledger.Store, input PostInput) (out *PostOutput, err error) {
	defer func() { metrics.ObserveTransition("post", err) }()

	if input.Requester.IsZero() {
		return nil, errors.NewInvalidRequest("requester wallet is required")
	}
	if err := prayer.ValidateType(input.Type); err != nil {
		return nil, err
	}
	if err := prayer.ValidateMaxClaimers(input.MaxClaimers); err != nil {
		return nil, err
	}
	if err := prayer.ValidateTTL(input.TTLSeconds); err != nil {
		return nil, err
	}

	deposit := prayer.DepositFor(prayer.KindPrayer)

	err = store.Update(ctx, func(tx ledger.Tx) error {
		chain, chainAcct, err := loadChain(ctx, tx)
		if err != nil {
			return err
		}
		agent, agentAcct, err := loadAgent(ctx, tx, input.Requester)
		if err != nil {
			return err
		}

		if err := debitWallet(ctx, tx, input.Requester, input.Bounty+deposit); err != nil {
			return err
		}

		id := chain.TotalPrayers
		ts := now()
		rec := &prayer.PrayerRecord{
			ID:          id,
			Requester:   input.Requester,
			Type:        input.Type,
			ContentHash: input.ContentHash,
			Bounty:      input.Bounty,
			Status:      prayer.StatusOpen,
			MaxClaimers: input.MaxClaimers,
			CreatedAt:   ts,
			ExpiresAt:   ts + input.TTLSeconds,
		}
		addr := prayer.PrayerAddress(id)
		if _, err := createRecord(ctx, tx, addr, prayer.KindPrayer, input.Bounty+deposit, rec); err != nil {
			return err
		}

		chain.TotalPrayers++
		if err := saveRecord(ctx, tx, chainAcct, chain); err != nil {
			return err
		}
		agent.PrayersPosted++
		if err := saveRecord(ctx, tx, agentAcct, agent); err != nil {
			return err
		}

		payload := struct {
			Requester   prayer.Pubkey     `json:"requester"`
			Type        prayer.PrayerType `json:"prayer_type"`
			ContentHash prayer.Hash       `json:"content_hash"`
			Bounty      uint64            `json:"bounty"`
			MaxClaimers int               `json:"max_claimers"`
			ExpiresAt   int64             `json:"expires_at"`
		}{input.Requester, input.Type, input.ContentHash, input.Bounty, input.MaxClaimers, rec.ExpiresAt}
		if err := appendEvent(ctx, tx, ledger.EventPrayerPosted, &id, payload); err != nil {
			return err
		}

		out = &PostOutput{PrayerID: id, Address: addr, Prayer: rec, Deposit: deposit}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddEscrowed(input.Bounty + deposit)
	return out, nil
}
