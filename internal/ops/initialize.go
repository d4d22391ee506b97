package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/metrics"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// InitializeInput contains parameters for the Initialize operation.
type InitializeInput struct {
	Authority prayer.Pubkey
}

// InitializeOutput contains the result of the Initialize operation.
type InitializeOutput struct {
	Address prayer.Address     `json:"address"`
	Chain   *prayer.ChainState `json:"chain"`
	Deposit uint64             `json:"deposit"`
}

// Initialize creates the chain singleton with zeroed counters. The caller
// becomes the recorded authority and pays the record's storage deposit, so
// the wallet needs funding (airdrop) before the chain can exist.
func Initialize(ctx context.Context, store ledger.Store, input InitializeInput) (out *InitializeOutput, err error) {
	defer func() { metrics.ObserveTransition("initialize", err) }()

	if input.Authority.IsZero() {
		return nil, errors.NewInvalidRequest("authority wallet is required")
	}

	addr := prayer.ChainAddress()
	deposit := prayer.DepositFor(prayer.KindChain)

	err = store.Update(ctx, func(tx ledger.Tx) error {
		exists, err := recordExists(ctx, tx, addr)
		if err != nil {
			return err
		}
		if exists {
			return errors.NewAlreadyInitialized()
		}

		if err := debitWallet(ctx, tx, input.Authority, deposit); err != nil {
			return err
		}

		chain := &prayer.ChainState{Authority: input.Authority}
		if _, err := createRecord(ctx, tx, addr, prayer.KindChain, deposit, chain); err != nil {
			return err
		}

		payload := struct {
			Authority prayer.Pubkey `json:"authority"`
		}{input.Authority}
		if err := appendEvent(ctx, tx, ledger.EventChainInitialized, nil, payload); err != nil {
			return err
		}

		out = &InitializeOutput{Address: addr, Chain: chain, Deposit: deposit}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddEscrowed(deposit)
	return out, nil
}
