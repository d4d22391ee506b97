package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/metrics"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// AirdropInput contains parameters for the Airdrop operation.
type AirdropInput struct {
	Wallet prayer.Pubkey
	Amount uint64
}

// AirdropOutput contains the result of the Airdrop operation.
type AirdropOutput struct {
	Wallet  prayer.Pubkey `json:"wallet"`
	Amount  uint64        `json:"amount"`
	Balance uint64        `json:"balance"`
}

// Airdrop mints native units into a wallet. It is the local ledger's faucet
// and has no authority gate; every other unit in the system traces back to
// an airdrop.
func Airdrop(ctx context.Context, store ledger.Store, input AirdropInput) (out *AirdropOutput, err error) {
	defer func() { metrics.ObserveTransition("airdrop", err) }()

	if input.Wallet.IsZero() {
		return nil, errors.NewInvalidRequest("wallet is required")
	}
	if input.Amount == 0 {
		return nil, errors.NewInvalidRequest("amount must be positive")
	}

	err = store.Update(ctx, func(tx ledger.Tx) error {
		if err := creditWallet(ctx, tx, input.Wallet, input.Amount); err != nil {
			return err
		}

		balance, err := tx.WalletBalance(ctx, input.Wallet.String())
		if err != nil {
			return errors.NewInternal(err)
		}

		payload := struct {
			Wallet prayer.Pubkey `json:"wallet"`
			Amount uint64        `json:"amount"`
		}{input.Wallet, input.Amount}
		if err := appendEvent(ctx, tx, ledger.EventAirdrop, nil, payload); err != nil {
			return err
		}

		out = &AirdropOutput{Wallet: input.Wallet, Amount: input.Amount, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
