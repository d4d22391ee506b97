package ops

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// Typed load/save helpers between ledger accounts and prayer records.
// Loads translate ledger.ErrNotFound into the user-facing taxonomy with the
// identity the caller asked for; saves re-encode and stamp updated_at.

func loadChain(ctx context.Context, tx ledger.Tx) (*prayer.ChainState, *ledger.Account, error) {
	acct, err := tx.GetAccount(ctx, prayer.ChainAddress().String())
	if stderrors.Is(err, ledger.ErrNotFound) {
		return nil, nil, errors.NewNotFound("chain", "prayer chain is not initialized")
	}
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	chain, err := prayer.DecodeChain(acct.Data)
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	return chain, acct, nil
}

func loadAgent(ctx context.Context, tx ledger.Tx, wallet prayer.Pubkey) (*prayer.AgentProfile, *ledger.Account, error) {
	acct, err := tx.GetAccount(ctx, prayer.AgentAddress(wallet).String())
	if stderrors.Is(err, ledger.ErrNotFound) {
		return nil, nil, errors.NewNotFound("agent", wallet.String())
	}
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	agent, err := prayer.DecodeAgent(acct.Data)
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	return agent, acct, nil
}

func loadPrayer(ctx context.Context, tx ledger.Tx, id uint64) (*prayer.PrayerRecord, *ledger.Account, error) {
	acct, err := tx.GetAccount(ctx, prayer.PrayerAddress(id).String())
	if stderrors.Is(err, ledger.ErrNotFound) {
		return nil, nil, errors.NewNotFound("prayer", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	rec, err := prayer.DecodePrayer(acct.Data)
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	return rec, acct, nil
}

func loadClaim(ctx context.Context, tx ledger.Tx, id uint64, claimer prayer.Pubkey) (*prayer.ClaimRecord, *ledger.Account, error) {
	acct, err := tx.GetAccount(ctx, prayer.ClaimAddress(id, claimer).String())
	if stderrors.Is(err, ledger.ErrNotFound) {
		return nil, nil, errors.NewNotFound("claim", fmt.Sprintf("prayer %d by %s", id, claimer))
	}
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	claim, err := prayer.DecodeClaim(acct.Data)
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	return claim, acct, nil
}

// createRecord inserts a new record account. The caller has already
// verified the address is free when a typed duplicate error is wanted;
// a collision here is an internal fault.
func createRecord(ctx context.Context, tx ledger.Tx, addr prayer.Address, kind string, balance uint64, v any) (*ledger.Account, error) {
	data, err := prayer.Encode(v)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	ts := now()
	acct := &ledger.Account{
		Address:   addr.String(),
		Kind:      kind,
		Balance:   balance,
		Data:      data,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := tx.CreateAccount(ctx, acct); err != nil {
		return nil, errors.NewInternal(err)
	}
	return acct, nil
}

// saveRecord re-encodes v into acct and writes it back.
func saveRecord(ctx context.Context, tx ledger.Tx, acct *ledger.Account, v any) error {
	data, err := prayer.Encode(v)
	if err != nil {
		return errors.NewInternal(err)
	}
	acct.Data = data
	acct.UpdatedAt = now()
	if err := tx.UpdateAccount(ctx, acct); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// recordExists reports whether any account sits at addr.
func recordExists(ctx context.Context, tx ledger.Tx, addr prayer.Address) (bool, error) {
	_, err := tx.GetAccount(ctx, addr.String())
	if stderrors.Is(err, ledger.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// debitWallet moves amount out of a wallet, translating a shortfall into
// the typed error with the balance the caller was short against.
func debitWallet(ctx context.Context, tx ledger.Tx, wallet prayer.Pubkey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	err := tx.DebitWallet(ctx, wallet.String(), amount)
	if stderrors.Is(err, ledger.ErrInsufficientFunds) {
		balance, balErr := tx.WalletBalance(ctx, wallet.String())
		if balErr != nil {
			return errors.NewInternal(balErr)
		}
		return errors.NewInsufficientFunds(wallet.String(), amount, balance)
	}
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// creditWallet moves amount into a wallet.
func creditWallet(ctx context.Context, tx ledger.Tx, wallet prayer.Pubkey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := tx.CreditWallet(ctx, wallet.String(), amount); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
