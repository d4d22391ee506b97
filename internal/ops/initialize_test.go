package ops

import (
	"context"
	"testing"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/prayer"
)

func TestInitialize_HappyPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	authority := testKey(0xaa)
	deposit := prayer.DepositFor(prayer.KindChain)
	mustAirdrop(t, store, authority, deposit+100)

	out, err := Initialize(ctx, store, InitializeInput{Authority: authority})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if out.Address != prayer.ChainAddress() {
		t.Errorf("Address = %s, want chain address", out.Address)
	}
	if out.Chain.Authority != authority {
		t.Errorf("Authority = %s, want %s", out.Chain.Authority.Short(), authority.Short())
	}
	if out.Chain.TotalPrayers != 0 || out.Chain.TotalAnswered != 0 || out.Chain.TotalAgents != 0 {
		t.Errorf("counters = %d/%d/%d, want 0/0/0", out.Chain.TotalPrayers, out.Chain.TotalAnswered, out.Chain.TotalAgents)
	}
	if out.Deposit != deposit {
		t.Errorf("Deposit = %d, want %d", out.Deposit, deposit)
	}

	// The deposit left the wallet and sits in the record.
	if balance := walletBalance(t, store, authority); balance != 100 {
		t.Errorf("authority balance = %d, want 100", balance)
	}

	err = store.View(ctx, func(tx ledger.Tx) error {
		acct, err := tx.GetAccount(ctx, prayer.ChainAddress().String())
		if err != nil {
			return err
		}
		if acct.Kind != prayer.KindChain {
			t.Errorf("Kind = %q, want %q", acct.Kind, prayer.KindChain)
		}
		if acct.Balance != deposit {
			t.Errorf("record balance = %d, want %d", acct.Balance, deposit)
		}

		events, err := tx.Events(ctx, ledger.EventQuery{Kind: ledger.EventChainInitialized})
		if err != nil {
			return err
		}
		if len(events) != 1 {
			t.Errorf("got %d chain_initialized events, want 1", len(events))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestInitialize_AlreadyInitialized(t *testing.T) {
	store := newTestStore(t)
	authority := setupChain(t, store)

	mustAirdrop(t, store, authority, prayer.DepositFor(prayer.KindChain))
	_, err := Initialize(context.Background(), store, InitializeInput{Authority: authority})
	if !errors.Is(err, errors.ErrAlreadyInitialized) {
		t.Errorf("second Initialize error = %v, want ALREADY_INITIALIZED", err)
	}
}

func TestInitialize_InsufficientFunds(t *testing.T) {
	store := newTestStore(t)
	authority := testKey(0xaa)

	_, err := Initialize(context.Background(), store, InitializeInput{Authority: authority})
	if !errors.Is(err, errors.ErrInsufficientFunds) {
		t.Errorf("unfunded Initialize error = %v, want INSUFFICIENT_FUNDS", err)
	}

	// Nothing committed.
	err = store.View(context.Background(), func(tx ledger.Tx) error {
		_, err := tx.GetAccount(context.Background(), prayer.ChainAddress().String())
		return err
	})
	if err == nil {
		t.Error("chain record exists after failed init")
	}
}

func TestInitialize_RequiresAuthority(t *testing.T) {
	store := newTestStore(t)

	_, err := Initialize(context.Background(), store, InitializeInput{})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("zero authority error = %v, want INVALID_REQUEST", err)
	}
}
