package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := Open(context.Background(), Options{Driver: DriverSQLite, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mongodb"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpen_SQLiteRequiresDataDir(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: DriverSQLite})
	if err == nil {
		t.Fatal("expected error for missing data directory")
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(ctx, Options{Driver: DriverSQLite, DataDir: dir})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	err = store.Update(ctx, func(tx Tx) error {
		return tx.CreateAccount(ctx, &Account{Address: "aa", Kind: "agent", Data: []byte("{}"), CreatedAt: 1, UpdatedAt: 1})
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	store.Close()

	// Reopening must find the migrated schema and the stored row.
	reopened, err := Open(ctx, Options{Driver: DriverSQLite, DataDir: dir})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	err = reopened.View(ctx, func(tx Tx) error {
		_, err := tx.GetAccount(ctx, "aa")
		return err
	})
	if err != nil {
		t.Fatalf("GetAccount after reopen failed: %v", err)
	}
}

func TestAccount_Lifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	acct := &Account{
		Address:   "deadbeef",
		Kind:      "prayer",
		Balance:   1800,
		Data:      []byte(`{"id":0}`),
		CreatedAt: 100,
		UpdatedAt: 100,
	}

	err := store.Update(ctx, func(tx Tx) error {
		return tx.CreateAccount(ctx, acct)
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	// Creating at a taken address fails.
	err = store.Update(ctx, func(tx Tx) error {
		return tx.CreateAccount(ctx, acct)
	})
	if !errors.Is(err, ErrExists) {
		t.Errorf("duplicate create error = %v, want ErrExists", err)
	}

	err = store.View(ctx, func(tx Tx) error {
		got, err := tx.GetAccount(ctx, "deadbeef")
		if err != nil {
			return err
		}
		if got.Kind != "prayer" {
			t.Errorf("Kind = %q, want %q", got.Kind, "prayer")
		}
		if got.Balance != 1800 {
			t.Errorf("Balance = %d, want 1800", got.Balance)
		}
		if string(got.Data) != `{"id":0}` {
			t.Errorf("Data = %s, want {\"id\":0}", got.Data)
		}
		if got.CreatedAt != 100 || got.UpdatedAt != 100 {
			t.Errorf("timestamps = %d/%d, want 100/100", got.CreatedAt, got.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}

	acct.Balance = 2400
	acct.Data = []byte(`{"id":0,"status":"active"}`)
	acct.UpdatedAt = 200
	err = store.Update(ctx, func(tx Tx) error {
		return tx.UpdateAccount(ctx, acct)
	})
	if err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}

	err = store.View(ctx, func(tx Tx) error {
		got, err := tx.GetAccount(ctx, "deadbeef")
		if err != nil {
			return err
		}
		if got.Balance != 2400 {
			t.Errorf("Balance after update = %d, want 2400", got.Balance)
		}
		if got.UpdatedAt != 200 {
			t.Errorf("UpdatedAt after update = %d, want 200", got.UpdatedAt)
		}
		if got.CreatedAt != 100 {
			t.Errorf("CreatedAt must not change on update, got %d", got.CreatedAt)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}

	err = store.Update(ctx, func(tx Tx) error {
		return tx.DeleteAccount(ctx, "deadbeef")
	})
	if err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	err = store.View(ctx, func(tx Tx) error {
		_, err := tx.GetAccount(ctx, "deadbeef")
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAccount after delete error = %v, want ErrNotFound", err)
	}
}

func TestAccount_MissingRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx Tx) error {
		return tx.UpdateAccount(ctx, &Account{Address: "missing", Data: []byte("{}")})
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateAccount on missing row error = %v, want ErrNotFound", err)
	}

	err = store.Update(ctx, func(tx Tx) error {
		return tx.DeleteAccount(ctx, "missing")
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteAccount on missing row error = %v, want ErrNotFound", err)
	}
}

func TestWallet_CreditDebit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.View(ctx, func(tx Tx) error {
		balance, err := tx.WalletBalance(ctx, "w1")
		if err != nil {
			return err
		}
		if balance != 0 {
			t.Errorf("unknown wallet balance = %d, want 0", balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}

	err = store.Update(ctx, func(tx Tx) error {
		if err := tx.CreditWallet(ctx, "w1", 100); err != nil {
			return err
		}
		return tx.CreditWallet(ctx, "w1", 50)
	})
	if err != nil {
		t.Fatalf("CreditWallet failed: %v", err)
	}

	err = store.Update(ctx, func(tx Tx) error {
		return tx.DebitWallet(ctx, "w1", 40)
	})
	if err != nil {
		t.Fatalf("DebitWallet failed: %v", err)
	}

	err = store.View(ctx, func(tx Tx) error {
		balance, err := tx.WalletBalance(ctx, "w1")
		if err != nil {
			return err
		}
		if balance != 110 {
			t.Errorf("balance = %d, want 110", balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestWallet_InsufficientFunds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx Tx) error {
		return tx.CreditWallet(ctx, "w1", 30)
	})
	if err != nil {
		t.Fatalf("CreditWallet failed: %v", err)
	}

	err = store.Update(ctx, func(tx Tx) error {
		return tx.DebitWallet(ctx, "w1", 31)
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("overdraft error = %v, want ErrInsufficientFunds", err)
	}

	// Debiting an unknown wallet is an overdraft, not a silent no-op.
	err = store.Update(ctx, func(tx Tx) error {
		return tx.DebitWallet(ctx, "nobody", 1)
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("unknown wallet debit error = %v, want ErrInsufficientFunds", err)
	}

	err = store.View(ctx, func(tx Tx) error {
		balance, err := tx.WalletBalance(ctx, "w1")
		if err != nil {
			return err
		}
		if balance != 30 {
			t.Errorf("balance after failed debit = %d, want 30", balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx Tx) error {
		if err := tx.CreateAccount(ctx, &Account{Address: "aa", Kind: "agent", Data: []byte("{}")}); err != nil {
			return err
		}
		if err := tx.CreditWallet(ctx, "w1", 500); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want boom", err)
	}

	err = store.View(ctx, func(tx Tx) error {
		if _, err := tx.GetAccount(ctx, "aa"); !errors.Is(err, ErrNotFound) {
			t.Errorf("account survived rollback: err = %v", err)
		}
		balance, err := tx.WalletBalance(ctx, "w1")
		if err != nil {
			return err
		}
		if balance != 0 {
			t.Errorf("wallet credit survived rollback: balance = %d", balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestScanAccounts_KindAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx Tx) error {
		for i, createdAt := range []int64{100, 300, 200} {
			acct := &Account{
				Address:   fmt.Sprintf("prayer-%d", i),
				Kind:      "prayer",
				Data:      []byte("{}"),
				CreatedAt: createdAt,
				UpdatedAt: createdAt,
			}
			if err := tx.CreateAccount(ctx, acct); err != nil {
				return err
			}
		}
		return tx.CreateAccount(ctx, &Account{Address: "agent-0", Kind: "agent", Data: []byte("{}"), CreatedAt: 400, UpdatedAt: 400})
	})
	if err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	err = store.View(ctx, func(tx Tx) error {
		prayers, err := tx.ScanAccounts(ctx, "prayer", 0, 0)
		if err != nil {
			return err
		}
		if len(prayers) != 3 {
			t.Fatalf("got %d prayers, want 3", len(prayers))
		}
		// Newest first.
		if prayers[0].CreatedAt != 300 || prayers[1].CreatedAt != 200 || prayers[2].CreatedAt != 100 {
			t.Errorf("scan order = %d,%d,%d, want 300,200,100", prayers[0].CreatedAt, prayers[1].CreatedAt, prayers[2].CreatedAt)
		}

		page, err := tx.ScanAccounts(ctx, "prayer", 2, 1)
		if err != nil {
			return err
		}
		if len(page) != 2 {
			t.Fatalf("got %d prayers in page, want 2", len(page))
		}
		if page[0].CreatedAt != 200 {
			t.Errorf("page start = %d, want 200", page[0].CreatedAt)
		}

		n, err := tx.CountAccounts(ctx, "prayer")
		if err != nil {
			return err
		}
		if n != 3 {
			t.Errorf("CountAccounts = %d, want 3", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestTotals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx Tx) error {
		if err := tx.CreditWallet(ctx, "w1", 1000); err != nil {
			return err
		}
		if err := tx.CreditWallet(ctx, "w2", 250); err != nil {
			return err
		}
		if err := tx.CreateAccount(ctx, &Account{Address: "p0", Kind: "prayer", Balance: 1800, Data: []byte("{}")}); err != nil {
			return err
		}
		return tx.CreateAccount(ctx, &Account{Address: "a0", Kind: "agent", Balance: 4080, Data: []byte("{}")})
	})
	if err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	err = store.View(ctx, func(tx Tx) error {
		wallets, accounts, err := tx.Totals(ctx)
		if err != nil {
			return err
		}
		if wallets != 1250 {
			t.Errorf("wallet total = %d, want 1250", wallets)
		}
		if accounts != 5880 {
			t.Errorf("account total = %d, want 5880", accounts)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestJournal_AppendAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prayerOne := uint64(1)
	prayerTwo := uint64(2)
	seen := map[string]bool{}

	err := store.Update(ctx, func(tx Tx) error {
		entries := []Event{
			{Kind: EventChainInitialized, CreatedAt: 10},
			{Kind: EventPrayerPosted, PrayerID: &prayerOne, Payload: []byte(`{"bounty":500}`), CreatedAt: 20},
			{Kind: EventPrayerClaimed, PrayerID: &prayerOne, CreatedAt: 30},
			{Kind: EventPrayerPosted, PrayerID: &prayerTwo, CreatedAt: 40},
		}
		var lastSeq uint64
		for _, entry := range entries {
			ev, err := tx.AppendEvent(ctx, entry)
			if err != nil {
				return err
			}
			if len(ev.ID) != 26 {
				t.Errorf("event ID length = %d, want 26 (ULID)", len(ev.ID))
			}
			if seen[ev.ID] {
				t.Errorf("duplicate event ID %s", ev.ID)
			}
			seen[ev.ID] = true
			if ev.Seq <= lastSeq {
				t.Errorf("seq %d not increasing after %d", ev.Seq, lastSeq)
			}
			lastSeq = ev.Seq
		}
		return nil
	})
	if err != nil {
		t.Fatalf("appending failed: %v", err)
	}

	err = store.View(ctx, func(tx Tx) error {
		all, err := tx.Events(ctx, EventQuery{})
		if err != nil {
			return err
		}
		if len(all) != 4 {
			t.Fatalf("got %d events, want 4", len(all))
		}
		// Newest first by default.
		if all[0].Kind != EventPrayerPosted || all[0].PrayerID == nil || *all[0].PrayerID != 2 {
			t.Errorf("first event = %s/%v, want prayer_posted for prayer 2", all[0].Kind, all[0].PrayerID)
		}

		timeline, err := tx.Events(ctx, EventQuery{PrayerID: &prayerOne, Ascending: true})
		if err != nil {
			return err
		}
		if len(timeline) != 2 {
			t.Fatalf("got %d events for prayer 1, want 2", len(timeline))
		}
		if timeline[0].Kind != EventPrayerPosted || timeline[1].Kind != EventPrayerClaimed {
			t.Errorf("timeline order = %s,%s, want posted,claimed", timeline[0].Kind, timeline[1].Kind)
		}
		if string(timeline[0].Payload) != `{"bounty":500}` {
			t.Errorf("payload = %s, want {\"bounty\":500}", timeline[0].Payload)
		}

		posted, err := tx.Events(ctx, EventQuery{Kind: EventPrayerPosted})
		if err != nil {
			return err
		}
		if len(posted) != 2 {
			t.Errorf("got %d posted events, want 2", len(posted))
		}

		// CountEvents ignores paging and honors the same filters.
		total, err := tx.CountEvents(ctx, EventQuery{Limit: 1})
		if err != nil {
			return err
		}
		if total != 4 {
			t.Errorf("CountEvents = %d, want 4", total)
		}
		postedCount, err := tx.CountEvents(ctx, EventQuery{Kind: EventPrayerPosted, PrayerID: &prayerOne})
		if err != nil {
			return err
		}
		if postedCount != 1 {
			t.Errorf("CountEvents filtered = %d, want 1", postedCount)
		}

		limited, err := tx.Events(ctx, EventQuery{Limit: 1, Offset: 1})
		if err != nil {
			return err
		}
		if len(limited) != 1 {
			t.Fatalf("got %d events with limit 1, want 1", len(limited))
		}
		if limited[0].Kind != EventPrayerClaimed {
			t.Errorf("offset event = %s, want prayer_claimed", limited[0].Kind)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestJournal_EmptyPayloadDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx Tx) error {
		ev, err := tx.AppendEvent(ctx, Event{Kind: EventAirdrop, CreatedAt: 1})
		if err != nil {
			return err
		}
		if string(ev.Payload) != "{}" {
			t.Errorf("payload = %s, want {}", ev.Payload)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
}
