package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// sqliteSchemaVersion is the latest SQLite schema version.
// Bump this when adding migrations.
const sqliteSchemaVersion = 1

type sqliteStore struct {
	db *sql.DB
}

// openSQLite initializes the SQLite ledger at DataDir/ledger.db.
// The DataDir option lets tests use t.TempDir() instead of ~/.chorus.
func openSQLite(ctx context.Context, opts Options) (Store, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("sqlite driver requires a data directory")
	}

	// Create base directory with restricted permissions
	if err := os.MkdirAll(opts.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(opts.DataDir, 0700)

	// Open database with pragmas in connection string (applies to all
	// connections). _txlock=immediate makes every write transaction take
	// the write lock up front, so Update closures serialize cleanly.
	dbPath := filepath.Join(opts.DataDir, "ledger.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	// Verify WAL mode is active
	if err := verifyWALMode(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return &sqliteStore{db: db}, nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(ctx context.Context, db *sql.DB) error {
	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// migrateSQLite applies schema migrations based on user_version.
func migrateSQLite(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("failed to get user_version: %w", err)
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS accounts (
		  address    TEXT PRIMARY KEY,
		  kind       TEXT NOT NULL,
		  balance    INTEGER NOT NULL DEFAULT 0,
		  data       TEXT NOT NULL,
		  created_at INTEGER NOT NULL,
		  updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_accounts_kind_created
		ON accounts(kind, created_at DESC);

		CREATE TABLE IF NOT EXISTS wallets (
		  pubkey  TEXT PRIMARY KEY,
		  balance INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS journal (
		  seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		  id         TEXT NOT NULL UNIQUE,
		  kind       TEXT NOT NULL,
		  prayer_id  INTEGER,
		  payload    TEXT NOT NULL,
		  created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_journal_prayer
		ON journal(prayer_id, seq)
		WHERE prayer_id IS NOT NULL;

		CREATE INDEX IF NOT EXISTS idx_journal_kind
		ON journal(kind, seq);
		`
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version=%d", sqliteSchemaVersion)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

func (s *sqliteStore) View(ctx context.Context, fn func(Tx) error) error {
	// WAL readers see the latest committed state without blocking the
	// writer, so views run straight against the pool.
	return fn(&sqliteTx{q: s.db})
}

func (s *sqliteStore) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx, so the same Tx
// implementation backs View and Update.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteTx struct {
	q sqlQuerier
}

func (t *sqliteTx) GetAccount(ctx context.Context, addr string) (*Account, error) {
	var acct Account
	var balance int64
	err := t.q.QueryRowContext(ctx,
		"SELECT address, kind, balance, data, created_at, updated_at FROM accounts WHERE address = ?",
		addr,
	).Scan(&acct.Address, &acct.Kind, &balance, &acct.Data, &acct.CreatedAt, &acct.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	acct.Balance = uint64(balance)
	return &acct, nil
}

func (t *sqliteTx) CreateAccount(ctx context.Context, acct *Account) error {
	// Writers are serialized, so check-then-insert cannot race.
	var exists int
	err := t.q.QueryRowContext(ctx, "SELECT 1 FROM accounts WHERE address = ?", acct.Address).Scan(&exists)
	if err == nil {
		return ErrExists
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check account: %w", err)
	}

	_, err = t.q.ExecContext(ctx,
		"INSERT INTO accounts (address, kind, balance, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		acct.Address, acct.Kind, int64(acct.Balance), string(acct.Data), acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (t *sqliteTx) UpdateAccount(ctx context.Context, acct *Account) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE accounts SET balance = ?, data = ?, updated_at = ? WHERE address = ?",
		int64(acct.Balance), string(acct.Data), acct.UpdatedAt, acct.Address,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) DeleteAccount(ctx context.Context, addr string) error {
	res, err := t.q.ExecContext(ctx, "DELETE FROM accounts WHERE address = ?", addr)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) ScanAccounts(ctx context.Context, kind string, limit, offset int) ([]Account, error) {
	query := "SELECT address, kind, balance, data, created_at, updated_at FROM accounts WHERE kind = ? ORDER BY created_at DESC, address"
	args := []any{kind}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var acct Account
		var balance int64
		if err := rows.Scan(&acct.Address, &acct.Kind, &balance, &acct.Data, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		acct.Balance = uint64(balance)
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (t *sqliteTx) CountAccounts(ctx context.Context, kind string) (int64, error) {
	var n int64
	if err := t.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts WHERE kind = ?", kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}

func (t *sqliteTx) WalletBalance(ctx context.Context, pubkey string) (uint64, error) {
	var balance int64
	err := t.q.QueryRowContext(ctx, "SELECT balance FROM wallets WHERE pubkey = ?", pubkey).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load wallet balance: %w", err)
	}
	return uint64(balance), nil
}

func (t *sqliteTx) CreditWallet(ctx context.Context, pubkey string, amount uint64) error {
	_, err := t.q.ExecContext(ctx,
		"INSERT INTO wallets (pubkey, balance) VALUES (?, ?) ON CONFLICT (pubkey) DO UPDATE SET balance = balance + excluded.balance",
		pubkey, int64(amount),
	)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	return nil
}

func (t *sqliteTx) DebitWallet(ctx context.Context, pubkey string, amount uint64) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE wallets SET balance = balance - ? WHERE pubkey = ? AND balance >= ?",
		int64(amount), pubkey, int64(amount),
	)
	if err != nil {
		return fmt.Errorf("failed to debit wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func (t *sqliteTx) Totals(ctx context.Context) (uint64, uint64, error) {
	var wallets, accounts int64
	if err := t.q.QueryRowContext(ctx, "SELECT COALESCE(SUM(balance), 0) FROM wallets").Scan(&wallets); err != nil {
		return 0, 0, fmt.Errorf("failed to sum wallet balances: %w", err)
	}
	if err := t.q.QueryRowContext(ctx, "SELECT COALESCE(SUM(balance), 0) FROM accounts").Scan(&accounts); err != nil {
		return 0, 0, fmt.Errorf("failed to sum account balances: %w", err)
	}
	return uint64(wallets), uint64(accounts), nil
}

func (t *sqliteTx) AppendEvent(ctx context.Context, ev Event) (*Event, error) {
	id, err := newEventID()
	if err != nil {
		return nil, err
	}

	var prayerID any
	if ev.PrayerID != nil {
		prayerID = int64(*ev.PrayerID)
	}
	payload := ev.Payload
	if payload == nil {
		payload = []byte("{}")
	}

	res, err := t.q.ExecContext(ctx,
		"INSERT INTO journal (id, kind, prayer_id, payload, created_at) VALUES (?, ?, ?, ?, ?)",
		id, ev.Kind, prayerID, string(payload), ev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read event seq: %w", err)
	}

	ev.Seq = uint64(seq)
	ev.ID = id
	ev.Payload = payload
	return &ev, nil
}

// eventFilter builds the WHERE clause shared by Events and CountEvents.
func eventFilter(q EventQuery) (string, []any) {
	var where []string
	var args []any
	if q.PrayerID != nil {
		where = append(where, "prayer_id = ?")
		args = append(args, int64(*q.PrayerID))
	}
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, q.Kind)
	}
	var clause string
	for i, cond := range where {
		if i == 0 {
			clause = " WHERE " + cond
		} else {
			clause += " AND " + cond
		}
	}
	return clause, args
}

func (t *sqliteTx) Events(ctx context.Context, q EventQuery) ([]Event, error) {
	clause, args := eventFilter(q)
	query := "SELECT seq, id, kind, prayer_id, payload, created_at FROM journal" + clause
	if q.Ascending {
		query += " ORDER BY seq ASC"
	} else {
		query += " ORDER BY seq DESC"
	}
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var seq int64
		var prayerID sql.NullInt64
		var payload string
		if err := rows.Scan(&seq, &ev.ID, &ev.Kind, &prayerID, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev.Seq = uint64(seq)
		if prayerID.Valid {
			id := uint64(prayerID.Int64)
			ev.PrayerID = &id
		}
		ev.Payload = []byte(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (t *sqliteTx) CountEvents(ctx context.Context, q EventQuery) (int64, error) {
	clause, args := eventFilter(q)
	var n int64
	if err := t.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM journal"+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
