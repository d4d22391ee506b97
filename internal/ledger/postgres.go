package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgWriteLockKey is the advisory lock every Update transaction takes before
// running its closure. Taking one process-wide key serializes writers the
// same way the SQLite backend does, so ops keep identical semantics across
// backends.
const pgWriteLockKey = 0x70726179

type postgresStore struct {
	pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, opts Options) (Store, error) {
	if opts.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres driver requires a connection string")
	}

	cfg, err := pgxpool.ParseConfig(opts.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		cfg.MaxConns = int32(opts.MaxOpenConns)
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if err := ensurePostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &postgresStore{pool: pool}, nil
}

func ensurePostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
	  address    TEXT PRIMARY KEY,
	  kind       TEXT NOT NULL,
	  balance    BIGINT NOT NULL DEFAULT 0,
	  data       TEXT NOT NULL,
	  created_at BIGINT NOT NULL,
	  updated_at BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_kind_created
	ON accounts(kind, created_at DESC);

	CREATE TABLE IF NOT EXISTS wallets (
	  pubkey  TEXT PRIMARY KEY,
	  balance BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS journal (
	  seq        BIGSERIAL PRIMARY KEY,
	  id         TEXT NOT NULL UNIQUE,
	  kind       TEXT NOT NULL,
	  prayer_id  BIGINT,
	  payload    TEXT NOT NULL,
	  created_at BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_prayer
	ON journal(prayer_id, seq)
	WHERE prayer_id IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_journal_kind
	ON journal(kind, seq);
	`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure postgres schema: %w", err)
	}
	return nil
}

func (s *postgresStore) View(ctx context.Context, fn func(Tx) error) error {
	return fn(&postgresTx{q: s.pool})
}

func (s *postgresStore) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", pgWriteLockKey); err != nil {
		return fmt.Errorf("failed to take write lock: %w", err)
	}

	if err := fn(&postgresTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresTx struct {
	q pgxQuerier
}

func (t *postgresTx) GetAccount(ctx context.Context, addr string) (*Account, error) {
	var acct Account
	var balance int64
	var data string
	err := t.q.QueryRow(ctx,
		"SELECT address, kind, balance, data, created_at, updated_at FROM accounts WHERE address = $1",
		addr,
	).Scan(&acct.Address, &acct.Kind, &balance, &data, &acct.CreatedAt, &acct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	acct.Balance = uint64(balance)
	acct.Data = []byte(data)
	return &acct, nil
}

func (t *postgresTx) CreateAccount(ctx context.Context, acct *Account) error {
	// Writers hold the advisory lock, so check-then-insert cannot race.
	var exists int
	err := t.q.QueryRow(ctx, "SELECT 1 FROM accounts WHERE address = $1", acct.Address).Scan(&exists)
	if err == nil {
		return ErrExists
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to check account: %w", err)
	}

	_, err = t.q.Exec(ctx,
		"INSERT INTO accounts (address, kind, balance, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)",
		acct.Address, acct.Kind, int64(acct.Balance), string(acct.Data), acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdateAccount(ctx context.Context, acct *Account) error {
	tag, err := t.q.Exec(ctx,
		"UPDATE accounts SET balance = $1, data = $2, updated_at = $3 WHERE address = $4",
		int64(acct.Balance), string(acct.Data), acct.UpdatedAt, acct.Address,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *postgresTx) DeleteAccount(ctx context.Context, addr string) error {
	tag, err := t.q.Exec(ctx, "DELETE FROM accounts WHERE address = $1", addr)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *postgresTx) ScanAccounts(ctx context.Context, kind string, limit, offset int) ([]Account, error) {
	query := "SELECT address, kind, balance, data, created_at, updated_at FROM accounts WHERE kind = $1 ORDER BY created_at DESC, address"
	args := []any{kind}
	if limit > 0 {
		query += " LIMIT $2 OFFSET $3"
		args = append(args, limit, offset)
	}

	rows, err := t.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var acct Account
		var balance int64
		var data string
		if err := rows.Scan(&acct.Address, &acct.Kind, &balance, &data, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		acct.Balance = uint64(balance)
		acct.Data = []byte(data)
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (t *postgresTx) CountAccounts(ctx context.Context, kind string) (int64, error) {
	var n int64
	if err := t.q.QueryRow(ctx, "SELECT COUNT(*) FROM accounts WHERE kind = $1", kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}

func (t *postgresTx) WalletBalance(ctx context.Context, pubkey string) (uint64, error) {
	var balance int64
	err := t.q.QueryRow(ctx, "SELECT balance FROM wallets WHERE pubkey = $1", pubkey).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load wallet balance: %w", err)
	}
	return uint64(balance), nil
}

func (t *postgresTx) CreditWallet(ctx context.Context, pubkey string, amount uint64) error {
	_, err := t.q.Exec(ctx,
		"INSERT INTO wallets (pubkey, balance) VALUES ($1, $2) ON CONFLICT (pubkey) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance",
		pubkey, int64(amount),
	)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	return nil
}

func (t *postgresTx) DebitWallet(ctx context.Context, pubkey string, amount uint64) error {
	tag, err := t.q.Exec(ctx,
		"UPDATE wallets SET balance = balance - $1 WHERE pubkey = $2 AND balance >= $1",
		int64(amount), pubkey,
	)
	if err != nil {
		return fmt.Errorf("failed to debit wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func (t *postgresTx) Totals(ctx context.Context) (uint64, uint64, error) {
	var wallets, accounts int64
	if err := t.q.QueryRow(ctx, "SELECT COALESCE(SUM(balance), 0) FROM wallets").Scan(&wallets); err != nil {
		return 0, 0, fmt.Errorf("failed to sum wallet balances: %w", err)
	}
	if err := t.q.QueryRow(ctx, "SELECT COALESCE(SUM(balance), 0) FROM accounts").Scan(&accounts); err != nil {
		return 0, 0, fmt.Errorf("failed to sum account balances: %w", err)
	}
	return uint64(wallets), uint64(accounts), nil
}

func (t *postgresTx) AppendEvent(ctx context.Context, ev Event) (*Event, error) {
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

	var seq int64
	err = t.q.QueryRow(ctx,
		"INSERT INTO journal (id, kind, prayer_id, payload, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING seq",
		id, ev.Kind, prayerID, string(payload), ev.CreatedAt,
	).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	ev.Seq = uint64(seq)
	ev.ID = id
	ev.Payload = payload
	return &ev, nil
}

// pgEventFilter builds the WHERE clause shared by Events and CountEvents.
func pgEventFilter(q EventQuery) (string, []any) {
	var clause string
	var args []any
	if q.PrayerID != nil {
		args = append(args, int64(*q.PrayerID))
		clause = fmt.Sprintf(" WHERE prayer_id = $%d", len(args))
	}
	if q.Kind != "" {
		args = append(args, q.Kind)
		if len(args) == 1 {
			clause = fmt.Sprintf(" WHERE kind = $%d", len(args))
		} else {
			clause += fmt.Sprintf(" AND kind = $%d", len(args))
		}
	}
	return clause, args
}

func (t *postgresTx) Events(ctx context.Context, q EventQuery) ([]Event, error) {
	clause, args := pgEventFilter(q)
	query := "SELECT seq, id, kind, prayer_id, payload, created_at FROM journal" + clause
	if q.Ascending {
		query += " ORDER BY seq ASC"
	} else {
		query += " ORDER BY seq DESC"
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := t.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var seq int64
		var prayerID *int64
		var payload string
		if err := rows.Scan(&seq, &ev.ID, &ev.Kind, &prayerID, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev.Seq = uint64(seq)
		if prayerID != nil {
			id := uint64(*prayerID)
			ev.PrayerID = &id
		}
		ev.Payload = []byte(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (t *postgresTx) CountEvents(ctx context.Context, q EventQuery) (int64, error) {
	clause, args := pgEventFilter(q)
	var n int64
	if err := t.q.QueryRow(ctx, "SELECT COUNT(*) FROM journal"+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
