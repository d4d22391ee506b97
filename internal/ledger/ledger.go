// Package ledger provides transactional storage for the prayer exchange: an
// account table keyed by derived address, wallet balances, and an append-only
// journal of lifecycle events. Two backends implement the same Store
// interface, SQLite for single-host deployments and Postgres for shared ones.
package ledger

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Storage drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Journal event kinds, one per ledger transition.
const (
	EventChainInitialized = "chain_initialized"
	EventAgentRegistered  = "agent_registered"
	EventAirdrop          = "airdrop"
	EventPrayerPosted     = "prayer_posted"
	EventPrayerClaimed    = "prayer_claimed"
	EventContentDelivered = "content_delivered"
	EventPrayerAnswered   = "prayer_answered"
	EventPrayerConfirmed  = "prayer_confirmed"
	EventPrayerCancelled  = "prayer_cancelled"
	EventClaimRemoved     = "claim_removed"
	EventPrayerClosed     = "prayer_closed"
)

// Sentinel errors returned by Tx methods. Callers translate these into
// user-facing errors with the context they have at hand.
var (
	// ErrNotFound is returned when no account exists at the given address,
	// or an update targets a missing row.
	ErrNotFound = errors.New("ledger: record not found")

	// ErrExists is returned by CreateAccount when the address is taken.
	ErrExists = errors.New("ledger: record already exists")

	// ErrInsufficientFunds is returned by DebitWallet when the wallet
	// balance does not cover the amount.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
)

// Account is one record in the exchange state: a chain counter block, an
// agent profile, a prayer, or a claim. The kind names the record type and
// Data holds its JSON encoding. Balance carries the native units locked in
// the record, rent deposit plus any escrowed bounty.
type Account struct {
	Address   string `json:"address"`
	Kind      string `json:"kind"`
	Balance   uint64 `json:"balance"`
	Data      []byte `json:"data"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Event is one journal entry. Seq is the storage-assigned position, ID a
// ULID minted at append time. PrayerID is set on events that concern a
// specific prayer so timelines can be reassembled without a reverse index
// over account data.
type Event struct {
	Seq       uint64          `json:"seq"`
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	PrayerID  *uint64         `json:"prayer_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt int64           `json:"created_at"`
}

// EventQuery selects journal entries. The zero value selects everything,
// newest first.
type EventQuery struct {
	PrayerID  *uint64 // only events for this prayer
	Kind      string  // only events of this kind
	Ascending bool    // oldest first (timeline order)
	Limit     int     // max rows, 0 means no limit
	Offset    int
}

// Tx is the surface ops run against inside a View or Update closure. Within
// an Update, the backend serializes writers, so read-modify-write sequences
// need no further locking.
type Tx interface {
	// GetAccount loads the account at addr, or ErrNotFound.
	GetAccount(ctx context.Context, addr string) (*Account, error)

	// CreateAccount inserts a new account, or ErrExists if the address
	// is taken.
	CreateAccount(ctx context.Context, acct *Account) error

	// UpdateAccount rewrites balance, data, and updated_at for an
	// existing account, or ErrNotFound.
	UpdateAccount(ctx context.Context, acct *Account) error

	// DeleteAccount removes the account at addr, or ErrNotFound.
	DeleteAccount(ctx context.Context, addr string) error

	// ScanAccounts lists accounts of one kind, newest first.
	ScanAccounts(ctx context.Context, kind string, limit, offset int) ([]Account, error)

	// CountAccounts reports how many accounts of one kind exist.
	CountAccounts(ctx context.Context, kind string) (int64, error)

	// WalletBalance reports a wallet's spendable balance. Unknown
	// wallets hold zero.
	WalletBalance(ctx context.Context, pubkey string) (uint64, error)

	// CreditWallet adds amount to a wallet, creating it if needed.
	CreditWallet(ctx context.Context, pubkey string, amount uint64) error

	// DebitWallet subtracts amount from a wallet, or
	// ErrInsufficientFunds.
	DebitWallet(ctx context.Context, pubkey string, amount uint64) error

	// Totals sums all wallet balances and all account balances. The two
	// together are the value the ledger holds.
	Totals(ctx context.Context) (wallets uint64, accounts uint64, err error)

	// AppendEvent writes a journal entry and returns it with Seq and ID
	// assigned. Kind, PrayerID, Payload, and CreatedAt come from ev.
	AppendEvent(ctx context.Context, ev Event) (*Event, error)

	// Events lists journal entries matching q.
	Events(ctx context.Context, q EventQuery) ([]Event, error)

	// CountEvents reports how many journal entries match q, ignoring
	// Limit and Offset.
	CountEvents(ctx context.Context, q EventQuery) (int64, error)
}

// Store is a ledger backend. Update closures run with exclusive write
// access; View closures see the latest committed state. An error from fn
// rolls back everything the closure did.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver       string // DriverSQLite (default) or DriverPostgres
	DataDir      string // sqlite: directory holding ledger.db
	PostgresDSN  string // postgres: connection string
	MaxOpenConns int    // sqlite pool limit, 0 keeps the driver default
	MaxIdleConns int    // sqlite pool limit, 0 keeps the driver default
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverSQLite:
		return openSQLite(ctx, opts)
	case DriverPostgres:
		return openPostgres(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// newEventID generates a new ULID.
func newEventID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate event id: %w", err)
	}
	return id.String(), nil
}
