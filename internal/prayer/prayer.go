package prayer

import (
	"encoding/hex"
	"fmt"

	"github.com/iamoberlin/chorus/internal/crypto"
)

// Protocol limits.
const (
	// MaxNameChars bounds an agent's display name (runes, not bytes).
	MaxNameChars = 32

	// MaxSkillsChars bounds an agent's free-text skills string.
	MaxSkillsChars = 256

	// MaxClaimersLimit is the hard cap on collaborators per prayer.
	MaxClaimersLimit = 10

	// MinTTLSeconds and MaxTTLSeconds bound a prayer's advisory lifetime.
	// The upper bound is seven days.
	MinTTLSeconds = 1
	MaxTTLSeconds = 604_800

	// ClaimTimeoutSeconds is the default staleness window after which anyone
	// may reap a claim. Overridable via config.
	ClaimTimeoutSeconds = 3600

	// AnswerReputation and ConfirmReputation are the reputation awards for
	// answering a prayer and having that answer confirmed.
	AnswerReputation  = 10
	ConfirmReputation = 5
)

// Record kinds as stored in the ledger's account table.
const (
	KindChain  = "chain"
	KindAgent  = "agent"
	KindPrayer = "prayer"
	KindClaim  = "claim"
)

// Fixed accounting footprints used for rent arithmetic: an 8-byte kind
// discriminator plus the record's field layout. Charged at creation,
// independent of the stored encoding.
const (
	ChainRecordSize  = 8 + 32 + 8 + 8 + 8                                  // 64
	AgentRecordSize  = 8 + 32 + (4 + 32) + (4 + 256) + 32 + 5*8            // 408
	PrayerRecordSize = 8 + 8 + 32 + 1 + 32 + 8 + 1 + 1 + 1 + 32 + 32 + 3*8 // 180
	ClaimRecordSize  = 8 + 8 + 32 + 1 + 8                                  // 57
)

// Pubkey is a wallet identity: a 32-byte Ed25519 public key.
// Rendered as lowercase hex in JSON and display output.
type Pubkey [32]byte

// String returns the hex form of the key.
func (k Pubkey) String() string { return hex.EncodeToString(k[:]) }

// Short returns a truncated display form of the key.
func (k Pubkey) Short() string { return hex.EncodeToString(k[:])[:8] }

// IsZero reports whether the key is all zeroes.
func (k Pubkey) IsZero() bool { return k == Pubkey{} }

// MarshalText implements encoding.TextMarshaler.
func (k Pubkey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Pubkey) UnmarshalText(b []byte) error { return decode32((*[32]byte)(k), string(b), "pubkey") }

// ParsePubkey decodes a 64-character hex wallet key.
func ParsePubkey(s string) (Pubkey, error) {
	var k Pubkey
	err := decode32((*[32]byte)(&k), s, "pubkey")
	return k, err
}

// Hash is a 32-byte content digest. Rendered as lowercase hex.
type Hash [32]byte

// String returns the hex form of the hash.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(b []byte) error { return decode32((*[32]byte)(h), string(b), "hash") }

// ParseHash decodes a 64-character hex digest.
func ParseHash(s string) (Hash, error) {
	var h Hash
	err := decode32((*[32]byte)(&h), s, "hash")
	return h, err
}

// Address is a 32-byte deterministic storage location derived from record
// identity seeds. Rendered as lowercase hex.
type Address [32]byte

// String returns the hex form of the address.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(b []byte) error {
	return decode32((*[32]byte)(a), string(b), "address")
}

// ParseAddress decodes a 64-character hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	err := decode32((*[32]byte)(&a), s, "address")
	return a, err
}

// decode32 fills dst from a 64-character hex string.
func decode32(dst *[32]byte, s, what string) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	if len(b) != 32 {
		return fmt.Errorf("invalid %s %q: need 32 bytes, got %d", what, s, len(b))
	}
	copy(dst[:], b)
	return nil
}

// PrayerType tags what kind of work a prayer asks for.
type PrayerType string

const (
	TypeKnowledge     PrayerType = "knowledge"
	TypeCompute       PrayerType = "compute"
	TypeReview        PrayerType = "review"
	TypeSignal        PrayerType = "signal"
	TypeCollaboration PrayerType = "collaboration"
)

// Types lists all valid prayer types.
var Types = []PrayerType{TypeKnowledge, TypeCompute, TypeReview, TypeSignal, TypeCollaboration}

// Valid reports whether t is a known prayer type.
func (t PrayerType) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Status is the prayer lifecycle state. Transitions only move forward, except
// unclaim may restore Active to Open when a slot frees up.
type Status string

const (
	StatusOpen      Status = "open"
	StatusActive    Status = "active"
	StatusFulfilled Status = "fulfilled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are possible except close.
func (s Status) Terminal() bool { return s == StatusConfirmed || s == StatusCancelled }

// Workable reports whether the prayer is in its claim-and-deliver window.
func (s Status) Workable() bool { return s == StatusOpen || s == StatusActive }

// ChainState is the singleton bookkeeping record. Every post, register, and
// answer funnels through its counters, which makes it the protocol's write
// serialization point.
type ChainState struct {
	// Authority is the wallet that initialized the chain
	Authority Pubkey `json:"authority"`

	// TotalPrayers counts prayers ever posted; the next prayer id
	TotalPrayers uint64 `json:"total_prayers"`

	// TotalAnswered counts prayers that reached Fulfilled
	TotalAnswered uint64 `json:"total_answered"`

	// TotalAgents counts registered agents
	TotalAgents uint64 `json:"total_agents"`
}

// AgentProfile is a registered participant. Created once per wallet, never
// deleted; counters and reputation mutate as lifecycle side effects.
type AgentProfile struct {
	// Wallet is the agent's signing identity
	Wallet Pubkey `json:"wallet"`

	// Name is a display name, at most MaxNameChars runes
	Name string `json:"name"`

	// Skills is free-text capability advertising, at most MaxSkillsChars runes
	Skills string `json:"skills"`

	// EncryptionKey is the agent's key-exchange public key, derived from the
	// wallet's signing key; must be non-zero
	EncryptionKey crypto.PublicKey `json:"encryption_key"`

	// Reputation accrues +10 per answer and +5 per confirmed answer
	Reputation uint64 `json:"reputation"`

	// PrayersPosted counts prayers this agent requested
	PrayersPosted uint64 `json:"prayers_posted"`

	// PrayersAnswered counts prayers this agent answered
	PrayersAnswered uint64 `json:"prayers_answered"`

	// PrayersConfirmed counts this agent's answers confirmed by requesters
	PrayersConfirmed uint64 `json:"prayers_confirmed"`

	// RegisteredAt is the Unix timestamp of registration
	RegisteredAt int64 `json:"registered_at"`
}

// PrayerRecord is a posted request. The bounty rides in the record's ledger
// balance alongside the storage deposit; plaintext never appears here, only
// the content hash and sealed blobs.
type PrayerRecord struct {
	// ID is assigned from the chain's prayer counter at post time
	ID uint64 `json:"id"`

	// Requester is the wallet that posted and escrowed the bounty
	Requester Pubkey `json:"requester"`

	// Type tags the kind of work requested
	Type PrayerType `json:"prayer_type"`

	// ContentHash commits to the plaintext without revealing it
	ContentHash Hash `json:"content_hash"`

	// Bounty is the escrowed amount in native units
	Bounty uint64 `json:"bounty"`

	// Status is the lifecycle state
	Status Status `json:"status"`

	// MaxClaimers caps collaborators (1 = solo, up to MaxClaimersLimit)
	MaxClaimers int `json:"max_claimers"`

	// NumClaimers is the current live claim count
	NumClaimers int `json:"num_claimers"`

	// Answerer is set when an answer arrives (nil before)
	Answerer *Pubkey `json:"answerer,omitempty"`

	// AnswerHash commits to the answer plaintext (nil before answer)
	AnswerHash *Hash `json:"answer_hash,omitempty"`

	// EncryptedAnswer is the sealed answer addressed to the requester
	EncryptedAnswer []byte `json:"encrypted_answer,omitempty"`

	// CreatedAt is the Unix timestamp of post
	CreatedAt int64 `json:"created_at"`

	// ExpiresAt is advisory: no operation enforces it
	ExpiresAt int64 `json:"expires_at"`

	// FulfilledAt is the Unix timestamp of the answer (0 before)
	FulfilledAt int64 `json:"fulfilled_at,omitempty"`
}

// Expired reports whether the prayer is past its advisory TTL while still
// apparently workable. Readers treat such records as practically dead; no
// write operation checks this.
func (p *PrayerRecord) Expired(now int64) bool {
	return now > p.ExpiresAt && p.Status.Workable()
}

// ClaimRecord marks one collaborator's hold on a prayer. It persists after
// confirm to prove payout-set membership and is destroyed by unclaim or
// swept when the prayer closes.
type ClaimRecord struct {
	// PrayerID references the parent prayer
	PrayerID uint64 `json:"prayer_id"`

	// Claimer is the collaborator's wallet
	Claimer Pubkey `json:"claimer"`

	// ContentDelivered flips true when the requester delivers this claimer's
	// sealed copy of the content
	ContentDelivered bool `json:"content_delivered"`

	// EncryptedContent is the sealed content addressed to this claimer
	EncryptedContent []byte `json:"encrypted_content,omitempty"`

	// ClaimedAt is the Unix timestamp of the claim
	ClaimedAt int64 `json:"claimed_at"`
}

// Stale reports whether the claim has outlived the staleness window and may
// be reaped by anyone.
func (c *ClaimRecord) Stale(now, timeoutSeconds int64) bool {
	return now > c.ClaimedAt+timeoutSeconds
}
