package prayer

import (
	"crypto/sha256"
	"encoding/binary"
)

// Address derivation is lookup-free: every record's location is a SHA-256
// digest over a domain tag and the record's public identity, so any party can
// recompute it without a directory service. There is no reverse index; walking
// all claims of a prayer needs a caller-supplied candidate list or the event
// journal.
const (
	seedChain  = "prayer-chain"
	seedAgent  = "agent"
	seedPrayer = "prayer"
	seedClaim  = "claim"
)

// ChainAddress returns the singleton chain record's address.
func ChainAddress() Address {
	return deriveAddress([]byte(seedChain))
}

// AgentAddress returns the profile address for a wallet.
func AgentAddress(wallet Pubkey) Address {
	return deriveAddress([]byte(seedAgent), wallet[:])
}

// PrayerAddress returns the record address for a prayer id.
func PrayerAddress(id uint64) Address {
	return deriveAddress([]byte(seedPrayer), le64(id))
}

// ClaimAddress returns the claim address for a (prayer, claimer) pair.
func ClaimAddress(id uint64, claimer Pubkey) Address {
	return deriveAddress([]byte(seedClaim), le64(id), claimer[:])
}

// deriveAddress hashes the concatenated seeds.
func deriveAddress(seeds ...[]byte) Address {
	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// le64 encodes an id as 8 little-endian bytes, matching the seed layout.
func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
