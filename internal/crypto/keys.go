package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length in bytes of X25519 public keys, private keys,
// and derived shared secrets.
const KeySize = 32

// PublicKey is an X25519 public key used to seal content to its holder.
// Agents publish it at registration so that counterparties can encrypt
// for them without any prior exchange.
type PublicKey [KeySize]byte

// ParsePublicKey decodes a hex-encoded X25519 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("invalid public key encoding: %w", err)
	}
	if len(raw) != KeySize {
		return pk, fmt.Errorf("invalid public key length: got %d bytes, want %d", len(raw), KeySize)
	}
	copy(pk[:], raw)
	return pk, nil
}

// Bytes returns the public key as a byte slice.
func (pk PublicKey) Bytes() []byte {
	return pk[:]
}

// String returns the hex encoding of the public key.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk[:])
}

// IsZero reports whether the key is all zero bytes. The zero key is never
// a valid X25519 public key and marks an unset field.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// MarshalText implements encoding.TextMarshaler using the hex encoding.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler from the hex encoding.
func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// PrivateKey is an X25519 private key. It never leaves the agent that
// derived it; only the corresponding PublicKey is published.
type PrivateKey [KeySize]byte

// Bytes returns the private key as a byte slice. Callers must treat the
// result as sensitive material.
func (sk PrivateKey) Bytes() []byte {
	return sk[:]
}

// Public derives the X25519 public key for this private key by base-point
// multiplication.
func (sk PrivateKey) Public() PublicKey {
	var pk PublicKey
	curve25519.ScalarBaseMult((*[KeySize]byte)(&pk), (*[KeySize]byte)(&sk))
	return pk
}

// DeriveKeyPair deterministically derives an X25519 keypair from an Ed25519
// signing key. The Ed25519 seed is expanded with SHA-512 and the low half is
// clamped into a valid curve scalar, matching the scalar Ed25519 itself uses,
// so the derived exchange key is bound to the wallet identity.
//
// Panics if signingKey is not a well-formed Ed25519 private key, consistent
// with the crypto/ed25519 package.
func DeriveKeyPair(signingKey ed25519.PrivateKey) (PublicKey, PrivateKey) {
	if l := len(signingKey); l != ed25519.PrivateKeySize {
		panic("crypto: bad Ed25519 private key length: " + fmt.Sprint(l))
	}

	digest := sha512.Sum512(signingKey.Seed())

	var sk PrivateKey
	copy(sk[:], digest[:KeySize])
	sk[0] &= 248
	sk[31] &= 127
	sk[31] |= 64

	return sk.Public(), sk
}

// GenerateKeyPair generates a fresh random X25519 keypair. Exchange keys are
// normally derived from wallets with DeriveKeyPair; random keypairs exist for
// ephemeral use and tests.
func GenerateKeyPair() (PublicKey, PrivateKey, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return PublicKey{}, PrivateKey{}, fmt.Errorf("generating keypair: %w", err)
	}
	return PublicKey(*pub), PrivateKey(*priv), nil
}

// SharedKey computes the Diffie-Hellman shared secret between a local private
// key and a peer's public key. The secret is symmetric: both sides of a
// conversation compute the same value from their own private half.
func SharedKey(priv PrivateKey, peer PublicKey) [KeySize]byte {
	var shared [KeySize]byte
	box.Precompute(&shared, (*[KeySize]byte)(&peer), (*[KeySize]byte)(&priv))
	return shared
}
