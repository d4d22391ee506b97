// Package crypto provides the cryptographic primitives for private content exchange.
//
// This package implements the operations the exchange needs to move request
// and answer content between agents without the ledger ever seeing plaintext:
//
//   - Deterministic derivation of X25519 key-exchange keypairs from Ed25519
//     wallet keys, so an agent's wallet is its only secret
//   - Authenticated encryption (NaCl box, XSalsa20-Poly1305) for sealing
//     content to a single recipient
//   - A fixed transport budget that bounds every sealed payload
//
// All operations are pure functions; the package holds no state and is safe
// for concurrent use.
//
// # Key Derivation
//
// Wallets sign with Ed25519, but Ed25519 keys cannot perform Diffie-Hellman
// exchange directly. DeriveKeyPair maps the 32-byte Ed25519 seed through
// SHA-512 and standard curve clamping to an X25519 scalar, then derives the
// public key by base-point multiplication. The mapping is deterministic: the
// same wallet always yields the same exchange keypair, and two parties can
// each derive their own half without coordination.
//
// # Sealed Payloads
//
// Seal encrypts a plaintext to a recipient's exchange public key using the
// sender's exchange private key. The wire format is nonce || ciphertext with
// a fresh random 24-byte nonce per message. The box shared secret is
// symmetric, so the recipient opens with the mirrored key arrangement. Open
// reports a single opaque error for every failure mode; callers learn nothing
// about why a payload did not decrypt.
package crypto
