package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
)

const (
	// TransportBudget is the maximum size in bytes of a sealed payload.
	// Every encrypted blob accepted by the exchange fits this budget, which
	// keeps payloads within a single conventional network packet.
	TransportBudget = 1232

	// NonceSize is the length of the random nonce prefixed to every sealed
	// payload.
	NonceSize = 24

	// Overhead is the authentication tag length NaCl box appends to the
	// ciphertext.
	Overhead = box.Overhead

	// MaxPlaintext is the largest plaintext Seal accepts: the transport
	// budget minus the nonce prefix and the authentication tag.
	MaxPlaintext = TransportBudget - NonceSize - Overhead
)

// ErrMessageTooLarge is returned by Seal when the plaintext exceeds
// MaxPlaintext.
var ErrMessageTooLarge = errors.New("message exceeds transport budget")

// ErrDecryptFailed is returned by Open for every failure: truncated input,
// wrong keys, or a tampered payload. The single error keeps failure modes
// indistinguishable to callers.
var ErrDecryptFailed = errors.New("decryption failed")

// Seal encrypts plaintext to the recipient's public key, authenticated by the
// sender's private key. The returned blob is nonce || ciphertext with a fresh
// random 24-byte nonce, and is at most TransportBudget bytes.
func Seal(plaintext []byte, recipient PublicKey, sender PrivateKey) ([]byte, error) {
	if len(plaintext) > MaxPlaintext {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, len(plaintext), MaxPlaintext)
	}

	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := box.Seal(nonce[:], plaintext, &nonce, (*[KeySize]byte)(&recipient), (*[KeySize]byte)(&sender))
	return sealed, nil
}

// Open authenticates and decrypts a blob produced by Seal. The sender's
// public key and the recipient's private key mirror the arrangement used to
// seal; the box shared secret is the same on both sides.
//
// Any failure returns ErrDecryptFailed.
func Open(blob []byte, sender PublicKey, recipient PrivateKey) ([]byte, error) {
	if len(blob) < NonceSize+Overhead {
		return nil, ErrDecryptFailed
	}

	var nonce [NonceSize]byte
	copy(nonce[:], blob[:NonceSize])

	plaintext, ok := box.Open(nil, blob[NonceSize:], &nonce, (*[KeySize]byte)(&sender), (*[KeySize]byte)(&recipient))
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
